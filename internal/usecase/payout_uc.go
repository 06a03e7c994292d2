package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	daysPerMonth = decimal.NewFromInt(30)
	hoursPerDay  = decimal.NewFromInt(24)
)

// PayoutUsecase computes and credits accrued yield for active
// investments. Each investment is its own unit of work; one failure is
// logged and never blocks the rest of the batch.
type PayoutUsecase struct {
	investmentRepo repository.InvestmentRepository
	walletUC       *WalletUsecase
	logger         *zap.Logger
}

func NewPayoutUsecase(
	investmentRepo repository.InvestmentRepository,
	walletUC *WalletUsecase,
	logger *zap.Logger,
) *PayoutUsecase {
	return &PayoutUsecase{
		investmentRepo: investmentRepo,
		walletUC:       walletUC,
		logger:         logger,
	}
}

// RunHourly pays investments on HOURLY plans. The repository excludes
// investments already paid within the hour containing now, so an
// overlapping firing is a no-op.
func (uc *PayoutUsecase) RunHourly(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.investmentRepo.ListDueHourly(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list hourly investments: %w", err)
	}

	return uc.payBatch(ctx, due, now, hourlyRate), nil
}

// RunDaily pays investments on every non-hourly cadence, with the same
// per-day idempotence guard.
func (uc *PayoutUsecase) RunDaily(ctx context.Context, now time.Time) (int, error) {
	due, err := uc.investmentRepo.ListDueDaily(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list daily investments: %w", err)
	}

	return uc.payBatch(ctx, due, now, dailyRate), nil
}

// hourlyRate derives the per-hour rate from the plan's monthly nominal
// yield: yieldPercent / 30 / 24 / 100.
func hourlyRate(yieldPercent decimal.Decimal) decimal.Decimal {
	return yieldPercent.Div(daysPerMonth).Div(hoursPerDay).Div(oneHundred)
}

// dailyRate: yieldPercent / 30 / 100.
func dailyRate(yieldPercent decimal.Decimal) decimal.Decimal {
	return yieldPercent.Div(daysPerMonth).Div(oneHundred)
}

func (uc *PayoutUsecase) payBatch(ctx context.Context, due []*domain.Investment, now time.Time, rate func(decimal.Decimal) decimal.Decimal) int {
	processed := 0
	for _, inv := range due {
		if err := uc.payInvestment(ctx, inv, now, rate); err != nil {
			uc.logger.Error("investment payout failed",
				zap.Int64("investment_id", inv.ID),
				zap.Int64("user_id", inv.UserID),
				zap.Error(err))
			continue
		}
		processed++
	}

	return processed
}

func (uc *PayoutUsecase) payInvestment(ctx context.Context, inv *domain.Investment, now time.Time, rate func(decimal.Decimal) decimal.Decimal) error {
	if inv.Plan == nil {
		return fmt.Errorf("investment %d has no plan loaded", inv.ID)
	}

	payout := inv.PrincipalAmount.Mul(rate(inv.Plan.YieldPercent))
	if !payout.IsPositive() {
		return nil
	}

	tx, err := uc.investmentRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := uc.investmentRepo.InsertPayout(ctx, tx, &domain.InvestmentPayout{
		InvestmentID: inv.ID,
		Amount:       payout,
		PayoutDate:   now,
	}); err != nil {
		return err
	}

	newBalance, err := uc.walletUC.Credit(ctx, tx, inv.UserID, payout,
		domain.EntryInvestmentPayout, "INVESTMENT", strconv.FormatInt(inv.ID, 10))
	if err != nil {
		return err
	}

	if err := uc.investmentRepo.SetLastPayoutAt(ctx, tx, inv.ID, now); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit payout: %w", err)
	}

	uc.logger.Info("investment payout credited",
		zap.Int64("investment_id", inv.ID),
		zap.Int64("user_id", inv.UserID),
		zap.String("amount", payout.String()))
	uc.walletUC.NotifyBalanceChange(inv.UserID, &domain.LedgerEntry{
		Type:         domain.EntryInvestmentPayout,
		Amount:       payout,
		BalanceAfter: newBalance,
		Reference:    strconv.FormatInt(inv.ID, 10),
	}, "payout.credited")

	return nil
}
