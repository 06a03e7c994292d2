package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/internal/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	commissionQueueSize = 1000
	commissionWorkers   = 4
)

// CommissionUsecase walks the sponsor chain and pays tiered referral
// commissions through the wallet ledger. Distribution is decoupled
// from the triggering request by a worker pool; the outbox dispatcher
// calls RunCascade directly so its retry/backoff covers the job.
type CommissionUsecase struct {
	commissionRepo repository.CommissionRepository
	sponsorRepo    repository.SponsorRepository
	walletUC       *WalletUsecase

	// rates per level, level 1 first; length bounds the cascade depth.
	rates []decimal.Decimal

	jobs   chan domain.CommissionJob
	wg     sync.WaitGroup
	once   sync.Once
	logger *zap.Logger
}

func NewCommissionUsecase(
	commissionRepo repository.CommissionRepository,
	sponsorRepo repository.SponsorRepository,
	walletUC *WalletUsecase,
	rates []decimal.Decimal,
	logger *zap.Logger,
) *CommissionUsecase {
	return &CommissionUsecase{
		commissionRepo: commissionRepo,
		sponsorRepo:    sponsorRepo,
		walletUC:       walletUC,
		rates:          rates,
		jobs:           make(chan domain.CommissionJob, commissionQueueSize),
		logger:         logger,
	}
}

// Start launches the background workers that drain the job queue.
func (uc *CommissionUsecase) Start() {
	for i := 0; i < commissionWorkers; i++ {
		uc.wg.Add(1)
		go uc.worker()
	}
	uc.logger.Info("commission workers started", zap.Int("workers", commissionWorkers))
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (uc *CommissionUsecase) Stop() {
	uc.once.Do(func() { close(uc.jobs) })
	uc.wg.Wait()
}

// Distribute enqueues a cascade job. Fire-and-forget: the caller never
// blocks on fan-out work.
func (uc *CommissionUsecase) Distribute(orderID, buyerID int64, amount decimal.Decimal) {
	job := domain.CommissionJob{OrderID: orderID, BuyerID: buyerID, Amount: amount}
	select {
	case uc.jobs <- job:
	default:
		uc.logger.Warn("commission queue full, dropping job",
			zap.Int64("order_id", orderID),
			zap.Int64("buyer_id", buyerID))
	}
}

func (uc *CommissionUsecase) worker() {
	defer uc.wg.Done()

	for job := range uc.jobs {
		ctx := context.Background()
		if err := uc.RunCascade(ctx, job); err != nil {
			uc.logger.Error("commission cascade failed",
				zap.Int64("order_id", job.OrderID),
				zap.Int64("buyer_id", job.BuyerID),
				zap.Error(err))
		}
	}
}

// RunCascade pays up to len(rates) ancestor levels starting from the
// buyer's sponsor. Each level commits independently; a failure at
// level N leaves levels < N paid and returns an error so the caller
// can retry the whole job. Already-paid (order, earner, level) rows
// are skipped on retry.
func (uc *CommissionUsecase) RunCascade(ctx context.Context, job domain.CommissionJob) error {
	current := job.BuyerID

	for level := 1; level <= len(uc.rates); level++ {
		sponsorID, err := uc.sponsorRepo.GetSponsorID(ctx, current)
		if err != nil {
			return fmt.Errorf("level %d: %w", level, err)
		}
		if sponsorID == nil {
			break
		}

		commission := job.Amount.Mul(uc.rates[level-1]).Div(oneHundred)
		if commission.IsPositive() {
			if err := uc.payLevel(ctx, job, *sponsorID, level, commission); err != nil {
				return fmt.Errorf("level %d: %w", level, err)
			}
		}

		current = *sponsorID
	}

	return nil
}

func (uc *CommissionUsecase) payLevel(ctx context.Context, job domain.CommissionJob, earnerID int64, level int, commission decimal.Decimal) error {
	paid, err := uc.commissionRepo.Exists(ctx, job.OrderID, earnerID, level)
	if err != nil {
		return err
	}
	if paid {
		uc.logger.Debug("commission level already paid, skipping",
			zap.Int64("order_id", job.OrderID),
			zap.Int64("earner_id", earnerID),
			zap.Int("level", level))
		return nil
	}

	tx, err := uc.commissionRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	audit := &domain.MlmCommission{
		EarnerID: earnerID,
		BuyerID:  job.BuyerID,
		OrderID:  job.OrderID,
		Amount:   commission,
		Level:    level,
	}
	if err := uc.commissionRepo.Insert(ctx, tx, audit); err != nil {
		if errors.Is(err, xerrors.ErrCommissionAlreadyPaid) {
			uc.logger.Debug("commission level paid concurrently, skipping",
				zap.Int64("order_id", job.OrderID),
				zap.Int64("earner_id", earnerID),
				zap.Int("level", level))
			return nil
		}
		return err
	}

	newBalance, err := uc.walletUC.Credit(ctx, tx, earnerID, commission,
		domain.EntryMlmCommission, "MLM", strconv.FormatInt(job.OrderID, 10))
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit commission: %w", err)
	}

	uc.logger.Info("commission paid",
		zap.Int64("order_id", job.OrderID),
		zap.Int64("earner_id", earnerID),
		zap.Int("level", level),
		zap.String("amount", commission.String()))
	uc.walletUC.NotifyBalanceChange(earnerID, &domain.LedgerEntry{
		Type:         domain.EntryMlmCommission,
		Amount:       commission,
		BalanceAfter: newBalance,
		Reference:    strconv.FormatInt(job.OrderID, 10),
	}, "commission.paid")

	return nil
}
