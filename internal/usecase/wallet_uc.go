package usecase

import (
	"context"
	"fmt"
	"time"

	"wallet-service/internal/domain"
	publisher "wallet-service/internal/pub"
	"wallet-service/internal/repository"
	"wallet-service/internal/xerrors"
	"wallet-service/pkg/utils"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const balanceCacheTTL = 30 * time.Second

var oneHundred = decimal.NewFromInt(100)

// WalletUsecase is the only writer of wallet balances. Every mutation
// path in the service funnels through Credit/Debit here.
type WalletUsecase struct {
	walletRepo repository.WalletRepository
	ledgerRepo repository.LedgerRepository

	refGen         *utils.ReferenceGenerator
	eventPublisher *publisher.WalletEventPublisher
	redisClient    *redis.Client
	logger         *zap.Logger

	withdrawalFeePercent decimal.Decimal
}

func NewWalletUsecase(
	walletRepo repository.WalletRepository,
	ledgerRepo repository.LedgerRepository,
	refGen *utils.ReferenceGenerator,
	eventPublisher *publisher.WalletEventPublisher,
	redisClient *redis.Client,
	withdrawalFeePercent decimal.Decimal,
	logger *zap.Logger,
) *WalletUsecase {
	return &WalletUsecase{
		walletRepo:           walletRepo,
		ledgerRepo:           ledgerRepo,
		refGen:               refGen,
		eventPublisher:       eventPublisher,
		redisClient:          redisClient,
		withdrawalFeePercent: withdrawalFeePercent,
		logger:               logger,
	}
}

// Credit adds amount to the user's wallet, creating the wallet on first
// use, and records a COMPLETED ledger entry. When tx is nil the
// operation runs in its own transaction; otherwise it joins the
// caller's and the caller owns commit/rollback (and post-commit side
// effects).
func (uc *WalletUsecase) Credit(
	ctx context.Context,
	tx pgx.Tx,
	userID int64,
	amount decimal.Decimal,
	entryType domain.LedgerEntryType,
	source, reference string,
) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}

	ownTx := tx == nil
	if ownTx {
		var err error
		tx, err = uc.walletRepo.BeginTx(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to begin tx: %w", err)
		}
		defer tx.Rollback(ctx)
	}

	wallet, err := uc.walletRepo.EnsureExists(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	newBalance := wallet.Balance.Add(amount)
	if err := uc.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return decimal.Zero, err
	}

	entry := &domain.LedgerEntry{
		WalletID:     wallet.ID,
		Type:         entryType,
		Source:       source,
		Amount:       amount,
		BalanceAfter: newBalance,
		Status:       domain.EntryCompleted,
		Reference:    reference,
	}
	if err := uc.ledgerRepo.Insert(ctx, tx, entry); err != nil {
		return decimal.Zero, err
	}

	if ownTx {
		if err := tx.Commit(ctx); err != nil {
			return decimal.Zero, fmt.Errorf("failed to commit credit: %w", err)
		}
		uc.NotifyBalanceChange(userID, entry, "wallet.credited")
	}

	return newBalance, nil
}

// Debit removes amount from the user's wallet and records a ledger
// entry with the negated amount and the given status. The wallet must
// already exist and hold at least amount.
func (uc *WalletUsecase) Debit(
	ctx context.Context,
	tx pgx.Tx,
	userID int64,
	amount decimal.Decimal,
	entryType domain.LedgerEntryType,
	source, reference string,
	status domain.LedgerEntryStatus,
) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	if status == "" {
		status = domain.EntryCompleted
	}

	ownTx := tx == nil
	if ownTx {
		var err error
		tx, err = uc.walletRepo.BeginTx(ctx)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to begin tx: %w", err)
		}
		defer tx.Rollback(ctx)
	}

	wallet, err := uc.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if wallet.Balance.LessThan(amount) {
		return decimal.Zero, xerrors.ErrInsufficientFunds
	}

	newBalance := wallet.Balance.Sub(amount)
	if err := uc.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return decimal.Zero, err
	}

	entry := &domain.LedgerEntry{
		WalletID:     wallet.ID,
		Type:         entryType,
		Source:       source,
		Amount:       amount.Neg(),
		BalanceAfter: newBalance,
		Status:       status,
		Reference:    reference,
	}
	if err := uc.ledgerRepo.Insert(ctx, tx, entry); err != nil {
		return decimal.Zero, err
	}

	if ownTx {
		if err := tx.Commit(ctx); err != nil {
			return decimal.Zero, fmt.Errorf("failed to commit debit: %w", err)
		}
		uc.NotifyBalanceChange(userID, entry, "wallet.debited")
	}

	return newBalance, nil
}

// RequestWithdrawal debits amount plus the configured fee in one
// transaction: a PENDING withdrawal entry of -amount and, when fee is
// positive, a COMPLETED fee adjustment of -fee. The withdrawal stays
// PENDING until an operator approves or rejects it.
func (uc *WalletUsecase) RequestWithdrawal(
	ctx context.Context,
	userID int64,
	amount decimal.Decimal,
	method, details string,
) (*domain.WithdrawalRequest, error) {
	if !amount.IsPositive() {
		return nil, xerrors.ErrInvalidAmount
	}

	fee := amount.Mul(uc.withdrawalFeePercent).Div(oneHundred)
	total := amount.Add(fee)
	reference := uc.refGen.GeneratePrefixed("WDR")

	tx, err := uc.walletRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := uc.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(total) {
		return nil, xerrors.ErrInsufficientFunds
	}

	afterWithdrawal := wallet.Balance.Sub(amount)
	finalBalance := afterWithdrawal.Sub(fee)
	if err := uc.walletRepo.UpdateBalance(ctx, tx, wallet.ID, finalBalance); err != nil {
		return nil, err
	}

	withdrawalEntry := &domain.LedgerEntry{
		WalletID:     wallet.ID,
		Type:         domain.EntryWithdrawal,
		Source:       method,
		Amount:       amount.Neg(),
		BalanceAfter: afterWithdrawal,
		Status:       domain.EntryPending,
		Reference:    reference,
	}
	if err := uc.ledgerRepo.Insert(ctx, tx, withdrawalEntry); err != nil {
		return nil, err
	}

	if fee.IsPositive() {
		feeEntry := &domain.LedgerEntry{
			WalletID:     wallet.ID,
			Type:         domain.EntryAdjustment,
			Source:       "WITHDRAWAL_FEE",
			Amount:       fee.Neg(),
			BalanceAfter: finalBalance,
			Status:       domain.EntryCompleted,
			Reference:    reference,
		}
		if err := uc.ledgerRepo.Insert(ctx, tx, feeEntry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal request: %w", err)
	}

	uc.logger.Info("withdrawal requested",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.String()),
		zap.String("fee", fee.String()),
		zap.String("method", method),
		zap.String("reference", reference))
	uc.NotifyBalanceChange(userID, withdrawalEntry, "withdrawal.requested")

	return &domain.WithdrawalRequest{
		Entry:   withdrawalEntry,
		Fee:     fee,
		Method:  method,
		Details: details,
	}, nil
}

// ApproveWithdrawal flips a PENDING withdrawal to COMPLETED. The
// balance was already debited at request time, so nothing else moves.
func (uc *WalletUsecase) ApproveWithdrawal(ctx context.Context, ledgerID int64) error {
	tx, err := uc.walletRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := uc.ledgerRepo.GetByIDForUpdate(ctx, tx, ledgerID)
	if err != nil {
		return err
	}
	if entry.Type != domain.EntryWithdrawal || entry.Status != domain.EntryPending {
		return xerrors.ErrWithdrawalNotPending
	}

	if err := uc.ledgerRepo.UpdateStatus(ctx, tx, ledgerID, domain.EntryCompleted); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit withdrawal approval: %w", err)
	}

	uc.logger.Info("withdrawal approved", zap.Int64("ledger_id", ledgerID))
	return nil
}

// RejectWithdrawal refunds the withdrawn amount, marks the original
// entry REJECTED and writes a COMPLETED refund credit. The fee
// adjustment is not refunded; the platform keeps the fee.
func (uc *WalletUsecase) RejectWithdrawal(ctx context.Context, ledgerID int64) (*domain.LedgerEntry, error) {
	tx, err := uc.walletRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := uc.ledgerRepo.GetByIDForUpdate(ctx, tx, ledgerID)
	if err != nil {
		return nil, err
	}
	if entry.Type != domain.EntryWithdrawal || entry.Status != domain.EntryPending {
		return nil, xerrors.ErrWithdrawalNotPending
	}

	wallet, err := uc.walletRepo.GetByIDForUpdate(ctx, tx, entry.WalletID)
	if err != nil {
		return nil, err
	}

	refund := entry.Amount.Abs()
	newBalance := wallet.Balance.Add(refund)
	if err := uc.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return nil, err
	}

	if err := uc.ledgerRepo.UpdateStatus(ctx, tx, ledgerID, domain.EntryRejected); err != nil {
		return nil, err
	}

	refundEntry := &domain.LedgerEntry{
		WalletID:     wallet.ID,
		Type:         domain.EntryDeposit,
		Source:       "WITHDRAWAL_REFUND",
		Amount:       refund,
		BalanceAfter: newBalance,
		Status:       domain.EntryCompleted,
		Reference:    entry.Reference,
	}
	if err := uc.ledgerRepo.Insert(ctx, tx, refundEntry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal rejection: %w", err)
	}

	uc.logger.Info("withdrawal rejected",
		zap.Int64("ledger_id", ledgerID),
		zap.String("refund", refund.String()))
	uc.NotifyBalanceChange(wallet.UserID, refundEntry, "withdrawal.rejected")

	return refundEntry, nil
}

// GetBalance reads the balance with a short-lived Redis cache in
// front. Mutations invalidate the key.
func (uc *WalletUsecase) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	cacheKey := balanceCacheKey(userID)

	if uc.redisClient != nil {
		if val, err := uc.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			if d, parseErr := decimal.NewFromString(val); parseErr == nil {
				return d, nil
			}
		}
	}

	wallet, err := uc.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	if uc.redisClient != nil {
		_ = uc.redisClient.Set(ctx, cacheKey, wallet.Balance.String(), balanceCacheTTL).Err()
	}

	return wallet.Balance, nil
}

// ListLedger returns a page of the wallet's ledger entries, newest first.
func (uc *WalletUsecase) ListLedger(ctx context.Context, userID int64, limit, offset int) ([]*domain.LedgerEntry, int, error) {
	wallet, err := uc.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return uc.ledgerRepo.ListByWallet(ctx, wallet.ID, limit, offset)
}

// Reconcile verifies the balance invariant: the wallet balance equals
// the signed sum of its COMPLETED, PENDING and REJECTED ledger
// entries. REJECTED withdrawal debits must stay in the sum, where they
// cancel against their paired refund credits.
func (uc *WalletUsecase) Reconcile(ctx context.Context, userID int64) (bool, error) {
	wallet, err := uc.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}

	sum, err := uc.ledgerRepo.SumByStatus(ctx, wallet.ID,
		domain.EntryCompleted, domain.EntryPending, domain.EntryRejected)
	if err != nil {
		return false, err
	}

	return wallet.Balance.Equal(sum), nil
}

// NotifyBalanceChange drops the cached balance and publishes a wallet
// event. Callers that supplied their own transaction invoke it after
// commit; failures here never touch the money.
func (uc *WalletUsecase) NotifyBalanceChange(userID int64, entry *domain.LedgerEntry, eventType string) {
	if uc.redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = uc.redisClient.Del(ctx, balanceCacheKey(userID)).Err()
	}

	if uc.eventPublisher != nil {
		uc.eventPublisher.PublishAsync(&publisher.WalletEvent{
			EventType:    eventType,
			UserID:       userID,
			LedgerID:     entry.ID,
			EntryType:    string(entry.Type),
			Amount:       entry.Amount.String(),
			BalanceAfter: entry.BalanceAfter.String(),
			Reference:    entry.Reference,
		})
	}
}

func balanceCacheKey(userID int64) string {
	return fmt.Sprintf("wallet:balance:%d", userID)
}
