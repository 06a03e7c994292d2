package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error)
	GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, walletID int64) (*domain.Wallet, error)
	EnsureExists(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID int64, balance decimal.Decimal) error
}

type walletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepo(db *pgxpool.Pool) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// GetByUserID fetches a wallet without locking (read-only paths).
func (r *walletRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	query := `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`

	var w domain.Wallet
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

// GetByUserIDForUpdate fetches a wallet with a pessimistic row lock.
// Every balance mutation goes through this lock.
func (r *walletRepo) GetByUserIDForUpdate(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil for locked query")
	}

	query := `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`

	var w domain.Wallet
	err := tx.QueryRow(ctx, query, userID).Scan(
		&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet with lock: %w", err)
	}

	return &w, nil
}

// GetByIDForUpdate locks a wallet by its primary key. Used when the
// caller only holds a ledger entry, not the owning user.
func (r *walletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, walletID int64) (*domain.Wallet, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil for locked query")
	}

	query := `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets
		WHERE id = $1
		FOR UPDATE
	`

	var w domain.Wallet
	err := tx.QueryRow(ctx, query, walletID).Scan(
		&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet with lock: %w", err)
	}

	return &w, nil
}

// EnsureExists lazily creates the wallet on first money movement and
// returns it locked. Safe under concurrent first credits.
func (r *walletRepo) EnsureExists(ctx context.Context, tx pgx.Tx, userID int64) (*domain.Wallet, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil")
	}

	query := `
		INSERT INTO wallets (user_id, balance, created_at, updated_at)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := tx.Exec(ctx, query, userID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet exists: %w", err)
	}

	return r.GetByUserIDForUpdate(ctx, tx, userID)
}

func (r *walletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID int64, balance decimal.Decimal) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	query := `
		UPDATE wallets
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`

	cmdTag, err := tx.Exec(ctx, query, balance, time.Now(), walletID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrWalletNotFound
	}

	return nil
}
