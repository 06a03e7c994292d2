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

type LedgerRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error
	GetByID(ctx context.Context, id int64) (*domain.LedgerEntry, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.LedgerEntry, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.LedgerEntryStatus) error
	ListByWallet(ctx context.Context, walletID int64, limit, offset int) ([]*domain.LedgerEntry, int, error)
	SumByStatus(ctx context.Context, walletID int64, statuses ...domain.LedgerEntryStatus) (decimal.Decimal, error)
}

type ledgerRepo struct {
	db *pgxpool.Pool
}

func NewLedgerRepo(db *pgxpool.Pool) LedgerRepository {
	return &ledgerRepo{db: db}
}

// Insert writes a new ledger entry inside a transaction. Entries are
// immutable after this point except for status transitions.
func (r *ledgerRepo) Insert(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	now := time.Now()
	err := tx.QueryRow(ctx, `
		INSERT INTO ledger_entries
			(wallet_id, type, source, amount, balance_after, status, reference, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		RETURNING id, created_at
	`, e.WalletID, e.Type, e.Source, e.Amount, e.BalanceAfter, e.Status, e.Reference, now).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	e.UpdatedAt = e.CreatedAt

	return nil
}

func (r *ledgerRepo) GetByID(ctx context.Context, id int64) (*domain.LedgerEntry, error) {
	return r.get(ctx, r.db, id, false)
}

func (r *ledgerRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*domain.LedgerEntry, error) {
	if tx == nil {
		return nil, errors.New("transaction cannot be nil for locked query")
	}
	return r.get(ctx, tx, id, true)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *ledgerRepo) get(ctx context.Context, q rowQuerier, id int64, lock bool) (*domain.LedgerEntry, error) {
	query := `
		SELECT id, wallet_id, type, source, amount, balance_after, status, reference, created_at, updated_at
		FROM ledger_entries
		WHERE id = $1
	`
	if lock {
		query += " FOR UPDATE"
	}

	var e domain.LedgerEntry
	err := q.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.WalletID, &e.Type, &e.Source, &e.Amount,
		&e.BalanceAfter, &e.Status, &e.Reference, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrLedgerEntryNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &e, nil
}

func (r *ledgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, status domain.LedgerEntryStatus) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE ledger_entries
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrLedgerEntryNotFound
	}

	return nil
}

// ListByWallet returns entries newest first plus the total count for
// pagination.
func (r *ledgerRepo) ListByWallet(ctx context.Context, walletID int64, limit, offset int) ([]*domain.LedgerEntry, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE wallet_id = $1`, walletID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, wallet_id, type, source, amount, balance_after, status, reference, created_at, updated_at
		FROM ledger_entries
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.WalletID, &e.Type, &e.Source, &e.Amount,
			&e.BalanceAfter, &e.Status, &e.Reference, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, total, nil
}

// SumByStatus computes the signed sum of a wallet's entries in the
// given statuses. Used by reconciliation checks, never by the hot path.
func (r *ledgerRepo) SumByStatus(ctx context.Context, walletID int64, statuses ...domain.LedgerEntryStatus) (decimal.Decimal, error) {
	ss := make([]string, len(statuses))
	for i, s := range statuses {
		ss[i] = string(s)
	}

	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE wallet_id = $1 AND status = ANY($2)
	`, walletID, ss).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	return sum, nil
}
