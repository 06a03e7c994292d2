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
)

type CommissionRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Insert(ctx context.Context, tx pgx.Tx, c *domain.MlmCommission) error
	Exists(ctx context.Context, orderID, earnerID int64, level int) (bool, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*domain.MlmCommission, error)
}

type commissionRepo struct {
	db *pgxpool.Pool
}

func NewCommissionRepo(db *pgxpool.Pool) CommissionRepository {
	return &commissionRepo{db: db}
}

func (r *commissionRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

func (r *commissionRepo) Insert(ctx context.Context, tx pgx.Tx, c *domain.MlmCommission) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO mlm_commissions (earner_id, buyer_id, order_id, amount, level, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, c.EarnerID, c.BuyerID, c.OrderID, c.Amount, c.Level, time.Now()).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		// unique_violation on (order_id, earner_id, level): a concurrent
		// cascade won the race for this level.
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return xerrors.ErrCommissionAlreadyPaid
		}
		return fmt.Errorf("failed to insert commission: %w", err)
	}

	return nil
}

// Exists reports whether this (order, earner, level) was already paid.
// The cascade worker checks it before crediting so a retried job skips
// levels that committed on a previous attempt.
func (r *commissionRepo) Exists(ctx context.Context, orderID, earnerID int64, level int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM mlm_commissions
			WHERE order_id = $1 AND earner_id = $2 AND level = $3
		)
	`, orderID, earnerID, level).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check commission existence: %w", err)
	}

	return exists, nil
}

func (r *commissionRepo) ListByOrder(ctx context.Context, orderID int64) ([]*domain.MlmCommission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, earner_id, buyer_id, order_id, amount, level, created_at
		FROM mlm_commissions
		WHERE order_id = $1
		ORDER BY level ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	defer rows.Close()

	var commissions []*domain.MlmCommission
	for rows.Next() {
		var c domain.MlmCommission
		if err := rows.Scan(&c.ID, &c.EarnerID, &c.BuyerID, &c.OrderID, &c.Amount, &c.Level, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commission: %w", err)
		}
		commissions = append(commissions, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commissions: %w", err)
	}

	return commissions, nil
}
