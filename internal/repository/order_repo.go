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

type OrderRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	// GetByID reads an order; tx may be nil for a pool read.
	GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error)
	// MarkPaid is a compare-and-swap on order status. It returns the
	// number of rows affected; zero means the order was not PENDING,
	// not owned by userID, or does not exist.
	MarkPaid(ctx context.Context, tx pgx.Tx, orderID, userID int64, paidAt time.Time) (int64, error)
	ListItems(ctx context.Context, tx pgx.Tx, orderID int64) ([]*domain.OrderItem, error)
}

type orderRepo struct {
	db *pgxpool.Pool
}

func NewOrderRepo(db *pgxpool.Pool) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

func (r *orderRepo) GetByID(ctx context.Context, tx pgx.Tx, id int64) (*domain.Order, error) {
	query := `
		SELECT id, user_id, total_amount, status, created_at, paid_at
		FROM orders
		WHERE id = $1
	`

	var row pgx.Row
	if tx != nil {
		row = tx.QueryRow(ctx, query, id)
	} else {
		row = r.db.QueryRow(ctx, query, id)
	}

	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &o, nil
}

func (r *orderRepo) MarkPaid(ctx context.Context, tx pgx.Tx, orderID, userID int64, paidAt time.Time) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction cannot be nil")
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, paid_at = $2
		WHERE id = $3 AND user_id = $4 AND status = $5
	`, domain.OrderPaid, paidAt, orderID, userID, domain.OrderPending)
	if err != nil {
		return 0, fmt.Errorf("failed to mark order paid: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}

func (r *orderRepo) ListItems(ctx context.Context, tx pgx.Tx, orderID int64) ([]*domain.OrderItem, error) {
	query := `
		SELECT id, order_id, plan_id, amount, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`

	var rows pgx.Rows
	var err error
	if tx != nil {
		rows, err = tx.Query(ctx, query, orderID)
	} else {
		rows, err = r.db.Query(ctx, query, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []*domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.PlanID, &it.Amount, &it.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}
