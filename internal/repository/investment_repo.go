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

type InvestmentRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error
	GetPlan(ctx context.Context, planID int64) (*domain.InvestmentPlan, error)
	ListPlans(ctx context.Context) ([]*domain.InvestmentPlan, error)
	// ListDueHourly returns ACTIVE investments on HOURLY plans not yet
	// paid within the hour containing now.
	ListDueHourly(ctx context.Context, now time.Time) ([]*domain.Investment, error)
	// ListDueDaily returns ACTIVE investments on non-HOURLY plans not
	// yet paid within the day containing now.
	ListDueDaily(ctx context.Context, now time.Time) ([]*domain.Investment, error)
	InsertPayout(ctx context.Context, tx pgx.Tx, p *domain.InvestmentPayout) error
	SetLastPayoutAt(ctx context.Context, tx pgx.Tx, investmentID int64, t time.Time) error
}

type investmentRepo struct {
	db *pgxpool.Pool
}

func NewInvestmentRepo(db *pgxpool.Pool) InvestmentRepository {
	return &investmentRepo{db: db}
}

func (r *investmentRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

func (r *investmentRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Investment) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO investments
			(user_id, plan_id, principal_amount, status, start_date, end_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, inv.UserID, inv.PlanID, inv.PrincipalAmount, domain.InvestmentActive,
		inv.StartDate, inv.EndDate, time.Now()).
		Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create investment: %w", err)
	}
	inv.Status = domain.InvestmentActive

	return nil
}

func (r *investmentRepo) GetPlan(ctx context.Context, planID int64) (*domain.InvestmentPlan, error) {
	var p domain.InvestmentPlan
	err := r.db.QueryRow(ctx, `
		SELECT id, name, yield_percent, duration_days, payout_frequency, min_amount, max_amount, created_at
		FROM investment_plans
		WHERE id = $1
	`, planID).Scan(
		&p.ID, &p.Name, &p.YieldPercent, &p.DurationDays,
		&p.PayoutFrequency, &p.MinAmount, &p.MaxAmount, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get investment plan: %w", err)
	}

	return &p, nil
}

func (r *investmentRepo) ListPlans(ctx context.Context) ([]*domain.InvestmentPlan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, yield_percent, duration_days, payout_frequency, min_amount, max_amount, created_at
		FROM investment_plans
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list investment plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.InvestmentPlan
	for rows.Next() {
		var p domain.InvestmentPlan
		if err := rows.Scan(
			&p.ID, &p.Name, &p.YieldPercent, &p.DurationDays,
			&p.PayoutFrequency, &p.MinAmount, &p.MaxAmount, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan investment plan: %w", err)
		}
		plans = append(plans, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investment plans: %w", err)
	}

	return plans, nil
}

func (r *investmentRepo) ListDueHourly(ctx context.Context, now time.Time) ([]*domain.Investment, error) {
	// last_payout_at inside the current hour means this firing already
	// ran; overlapping crons become no-ops.
	return r.listDue(ctx, `
		SELECT i.id, i.user_id, i.plan_id, i.principal_amount, i.status, i.start_date, i.end_date,
		       i.last_payout_at, i.created_at,
		       p.id, p.name, p.yield_percent, p.duration_days, p.payout_frequency, p.min_amount, p.max_amount, p.created_at
		FROM investments i
		JOIN investment_plans p ON p.id = i.plan_id
		WHERE i.status = $1
		  AND p.payout_frequency = $2
		  AND (i.last_payout_at IS NULL OR i.last_payout_at < date_trunc('hour', $3::timestamptz))
		ORDER BY i.id ASC
	`, domain.InvestmentActive, domain.PayoutHourly, now)
}

func (r *investmentRepo) ListDueDaily(ctx context.Context, now time.Time) ([]*domain.Investment, error) {
	return r.listDue(ctx, `
		SELECT i.id, i.user_id, i.plan_id, i.principal_amount, i.status, i.start_date, i.end_date,
		       i.last_payout_at, i.created_at,
		       p.id, p.name, p.yield_percent, p.duration_days, p.payout_frequency, p.min_amount, p.max_amount, p.created_at
		FROM investments i
		JOIN investment_plans p ON p.id = i.plan_id
		WHERE i.status = $1
		  AND p.payout_frequency <> $2
		  AND (i.last_payout_at IS NULL OR i.last_payout_at < date_trunc('day', $3::timestamptz))
		ORDER BY i.id ASC
	`, domain.InvestmentActive, domain.PayoutHourly, now)
}

func (r *investmentRepo) listDue(ctx context.Context, query string, args ...any) ([]*domain.Investment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list due investments: %w", err)
	}
	defer rows.Close()

	var investments []*domain.Investment
	for rows.Next() {
		var inv domain.Investment
		var p domain.InvestmentPlan
		if err := rows.Scan(
			&inv.ID, &inv.UserID, &inv.PlanID, &inv.PrincipalAmount, &inv.Status,
			&inv.StartDate, &inv.EndDate, &inv.LastPayoutAt, &inv.CreatedAt,
			&p.ID, &p.Name, &p.YieldPercent, &p.DurationDays,
			&p.PayoutFrequency, &p.MinAmount, &p.MaxAmount, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan investment: %w", err)
		}
		inv.Plan = &p
		investments = append(investments, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating investments: %w", err)
	}

	return investments, nil
}

func (r *investmentRepo) InsertPayout(ctx context.Context, tx pgx.Tx, p *domain.InvestmentPayout) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO investment_payouts (investment_id, amount, payout_date)
		VALUES ($1,$2,$3)
		RETURNING id
	`, p.InvestmentID, p.Amount, p.PayoutDate).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert investment payout: %w", err)
	}

	return nil
}

func (r *investmentRepo) SetLastPayoutAt(ctx context.Context, tx pgx.Tx, investmentID int64, t time.Time) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	cmdTag, err := tx.Exec(ctx, `
		UPDATE investments
		SET last_payout_at = $1
		WHERE id = $2
	`, t, investmentID)
	if err != nil {
		return fmt.Errorf("failed to set last payout time: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
