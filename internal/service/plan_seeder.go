package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallet-service/internal/domain"
)

// PlanSeeder applies the schema migrations and makes sure the default
// investment plans exist. Both steps are idempotent so it is safe to
// run on every startup.
type PlanSeeder struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPlanSeeder(db *pgxpool.Pool, logger *zap.Logger) *PlanSeeder {
	return &PlanSeeder{db: db, logger: logger}
}

// Seed runs migrations then the plan seed in one pass.
func (s *PlanSeeder) Seed(ctx context.Context, migrationsDir string) error {
	if err := s.applyMigrations(ctx, migrationsDir); err != nil {
		return err
	}
	return s.seedPlans(ctx)
}

func (s *PlanSeeder) applyMigrations(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
		s.logger.Info("migration applied", zap.String("file", name))
	}
	return nil
}

func (s *PlanSeeder) seedPlans(ctx context.Context) error {
	plans := defaultPlans()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range plans {
		_, err := tx.Exec(ctx, `
			INSERT INTO investment_plans (name, min_amount, max_amount, yield_percent, payout_frequency, duration_days)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (name) DO NOTHING
		`, p.Name, p.MinAmount, p.MaxAmount, p.YieldPercent, p.PayoutFrequency, p.DurationDays)
		if err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit plan seed: %w", err)
	}
	s.logger.Info("investment plans seeded", zap.Int("count", len(plans)))
	return nil
}

func defaultPlans() []*domain.InvestmentPlan {
	return []*domain.InvestmentPlan{
		{
			Name:            "Starter",
			MinAmount:       decimal.NewFromInt(100),
			MaxAmount:       decimal.NewFromInt(4999),
			YieldPercent:    decimal.NewFromInt(6),
			PayoutFrequency: domain.PayoutDaily,
			DurationDays:    90,
		},
		{
			Name:            "Growth",
			MinAmount:       decimal.NewFromInt(5000),
			MaxAmount:       decimal.NewFromInt(49999),
			YieldPercent:    decimal.NewFromInt(8),
			PayoutFrequency: domain.PayoutDaily,
			DurationDays:    180,
		},
		{
			Name:            "Velocity",
			MinAmount:       decimal.NewFromInt(1000),
			MaxAmount:       decimal.NewFromInt(99999),
			YieldPercent:    decimal.NewFromInt(10),
			PayoutFrequency: domain.PayoutHourly,
			DurationDays:    60,
		},
	}
}
