package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-service/internal/xerrors"
)

type PayoutFrequency string

const (
	PayoutHourly  PayoutFrequency = "HOURLY"
	PayoutDaily   PayoutFrequency = "DAILY"
	PayoutWeekly  PayoutFrequency = "WEEKLY"
	PayoutMonthly PayoutFrequency = "MONTHLY"
	PayoutYearly  PayoutFrequency = "YEARLY"
)

type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "ACTIVE"
	InvestmentCompleted InvestmentStatus = "COMPLETED"
)

// InvestmentPlan defines the product terms. YieldPercent is a monthly
// nominal rate; the schedulers derive hourly/daily rates from it.
type InvestmentPlan struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	YieldPercent    decimal.Decimal `json:"yield_percent"`
	DurationDays    int             `json:"duration_days"`
	PayoutFrequency PayoutFrequency `json:"payout_frequency"`
	MinAmount       decimal.Decimal `json:"min_amount"`
	MaxAmount       decimal.Decimal `json:"max_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

type Investment struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	PlanID          int64            `json:"plan_id"`
	PrincipalAmount decimal.Decimal  `json:"principal_amount"`
	Status          InvestmentStatus `json:"status"`
	StartDate       time.Time        `json:"start_date"`
	EndDate         time.Time        `json:"end_date"`
	LastPayoutAt    *time.Time       `json:"last_payout_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`

	Plan *InvestmentPlan `json:"plan,omitempty"`
}

// InvestmentPayout is an append-only record of one disbursed yield payment.
type InvestmentPayout struct {
	ID           int64           `json:"id"`
	InvestmentID int64           `json:"investment_id"`
	Amount       decimal.Decimal `json:"amount"`
	PayoutDate   time.Time       `json:"payout_date"`
}

// Validate checks the principal against the plan limits.
func (p *InvestmentPlan) Validate(principal decimal.Decimal) error {
	if principal.LessThan(p.MinAmount) {
		return xerrors.ErrAmountOutOfRange
	}
	if p.MaxAmount.IsPositive() && principal.GreaterThan(p.MaxAmount) {
		return xerrors.ErrAmountOutOfRange
	}
	return nil
}
