package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MlmCommission is the append-only audit trail of referral payouts.
// Each row corresponds 1:1 to an MLM_COMMISSION ledger credit; the
// (order, earner, level) triple is unique so job retries cannot pay
// the same level twice.
type MlmCommission struct {
	ID        int64           `json:"id"`
	EarnerID  int64           `json:"earner_id"`
	BuyerID   int64           `json:"buyer_id"`
	OrderID   int64           `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Level     int             `json:"level"`
	CreatedAt time.Time       `json:"created_at"`
}

// CommissionJob is one unit of cascade work, carried from the outbox
// payload onto the worker queue.
type CommissionJob struct {
	OrderID int64
	BuyerID int64
	Amount  decimal.Decimal
}
