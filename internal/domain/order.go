package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`

	Items []*OrderItem `json:"items,omitempty"`
}

// OrderItem references an investment plan when the purchased product
// is an investment; PlanID nil means a plain product line.
type OrderItem struct {
	ID       int64           `json:"id"`
	OrderID  int64           `json:"order_id"`
	PlanID   *int64          `json:"plan_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity int             `json:"quantity"`
}
