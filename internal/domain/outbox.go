package domain

import (
	"encoding/json"
	"time"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "PENDING"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxCompleted  OutboxStatus = "COMPLETED"
	OutboxFailed     OutboxStatus = "FAILED"
	OutboxDeadLetter OutboxStatus = "DEAD_LETTER"
)

const (
	EventOrderPaid = "ORDER_PAID"
)

// OutboxEvent is written in the same transaction as the business
// mutation that produced it, then picked up asynchronously by the
// dispatcher. Attempts and NextRetryAt drive backoff; after the
// configured max attempts the event goes to FAILED and stays there
// until manually resubmitted.
type OutboxEvent struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	Status        OutboxStatus    `json:"status"`
	Attempts      int             `json:"attempts"`
	NextRetryAt   *time.Time      `json:"next_retry_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// OrderPaidPayload is the payload of an ORDER_PAID event. Amount is
// serialized as a string to keep decimal precision on the wire.
type OrderPaidPayload struct {
	OrderID int64  `json:"order_id"`
	BuyerID int64  `json:"buyer_id"`
	Amount  string `json:"amount"`
}
