package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	WalletEventsChannel = "wallet_events"
)

// WalletEventPublisher pushes post-commit notification events onto a
// Redis channel. It runs outside the money transaction: a publish
// failure is logged and never rolls back a financial operation.
type WalletEventPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewWalletEventPublisher(rdb *redis.Client, logger *zap.Logger) *WalletEventPublisher {
	return &WalletEventPublisher{rdb: rdb, logger: logger}
}

type WalletEvent struct {
	EventType    string    `json:"event_type"` // wallet.credited, wallet.debited, withdrawal.requested, ...
	UserID       int64     `json:"user_id"`
	LedgerID     int64     `json:"ledger_id,omitempty"`
	EntryType    string    `json:"entry_type,omitempty"`
	Amount       string    `json:"amount"` // decimal string, never float
	BalanceAfter string    `json:"balance_after,omitempty"`
	Reference    string    `json:"reference,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (p *WalletEventPublisher) Publish(ctx context.Context, event *WalletEvent) error {
	event.Timestamp = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, WalletEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published wallet event",
		zap.String("event_type", event.EventType),
		zap.Int64("user_id", event.UserID))

	return nil
}

// PublishAsync fires Publish on a short-lived background context and
// only logs failures. Callers use it after commit.
func (p *WalletEventPublisher) PublishAsync(event *WalletEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil {
			p.logger.Warn("wallet event publish failed",
				zap.String("event_type", event.EventType),
				zap.Int64("user_id", event.UserID),
				zap.Error(err))
		}
	}()
}
