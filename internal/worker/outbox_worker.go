package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-service/internal/domain"
	"wallet-service/internal/repository"
	"wallet-service/internal/usecase"
	"wallet-service/internal/xerrors"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HandlerFunc processes one claimed outbox event.
type HandlerFunc func(ctx context.Context, ev *domain.OutboxEvent) error

// OutboxDispatcher polls the outbox table and drives side effects.
// Events are claimed with a store-level row lock (SKIP LOCKED), so
// running several dispatcher instances is safe; each claims a disjoint
// batch. Failed handlers are retried with exponential backoff until
// the attempt limit, then parked as FAILED for manual resubmission.
type OutboxDispatcher struct {
	outboxRepo  repository.OutboxRepository
	kafkaWriter *kafka.Writer
	handlers    map[string]HandlerFunc

	batchSize    int
	pollInterval time.Duration
	maxAttempts  int

	logger   *zap.Logger
	stopChan chan struct{}
}

func NewOutboxDispatcher(
	outboxRepo repository.OutboxRepository,
	kafkaWriter *kafka.Writer,
	batchSize int,
	pollInterval time.Duration,
	maxAttempts int,
	logger *zap.Logger,
) *OutboxDispatcher {
	return &OutboxDispatcher{
		outboxRepo:   outboxRepo,
		kafkaWriter:  kafkaWriter,
		handlers:     make(map[string]HandlerFunc),
		batchSize:    batchSize,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// RegisterHandler binds an event type to its handler. Not safe to call
// after Start.
func (d *OutboxDispatcher) RegisterHandler(eventType string, fn HandlerFunc) {
	d.handlers[eventType] = fn
}

// OrderPaidHandler feeds ORDER_PAID events into the commission cascade.
func OrderPaidHandler(commissionUC *usecase.CommissionUsecase) HandlerFunc {
	return func(ctx context.Context, ev *domain.OutboxEvent) error {
		var payload domain.OrderPaidPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return fmt.Errorf("failed to decode ORDER_PAID payload: %w", err)
		}

		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			return fmt.Errorf("failed to parse amount %q: %w", payload.Amount, err)
		}

		return commissionUC.RunCascade(ctx, domain.CommissionJob{
			OrderID: payload.OrderID,
			BuyerID: payload.BuyerID,
			Amount:  amount,
		})
	}
}

// Start runs the polling loop until Stop or context cancellation.
func (d *OutboxDispatcher) Start(ctx context.Context) {
	d.logger.Info("starting outbox dispatcher",
		zap.Duration("poll_interval", d.pollInterval),
		zap.Int("batch_size", d.batchSize))

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.DispatchBatch(ctx)

		case <-d.stopChan:
			d.logger.Info("stopping outbox dispatcher")
			return

		case <-ctx.Done():
			d.logger.Info("context cancelled, stopping outbox dispatcher")
			return
		}
	}
}

func (d *OutboxDispatcher) Stop() {
	close(d.stopChan)
}

// Claims older than this belong to a dispatcher that died mid-batch.
const staleClaimAfter = 5 * time.Minute

// DispatchBatch requeues stale claims, then claims one batch of due
// events and processes them in order. A handler failure never stops
// the rest of the batch.
func (d *OutboxDispatcher) DispatchBatch(ctx context.Context) {
	reclaimed, err := d.outboxRepo.ReclaimStale(ctx, staleClaimAfter)
	if err != nil {
		d.logger.Error("failed to reclaim stale outbox events", zap.Error(err))
	} else if reclaimed > 0 {
		d.logger.Warn("requeued stale outbox claims", zap.Int64("count", reclaimed))
	}

	events, err := d.outboxRepo.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("failed to claim outbox batch", zap.Error(err))
		return
	}

	for _, ev := range events {
		d.dispatch(ctx, ev)
	}
}

func (d *OutboxDispatcher) dispatch(ctx context.Context, ev *domain.OutboxEvent) {
	handler, ok := d.handlers[ev.Type]
	if !ok {
		d.logger.Warn("unknown outbox event type, dead-lettering",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type))
		if err := d.outboxRepo.MarkDeadLetter(ctx, ev.ID, xerrors.ErrUnknownEventType.Error()); err != nil {
			d.logger.Error("failed to dead-letter outbox event",
				zap.String("event_id", ev.ID), zap.Error(err))
		}
		return
	}

	if err := handler(ctx, ev); err != nil {
		d.handleFailure(ctx, ev, err)
		return
	}

	if err := d.outboxRepo.MarkCompleted(ctx, ev.ID); err != nil {
		d.logger.Error("failed to mark outbox event completed",
			zap.String("event_id", ev.ID), zap.Error(err))
		return
	}

	d.publishToKafka(ctx, ev)
}

func (d *OutboxDispatcher) handleFailure(ctx context.Context, ev *domain.OutboxEvent, handlerErr error) {
	attempts := ev.Attempts + 1

	if attempts >= d.maxAttempts {
		d.logger.Error("outbox event exhausted retries, marking FAILED",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Int("attempts", attempts),
			zap.Error(handlerErr))
		if err := d.outboxRepo.MarkFailed(ctx, ev.ID, handlerErr.Error()); err != nil {
			d.logger.Error("failed to mark outbox event failed",
				zap.String("event_id", ev.ID), zap.Error(err))
		}
		return
	}

	delay := backoffDelay(attempts)
	d.logger.Warn("outbox handler failed, scheduling retry",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.Int("attempts", attempts),
		zap.Duration("retry_in", delay),
		zap.Error(handlerErr))
	if err := d.outboxRepo.MarkRetry(ctx, ev.ID, attempts, time.Now().Add(delay), handlerErr.Error()); err != nil {
		d.logger.Error("failed to schedule outbox retry",
			zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// backoffDelay doubles per attempt: 10s, 20s, 40s, ...
func backoffDelay(attempts int) time.Duration {
	delay := 10 * time.Second
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}

type kafkaEnvelope struct {
	EventID       string          `json:"event_id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	DispatchedAt  time.Time       `json:"dispatched_at"`
}

// publishToKafka mirrors completed events onto the events topic for
// downstream consumers. Best effort: a broker outage only logs.
func (d *OutboxDispatcher) publishToKafka(ctx context.Context, ev *domain.OutboxEvent) {
	if d.kafkaWriter == nil {
		return
	}

	value, err := json.Marshal(kafkaEnvelope{
		EventID:       ev.ID,
		Type:          ev.Type,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		Payload:       ev.Payload,
		DispatchedAt:  time.Now(),
	})
	if err != nil {
		d.logger.Error("failed to marshal kafka envelope",
			zap.String("event_id", ev.ID), zap.Error(err))
		return
	}

	if err := d.kafkaWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: value,
	}); err != nil {
		d.logger.Error("failed to publish event to kafka",
			zap.String("event_id", ev.ID), zap.Error(err))
	}
}
