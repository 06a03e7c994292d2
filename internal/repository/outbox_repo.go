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

type OutboxRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, ev *domain.OutboxEvent) error
	ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkRetry(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	MarkDeadLetter(ctx context.Context, id string, reason string) error
	Resubmit(ctx context.Context, id string) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type outboxRepo struct {
	db *pgxpool.Pool
}

func NewOutboxRepo(db *pgxpool.Pool) OutboxRepository {
	return &outboxRepo{db: db}
}

// Insert writes the event in the same transaction as the business
// mutation that produced it. The event exists iff that transaction
// commits.
func (r *outboxRepo) Insert(ctx context.Context, tx pgx.Tx, ev *domain.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction cannot be nil")
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events
			(id, aggregate_type, aggregate_id, type, payload, status, attempts, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7)
	`, ev.ID, ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, domain.OutboxPending, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

// ClaimBatch atomically moves up to limit due events to PROCESSING and
// returns them, oldest first. SKIP LOCKED makes concurrent dispatcher
// instances claim disjoint batches.
func (r *outboxRepo) ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE outbox_events
		SET status = $1, claimed_at = $3
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $2
			  AND (next_retry_at IS NULL OR next_retry_at <= $3)
			ORDER BY created_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, aggregate_type, aggregate_id, type, payload, status, attempts, next_retry_at, last_error, created_at, processed_at
	`, domain.OutboxProcessing, domain.OutboxPending, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox batch: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		var lastError *string
		if err := rows.Scan(
			&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &ev.Payload,
			&ev.Status, &ev.Attempts, &ev.NextRetryAt, &lastError, &ev.CreatedAt, &ev.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		if lastError != nil {
			ev.LastError = *lastError
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}

	return events, nil
}

func (r *outboxRepo) MarkCompleted(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.OutboxCompleted, nil)
}

// MarkRetry returns the event to PENDING with a backoff deadline.
func (r *outboxRepo) MarkRetry(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, attempts = $2, next_retry_at = $3, last_error = $4
		WHERE id = $5
	`, domain.OutboxPending, attempts, nextRetryAt, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event for retry: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	return r.setStatus(ctx, id, domain.OutboxFailed, &lastError)
}

func (r *outboxRepo) MarkDeadLetter(ctx context.Context, id string, reason string) error {
	return r.setStatus(ctx, id, domain.OutboxDeadLetter, &reason)
}

// Resubmit puts a FAILED or DEAD_LETTER event back on the queue. This
// is the manual replay path for operators.
func (r *outboxRepo) Resubmit(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, attempts = 0, next_retry_at = NULL, last_error = NULL, processed_at = NULL
		WHERE id = $2 AND status IN ($3, $4)
	`, domain.OutboxPending, id, domain.OutboxFailed, domain.OutboxDeadLetter)
	if err != nil {
		return fmt.Errorf("failed to resubmit outbox event: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// ReclaimStale returns PROCESSING events whose claim is older than
// olderThan to PENDING. A claim that old belongs to a dispatcher that
// died between ClaimBatch and the status update.
func (r *outboxRepo) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, claimed_at = NULL
		WHERE status = $2 AND claimed_at < $3
	`, domain.OutboxPending, domain.OutboxProcessing, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale outbox events: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}

func (r *outboxRepo) setStatus(ctx context.Context, id string, status domain.OutboxStatus, lastError *string) error {
	now := time.Now()
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET status = $1, processed_at = $2, last_error = COALESCE($3, last_error)
		WHERE id = $4
	`, status, now, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to update outbox event status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}
