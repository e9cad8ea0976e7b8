package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/outbox"
)

type OutboxRepo struct{ s *Store }

// Save rejects a call made outside the active transaction the same way the
// in-memory adapter does, except here the signal is the absence of a bound
// *pgx.Tx in ctx rather than a bool flag.
func (r *OutboxRepo) Save(ctx context.Context, event outbox.Event) error {
	if _, ok := ctx.Value(txKey).(pgx.Tx); !ok {
		return apperrors.New(apperrors.OutboxOutsideTransaction,
			"outbox append attempted outside an active transaction")
	}

	const insert = `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, occurred_at, next_attempt_at, attempts, dead_lettered)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.s.db(ctx).Exec(ctx, insert,
		event.ID, event.AggregateType, event.AggregateID, event.EventType, []byte(event.Payload),
		event.OccurredAt, event.NextAttemptAt, event.Attempts, event.DeadLettered)
	if err != nil {
		return apperrors.Wrap(apperrors.ConcurrencyConflict, "save outbox event", err)
	}
	return nil
}

// Pending selects unpublished, due rows ordered by id (v7, so this is also
// chronological order) -- the batch the outbox worker claims each poll.
func (r *OutboxRepo) Pending(ctx context.Context, limit int, now time.Time) ([]outbox.Event, error) {
	const query = `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, occurred_at, published_at, attempts, next_attempt_at, dead_lettered
		FROM outbox_events
		WHERE published_at IS NULL AND next_attempt_at <= $1
		ORDER BY id ASC
		LIMIT $2
	`
	rows, err := r.s.db(ctx).Query(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConcurrencyConflict, "query pending outbox events", err)
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var (
			id            uuid.UUID
			aggregateType string
			aggregateID   uuid.UUID
			eventType     string
			payload       []byte
			occurredAt    time.Time
			publishedAt   *time.Time
			attempts      int
			nextAttemptAt time.Time
			deadLettered  bool
		)
		if err := rows.Scan(&id, &aggregateType, &aggregateID, &eventType, &payload, &occurredAt, &publishedAt, &attempts, &nextAttemptAt, &deadLettered); err != nil {
			return nil, err
		}
		events = append(events, outbox.Event{
			ID: id, AggregateType: aggregateType, AggregateID: aggregateID, EventType: eventType,
			Payload: json.RawMessage(payload), OccurredAt: occurredAt, PublishedAt: publishedAt,
			Attempts: attempts, NextAttemptAt: nextAttemptAt, DeadLettered: deadLettered,
		})
	}
	return events, rows.Err()
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	const update = `UPDATE outbox_events SET published_at = $1 WHERE id = $2`
	tag, err := r.s.db(ctx).Exec(ctx, update, at, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ConcurrencyConflict, "mark outbox event published", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.ValidationError, "unknown outbox event "+id.String())
	}
	return nil
}

func (r *OutboxRepo) BumpFailure(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	const update = `
		UPDATE outbox_events
		SET attempts = attempts + 1, next_attempt_at = $1, dead_lettered = (attempts + 1 >= $2)
		WHERE id = $3
	`
	tag, err := r.s.db(ctx).Exec(ctx, update, nextAttemptAt, outbox.MaxAttempts, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ConcurrencyConflict, "bump outbox failure", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.ValidationError, "unknown outbox event "+id.String())
	}
	return nil
}
