// Package outbox defines the OutboxEvent record used to implement the
// transactional outbox pattern: domain events are written in the same DB
// transaction as the state change they describe, then published
// asynchronously by a separate worker (cmd/outbox-worker).
package outbox

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// MaxAttempts is the ceiling after which an event is routed to the
// dead-letter state instead of being retried further, but it is never
// dropped (SPEC_FULL §4.5).
const MaxAttempts = 100

// Event is a row in outbox_events. IDs are v7 so the chronological order
// and the PK order coincide (SPEC_FULL §3.1).
type Event struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       json.RawMessage
	OccurredAt    time.Time
	PublishedAt   *time.Time
	Attempts      int
	NextAttemptAt time.Time
	DeadLettered  bool
}

// AggregateEvent is the minimal shape the engine needs from a domain event
// to build an outbox row -- satisfied by account.Event and transfer.Event.
type AggregateEvent interface {
	EventType() string
	AggregateType() string
	AggregateID() uuid.UUID
	When() time.Time
}

// New constructs an outbox Event from a domain event plus its JSON payload.
func New(evt AggregateEvent, payload json.RawMessage, now time.Time) (Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            id,
		AggregateType: evt.AggregateType(),
		AggregateID:   evt.AggregateID(),
		EventType:     evt.EventType(),
		Payload:       payload,
		OccurredAt:    evt.When(),
		NextAttemptAt: now,
	}, nil
}

// Backoff computes the next retry delay for a failed publish attempt:
// exponential with jitter, capped at one hour.
func Backoff(attempts int) time.Duration {
	const capDuration = time.Hour
	base := time.Second * time.Duration(math.Pow(2, float64(attempts)))
	if base > capDuration || base <= 0 {
		base = capDuration
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base/2 + jitter
}

// Repository is the outbox's storage port.
type Repository interface {
	// Save appends an event. Implementations must reject calls made outside
	// an active transaction with apperrors.OutboxOutsideTransaction.
	Save(ctx context.Context, event Event) error
	Pending(ctx context.Context, limit int, now time.Time) ([]Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	BumpFailure(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error
}
