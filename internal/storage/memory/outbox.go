package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/outbox"
)

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Save(ctx context.Context, event outbox.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.inTx {
		return apperrors.New(apperrors.OutboxOutsideTransaction,
			"outbox append attempted outside an active transaction")
	}
	cp := event
	r.s.outboxEvents[event.ID.String()] = &cp
	return nil
}

func (r *outboxRepo) Pending(ctx context.Context, limit int, now time.Time) ([]outbox.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var pending []outbox.Event
	for _, e := range r.s.outboxEvents {
		if e.PublishedAt == nil && !e.NextAttemptAt.After(now) {
			pending = append(pending, *e)
		}
	}
	sortOutboxByID(pending)
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepo) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outboxEvents[id.String()]
	if !ok {
		return apperrors.New(apperrors.ValidationError, "unknown outbox event "+id.String())
	}
	published := at
	e.PublishedAt = &published
	return nil
}

func (r *outboxRepo) BumpFailure(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outboxEvents[id.String()]
	if !ok {
		return apperrors.New(apperrors.ValidationError, "unknown outbox event "+id.String())
	}
	e.Attempts++
	e.NextAttemptAt = nextAttemptAt
	if e.Attempts >= outbox.MaxAttempts {
		e.DeadLettered = true
	}
	return nil
}

func sortOutboxByID(items []outbox.Event) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].ID.String() < items[j-1].ID.String(); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
