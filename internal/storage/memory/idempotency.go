package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coreledger/engine/internal/domain/idempotency"
)

type idempotencyRepo struct{ s *Store }

func (r *idempotencyRepo) Reserve(ctx context.Context, key, fingerprint string, now time.Time) (idempotency.Reservation, error) {
	if len(key) > idempotency.MaxKeyLength {
		return idempotency.Reservation{}, idempotency.ErrKeyTooLong
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.idempotencyRecords[key]
	if !ok {
		rec := &idempotency.Record{
			Key:                key,
			RequestFingerprint: fingerprint,
			Status:             idempotency.StatusInFlight,
			CreatedAt:          now,
			ExpiresAt:          now.Add(idempotency.TTL),
		}
		r.s.idempotencyRecords[key] = rec
		return idempotency.Reservation{Outcome: idempotency.ReservedNew}, nil
	}

	if existing.RequestFingerprint != fingerprint {
		return idempotency.Reservation{Outcome: idempotency.ReservedConflict, Existing: existing}, nil
	}
	cp := *existing
	return idempotency.Reservation{Outcome: idempotency.ReservedExisting, Existing: &cp}, nil
}

func (r *idempotencyRepo) Complete(ctx context.Context, key string, responseCode int, responseBody json.RawMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.idempotencyRecords[key]
	if !ok {
		return nil
	}
	rec.Status = idempotency.StatusCompleted
	rec.ResponseCode = responseCode
	rec.ResponseBody = responseBody
	return nil
}

func (r *idempotencyRepo) Delete(ctx context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.idempotencyRecords, key)
	return nil
}

func (r *idempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	removed := 0
	for key, rec := range r.s.idempotencyRecords {
		if !rec.ExpiresAt.After(now) {
			delete(r.s.idempotencyRecords, key)
			removed++
		}
	}
	return removed, nil
}
