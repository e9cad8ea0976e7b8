package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/coreledger/engine/internal/domain/idempotency"
)

type IdempotencyRepo struct{ s *Store }

// Reserve inserts an IN_FLIGHT row and relies on the primary key (key) to
// arbitrate the race: a unique_violation means someone else got there
// first, in which case the existing row is re-read and classified by
// fingerprint, matching postgres.go's AtomicDepositWithIdempotency shape.
func (r *IdempotencyRepo) Reserve(ctx context.Context, key, fingerprint string, now time.Time) (idempotency.Reservation, error) {
	if len(key) > idempotency.MaxKeyLength {
		return idempotency.Reservation{}, idempotency.ErrKeyTooLong
	}

	const insert = `
		INSERT INTO idempotency_records (key, request_fingerprint, status, response_body, response_code, created_at, expires_at)
		VALUES ($1, $2, $3, NULL, 0, $4, $5)
	`
	_, err := r.s.db(ctx).Exec(ctx, insert, key, fingerprint, string(idempotency.StatusInFlight), now, now.Add(idempotency.TTL))
	if err == nil {
		return idempotency.Reservation{Outcome: idempotency.ReservedNew}, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return idempotency.Reservation{}, err
	}

	existing, loadErr := r.load(ctx, key)
	if loadErr != nil {
		return idempotency.Reservation{}, loadErr
	}
	if existing.RequestFingerprint != fingerprint {
		return idempotency.Reservation{Outcome: idempotency.ReservedConflict, Existing: existing}, nil
	}
	return idempotency.Reservation{Outcome: idempotency.ReservedExisting, Existing: existing}, nil
}

func (r *IdempotencyRepo) load(ctx context.Context, key string) (*idempotency.Record, error) {
	const query = `
		SELECT key, request_fingerprint, status, response_body, response_code, created_at, expires_at
		FROM idempotency_records WHERE key = $1
	`
	var (
		rec          idempotency.Record
		responseBody []byte
	)
	err := r.s.db(ctx).QueryRow(ctx, query, key).Scan(
		&rec.Key, &rec.RequestFingerprint, (*string)(&rec.Status), &responseBody, &rec.ResponseCode, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if responseBody != nil {
		rec.ResponseBody = json.RawMessage(responseBody)
	}
	return &rec, nil
}

func (r *IdempotencyRepo) Complete(ctx context.Context, key string, responseCode int, responseBody json.RawMessage) error {
	const update = `
		UPDATE idempotency_records SET status = $1, response_code = $2, response_body = $3 WHERE key = $4
	`
	_, err := r.s.db(ctx).Exec(ctx, update, string(idempotency.StatusCompleted), responseCode, []byte(responseBody), key)
	return err
}

func (r *IdempotencyRepo) Delete(ctx context.Context, key string) error {
	_, err := r.s.db(ctx).Exec(ctx, "DELETE FROM idempotency_records WHERE key = $1", key)
	return err
}

func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.s.db(ctx).Exec(ctx, "DELETE FROM idempotency_records WHERE expires_at <= $1", now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
