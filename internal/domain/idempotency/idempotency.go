// Package idempotency implements exactly-once semantics for client-initiated
// mutating requests. Grounded on internal/pkg/idempotency/idempotency.go's
// key-hashing idea, generalized from a derived key to a client-supplied key
// plus a request fingerprint per SPEC_FULL §3.2/§4.5, and on
// postgres.go's AtomicDepositWithIdempotency reserve-then-act pattern.
package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// TTL is how long a record survives before the prune operation reclaims it.
const TTL = 24 * time.Hour

const MaxKeyLength = 255

var ErrKeyTooLong = errors.New("idempotency key exceeds 255 characters")

type Status string

const (
	StatusInFlight  Status = "IN_FLIGHT"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

type Record struct {
	Key                string
	RequestFingerprint string
	Status             Status
	ResponseBody       json.RawMessage
	ResponseCode       int
	CreatedAt          time.Time
	ExpiresAt          time.Time
}

// Fingerprint hashes a canonicalized request body: object keys sorted,
// whitespace normalized, so bodies that differ only in key order or
// formatting still produce the same fingerprint.
func Fingerprint(body []byte) (string, error) {
	canonical, err := canonicalize(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize re-marshals arbitrary JSON with map keys sorted, which is
// encoding/json's default behavior for map[string]interface{} -- so a
// decode-then-encode round trip is sufficient canonicalization.
func canonicalize(body []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	normalized := normalize(v)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// normalize recursively sorts map keys (via conversion to a type whose
// json.Marshal already sorts map[string]interface{} keys) so nested objects
// canonicalize consistently regardless of source key order.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(t))
		for _, k := range keys {
			out[k] = normalize(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return t
	}
}

// ReservationOutcome is returned by Repository.Reserve.
type ReservationOutcome string

const (
	// ReservedNew means a fresh IN_FLIGHT record was inserted; proceed.
	ReservedNew ReservationOutcome = "new"
	// ReservedConflict means a record exists with a different fingerprint.
	ReservedConflict ReservationOutcome = "conflict"
	// ReservedExisting means a record exists with the same fingerprint;
	// Existing carries its current state (IN_FLIGHT or COMPLETED).
	ReservedExisting ReservationOutcome = "existing"
)

type Reservation struct {
	Outcome  ReservationOutcome
	Existing *Record
}

// Repository is the idempotency layer's storage port.
type Repository interface {
	// Reserve attempts to claim key with an IN_FLIGHT record. It happens
	// outside the main business transaction (SPEC_FULL §4.5).
	Reserve(ctx context.Context, key, fingerprint string, now time.Time) (Reservation, error)
	// Complete stores the final response under key, moving it to COMPLETED.
	Complete(ctx context.Context, key string, responseCode int, responseBody json.RawMessage) error
	// Delete removes the reservation -- called when the main transaction
	// fails, so retries are unblocked.
	Delete(ctx context.Context, key string) error
	// DeleteExpired prunes rows where expiresAt <= now, returning the count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
