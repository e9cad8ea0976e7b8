package outbox_test

import (
	"testing"
	"time"

	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/outbox"
	"github.com/google/uuid"
)

func TestNewUsesV7ID(t *testing.T) {
	now := time.Now().UTC()
	evt := account.AccountFrozen{AccountID: uuid.New(), OccurredAt: now}
	row, err := outbox.New(evt, []byte(`{}`), now)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if row.ID.Version() != 7 {
		t.Fatalf("expected v7 id, got version %d", row.ID.Version())
	}
	if row.EventType != "AccountFrozen" || row.AggregateType != "Account" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestBackoffCapsAtOneHour(t *testing.T) {
	d := outbox.Backoff(50)
	if d > time.Hour {
		t.Fatalf("expected backoff capped at 1h, got %v", d)
	}
	if d <= 0 {
		t.Fatalf("expected positive backoff, got %v", d)
	}
}

func TestBackoffGrowsWithAttempts(t *testing.T) {
	small := outbox.Backoff(1)
	large := outbox.Backoff(10)
	// Jitter means neighbouring attempts can overlap, but the jittered ranges
	// for attempts 1 and 10 do not, and a low attempt count must stay well
	// under the cap.
	if small > time.Hour {
		t.Fatalf("small backoff should be far below the cap, got %v", small)
	}
	if large <= small {
		t.Fatalf("expected Backoff(10) > Backoff(1), got %v <= %v", large, small)
	}
}
