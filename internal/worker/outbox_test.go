package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/engine/internal/clock"
	"github.com/coreledger/engine/internal/config"
	"github.com/coreledger/engine/internal/domain/outbox"
	"github.com/coreledger/engine/internal/logging"
	"github.com/coreledger/engine/internal/storage/memory"
	"github.com/coreledger/engine/internal/worker"
)

type stubTransport struct {
	failIDs map[uuid.UUID]bool
	sent    []uuid.UUID
}

func (s *stubTransport) Publish(event outbox.Event) error {
	if s.failIDs[event.ID] {
		return errors.New("boom")
	}
	s.sent = append(s.sent, event.ID)
	return nil
}

func seedEvent(t *testing.T, store *memory.Store, now time.Time) outbox.Event {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	evt := outbox.Event{
		ID: id, AggregateType: "Account", AggregateID: uuid.New(),
		EventType: "AccountDebited", Payload: json.RawMessage(`{}`),
		OccurredAt: now, NextAttemptAt: now,
	}
	require.NoError(t, store.Transactional(context.Background(), func(ctx context.Context) error {
		return store.Outbox().Save(ctx, evt)
	}))
	return evt
}

func TestPublisher_RunOnce_PublishesDueEvents(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: now}
	store := memory.NewStore()
	evt := seedEvent(t, store, now)

	transport := &stubTransport{failIDs: map[uuid.UUID]bool{}}
	log := logging.New(config.LoggingConfig{Level: "ERROR", Format: "text"})
	pub := worker.NewPublisher(store.Outbox(), transport, clk, log, 10)

	published, failed, err := pub.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, 0, failed)
	assert.Contains(t, transport.sent, evt.ID)

	// A second pass finds nothing pending: the row is marked published.
	published, failed, err = pub.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Equal(t, 0, failed)
}

func TestPublisher_RunOnce_BumpsFailureAndRetriesLater(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: now}
	store := memory.NewStore()
	evt := seedEvent(t, store, now)

	transport := &stubTransport{failIDs: map[uuid.UUID]bool{evt.ID: true}}
	log := logging.New(config.LoggingConfig{Level: "ERROR", Format: "text"})
	pub := worker.NewPublisher(store.Outbox(), transport, clk, log, 10)

	published, failed, err := pub.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Equal(t, 1, failed)

	// Backoff pushes next_attempt_at into the future, so an immediate
	// second pass (same fixed clock) sees nothing due.
	published, failed, err = pub.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Equal(t, 0, failed)
}

func TestPublisher_RunOnce_SkipsDeadLetteredEvents(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.Fixed{At: now}
	store := memory.NewStore()
	evt := seedEvent(t, store, now)

	// Drive attempts to the dead-letter ceiling directly via BumpFailure.
	ctx := context.Background()
	for i := 0; i < outbox.MaxAttempts; i++ {
		require.NoError(t, store.Outbox().BumpFailure(ctx, evt.ID, now))
	}

	transport := &stubTransport{failIDs: map[uuid.UUID]bool{}}
	log := logging.New(config.LoggingConfig{Level: "ERROR", Format: "text"})
	pub := worker.NewPublisher(store.Outbox(), transport, clk, log, 10)

	published, failed, err := pub.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Equal(t, 0, failed)
	assert.Empty(t, transport.sent)
}
