// Package worker runs the outbox publisher: the separate process (cmd/
// outbox-worker) that drains outbox_events into Kafka, the publish side of
// the transactional outbox pattern described in SPEC_FULL §4.5. The write
// side lives inside internal/engine, inside the same transaction as the
// state change it describes; this package only ever reads rows back out.
package worker

import (
	"context"
	"time"

	"github.com/coreledger/engine/internal/clock"
	"github.com/coreledger/engine/internal/domain/outbox"
	"github.com/coreledger/engine/internal/logging"
	"github.com/coreledger/engine/internal/telemetry"
)

// Transport ships one outbox row to the downstream broker. Satisfied by
// internal/transport/kafka.Producer; tests use a stub.
type Transport interface {
	Publish(event outbox.Event) error
}

// Publisher polls outbox.Repository for due rows and hands them to a
// Transport, one at a time, in the order Pending returns them -- which is
// ID (v7, hence chronological) order, preserving SPEC_FULL §4.5's
// per-aggregate delivery ordering as long as a single Publisher instance is
// ever running (enforced by the Redis lease in cmd/outbox-worker, not by
// this package).
type Publisher struct {
	repo      outbox.Repository
	transport Transport
	clock     clock.Clock
	log       *logging.Logger

	batchSize int
}

func NewPublisher(repo outbox.Repository, transport Transport, clk clock.Clock, log *logging.Logger, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Publisher{repo: repo, transport: transport, clock: clk, log: log, batchSize: batchSize}
}

// RunOnce claims and attempts to publish a single batch of due events,
// returning how many succeeded and how many failed. It never returns an
// error for a single event's publish failure -- that event's row is simply
// bumped for retry -- only for a failure reading or writing the repository
// itself.
func (p *Publisher) RunOnce(ctx context.Context) (published int, failed int, err error) {
	now := p.clock.Now()
	events, err := p.repo.Pending(ctx, p.batchSize, now)
	if err != nil {
		return 0, 0, err
	}
	telemetry.OutboxPendingGauge.Set(float64(len(events)))

	for _, evt := range events {
		if evt.DeadLettered {
			// Still surfaced by Pending (never dropped per SPEC_FULL §4.5)
			// but no longer worth a delivery attempt; an operator has to
			// intervene. Metric only, no further attempts or backoff bump.
			telemetry.OutboxDeadLetteredTotal.Inc()
			continue
		}

		if pubErr := p.transport.Publish(evt); pubErr != nil {
			failed++
			telemetry.OutboxPublishErrorsTotal.WithLabelValues(classifyPublishError(pubErr)).Inc()
			next := p.clock.Now().Add(outbox.Backoff(evt.Attempts + 1))
			if bumpErr := p.repo.BumpFailure(ctx, evt.ID, next); bumpErr != nil {
				p.log.Error("failed to record outbox publish failure", bumpErr,
					logging.Fields{"event_id": evt.ID.String()})
			}
			continue
		}

		published++
		telemetry.OutboxPublishedTotal.Inc()
		if markErr := p.repo.MarkPublished(ctx, evt.ID, p.clock.Now()); markErr != nil {
			p.log.Error("failed to mark outbox event published", markErr,
				logging.Fields{"event_id": evt.ID.String()})
		}
	}
	return published, failed, nil
}

// Run polls RunOnce every interval until ctx is cancelled. It is meant to
// run only while the caller holds the single-leader lease (see
// internal/transport/redis.Lease) so per-aggregate order is preserved.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			published, failed, err := p.RunOnce(ctx)
			if err != nil {
				p.log.Error("outbox publish batch failed", err, nil)
				continue
			}
			if published > 0 || failed > 0 {
				p.log.Debug("outbox publish batch", logging.Fields{
					"published": published, "failed": failed,
				})
			}
		}
	}
}

func classifyPublishError(err error) string {
	if err == nil {
		return "none"
	}
	return "transport"
}
