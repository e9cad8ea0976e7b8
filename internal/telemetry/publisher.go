package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/coreledger/engine/internal/domain/outbox"
)

// InProcessPublisher is the engine.EventPublisher used for metrics and
// tracing span events -- the outbox is the system of record for external
// delivery, so this publisher never talks to Kafka.
type InProcessPublisher struct{}

func (InProcessPublisher) Publish(ctx context.Context, events []outbox.AggregateEvent) {
	span := trace.SpanFromContext(ctx)
	for _, evt := range events {
		span.AddEvent(evt.EventType(), trace.WithAttributes(
			attribute.String("aggregate.type", evt.AggregateType()),
			attribute.String("aggregate.id", evt.AggregateID().String()),
		))
		switch evt.EventType() {
		case "TransferCompleted":
			RecordTransfer("completed", "")
		case "TransferFailed":
			RecordTransfer("failed", failureKindOf(evt))
		}
	}
}

// failureKindOf extracts the failure kind label from a TransferFailed event
// without importing the transfer package, keeping telemetry's dependency
// surface to the domain's minimal outbox.AggregateEvent contract; adapters
// that need the kind value type-assert on the concrete event.
func failureKindOf(evt outbox.AggregateEvent) string {
	type kinded interface{ FailureKind() string }
	if k, ok := evt.(kinded); ok {
		return k.FailureKind()
	}
	return "unknown"
}
