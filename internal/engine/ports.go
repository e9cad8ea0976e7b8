// Package engine implements the transactional use cases that sit between
// the HTTP adapter and the pure domain aggregates: ExecuteTransfer and the
// single-account lifecycle operations. It is the only place allowed to
// compose locking, persistence, and outbox writes into one unit of work.
package engine

import (
	"context"

	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/idempotency"
	"github.com/coreledger/engine/internal/domain/ledger"
	"github.com/coreledger/engine/internal/domain/outbox"
	"github.com/coreledger/engine/internal/domain/transfer"
)

// TransactionManager runs fn inside a single unit of work. The Postgres
// adapter commits on a nil return and rolls back otherwise; the in-memory
// adapter applies writes as they are made and has no rollback. A nested call
// (an engine method calling another) runs inside the outer unit of work: the
// Postgres adapter wraps it in a savepoint, the in-memory adapter just runs it.
type TransactionManager interface {
	Transactional(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher dispatches released aggregate events to in-process
// subscribers (metrics, tracing) after a successful commit. It never affects
// the caller's response: failures are logged by the caller, not returned.
type EventPublisher interface {
	Publish(ctx context.Context, events []outbox.AggregateEvent)
}

// Repositories bundles every storage port the engine depends on. Both the
// in-memory and Postgres adapters implement this in full.
type Repositories struct {
	Accounts    account.Repository
	Transfers   transfer.Repository
	Ledger      ledger.Repository
	Outbox      outbox.Repository
	Idempotency idempotency.Repository
	TxManager   TransactionManager
	Publisher   EventPublisher
}
