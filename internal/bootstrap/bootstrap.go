// Package bootstrap wires the repository set each cmd/ binary needs,
// generalized from the teacher's internal/pkg/components.Container
// initDatabase step into a shared helper so cmd/api, cmd/outbox-worker,
// and cmd/reconciler pick the same backend the same way instead of
// duplicating the postgres-vs-memory switch three times.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/coreledger/engine/internal/config"
	"github.com/coreledger/engine/internal/engine"
	"github.com/coreledger/engine/internal/storage/memory"
	"github.com/coreledger/engine/internal/storage/postgres"
	"github.com/coreledger/engine/internal/telemetry"
)

// Backend bundles the constructed repository set with a Close hook; the
// in-memory backend's Close is a no-op.
type Backend struct {
	Repos engine.Repositories
	close func()
}

func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open selects and connects the repository backend named by
// cfg.Server.StorageBackend ("postgres" or "memory").
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Server.StorageBackend {
	case "memory":
		store := memory.NewStore()
		return &Backend{Repos: engine.Repositories{
			Accounts:    store.Accounts(),
			Transfers:   store.Transfers(),
			Ledger:      store.Ledger(),
			Outbox:      store.Outbox(),
			Idempotency: store.Idempotency(),
			TxManager:   store,
			Publisher:   telemetry.InProcessPublisher{},
		}}, nil

	case "postgres", "":
		store, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &Backend{
			Repos: engine.Repositories{
				Accounts:    store.Accounts(),
				Transfers:   store.Transfers(),
				Ledger:      store.Ledger(),
				Outbox:      store.Outbox(),
				Idempotency: store.Idempotency(),
				TxManager:   store,
				Publisher:   telemetry.InProcessPublisher{},
			},
			close: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Server.StorageBackend)
	}
}
