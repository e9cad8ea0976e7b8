// cmd/idempotency-pruner deletes expired idempotency records
// (expiresAt <= now, SPEC_FULL §4.5), then exits. Scheduled the same way
// as cmd/reconciler.
package main

import (
	"context"
	"os"
	"time"

	"github.com/coreledger/engine/internal/bootstrap"
	"github.com/coreledger/engine/internal/clock"
	"github.com/coreledger/engine/internal/config"
	"github.com/coreledger/engine/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backend, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to open storage backend", err, nil)
		os.Exit(1)
	}
	defer backend.Close()

	now := clock.Real().Now()
	deleted, err := backend.Repos.Idempotency.DeleteExpired(ctx, now)
	if err != nil {
		log.Error("idempotency prune failed", err, nil)
		os.Exit(1)
	}

	log.Info("idempotency prune complete", logging.Fields{"deleted": deleted})
}
