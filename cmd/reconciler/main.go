// cmd/reconciler runs a single reconciliation pass over every account,
// comparing the account-balance store against the ledger and logging any
// drift, then exits -- meant to be invoked on a schedule (cron, k8s
// CronJob) rather than run as a long-lived process.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coreledger/engine/internal/bootstrap"
	"github.com/coreledger/engine/internal/config"
	"github.com/coreledger/engine/internal/logging"
	"github.com/coreledger/engine/internal/reconciliation"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	backend, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to open storage backend", err, nil)
		os.Exit(1)
	}
	defer backend.Close()

	auditor := &reconciliation.Auditor{
		Accounts: backend.Repos.Accounts,
		Ledger:   backend.Repos.Ledger,
		Log:      log,
	}

	start := time.Now()
	counts, err := reconciliation.RunFullPass(ctx, auditor, reconciliation.DefaultPerPage)
	if err != nil {
		log.Error("reconciliation pass failed", err, nil)
		os.Exit(1)
	}

	log.Info("reconciliation pass complete", logging.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"ok":          counts[reconciliation.OK],
		"drift_computed": counts[reconciliation.DriftComputed],
		"drift_latest":   counts[reconciliation.DriftLatest],
		"currency_mismatch": counts[reconciliation.CurrencyMismatch],
	})

	if counts[reconciliation.DriftComputed]+counts[reconciliation.DriftLatest]+counts[reconciliation.CurrencyMismatch] > 0 {
		fmt.Fprintln(os.Stderr, "reconciliation found drift, see logs")
		os.Exit(2)
	}
}
