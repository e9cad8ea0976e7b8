package reconciliation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/engine/internal/clock"
	"github.com/coreledger/engine/internal/config"
	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/ledger"
	"github.com/coreledger/engine/internal/domain/money"
	"github.com/coreledger/engine/internal/domain/transfer"
	"github.com/coreledger/engine/internal/engine"
	"github.com/coreledger/engine/internal/logging"
	"github.com/coreledger/engine/internal/reconciliation"
	"github.com/coreledger/engine/internal/storage/memory"
)

func newEngine() (*engine.Engine, *memory.Store) {
	store := memory.NewStore()
	repos := engine.Repositories{
		Accounts:    store.Accounts(),
		Transfers:   store.Transfers(),
		Ledger:      store.Ledger(),
		Outbox:      store.Outbox(),
		Idempotency: store.Idempotency(),
		TxManager:   store,
	}
	return engine.New(repos, clock.NewSequence(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)), store
}

// seedFundedAccount stores an account and, for a non-zero balance, the
// bootstrap CREDIT entry that backs it, dated before the engine's clock
// starts so later transfer entries are the account's latest.
func seedFundedAccount(t *testing.T, store *memory.Store, owner string, minor int64) *account.Account {
	t.Helper()
	balance, err := money.New(minor, money.USD)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := account.Hydrate(uuid.New(), owner, balance, account.StatusActive, now, now, nil, 0)
	require.NoError(t, store.Accounts().Save(context.Background(), a))
	if minor > 0 {
		require.NoError(t, store.Ledger().Append(context.Background(), ledger.Entry{
			ID: uuid.New(), AccountID: a.ID, EntryType: ledger.EntryTypeCredit,
			TransferType: account.TransferTypeBootstrap, AmountMinorUnits: minor, Currency: money.USD,
			BalanceAfterMinorUnits: minor, TransferID: uuid.New(), CounterpartyAccountID: uuid.Nil,
			OccurredAt: now.Add(-time.Hour),
		}))
	}
	return a
}

// TestRunFullPass_CleanStoreIsAllOK walks a store with no drift and expects
// every account classified OK.
func TestRunFullPass_CleanStoreIsAllOK(t *testing.T) {
	eng, store := newEngine()
	ctx := context.Background()

	source := seedFundedAccount(t, store, "alice", 1000)
	dest := seedFundedAccount(t, store, "bob", 0)

	amount, err := money.New(250, money.USD)
	require.NoError(t, err)
	_, err = eng.ExecuteTransfer(ctx, engine.TransferRequest{
		IdempotencyKey:  "k1",
		RequestBody:     []byte(`{"reference":"r1"}`),
		Reference:       transfer.Reference("r1"),
		SourceAccountID: source.ID,
		DestinationID:   dest.ID,
		Amount:          amount,
	})
	require.NoError(t, err)

	auditor := &reconciliation.Auditor{
		Accounts: store.Accounts(),
		Ledger:   store.Ledger(),
		Log:      logging.New(config.LoggingConfig{Level: "error", Format: "json"}),
	}
	counts, err := reconciliation.RunFullPass(ctx, auditor, reconciliation.DefaultPerPage)
	require.NoError(t, err)

	assert.Equal(t, 2, counts[reconciliation.OK])
	assert.Zero(t, counts[reconciliation.DriftComputed])
	assert.Zero(t, counts[reconciliation.DriftLatest])
	assert.Zero(t, counts[reconciliation.CurrencyMismatch])
}

// TestRunFullPass_DetectsDriftComputed writes an account balance that
// silently diverges from its ledger history (e.g. a corrupted manual
// update) and expects the pass to flag it as DRIFT_COMPUTED.
func TestRunFullPass_DetectsDriftComputed(t *testing.T) {
	eng, store := newEngine()
	ctx := context.Background()

	source := seedFundedAccount(t, store, "alice", 1000)
	dest := seedFundedAccount(t, store, "bob", 0)

	amount, err := money.New(250, money.USD)
	require.NoError(t, err)
	_, err = eng.ExecuteTransfer(ctx, engine.TransferRequest{
		IdempotencyKey:  "k1",
		RequestBody:     []byte(`{"reference":"r1"}`),
		Reference:       transfer.Reference("r1"),
		SourceAccountID: source.ID,
		DestinationID:   dest.ID,
		Amount:          amount,
	})
	require.NoError(t, err)

	drifted, err := store.Accounts().GetByID(ctx, dest.ID)
	require.NoError(t, err)
	badBalance, err := money.New(drifted.Balance.AmountMinorUnits+1, money.USD)
	require.NoError(t, err)
	corrupted := account.Hydrate(drifted.ID, drifted.OwnerName, badBalance, drifted.Status,
		drifted.CreatedAt, time.Now(), drifted.ClosedAt, drifted.Version+1)
	require.NoError(t, store.Accounts().Save(ctx, corrupted))

	auditor := &reconciliation.Auditor{
		Accounts: store.Accounts(),
		Ledger:   store.Ledger(),
		Log:      logging.New(config.LoggingConfig{Level: "error", Format: "json"}),
	}
	counts, err := reconciliation.RunFullPass(ctx, auditor, reconciliation.DefaultPerPage)
	require.NoError(t, err)

	assert.Equal(t, 1, counts[reconciliation.OK])
	assert.Equal(t, 1, counts[reconciliation.DriftComputed])
}
