package account_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/money"
	"github.com/coreledger/engine/test/integration/testenv"
)

// creditBootstrap overwrites an opened account's balance directly in the
// store, bypassing the engine -- the engine has no deposit primitive of its own
// (funds only move between two existing accounts, SPEC_FULL §4.4), so tests
// that need a non-zero starting balance construct one via Hydrate the way a
// migration or bootstrap script would, exactly like
// internal/engine/engine_test.go's seedFundedAccount helper.
func creditBootstrap(t *testing.T, env *testenv.Env, id string, minorUnits int64) {
	t.Helper()
	accountID, err := uuid.Parse(id)
	require.NoError(t, err)

	existing, err := env.Store.Accounts().GetByID(context.Background(), accountID)
	require.NoError(t, err)

	balance, err := money.New(minorUnits, existing.Balance.Currency)
	require.NoError(t, err)

	funded := account.Hydrate(existing.ID, existing.OwnerName, balance, existing.Status,
		existing.CreatedAt, time.Now(), existing.ClosedAt, existing.Version+1)
	require.NoError(t, env.Store.Accounts().Save(context.Background(), funded))
}

// TestSimpleTransfer covers SPEC_FULL §8 scenario 1.
func TestSimpleTransfer(t *testing.T) {
	env := testenv.New()
	a := env.OpenAccount(t, "Alice", "USD")
	b := env.OpenAccount(t, "Bob", "USD")
	creditBootstrap(t, env, a, 1000)

	resp := env.Transfer(t, "k1", "r1", a, b, 250, "USD")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	aAfter := env.GetAccount(t, a)
	bAfter := env.GetAccount(t, b)
	assert.EqualValues(t, 750, aAfter["amountMinorUnits"])
	assert.EqualValues(t, 250, bAfter["amountMinorUnits"])
}

// TestRetryWithSameReference covers SPEC_FULL §8 scenario 2: the same
// (sourceAccountId, reference) returns the same Transfer deterministically
// and never double-applies.
func TestRetryWithSameReference(t *testing.T) {
	env := testenv.New()
	a := env.OpenAccount(t, "Alice", "USD")
	b := env.OpenAccount(t, "Bob", "USD")
	creditBootstrap(t, env, a, 1000)

	first := env.Transfer(t, "k1", "r1", a, b, 250, "USD")
	require.Equal(t, http.StatusOK, first.Code)

	second := env.Transfer(t, "k2", "r1", a, b, 250, "USD")
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	aAfter := env.GetAccount(t, a)
	assert.EqualValues(t, 750, aAfter["amountMinorUnits"])
}

// TestInsufficientFunds covers SPEC_FULL §8 scenario 3.
func TestInsufficientFunds(t *testing.T) {
	env := testenv.New()
	a := env.OpenAccount(t, "Alice", "USD")
	b := env.OpenAccount(t, "Bob", "USD")
	creditBootstrap(t, env, a, 100)

	resp := env.Transfer(t, "k1", "r1", a, b, 500, "USD")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), "FAILED")
	assert.Contains(t, resp.Body.String(), "INSUFFICIENT_FUNDS")

	aAfter := env.GetAccount(t, a)
	bAfter := env.GetAccount(t, b)
	assert.EqualValues(t, 100, aAfter["amountMinorUnits"])
	assert.EqualValues(t, 0, bAfter["amountMinorUnits"])
}

// TestIdempotencyKeyConflict covers SPEC_FULL §8 scenario 6: the same
// Idempotency-Key with a different body is rejected.
func TestIdempotencyKeyConflict(t *testing.T) {
	env := testenv.New()
	a := env.OpenAccount(t, "Alice", "USD")
	b := env.OpenAccount(t, "Bob", "USD")
	creditBootstrap(t, env, a, 1000)

	first := env.Transfer(t, "k1", "r1", a, b, 100, "USD")
	require.Equal(t, http.StatusOK, first.Code)

	second := env.Transfer(t, "k1", "r2", a, b, 200, "USD")
	require.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "IDEMPOTENCY_KEY_CONFLICT")

	aAfter := env.GetAccount(t, a)
	assert.EqualValues(t, 900, aAfter["amountMinorUnits"])
}

// TestConcurrentOpposingTransfers covers SPEC_FULL §8 scenario 4: the
// canonical lock order must make deadlocks structurally impossible and the
// total of both accounts must be conserved.
func TestConcurrentOpposingTransfers(t *testing.T) {
	env := testenv.New()
	a := env.OpenAccount(t, "Alice", "USD")
	b := env.OpenAccount(t, "Bob", "USD")
	creditBootstrap(t, env, a, 10000)
	creditBootstrap(t, env, b, 10000)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n * 2)

	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			resp := env.Transfer(t, uuid.NewString(), fmt.Sprintf("ab-%d", i), a, b, 1, "USD")
			assert.Equal(t, http.StatusOK, resp.Code)
		}(i)
		go func(i int) {
			defer wg.Done()
			resp := env.Transfer(t, uuid.NewString(), fmt.Sprintf("ba-%d", i), b, a, 1, "USD")
			assert.Equal(t, http.StatusOK, resp.Code)
		}(i)
	}
	wg.Wait()

	aAfter := env.GetAccount(t, a)
	bAfter := env.GetAccount(t, b)
	aBal := int64(aAfter["amountMinorUnits"].(float64))
	bBal := int64(bAfter["amountMinorUnits"].(float64))

	assert.Equal(t, int64(20000), aBal+bBal)
	assert.GreaterOrEqual(t, aBal, int64(0))
	assert.GreaterOrEqual(t, bBal, int64(0))
}

