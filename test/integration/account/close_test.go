package account_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/engine/test/integration/testenv"
)

// TestCloseWithNonZeroBalance covers SPEC_FULL §8 scenario 5: closing an
// account that still holds funds fails with NON_ZERO_BALANCE_ON_CLOSE and
// leaves the account ACTIVE.
func TestCloseWithNonZeroBalance(t *testing.T) {
	env := testenv.New()
	a := env.OpenAccount(t, "Alice", "USD")
	creditBootstrap(t, env, a, 500)

	resp := env.CloseAccount(t, a)
	require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), "NON_ZERO_BALANCE_ON_CLOSE")

	after := env.GetAccount(t, a)
	assert.Equal(t, "ACTIVE", after["status"])
}

// TestCloseWithZeroBalance covers the complementary case: a zero-balance
// account closes cleanly.
func TestCloseWithZeroBalance(t *testing.T) {
	env := testenv.New()
	a := env.OpenAccount(t, "Alice", "USD")

	resp := env.CloseAccount(t, a)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	after := env.GetAccount(t, a)
	assert.Equal(t, "CLOSED", after["status"])
}
