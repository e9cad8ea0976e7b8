// Package testenv builds a full in-process HTTP stack for integration
// tests, grounded on test/integration/testenv/setup.go's SetupRouter shape
// -- generalized from a package-level Postgres singleton to a fresh
// in-memory engine per test, since the in-memory store makes each test
// independent without a shared database to reset between runs.
package testenv

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/coreledger/engine/internal/api/handlers"
	"github.com/coreledger/engine/internal/api/routes"
	"github.com/coreledger/engine/internal/clock"
	"github.com/coreledger/engine/internal/config"
	"github.com/coreledger/engine/internal/engine"
	"github.com/coreledger/engine/internal/storage/memory"
	"github.com/coreledger/engine/internal/telemetry"
)

// Env bundles a router wired to a fresh in-memory engine plus the store it
// sits on, so a test can both drive HTTP requests and inspect repository
// state directly (e.g. ledger totals) without a second HTTP round trip.
type Env struct {
	Router *gin.Engine
	Store  *memory.Store
	Engine *engine.Engine
}

// New builds an isolated Env: new in-memory store, new engine, new router.
func New() *Env {
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	repos := engine.Repositories{
		Accounts:    store.Accounts(),
		Transfers:   store.Transfers(),
		Ledger:      store.Ledger(),
		Outbox:      store.Outbox(),
		Idempotency: store.Idempotency(),
		TxManager:   store,
		Publisher:   telemetry.InProcessPublisher{},
	}
	eng := engine.New(repos, clock.NewSequence(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond))

	router := gin.New()
	cors := config.CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"*"}, AllowHeaders: []string{"*"}}
	routes.Register(router, handlers.Dependencies{Engine: eng}, cors, config.RateLimitConfig{})

	return &Env{Router: router, Store: store, Engine: eng}
}

// OpenAccount issues POST /accounts and returns the new account's ID.
func (e *Env) OpenAccount(t *testing.T, owner, currency string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"ownerName": owner, "currency": currency})
	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	e.Router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.ID
}

// Transfer issues POST /transfers with idempotencyKey and returns the raw
// response so callers can assert on status code and body shape directly.
func (e *Env) Transfer(t *testing.T, idempotencyKey, reference, source, dest string, amountMinorUnits int64, currency string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"reference":            reference,
		"sourceAccountId":      source,
		"destinationAccountId": dest,
		"amountMinorUnits":     amountMinorUnits,
		"currency":             currency,
	})
	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	resp := httptest.NewRecorder()
	e.Router.ServeHTTP(resp, req)
	return resp
}

// CloseAccount issues POST /accounts/:id/close and returns the raw response.
func (e *Env) CloseAccount(t *testing.T, id string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/accounts/"+id+"/close", nil)
	resp := httptest.NewRecorder()
	e.Router.ServeHTTP(resp, req)
	return resp
}

// GetAccount issues GET /accounts/:id and decodes the response.
func (e *Env) GetAccount(t *testing.T, id string) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/accounts/"+id, nil)
	resp := httptest.NewRecorder()
	e.Router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}
