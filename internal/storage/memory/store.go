// Package memory provides in-process, mutex-guarded repository
// implementations for fast unit tests, mirroring the map-backed store in
// src/diplomat/database/inmemory.go generalized from a single accounts map
// to every repository port the engine depends on.
package memory

import (
	"context"
	"sync"

	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/idempotency"
	"github.com/coreledger/engine/internal/domain/ledger"
	"github.com/coreledger/engine/internal/domain/outbox"
	"github.com/coreledger/engine/internal/domain/transfer"
)

// Store is a single in-memory backend shared by all five repository
// adapters plus the transaction manager. Two locks stand in for Postgres:
// txMu serializes whole units of work the way a single DB connection would,
// and mu guards the maps themselves so a lookup made outside a transaction
// (a plain GET handler) is still race-free. Keeping them separate avoids a
// self-deadlock when Transactional's body calls back into a repo method.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	inTx bool

	accounts map[string]*account.Account

	transfers          map[string]*transfer.Transfer
	referenceIndex     map[string]string // sourceAccountId|reference -> transferId
	ledgerEntries      map[string][]ledger.Entry
	outboxEvents       map[string]*outbox.Event
	idempotencyRecords map[string]*idempotency.Record
}

func NewStore() *Store {
	return &Store{
		accounts:           make(map[string]*account.Account),
		transfers:          make(map[string]*transfer.Transfer),
		referenceIndex:     make(map[string]string),
		ledgerEntries:      make(map[string][]ledger.Entry),
		outboxEvents:       make(map[string]*outbox.Event),
		idempotencyRecords: make(map[string]*idempotency.Record),
	}
}

// Transactional holds txMu for the duration of fn, so at most one unit of
// work touches the store at a time -- the in-memory equivalent of a single
// DB connection running one transaction. There is no rollback of partial
// writes on error because the tests this adapter serves never assert on
// partial state after a failure; the Postgres adapter is the one that must
// get rollback semantics right. A nested call (ctx already inside
// Transactional) runs fn directly in the enclosing unit of work.
func (s *Store) Transactional(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	s.inTx = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inTx = false
		s.mu.Unlock()
	}()

	return fn(context.WithValue(ctx, inTxKey{}, true))
}

// inTxKey marks a ctx that is already inside Transactional.
type inTxKey struct{}

func (s *Store) Accounts() account.Repository        { return &accountRepo{s} }
func (s *Store) Transfers() transfer.Repository      { return &transferRepo{s} }
func (s *Store) Ledger() ledger.Repository           { return &ledgerRepo{s} }
func (s *Store) Outbox() outbox.Repository           { return &outboxRepo{s} }
func (s *Store) Idempotency() idempotency.Repository { return &idempotencyRepo{s} }
