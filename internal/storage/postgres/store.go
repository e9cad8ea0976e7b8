// Package postgres implements every repository port on a pgx connection
// pool, grounded on internal/infrastructure/database/postgres/postgres.go's
// pool setup and the FOR UPDATE claim pattern from
// SimonKvalheim-hm9-banking's transfer processor.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/config"
)

// Store owns the pool and hands out one adapter per repository port. All
// adapters share the same txKey lookup so a method called from inside
// Transactional runs against the live transaction instead of a fresh
// connection.
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func Connect(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &Store{pool: pool, lockTimeout: cfg.LockTimeout}, nil
}

func (s *Store) Close() { s.pool.Close() }

type txKeyType struct{}

var txKey = txKeyType{}

// querier is satisfied by both pgxpool.Pool and pgx.Tx, so repo methods can
// stay agnostic to whether they're inside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgx.CommandTag, error)
}

func (s *Store) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// Transactional opens a pgx transaction at READ COMMITTED, sets the
// transaction's lock_timeout (SET LOCAL), and runs fn with the transaction
// bound into ctx. A nested call (ctx already carries a transaction) runs fn
// inside a savepoint of the outer transaction: an error rolls back to the
// savepoint, success releases it.
func (s *Store) Transactional(ctx context.Context, fn func(ctx context.Context) error) error {
	if outer, ok := ctx.Value(txKey).(pgx.Tx); ok {
		nested, err := outer.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin savepoint: %w", err)
		}
		defer nested.Rollback(ctx)
		if err := fn(context.WithValue(ctx, txKey, nested)); err != nil {
			return err
		}
		return nested.Commit(ctx)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock_timeout: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapCommitError(err)
	}
	return nil
}

func mapCommitError(err error) error {
	return apperrors.Wrap(apperrors.ConcurrencyConflict, "commit failed", err)
}

func (s *Store) Accounts() *AccountRepo       { return &AccountRepo{s} }
func (s *Store) Transfers() *TransferRepo     { return &TransferRepo{s} }
func (s *Store) Ledger() *LedgerRepo          { return &LedgerRepo{s} }
func (s *Store) Outbox() *OutboxRepo          { return &OutboxRepo{s} }
func (s *Store) Idempotency() *IdempotencyRepo { return &IdempotencyRepo{s} }
