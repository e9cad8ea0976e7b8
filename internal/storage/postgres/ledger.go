package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/ledger"
	"github.com/coreledger/engine/internal/domain/money"
)

type LedgerRepo struct{ s *Store }

// Append inserts one append-only row. ledger_entries carries no UPDATE
// path at all in the schema -- there is nothing to conflict with.
func (r *LedgerRepo) Append(ctx context.Context, entry ledger.Entry) error {
	const insert = `
		INSERT INTO ledger_entries (id, account_id, entry_type, transfer_type, amount_minor_units, currency,
		                             balance_after_minor_units, transfer_id, counterparty_account_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.s.db(ctx).Exec(ctx, insert,
		entry.ID, entry.AccountID, string(entry.EntryType), string(entry.TransferType), entry.AmountMinorUnits,
		string(entry.Currency), entry.BalanceAfterMinorUnits, entry.TransferID, entry.CounterpartyAccountID, entry.OccurredAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ConcurrencyConflict, "append ledger entry", err)
	}
	return nil
}

// FindByAccountID walks the keyset cursor backwards from Page.Before (or
// from the most recent entry when nil), matching the in-memory adapter's
// newest-first semantics.
func (r *LedgerRepo) FindByAccountID(ctx context.Context, accountID uuid.UUID, page ledger.Page) ([]ledger.Entry, error) {
	page = page.Clamped()

	query := `
		SELECT id, account_id, entry_type, transfer_type, amount_minor_units, currency,
		       balance_after_minor_units, transfer_id, counterparty_account_id, occurred_at
		FROM ledger_entries
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	if page.Before != nil {
		query += " AND id < $2 ORDER BY id DESC LIMIT $3"
		args = append(args, *page.Before, page.PerPage)
	} else {
		query += " ORDER BY id DESC LIMIT $2"
		args = append(args, page.PerPage)
	}

	rows, err := r.s.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConcurrencyConflict, "find ledger entries", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			id                     uuid.UUID
			entryAccountID         uuid.UUID
			entryType              string
			transferType           string
			amountMinorUnits       int64
			currency               string
			balanceAfterMinorUnits int64
			transferID             uuid.UUID
			counterpartyAccountID  uuid.UUID
			occurredAt             time.Time
		)
		if err := rows.Scan(&id, &entryAccountID, &entryType, &transferType, &amountMinorUnits, &currency,
			&balanceAfterMinorUnits, &transferID, &counterpartyAccountID, &occurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, ledger.Entry{
			ID: id, AccountID: entryAccountID, EntryType: ledger.EntryType(entryType),
			TransferType: account.TransferType(transferType), AmountMinorUnits: amountMinorUnits,
			Currency: money.Currency(currency), BalanceAfterMinorUnits: balanceAfterMinorUnits,
			TransferID: transferID, CounterpartyAccountID: counterpartyAccountID, OccurredAt: occurredAt,
		})
	}
	return entries, rows.Err()
}

// ComputedBalance sums signed entries at the database -- SUM over a CASE
// expression rather than pulling every row into the application, the same
// shape as the reconciliation pass that calls it.
func (r *LedgerRepo) ComputedBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(CASE WHEN entry_type = 'DEBIT' THEN -amount_minor_units ELSE amount_minor_units END), 0)
		FROM ledger_entries WHERE account_id = $1
	`
	var total int64
	if err := r.s.db(ctx).QueryRow(ctx, query, accountID).Scan(&total); err != nil {
		return 0, apperrors.Wrap(apperrors.ConcurrencyConflict, "computed balance", err)
	}
	return total, nil
}

func (r *LedgerRepo) LatestBalanceAfter(ctx context.Context, accountID uuid.UUID) (int64, bool, error) {
	const query = `
		SELECT balance_after_minor_units FROM ledger_entries
		WHERE account_id = $1 ORDER BY occurred_at DESC, id DESC LIMIT 1
	`
	var balance int64
	err := r.s.db(ctx).QueryRow(ctx, query, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, apperrors.Wrap(apperrors.ConcurrencyConflict, "latest balance after", err)
	}
	return balance, true, nil
}
