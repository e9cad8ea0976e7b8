// Package ledger defines the append-only LedgerEntry record. Entries are
// never updated or deleted once written; the package exposes only
// construction helpers and the repository port, grounded on the debit/credit
// pair construction in SimonKvalheim-hm9-banking's transfer processor.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/money"
)

type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// Entry is one line of the append-only ledger.
type Entry struct {
	ID                     uuid.UUID
	AccountID              uuid.UUID
	EntryType              EntryType
	TransferType           account.TransferType
	AmountMinorUnits       int64
	Currency               money.Currency
	BalanceAfterMinorUnits int64
	TransferID             uuid.UUID
	CounterpartyAccountID  uuid.UUID
	OccurredAt             time.Time
}

// SignedAmount returns the entry's contribution to the account balance:
// positive for credits, negative for debits.
func (e Entry) SignedAmount() int64 {
	if e.EntryType == EntryTypeDebit {
		return -e.AmountMinorUnits
	}
	return e.AmountMinorUnits
}

// FromDebit builds the DEBIT leg of a transfer from the AccountDebited event
// the source account emitted.
func FromDebit(id uuid.UUID, evt account.AccountDebited) Entry {
	return Entry{
		ID:                     id,
		AccountID:              evt.AccountID,
		EntryType:              EntryTypeDebit,
		TransferType:           evt.TransferType,
		AmountMinorUnits:       evt.Amount.AmountMinorUnits,
		Currency:               evt.Amount.Currency,
		BalanceAfterMinorUnits: evt.BalanceAfter.AmountMinorUnits,
		TransferID:             evt.TransferID,
		CounterpartyAccountID:  evt.Counterparty,
		OccurredAt:             evt.OccurredAt,
	}
}

// FromCredit builds the CREDIT leg of a transfer from the AccountCredited
// event the destination account emitted.
func FromCredit(id uuid.UUID, evt account.AccountCredited) Entry {
	return Entry{
		ID:                     id,
		AccountID:              evt.AccountID,
		EntryType:              EntryTypeCredit,
		TransferType:           evt.TransferType,
		AmountMinorUnits:       evt.Amount.AmountMinorUnits,
		Currency:               evt.Amount.Currency,
		BalanceAfterMinorUnits: evt.BalanceAfter.AmountMinorUnits,
		TransferID:             evt.TransferID,
		CounterpartyAccountID:  evt.Counterparty,
		OccurredAt:             evt.OccurredAt,
	}
}

// Page is a pagination request clamped per SPEC_FULL §4.6: perPage in [1,500].
type Page struct {
	Before  *uuid.UUID // keyset cursor: entries with ID < Before, nil means start
	PerPage int
}

func (p Page) Clamped() Page {
	per := p.PerPage
	if per < 1 {
		per = 1
	}
	if per > 500 {
		per = 500
	}
	return Page{Before: p.Before, PerPage: per}
}

// Repository is the write-only append log's port. No update or delete
// operation exists on this contract.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
	FindByAccountID(ctx context.Context, accountID uuid.UUID, page Page) ([]Entry, error)
	ComputedBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	LatestBalanceAfter(ctx context.Context, accountID uuid.UUID) (int64, bool, error)
}
