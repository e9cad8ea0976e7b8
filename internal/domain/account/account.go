// Package account implements the Account aggregate: an owner-scoped balance
// with a lifecycle state machine. Every operation here is pure -- no I/O, no
// locking. Concurrency safety comes from the storage layer's row lock
// (SELECT ... FOR UPDATE), acquired before the aggregate is loaded and held
// until the caller persists it; see internal/engine.
package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/money"
)

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusFrozen Status = "FROZEN"
	StatusClosed Status = "CLOSED"
)

// TransferType tags a ledger movement with why it happened. Shared with the
// ledger and transfer packages so a LedgerEntry and the event that produced
// it agree on vocabulary.
type TransferType string

const (
	TransferTypeTransfer  TransferType = "transfer"
	TransferTypeReversal  TransferType = "reversal"
	TransferTypeBootstrap TransferType = "bootstrap"
)

// Account is the aggregate root. Mutating methods return a domain error and
// leave the receiver unchanged on failure.
type Account struct {
	ID        uuid.UUID
	OwnerName string
	Balance   money.Balance
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
	Version   int

	events []Event
}

// Open constructs a brand new ACTIVE account holding the given opening
// balance. Account IDs are v4 (random) per SPEC_FULL §3.1.
func Open(ownerName string, currency money.Balance, now time.Time) *Account {
	return &Account{
		ID:        uuid.New(),
		OwnerName: ownerName,
		Balance:   currency,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   0,
	}
}

// Hydrate rebuilds an Account from persisted fields, with no pending events.
// Storage adapters use this; it never fails because persisted rows are
// assumed already valid.
func Hydrate(id uuid.UUID, ownerName string, balance money.Balance, status Status, createdAt, updatedAt time.Time, closedAt *time.Time, version int) *Account {
	return &Account{
		ID:        id,
		OwnerName: ownerName,
		Balance:   balance,
		Status:    status,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		ClosedAt:  closedAt,
		Version:   version,
	}
}

func (a *Account) mustBeActive() error {
	if a.Status != StatusActive {
		return apperrors.New(apperrors.InvalidAccountState,
			"account "+a.ID.String()+" is "+string(a.Status)+", not ACTIVE")
	}
	return nil
}

// Debit requires the account to be ACTIVE, the amount's currency to match
// the account's, and the balance to cover the amount. On success it emits
// an AccountDebited event carrying the post-debit balance.
func (a *Account) Debit(amount money.Balance, transferID uuid.UUID, transferType TransferType, counterpartyID uuid.UUID, now time.Time) error {
	if err := a.mustBeActive(); err != nil {
		return err
	}
	if !a.Balance.SameCurrency(amount) {
		return apperrors.New(apperrors.CurrencyMismatch,
			"debit currency "+string(amount.Currency)+" does not match account currency "+string(a.Balance.Currency))
	}
	if !a.Balance.GreaterOrEqual(amount) {
		return apperrors.New(apperrors.InsufficientFunds,
			"balance "+a.Balance.String()+" insufficient for debit of "+amount.String())
	}

	a.Balance = a.Balance.Sub(amount)
	a.UpdatedAt = now
	a.Version++

	a.events = append(a.events, AccountDebited{
		AccountID:    a.ID,
		Amount:       amount,
		BalanceAfter: a.Balance,
		TransferID:   transferID,
		TransferType: transferType,
		Counterparty: counterpartyID,
		OccurredAt:   now,
	})
	return nil
}

// Credit requires the account to be ACTIVE and currencies to match. On
// success it emits an AccountCredited event.
func (a *Account) Credit(amount money.Balance, transferID uuid.UUID, transferType TransferType, counterpartyID uuid.UUID, now time.Time) error {
	if err := a.mustBeActive(); err != nil {
		return err
	}
	if !a.Balance.SameCurrency(amount) {
		return apperrors.New(apperrors.CurrencyMismatch,
			"credit currency "+string(amount.Currency)+" does not match account currency "+string(a.Balance.Currency))
	}

	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = now
	a.Version++

	a.events = append(a.events, AccountCredited{
		AccountID:    a.ID,
		Amount:       amount,
		BalanceAfter: a.Balance,
		TransferID:   transferID,
		TransferType: transferType,
		Counterparty: counterpartyID,
		OccurredAt:   now,
	})
	return nil
}

// Freeze moves ACTIVE -> FROZEN.
func (a *Account) Freeze(now time.Time) error {
	if a.Status != StatusActive {
		return apperrors.New(apperrors.InvalidAccountState,
			"cannot freeze account in state "+string(a.Status))
	}
	a.Status = StatusFrozen
	a.UpdatedAt = now
	a.Version++
	a.events = append(a.events, AccountFrozen{AccountID: a.ID, OccurredAt: now})
	return nil
}

// Unfreeze moves FROZEN -> ACTIVE.
func (a *Account) Unfreeze(now time.Time) error {
	if a.Status != StatusFrozen {
		return apperrors.New(apperrors.InvalidAccountState,
			"cannot unfreeze account in state "+string(a.Status))
	}
	a.Status = StatusActive
	a.UpdatedAt = now
	a.Version++
	a.events = append(a.events, AccountUnfrozen{AccountID: a.ID, OccurredAt: now})
	return nil
}

// Close requires a zero balance and a non-CLOSED status. CLOSED is terminal.
func (a *Account) Close(now time.Time) error {
	if a.Status == StatusClosed {
		return apperrors.New(apperrors.InvalidAccountState, "account already closed")
	}
	if !a.Balance.IsZero() {
		return apperrors.New(apperrors.NonZeroBalanceOnClose,
			"cannot close account with non-zero balance "+a.Balance.String())
	}
	a.Status = StatusClosed
	a.ClosedAt = &now
	a.UpdatedAt = now
	a.Version++
	a.events = append(a.events, AccountClosed{AccountID: a.ID, OccurredAt: now})
	return nil
}

// PeekEvents returns the pending events without clearing them.
func (a *Account) PeekEvents() []Event {
	return a.events
}

// ReleaseEvents empties and returns the pending-event buffer. The engine is
// the sole caller, and only after the account has been durably persisted.
func (a *Account) ReleaseEvents() []Event {
	pending := a.events
	a.events = nil
	return pending
}
