package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/domain/money"
)

// Event is implemented by every domain event the Account aggregate can
// raise. The engine serializes these into outbox rows after persistence.
type Event interface {
	EventType() string
	AggregateType() string
	AggregateID() uuid.UUID
	When() time.Time
}

type AccountDebited struct {
	AccountID    uuid.UUID
	Amount       money.Balance
	BalanceAfter money.Balance
	TransferID   uuid.UUID
	TransferType TransferType
	Counterparty uuid.UUID
	OccurredAt   time.Time
}

func (e AccountDebited) EventType() string      { return "AccountDebited" }
func (e AccountDebited) AggregateType() string  { return "Account" }
func (e AccountDebited) AggregateID() uuid.UUID { return e.AccountID }
func (e AccountDebited) When() time.Time        { return e.OccurredAt }

type AccountCredited struct {
	AccountID    uuid.UUID
	Amount       money.Balance
	BalanceAfter money.Balance
	TransferID   uuid.UUID
	TransferType TransferType
	Counterparty uuid.UUID
	OccurredAt   time.Time
}

func (e AccountCredited) EventType() string      { return "AccountCredited" }
func (e AccountCredited) AggregateType() string  { return "Account" }
func (e AccountCredited) AggregateID() uuid.UUID { return e.AccountID }
func (e AccountCredited) When() time.Time        { return e.OccurredAt }

type AccountFrozen struct {
	AccountID  uuid.UUID
	OccurredAt time.Time
}

func (e AccountFrozen) EventType() string      { return "AccountFrozen" }
func (e AccountFrozen) AggregateType() string  { return "Account" }
func (e AccountFrozen) AggregateID() uuid.UUID { return e.AccountID }
func (e AccountFrozen) When() time.Time        { return e.OccurredAt }

type AccountUnfrozen struct {
	AccountID  uuid.UUID
	OccurredAt time.Time
}

func (e AccountUnfrozen) EventType() string      { return "AccountUnfrozen" }
func (e AccountUnfrozen) AggregateType() string  { return "Account" }
func (e AccountUnfrozen) AggregateID() uuid.UUID { return e.AccountID }
func (e AccountUnfrozen) When() time.Time        { return e.OccurredAt }

type AccountClosed struct {
	AccountID  uuid.UUID
	OccurredAt time.Time
}

func (e AccountClosed) EventType() string      { return "AccountClosed" }
func (e AccountClosed) AggregateType() string  { return "Account" }
func (e AccountClosed) AggregateID() uuid.UUID { return e.AccountID }
func (e AccountClosed) When() time.Time        { return e.OccurredAt }
