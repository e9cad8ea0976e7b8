package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
)

type Event interface {
	EventType() string
	AggregateType() string
	AggregateID() uuid.UUID
	When() time.Time
}

type TransferCompleted struct {
	TransferID uuid.UUID
	OccurredAt time.Time
}

func (e TransferCompleted) EventType() string      { return "TransferCompleted" }
func (e TransferCompleted) AggregateType() string  { return "Transfer" }
func (e TransferCompleted) AggregateID() uuid.UUID { return e.TransferID }
func (e TransferCompleted) When() time.Time        { return e.OccurredAt }

type TransferFailed struct {
	TransferID uuid.UUID
	Code       apperrors.Kind
	Reason     string
	OccurredAt time.Time
}

func (e TransferFailed) EventType() string      { return "TransferFailed" }
func (e TransferFailed) AggregateType() string  { return "Transfer" }
func (e TransferFailed) AggregateID() uuid.UUID { return e.TransferID }
func (e TransferFailed) When() time.Time        { return e.OccurredAt }
func (e TransferFailed) FailureKind() string    { return string(e.Code) }

type TransferReversed struct {
	TransferID         uuid.UUID
	ReversalTransferID uuid.UUID
	OccurredAt         time.Time
}

func (e TransferReversed) EventType() string      { return "TransferReversed" }
func (e TransferReversed) AggregateType() string  { return "Transfer" }
func (e TransferReversed) AggregateID() uuid.UUID { return e.TransferID }
func (e TransferReversed) When() time.Time        { return e.OccurredAt }
