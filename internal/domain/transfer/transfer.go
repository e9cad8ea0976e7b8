// Package transfer implements the Transfer aggregate: a per-request state
// machine with reference-based dedup. Grounded on the status-transition
// shape of SimonKvalheim-hm9-banking's Transaction model
// (claim/complete/fail over a SQL status column), factored here into a pure
// state machine the engine can drive without touching the database.
package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/money"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusReversed   Status = "REVERSED"
)

// Reference is the client-supplied idempotency token, unique per source
// account (SPEC_FULL §3.2).
type Reference string

type Transfer struct {
	ID                   uuid.UUID
	Reference            Reference
	SourceAccountID      uuid.UUID
	DestinationAccountID uuid.UUID
	Amount               money.Balance
	Description          string
	Status               Status
	FailureCode          apperrors.Kind
	FailureReason        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          *time.Time
	FailedAt             *time.Time
	ReversedAt           *time.Time

	events []Event
}

// Create builds a new PENDING Transfer. Transfer IDs are v7 (time-ordered)
// per SPEC_FULL §3.1.
func Create(reference Reference, sourceAccountID, destinationAccountID uuid.UUID, amount money.Balance, description string, now time.Time) (*Transfer, error) {
	if sourceAccountID == destinationAccountID {
		return nil, apperrors.New(apperrors.ValidationError, "source and destination account must differ")
	}
	if amount.AmountMinorUnits <= 0 {
		return nil, apperrors.New(apperrors.ValidationError, "transfer amount must be greater than zero")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ValidationError, "failed to generate transfer id", err)
	}

	return &Transfer{
		ID:                   id,
		Reference:            reference,
		SourceAccountID:      sourceAccountID,
		DestinationAccountID: destinationAccountID,
		Amount:               amount,
		Description:          description,
		Status:               StatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// Hydrate rebuilds a Transfer from persisted fields.
func Hydrate(id uuid.UUID, reference Reference, source, dest uuid.UUID, amount money.Balance, description string, status Status, failureCode apperrors.Kind, failureReason string, createdAt, updatedAt time.Time, completedAt, failedAt, reversedAt *time.Time) *Transfer {
	return &Transfer{
		ID: id, Reference: reference, SourceAccountID: source, DestinationAccountID: dest,
		Amount: amount, Description: description, Status: status,
		FailureCode: failureCode, FailureReason: failureReason,
		CreatedAt: createdAt, UpdatedAt: updatedAt,
		CompletedAt: completedAt, FailedAt: failedAt, ReversedAt: reversedAt,
	}
}

func (t *Transfer) illegalTransition() error {
	return apperrors.New(apperrors.InvalidTransferState,
		"cannot transition transfer "+t.ID.String()+" out of state "+string(t.Status))
}

// MarkProcessing moves PENDING -> PROCESSING.
func (t *Transfer) MarkProcessing(now time.Time) error {
	if t.Status != StatusPending {
		return t.illegalTransition()
	}
	t.Status = StatusProcessing
	t.UpdatedAt = now
	return nil
}

// MarkCompleted moves PROCESSING -> COMPLETED.
func (t *Transfer) MarkCompleted(now time.Time) error {
	if t.Status != StatusProcessing {
		return t.illegalTransition()
	}
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.events = append(t.events, TransferCompleted{TransferID: t.ID, OccurredAt: now})
	return nil
}

// MarkFailed moves PROCESSING -> FAILED, recording the failure kind/reason.
// FAILED is terminal: a failed transfer persists so replays with the same
// reference return deterministically rather than being retried internally.
func (t *Transfer) MarkFailed(code apperrors.Kind, reason string, now time.Time) error {
	if t.Status != StatusProcessing {
		return t.illegalTransition()
	}
	t.Status = StatusFailed
	t.FailureCode = code
	t.FailureReason = reason
	t.FailedAt = &now
	t.UpdatedAt = now
	t.events = append(t.events, TransferFailed{TransferID: t.ID, Code: code, Reason: reason, OccurredAt: now})
	return nil
}

// MarkReversed moves COMPLETED -> REVERSED.
func (t *Transfer) MarkReversed(reversalTransferID uuid.UUID, now time.Time) error {
	if t.Status != StatusCompleted {
		return t.illegalTransition()
	}
	t.Status = StatusReversed
	t.ReversedAt = &now
	t.UpdatedAt = now
	t.events = append(t.events, TransferReversed{TransferID: t.ID, ReversalTransferID: reversalTransferID, OccurredAt: now})
	return nil
}

func (t *Transfer) PeekEvents() []Event {
	return t.events
}

func (t *Transfer) ReleaseEvents() []Event {
	pending := t.events
	t.events = nil
	return pending
}

// Page is a pagination request for transfer listings, clamped per SPEC_FULL
// §6: page >= 1, perPage in [1,100].
type Page struct {
	Page    int
	PerPage int
}

func (p Page) Clamped() Page {
	page := p.Page
	if page < 1 {
		page = 1
	}
	per := p.PerPage
	if per < 1 {
		per = 1
	}
	if per > 100 {
		per = 100
	}
	return Page{Page: page, PerPage: per}
}

// Filter narrows a transfer listing by status and/or account.
type Filter struct {
	Status    *Status
	AccountID *uuid.UUID
}

type Paginated struct {
	Transfers []*Transfer
	Total     int
	Page      int
	PerPage   int
}

// Repository is the Transfer aggregate's storage port.
type Repository interface {
	Save(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)
	FindByReference(ctx context.Context, sourceAccountID uuid.UUID, reference Reference) (*Transfer, error)
	FindByFilters(ctx context.Context, filter Filter, page Page) (Paginated, error)
}
