package engine

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/clock"
	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/idempotency"
	"github.com/coreledger/engine/internal/domain/ledger"
	"github.com/coreledger/engine/internal/domain/money"
	"github.com/coreledger/engine/internal/domain/outbox"
	"github.com/coreledger/engine/internal/domain/transfer"
	"github.com/coreledger/engine/internal/telemetry"
)

// Engine is the single entry point for every mutating use case. Handlers in
// internal/api call only these methods; no package above this one touches a
// repository directly.
type Engine struct {
	repos Repositories
	clock clock.Clock
}

func New(repos Repositories, clk clock.Clock) *Engine {
	return &Engine{repos: repos, clock: clk}
}

// OpenAccountRequest is the input to OpenAccount.
type OpenAccountRequest struct {
	OwnerName string
	Currency  money.Currency
}

// OpenAccount creates a brand new ACTIVE account with a zero balance. It has
// no idempotency story of its own, and POST /accounts reads no
// Idempotency-Key: every call opens a new account.
func (e *Engine) OpenAccount(ctx context.Context, req OpenAccountRequest) (*account.Account, error) {
	if !req.Currency.Valid() {
		return nil, apperrors.New(apperrors.ValidationError, "unknown currency "+string(req.Currency))
	}
	a := account.Open(req.OwnerName, money.Zero(req.Currency), e.clock.Now())

	err := e.repos.TxManager.Transactional(ctx, func(ctx context.Context) error {
		if err := e.repos.Accounts.Save(ctx, a); err != nil {
			return err
		}
		return e.writeOutbox(ctx, accountEvents(a.PeekEvents()))
	})
	if err != nil {
		return nil, err
	}
	e.dispatchReleased(ctx, accountEvents(a.ReleaseEvents()))
	return a, nil
}

// FreezeAccount moves an account ACTIVE -> FROZEN.
func (e *Engine) FreezeAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return e.mutateAccount(ctx, id, func(a *account.Account, now time.Time) error { return a.Freeze(now) })
}

// UnfreezeAccount moves an account FROZEN -> ACTIVE.
func (e *Engine) UnfreezeAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return e.mutateAccount(ctx, id, func(a *account.Account, now time.Time) error { return a.Unfreeze(now) })
}

// CloseAccount requires a zero balance and moves the account to CLOSED.
func (e *Engine) CloseAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return e.mutateAccount(ctx, id, func(a *account.Account, now time.Time) error { return a.Close(now) })
}

// mutateAccount is the shared shape for every single-account lifecycle
// operation: lock, mutate, persist, outbox-write, commit, release.
func (e *Engine) mutateAccount(ctx context.Context, id uuid.UUID, mutate func(a *account.Account, now time.Time) error) (*account.Account, error) {
	now := e.clock.Now()
	var a *account.Account

	err := e.repos.TxManager.Transactional(ctx, func(ctx context.Context) error {
		locked, err := e.repos.Accounts.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(locked, now); err != nil {
			return err
		}
		if err := e.repos.Accounts.Save(ctx, locked); err != nil {
			return err
		}
		if err := e.writeOutbox(ctx, accountEvents(locked.PeekEvents())); err != nil {
			return err
		}
		a = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.dispatchReleased(ctx, accountEvents(a.ReleaseEvents()))
	return a, nil
}

// TransferRequest is the input to ExecuteTransfer, already shape-validated at
// the HTTP boundary except for the checks this method repeats defensively.
type TransferRequest struct {
	IdempotencyKey  string
	RequestBody     []byte
	Reference       transfer.Reference
	SourceAccountID uuid.UUID
	DestinationID   uuid.UUID
	Amount          money.Balance
	Description     string
}

// TransferResult is what ExecuteTransfer returns to the caller. On success
// only the transfer's ID is cached under the idempotency key (see
// cachedTransferResult); a replay re-reads the transfer by that ID.
type TransferResult struct {
	Transfer *transfer.Transfer
}

// ExecuteTransfer is the heart of the engine: idempotent, deadlock-free,
// atomic money movement between two accounts.
func (e *Engine) ExecuteTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	ctx, endSpan := telemetry.StartSpan(ctx, "ExecuteTransfer")
	defer endSpan()
	now := e.clock.Now()

	// 1. Idempotency pre-check.
	fingerprint, err := idempotency.Fingerprint(req.RequestBody)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ValidationError, "malformed request body", err)
	}
	reservation, err := e.repos.Idempotency.Reserve(ctx, req.IdempotencyKey, fingerprint, now)
	if err != nil {
		return nil, err
	}
	switch reservation.Outcome {
	case idempotency.ReservedExisting:
		if reservation.Existing.Status == idempotency.StatusCompleted {
			var cached cachedTransferResult
			if err := json.Unmarshal(reservation.Existing.ResponseBody, &cached); err != nil {
				return nil, apperrors.Wrap(apperrors.ValidationError, "corrupt cached idempotency response", err)
			}
			existing, err := e.repos.Transfers.GetByID(ctx, cached.TransferID)
			if err != nil {
				return nil, err
			}
			return &TransferResult{Transfer: existing}, nil
		}
		return nil, apperrors.New(apperrors.RequestInProgress, "a request with this idempotency key is already in flight")
	case idempotency.ReservedConflict:
		return nil, apperrors.New(apperrors.IdempotencyKeyConflict, "idempotency key reused with a different request body")
	}

	// 2. Validate shape.
	if req.SourceAccountID == req.DestinationID {
		return nil, apperrors.New(apperrors.ValidationError, "source and destination account must differ")
	}
	if req.Amount.AmountMinorUnits <= 0 {
		return nil, apperrors.New(apperrors.ValidationError, "transfer amount must be greater than zero")
	}

	// From here on the caller's cancellation is ignored: the transaction runs
	// to commit or rollback, and the reservation is completed or deleted,
	// even if the client has gone away.
	ctx = context.WithoutCancel(ctx)
	result, err := e.executeTransferLocked(ctx, req, now)
	if err != nil {
		// Commit (or an earlier step) failed: free the reservation so the
		// client is free to retry.
		_ = e.repos.Idempotency.Delete(ctx, req.IdempotencyKey)
		return nil, err
	}

	if body, marshalErr := json.Marshal(cachedTransferResult{TransferID: result.Transfer.ID}); marshalErr == nil {
		_ = e.repos.Idempotency.Complete(ctx, req.IdempotencyKey, 200, body)
	}
	return result, nil
}

// cachedTransferResult is the small, stable payload stored under the
// idempotency key -- the full TransferDTO is re-fetched on replay rather
// than round-tripped through JSON, so its shape can evolve independently.
type cachedTransferResult struct {
	TransferID uuid.UUID `json:"transferId"`
}

func (e *Engine) executeTransferLocked(ctx context.Context, req TransferRequest, now time.Time) (*TransferResult, error) {
	var result *TransferResult
	var pendingRelease []outbox.AggregateEvent

	err := e.repos.TxManager.Transactional(ctx, func(ctx context.Context) error {
		// 4. Reference dedup: an existing transfer for this (source, reference)
		// short-circuits the whole operation -- the transport-layer retry path.
		if existing, err := e.repos.Transfers.FindByReference(ctx, req.SourceAccountID, req.Reference); err == nil && existing != nil {
			result = &TransferResult{Transfer: existing}
			return nil
		}

		t, err := transfer.Create(req.Reference, req.SourceAccountID, req.DestinationID, req.Amount, req.Description, now)
		if err != nil {
			return err
		}

		// 5. Lock accounts in canonical lexicographic order -- the sole
		// deadlock-avoidance mechanism; every two-account path must use it.
		firstID, secondID := canonicalLockOrder(req.SourceAccountID, req.DestinationID)
		first, err := e.repos.Accounts.GetByIDForUpdate(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := e.repos.Accounts.GetByIDForUpdate(ctx, secondID)
		if err != nil {
			return err
		}

		// 6. Re-bind to source/destination; the sort above was for locking only.
		var source, dest *account.Account
		if first.ID == req.SourceAccountID {
			source, dest = first, second
		} else {
			source, dest = second, first
		}

		// 7.
		if err := t.MarkProcessing(now); err != nil {
			return err
		}

		// 8. Validate both accounts before mutating either -- a domain
		// failure here becomes a FAILED transfer, never a partial debit.
		// ACCOUNT_NOT_FOUND never reaches this point: GetByIDForUpdate
		// already failed the transaction above for a missing account.
		if opErr := validateTransferPreconditions(source, dest, req.Amount); opErr != nil {
			kind, ok := apperrors.KindOf(opErr)
			if !ok {
				kind = apperrors.ValidationError
			}
			if err := t.MarkFailed(kind, opErr.Error(), now); err != nil {
				return err
			}

			// Neither account moved, so only the FAILED transfer is
			// persisted -- saving source/dest here would trip the
			// adapters' optimistic version check on the untouched one
			// and wrongly abort the transaction.
			if err := e.repos.Transfers.Save(ctx, t); err != nil {
				return err
			}
			if err := e.writeOutbox(ctx, transferEvents(t.PeekEvents())); err != nil {
				return err
			}
			pendingRelease = append(pendingRelease, transferEvents(t.ReleaseEvents())...)
			result = &TransferResult{Transfer: t}
			return nil
		}

		if err := source.Debit(req.Amount, t.ID, account.TransferTypeTransfer, dest.ID, now); err != nil {
			return err
		}
		if err := dest.Credit(req.Amount, t.ID, account.TransferTypeTransfer, source.ID, now); err != nil {
			return err
		}

		// 9. Append ledger entries built from the events just emitted.
		debitEvt := lastDebit(source.PeekEvents())
		creditEvt := lastCredit(dest.PeekEvents())
		debitEntryID, err := uuid.NewV7()
		if err != nil {
			return err
		}
		creditEntryID, err := uuid.NewV7()
		if err != nil {
			return err
		}
		entries := []ledger.Entry{ledger.FromDebit(debitEntryID, debitEvt), ledger.FromCredit(creditEntryID, creditEvt)}

		if err := t.MarkCompleted(now); err != nil {
			return err
		}

		// 10. Persist accounts (version-checked by the adapter) and transfer.
		if err := e.repos.Accounts.Save(ctx, source); err != nil {
			return err
		}
		if err := e.repos.Accounts.Save(ctx, dest); err != nil {
			return err
		}
		if err := e.repos.Transfers.Save(ctx, t); err != nil {
			return err
		}
		for _, entry := range entries {
			if err := e.repos.Ledger.Append(ctx, entry); err != nil {
				return err
			}
		}

		// 11. Outbox write, same transaction, tagged per aggregate.
		if err := e.writeOutbox(ctx, accountEvents(source.PeekEvents())); err != nil {
			return err
		}
		if err := e.writeOutbox(ctx, accountEvents(dest.PeekEvents())); err != nil {
			return err
		}
		if err := e.writeOutbox(ctx, transferEvents(t.PeekEvents())); err != nil {
			return err
		}

		pendingRelease = append(pendingRelease, accountEvents(source.ReleaseEvents())...)
		pendingRelease = append(pendingRelease, accountEvents(dest.ReleaseEvents())...)
		pendingRelease = append(pendingRelease, transferEvents(t.ReleaseEvents())...)
		result = &TransferResult{Transfer: t}
		return nil
	})
	if err != nil {
		if kind, ok := apperrors.KindOf(err); ok && kind == apperrors.DuplicateTransferRef {
			// 4 (race variant): a concurrent first-time request for this
			// (source, reference) won the insert while we were still
			// validating; load and return what it persisted instead of
			// surfacing the conflict, matching the non-racing dedup path
			// above.
			if existing, findErr := e.repos.Transfers.FindByReference(ctx, req.SourceAccountID, req.Reference); findErr == nil && existing != nil {
				return &TransferResult{Transfer: existing}, nil
			}
		}
		return nil, err
	}

	// 13. Post-commit: dispatch released events to in-process subscribers.
	e.dispatchReleased(ctx, pendingRelease)
	return result, nil
}

// ReverseTransfer undoes a COMPLETED transfer: it credits back the source
// and debits the destination, then marks the original REVERSED. It follows
// ExecuteTransfer's shape (canonical lock order, same-transaction outbox
// write) but needs no idempotency reservation of its own -- reversal is an
// operator action, not a client-retried request.
func (e *Engine) ReverseTransfer(ctx context.Context, originalTransferID uuid.UUID) (*transfer.Transfer, error) {
	now := e.clock.Now()
	var original *transfer.Transfer
	var pendingRelease []outbox.AggregateEvent

	err := e.repos.TxManager.Transactional(ctx, func(ctx context.Context) error {
		orig, err := e.repos.Transfers.GetByID(ctx, originalTransferID)
		if err != nil {
			return err
		}
		if orig.Status != transfer.StatusCompleted {
			return apperrors.New(apperrors.InvalidTransferState,
				"cannot reverse transfer "+orig.ID.String()+" in status "+string(orig.Status))
		}

		reversal, err := transfer.Create(orig.Reference+"-reversal", orig.DestinationAccountID, orig.SourceAccountID,
			orig.Amount, "reversal of "+orig.ID.String(), now)
		if err != nil {
			return err
		}

		firstID, secondID := canonicalLockOrder(orig.SourceAccountID, orig.DestinationAccountID)
		first, err := e.repos.Accounts.GetByIDForUpdate(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := e.repos.Accounts.GetByIDForUpdate(ctx, secondID)
		if err != nil {
			return err
		}
		var source, dest *account.Account
		if first.ID == orig.SourceAccountID {
			source, dest = first, second
		} else {
			source, dest = second, first
		}

		if err := reversal.MarkProcessing(now); err != nil {
			return err
		}

		// Money flows back: credit the original source, debit the original
		// destination.
		if err := dest.Debit(orig.Amount, reversal.ID, account.TransferTypeReversal, source.ID, now); err != nil {
			return err
		}
		if err := source.Credit(orig.Amount, reversal.ID, account.TransferTypeReversal, dest.ID, now); err != nil {
			return err
		}
		if err := reversal.MarkCompleted(now); err != nil {
			return err
		}
		if err := orig.MarkReversed(reversal.ID, now); err != nil {
			return err
		}

		debitEvt := lastDebit(dest.PeekEvents())
		creditEvt := lastCredit(source.PeekEvents())
		debitEntryID, err := uuid.NewV7()
		if err != nil {
			return err
		}
		creditEntryID, err := uuid.NewV7()
		if err != nil {
			return err
		}

		if err := e.repos.Accounts.Save(ctx, source); err != nil {
			return err
		}
		if err := e.repos.Accounts.Save(ctx, dest); err != nil {
			return err
		}
		if err := e.repos.Transfers.Save(ctx, reversal); err != nil {
			return err
		}
		if err := e.repos.Transfers.Save(ctx, orig); err != nil {
			return err
		}
		if err := e.repos.Ledger.Append(ctx, ledger.FromDebit(debitEntryID, debitEvt)); err != nil {
			return err
		}
		if err := e.repos.Ledger.Append(ctx, ledger.FromCredit(creditEntryID, creditEvt)); err != nil {
			return err
		}

		if err := e.writeOutbox(ctx, accountEvents(source.PeekEvents())); err != nil {
			return err
		}
		if err := e.writeOutbox(ctx, accountEvents(dest.PeekEvents())); err != nil {
			return err
		}
		if err := e.writeOutbox(ctx, transferEvents(reversal.PeekEvents())); err != nil {
			return err
		}
		if err := e.writeOutbox(ctx, transferEvents(orig.PeekEvents())); err != nil {
			return err
		}

		pendingRelease = append(pendingRelease, accountEvents(source.ReleaseEvents())...)
		pendingRelease = append(pendingRelease, accountEvents(dest.ReleaseEvents())...)
		pendingRelease = append(pendingRelease, transferEvents(reversal.ReleaseEvents())...)
		pendingRelease = append(pendingRelease, transferEvents(orig.ReleaseEvents())...)
		original = orig
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.dispatchReleased(ctx, pendingRelease)
	return original, nil
}

// validateTransferPreconditions checks everything Debit/Credit would check
// -- status, currency, funds -- without mutating either account, so a
// domain failure can become a FAILED transfer without first having to undo
// a partial debit. Mirrors account.Account.Debit/Credit's own checks.
func validateTransferPreconditions(source, dest *account.Account, amount money.Balance) error {
	if source.Status != account.StatusActive {
		return apperrors.New(apperrors.InvalidAccountState,
			"account "+source.ID.String()+" is "+string(source.Status)+", not ACTIVE")
	}
	if dest.Status != account.StatusActive {
		return apperrors.New(apperrors.InvalidAccountState,
			"account "+dest.ID.String()+" is "+string(dest.Status)+", not ACTIVE")
	}
	if !source.Balance.SameCurrency(amount) {
		return apperrors.New(apperrors.CurrencyMismatch,
			"transfer currency "+string(amount.Currency)+" does not match source account currency "+string(source.Balance.Currency))
	}
	if !dest.Balance.SameCurrency(amount) {
		return apperrors.New(apperrors.CurrencyMismatch,
			"transfer currency "+string(amount.Currency)+" does not match destination account currency "+string(dest.Balance.Currency))
	}
	if !source.Balance.GreaterOrEqual(amount) {
		return apperrors.New(apperrors.InsufficientFunds,
			"balance "+source.Balance.String()+" insufficient for transfer of "+amount.String())
	}
	return nil
}

// canonicalLockOrder returns a, b sorted by lexicographic string comparison
// of their canonical UUID form, so any two callers locking the same pair of
// accounts acquire locks in the same total order regardless of request
// direction.
func canonicalLockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	ids := []uuid.UUID{a, b}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids[0], ids[1]
}

func lastDebit(events []account.Event) account.AccountDebited {
	for i := len(events) - 1; i >= 0; i-- {
		if d, ok := events[i].(account.AccountDebited); ok {
			return d
		}
	}
	return account.AccountDebited{}
}

func lastCredit(events []account.Event) account.AccountCredited {
	for i := len(events) - 1; i >= 0; i-- {
		if c, ok := events[i].(account.AccountCredited); ok {
			return c
		}
	}
	return account.AccountCredited{}
}

// accountEvents adapts []account.Event to []outbox.AggregateEvent; both
// interfaces have an identical method set but are distinct defined types,
// so the conversion has to walk the slice.
func accountEvents(events []account.Event) []outbox.AggregateEvent {
	out := make([]outbox.AggregateEvent, len(events))
	for i, evt := range events {
		out[i] = evt
	}
	return out
}

func transferEvents(events []transfer.Event) []outbox.AggregateEvent {
	out := make([]outbox.AggregateEvent, len(events))
	for i, evt := range events {
		out[i] = evt
	}
	return out
}

// writeOutbox serializes every pending event into the outbox repository.
// Callers must be inside the active transaction; the adapter rejects calls
// otherwise with apperrors.OutboxOutsideTransaction.
func (e *Engine) writeOutbox(ctx context.Context, events []outbox.AggregateEvent) error {
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			return apperrors.Wrap(apperrors.ValidationError, "failed to serialize event payload", err)
		}
		row, err := outbox.New(evt, payload, e.clock.Now())
		if err != nil {
			return err
		}
		if err := e.repos.Outbox.Save(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// dispatchReleased hands released events to the in-process publisher
// (metrics, tracing). Per SPEC_FULL §4.4 step 13, failures here are the
// publisher's problem to log; they never affect the caller's response.
func (e *Engine) dispatchReleased(ctx context.Context, events []outbox.AggregateEvent) {
	if e.repos.Publisher == nil || len(events) == 0 {
		return
	}
	e.repos.Publisher.Publish(ctx, events)
}

// GetAccount is a plain read, outside any transaction -- the HTTP adapter's
// GET /accounts/:id.
func (e *Engine) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return e.repos.Accounts.GetByID(ctx, id)
}

// GetTransfer is the HTTP adapter's GET /transfers/:id.
func (e *Engine) GetTransfer(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	return e.repos.Transfers.GetByID(ctx, id)
}

// ListTransfers is the HTTP adapter's GET /transfers, filtered by status
// and/or account and offset-paginated per SPEC_FULL §6.
func (e *Engine) ListTransfers(ctx context.Context, filter transfer.Filter, page transfer.Page) (transfer.Paginated, error) {
	return e.repos.Transfers.FindByFilters(ctx, filter, page)
}

// GetLedger is the HTTP adapter's GET /accounts/:id/ledger, a keyset-paginated
// walk of one account's append-only entries, newest first.
func (e *Engine) GetLedger(ctx context.Context, accountID uuid.UUID, page ledger.Page) ([]ledger.Entry, error) {
	if _, err := e.repos.Accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	return e.repos.Ledger.FindByAccountID(ctx, accountID, page)
}
