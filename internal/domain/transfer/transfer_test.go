package transfer_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/money"
	"github.com/coreledger/engine/internal/domain/transfer"
)

func mustAmount(t *testing.T, minor int64) money.Balance {
	t.Helper()
	b, err := money.New(minor, money.USD)
	if err != nil {
		t.Fatalf("money.New: %v", err)
	}
	return b
}

func TestCreateRejectsSelfTransfer(t *testing.T) {
	id := uuid.New()
	_, err := transfer.Create("r1", id, id, mustAmount(t, 100), "", time.Now())
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.ValidationError {
		t.Fatalf("expected ValidationError for self-transfer, got %v", err)
	}
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	_, err := transfer.Create("r1", uuid.New(), uuid.New(), money.Zero(money.USD), "", time.Now())
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.ValidationError {
		t.Fatalf("expected ValidationError for zero amount, got %v", err)
	}
}

func TestHappyPathTransitions(t *testing.T) {
	now := time.Now()
	tr, err := transfer.Create("r1", uuid.New(), uuid.New(), mustAmount(t, 100), "", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tr.Status != transfer.StatusPending {
		t.Fatalf("expected PENDING, got %s", tr.Status)
	}
	if err := tr.MarkProcessing(now); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := tr.MarkCompleted(now); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if tr.CompletedAt == nil {
		t.Fatalf("expected CompletedAt to be set")
	}
	events := tr.ReleaseEvents()
	if len(events) != 1 || events[0].EventType() != "TransferCompleted" {
		t.Fatalf("expected single TransferCompleted event, got %v", events)
	}
}

func TestMarkFailedFromProcessing(t *testing.T) {
	now := time.Now()
	tr, _ := transfer.Create("r1", uuid.New(), uuid.New(), mustAmount(t, 100), "", now)
	if err := tr.MarkProcessing(now); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := tr.MarkFailed(apperrors.InsufficientFunds, "not enough", now); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if tr.Status != transfer.StatusFailed {
		t.Fatalf("expected FAILED, got %s", tr.Status)
	}
	if tr.FailureCode != apperrors.InsufficientFunds {
		t.Fatalf("expected InsufficientFunds, got %s", tr.FailureCode)
	}
}

func TestIllegalTransitionFails(t *testing.T) {
	now := time.Now()
	tr, _ := transfer.Create("r1", uuid.New(), uuid.New(), mustAmount(t, 100), "", now)
	err := tr.MarkCompleted(now)
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.InvalidTransferState {
		t.Fatalf("expected InvalidTransferState, got %v", err)
	}
}

func TestReversalOnlyFromCompleted(t *testing.T) {
	now := time.Now()
	tr, _ := transfer.Create("r1", uuid.New(), uuid.New(), mustAmount(t, 100), "", now)
	tr.MarkProcessing(now)
	tr.MarkCompleted(now)
	tr.ReleaseEvents()

	if err := tr.MarkReversed(uuid.New(), now); err != nil {
		t.Fatalf("mark reversed: %v", err)
	}
	if tr.Status != transfer.StatusReversed {
		t.Fatalf("expected REVERSED, got %s", tr.Status)
	}

	err := tr.MarkReversed(uuid.New(), now)
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.InvalidTransferState {
		t.Fatalf("expected InvalidTransferState on double reversal, got %v", err)
	}
}

func TestPageClamped(t *testing.T) {
	p := transfer.Page{Page: 0, PerPage: 1000}.Clamped()
	if p.Page != 1 || p.PerPage != 100 {
		t.Fatalf("expected (1,100), got (%d,%d)", p.Page, p.PerPage)
	}
}
