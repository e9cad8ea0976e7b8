package account_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/money"
)

func mustBalance(t *testing.T, amount int64, currency money.Currency) money.Balance {
	t.Helper()
	b, err := money.New(amount, currency)
	if err != nil {
		t.Fatalf("money.New: %v", err)
	}
	return b
}

func TestDebitCreditHappyPath(t *testing.T) {
	now := time.Now().UTC()
	acc := account.Open("Ada", money.Zero(money.USD), now)
	if err := acc.Credit(mustBalance(t, 1000, money.USD), uuid.New(), account.TransferTypeBootstrap, uuid.Nil, now); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if acc.Balance.AmountMinorUnits != 1000 {
		t.Fatalf("expected balance 1000, got %d", acc.Balance.AmountMinorUnits)
	}

	transferID := uuid.New()
	if err := acc.Debit(mustBalance(t, 250, money.USD), transferID, account.TransferTypeTransfer, uuid.New(), now); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if acc.Balance.AmountMinorUnits != 750 {
		t.Fatalf("expected balance 750, got %d", acc.Balance.AmountMinorUnits)
	}

	events := acc.PeekEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 pending events, got %d", len(events))
	}
	released := acc.ReleaseEvents()
	if len(released) != 2 {
		t.Fatalf("expected 2 released events, got %d", len(released))
	}
	if len(acc.PeekEvents()) != 0 {
		t.Fatalf("expected empty buffer after release")
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	now := time.Now().UTC()
	acc := account.Open("Ada", mustBalance(t, 100, money.USD), now)
	err := acc.Debit(mustBalance(t, 500, money.USD), uuid.New(), account.TransferTypeTransfer, uuid.New(), now)
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.InsufficientFunds {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}
	if acc.Balance.AmountMinorUnits != 100 {
		t.Fatalf("balance must be unchanged on failure, got %d", acc.Balance.AmountMinorUnits)
	}
}

func TestDebitCurrencyMismatch(t *testing.T) {
	now := time.Now().UTC()
	acc := account.Open("Ada", mustBalance(t, 100, money.USD), now)
	err := acc.Debit(mustBalance(t, 50, money.EUR), uuid.New(), account.TransferTypeTransfer, uuid.New(), now)
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.CurrencyMismatch {
		t.Fatalf("expected CurrencyMismatch, got %v", err)
	}
}

func TestDebitOnFrozenAccount(t *testing.T) {
	now := time.Now().UTC()
	acc := account.Open("Ada", mustBalance(t, 100, money.USD), now)
	if err := acc.Freeze(now); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	err := acc.Debit(mustBalance(t, 10, money.USD), uuid.New(), account.TransferTypeTransfer, uuid.New(), now)
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.InvalidAccountState {
		t.Fatalf("expected InvalidAccountState, got %v", err)
	}
}

func TestFreezeUnfreezeIsIdentity(t *testing.T) {
	now := time.Now().UTC()
	acc := account.Open("Ada", mustBalance(t, 100, money.USD), now)
	before := acc.Balance

	if err := acc.Freeze(now); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if err := acc.Unfreeze(now); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if acc.Status != account.StatusActive {
		t.Fatalf("expected ACTIVE after freeze/unfreeze, got %s", acc.Status)
	}
	if acc.Balance != before {
		t.Fatalf("balance changed across freeze/unfreeze")
	}
}

func TestDoubleFreezeFails(t *testing.T) {
	now := time.Now().UTC()
	acc := account.Open("Ada", money.Zero(money.USD), now)
	if err := acc.Freeze(now); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	err := acc.Freeze(now)
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.InvalidAccountState {
		t.Fatalf("expected InvalidAccountState on double freeze, got %v", err)
	}
}

func TestCloseRequiresZeroBalance(t *testing.T) {
	now := time.Now().UTC()
	acc := account.Open("Ada", mustBalance(t, 5, money.USD), now)
	err := acc.Close(now)
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.NonZeroBalanceOnClose {
		t.Fatalf("expected NonZeroBalanceOnClose, got %v", err)
	}
	if acc.Status != account.StatusActive {
		t.Fatalf("status must remain ACTIVE, got %s", acc.Status)
	}
}

func TestCloseThenMutateFails(t *testing.T) {
	now := time.Now().UTC()
	acc := account.Open("Ada", money.Zero(money.USD), now)
	if err := acc.Close(now); err != nil {
		t.Fatalf("close: %v", err)
	}
	if acc.ClosedAt == nil {
		t.Fatalf("expected ClosedAt to be set")
	}
	err := acc.Credit(mustBalance(t, 1, money.USD), uuid.New(), account.TransferTypeTransfer, uuid.New(), now)
	if kind, ok := apperrors.KindOf(err); !ok || kind != apperrors.InvalidAccountState {
		t.Fatalf("expected InvalidAccountState after close, got %v", err)
	}
}
