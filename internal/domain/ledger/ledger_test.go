package ledger_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/ledger"
	"github.com/coreledger/engine/internal/domain/money"
)

func TestSignedAmount(t *testing.T) {
	debit := ledger.Entry{EntryType: ledger.EntryTypeDebit, AmountMinorUnits: 250}
	credit := ledger.Entry{EntryType: ledger.EntryTypeCredit, AmountMinorUnits: 250}

	if debit.SignedAmount() != -250 {
		t.Fatalf("expected -250, got %d", debit.SignedAmount())
	}
	if credit.SignedAmount() != 250 {
		t.Fatalf("expected 250, got %d", credit.SignedAmount())
	}
}

func TestFromDebitCreditPairMatch(t *testing.T) {
	now := time.Now().UTC()
	transferID := uuid.New()
	source := uuid.New()
	dest := uuid.New()
	amount, _ := money.New(250, money.USD)

	debitEvt := account.AccountDebited{
		AccountID: source, Amount: amount, BalanceAfter: money.Balance{AmountMinorUnits: 750, Currency: money.USD},
		TransferID: transferID, TransferType: account.TransferTypeTransfer, Counterparty: dest, OccurredAt: now,
	}
	creditEvt := account.AccountCredited{
		AccountID: dest, Amount: amount, BalanceAfter: money.Balance{AmountMinorUnits: 250, Currency: money.USD},
		TransferID: transferID, TransferType: account.TransferTypeTransfer, Counterparty: source, OccurredAt: now,
	}

	debitEntry := ledger.FromDebit(uuid.New(), debitEvt)
	creditEntry := ledger.FromCredit(uuid.New(), creditEvt)

	if debitEntry.AmountMinorUnits != creditEntry.AmountMinorUnits {
		t.Fatalf("debit/credit amounts must match")
	}
	if debitEntry.TransferID != creditEntry.TransferID {
		t.Fatalf("debit/credit transfer IDs must match")
	}
	if debitEntry.Currency != creditEntry.Currency {
		t.Fatalf("debit/credit currencies must match")
	}
}

func TestPageClamped(t *testing.T) {
	if p := (ledger.Page{PerPage: 0}).Clamped(); p.PerPage != 1 {
		t.Fatalf("expected clamp to 1, got %d", p.PerPage)
	}
	if p := (ledger.Page{PerPage: 10000}).Clamped(); p.PerPage != 500 {
		t.Fatalf("expected clamp to 500, got %d", p.PerPage)
	}
}
