// Package api holds the wire-format request/response shapes for the HTTP
// surface and the mapping functions between them and the domain types --
// kept separate from internal/api/handlers so the shapes can be reused by
// tests and, eventually, an SDK without importing gin.
package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/ledger"
	"github.com/coreledger/engine/internal/domain/money"
	"github.com/coreledger/engine/internal/domain/transfer"
)

type AccountResponse struct {
	ID               string     `json:"id"`
	OwnerName        string     `json:"ownerName"`
	AmountMinorUnits int64      `json:"amountMinorUnits"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	ClosedAt         *time.Time `json:"closedAt,omitempty"`
	Version          int        `json:"version"`
}

func NewAccountResponse(a *account.Account) AccountResponse {
	return AccountResponse{
		ID:               a.ID.String(),
		OwnerName:        a.OwnerName,
		AmountMinorUnits: a.Balance.AmountMinorUnits,
		Currency:         string(a.Balance.Currency),
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		ClosedAt:         a.ClosedAt,
		Version:          a.Version,
	}
}

type OpenAccountBody struct {
	OwnerName string `json:"ownerName" binding:"required"`
	Currency  string `json:"currency" binding:"required"`
}

type TransferResponse struct {
	ID                   string     `json:"id"`
	Reference            string     `json:"reference"`
	SourceAccountID       string     `json:"sourceAccountId"`
	DestinationAccountID  string     `json:"destinationAccountId"`
	AmountMinorUnits      int64      `json:"amountMinorUnits"`
	Currency              string     `json:"currency"`
	Description           string     `json:"description"`
	Status                string     `json:"status"`
	FailureCode           string     `json:"failureCode,omitempty"`
	FailureReason         string     `json:"failureReason,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
	FailedAt              *time.Time `json:"failedAt,omitempty"`
	ReversedAt             *time.Time `json:"reversedAt,omitempty"`
}

func NewTransferResponse(t *transfer.Transfer) TransferResponse {
	return TransferResponse{
		ID:                   t.ID.String(),
		Reference:            string(t.Reference),
		SourceAccountID:      t.SourceAccountID.String(),
		DestinationAccountID: t.DestinationAccountID.String(),
		AmountMinorUnits:     t.Amount.AmountMinorUnits,
		Currency:             string(t.Amount.Currency),
		Description:          t.Description,
		Status:               string(t.Status),
		FailureCode:          string(t.FailureCode),
		FailureReason:        t.FailureReason,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		CompletedAt:          t.CompletedAt,
		FailedAt:             t.FailedAt,
		ReversedAt:           t.ReversedAt,
	}
}

type CreateTransferBody struct {
	Reference            string `json:"reference" binding:"required"`
	SourceAccountID       string `json:"sourceAccountId" binding:"required"`
	DestinationAccountID  string `json:"destinationAccountId" binding:"required"`
	AmountMinorUnits      int64  `json:"amountMinorUnits" binding:"required"`
	Currency              string `json:"currency" binding:"required"`
	Description           string `json:"description"`
}

type TransferListResponse struct {
	Transfers []TransferResponse `json:"transfers"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PerPage   int                `json:"perPage"`
}

func NewTransferListResponse(p transfer.Paginated) TransferListResponse {
	out := make([]TransferResponse, len(p.Transfers))
	for i, t := range p.Transfers {
		out[i] = NewTransferResponse(t)
	}
	return TransferListResponse{Transfers: out, Total: p.Total, Page: p.Page, PerPage: p.PerPage}
}

type LedgerEntryResponse struct {
	ID                       string    `json:"id"`
	AccountID                string    `json:"accountId"`
	EntryType                string    `json:"entryType"`
	TransferType             string    `json:"transferType"`
	AmountMinorUnits         int64     `json:"amountMinorUnits"`
	Currency                 string    `json:"currency"`
	BalanceAfterMinorUnits   int64     `json:"balanceAfterMinorUnits"`
	TransferID               string    `json:"transferId"`
	CounterpartyAccountID    string    `json:"counterpartyAccountId"`
	OccurredAt               time.Time `json:"occurredAt"`
}

func NewLedgerEntryResponse(e ledger.Entry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:                     e.ID.String(),
		AccountID:              e.AccountID.String(),
		EntryType:              string(e.EntryType),
		TransferType:           string(e.TransferType),
		AmountMinorUnits:       e.AmountMinorUnits,
		Currency:               string(e.Currency),
		BalanceAfterMinorUnits: e.BalanceAfterMinorUnits,
		TransferID:             e.TransferID.String(),
		CounterpartyAccountID:  e.CounterpartyAccountID.String(),
		OccurredAt:             e.OccurredAt,
	}
}

// ParseUUID is a small helper so handlers don't each repeat the
// parse-or-400 boilerplate.
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
