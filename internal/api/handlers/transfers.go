package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	api "github.com/coreledger/engine/internal/api"
	"github.com/coreledger/engine/internal/domain/money"
	"github.com/coreledger/engine/internal/domain/transfer"
	"github.com/coreledger/engine/internal/engine"
)

// MakeCreateTransferHandler handles POST /transfers. The Idempotency-Key
// header is required -- the engine enforces exactly-once semantics keyed
// on it plus a fingerprint of the raw request body (SPEC_FULL §4.5).
func MakeCreateTransferHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
			return
		}

		raw, err := readBody(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		var body api.CreateTransferBody
		if err := bindJSON(raw, &body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sourceID, err := api.ParseUUID(body.SourceAccountID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sourceAccountId"})
			return
		}
		destID, err := api.ParseUUID(body.DestinationAccountID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid destinationAccountId"})
			return
		}
		amount, err := money.New(body.AmountMinorUnits, money.Currency(body.Currency))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := deps.Engine.ExecuteTransfer(c.Request.Context(), engine.TransferRequest{
			IdempotencyKey:  idempotencyKey,
			RequestBody:     raw,
			Reference:       transfer.Reference(body.Reference),
			SourceAccountID: sourceID,
			DestinationID:   destID,
			Amount:          amount,
			Description:     body.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, api.NewTransferResponse(result.Transfer))
	}
}

// MakeGetTransferHandler handles GET /transfers/:id.
func MakeGetTransferHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := api.ParseUUID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transfer id"})
			return
		}
		t, err := deps.Engine.GetTransfer(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, api.NewTransferResponse(t))
	}
}

// MakeListTransfersHandler handles GET /transfers?status=&accountId=&page=&perPage=.
func MakeListTransfersHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter transfer.Filter
		if s := c.Query("status"); s != "" {
			status := transfer.Status(s)
			filter.Status = &status
		}
		if a := c.Query("accountId"); a != "" {
			id, err := api.ParseUUID(a)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid accountId"})
				return
			}
			filter.AccountID = &id
		}

		page, perPage := pageParams(c)
		result, err := deps.Engine.ListTransfers(c.Request.Context(), filter, transferPage(page, perPage))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, api.NewTransferListResponse(result))
	}
}

// MakeReverseTransferHandler handles POST /transfers/:id/reverse. This is an
// operator action, not exposed behind an idempotency key, per the engine's
// ReverseTransfer doc comment.
func MakeReverseTransferHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := api.ParseUUID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transfer id"})
			return
		}
		reversal, err := deps.Engine.ReverseTransfer(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, api.NewTransferResponse(reversal))
	}
}
