// Package handlers adapts internal/engine's use cases to gin, the same
// closure-over-dependencies shape the teacher's src/handlers package used
// (MakeXHandler(deps) gin.HandlerFunc) generalized from a single global
// db.InMemory to a Dependencies value that holds only the engine.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	api "github.com/coreledger/engine/internal/api"
	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/money"
	"github.com/coreledger/engine/internal/engine"
)

// Dependencies is the handler package's only dependency: the engine itself.
// Handlers never see a repository or the database directly.
type Dependencies struct {
	Engine *engine.Engine
}

// writeError maps an apperrors.Error to its HTTP status and a small JSON
// body; anything that isn't an *apperrors.Error is treated as an
// unexpected infrastructure failure (500), matching SPEC_FULL §7's
// propagation policy.
func writeError(c *gin.Context, err error) {
	kind, ok := apperrors.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(apperrors.HTTPStatus(kind), gin.H{
		"code":    kind,
		"message": err.Error(),
	})
}

// MakeOpenAccountHandler handles POST /accounts.
func MakeOpenAccountHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body api.OpenAccountBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		acc, err := deps.Engine.OpenAccount(c.Request.Context(), engine.OpenAccountRequest{
			OwnerName: body.OwnerName,
			Currency:  money.Currency(body.Currency),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, api.NewAccountResponse(acc))
	}
}

// MakeGetAccountHandler handles GET /accounts/:id.
func MakeGetAccountHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := api.ParseUUID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
			return
		}
		acc, err := deps.Engine.GetAccount(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, api.NewAccountResponse(acc))
	}
}

// MakeFreezeAccountHandler handles POST /accounts/:id/freeze.
func MakeFreezeAccountHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := api.ParseUUID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
			return
		}
		acc, err := deps.Engine.FreezeAccount(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, api.NewAccountResponse(acc))
	}
}

// MakeUnfreezeAccountHandler handles POST /accounts/:id/unfreeze.
func MakeUnfreezeAccountHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := api.ParseUUID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
			return
		}
		acc, err := deps.Engine.UnfreezeAccount(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, api.NewAccountResponse(acc))
	}
}

// MakeCloseAccountHandler handles POST /accounts/:id/close.
func MakeCloseAccountHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := api.ParseUUID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
			return
		}
		acc, err := deps.Engine.CloseAccount(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, api.NewAccountResponse(acc))
	}
}

// MakeGetLedgerHandler handles GET /accounts/:id/ledger.
func MakeGetLedgerHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := api.ParseUUID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
			return
		}
		_, perPage := pageParams(c)
		entries, err := deps.Engine.GetLedger(c.Request.Context(), id, ledgerPage(perPage))
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]api.LedgerEntryResponse, len(entries))
		for i, e := range entries {
			out[i] = api.NewLedgerEntryResponse(e)
		}
		c.JSON(http.StatusOK, gin.H{"entries": out})
	}
}

// readBody consumes and returns the raw request body so engine.TransferRequest
// can fingerprint it verbatim -- handlers never re-serialize the parsed
// struct, since re-marshaling could reorder fields and change the hash.
func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(c.Request.Body)
}
