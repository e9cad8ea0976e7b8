package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coreledger/engine/internal/domain/ledger"
	"github.com/coreledger/engine/internal/domain/transfer"
)

// pageParams reads ?page=&perPage= with the same defaults the teacher's
// handlers used for list endpoints; clamping happens downstream in the
// domain packages' Page.Clamped, per SPEC_FULL §6. The ledger statement is
// keyset-paged (ledger.Page carries no page number), so only perPage
// applies to it and it always returns the newest entries.
func pageParams(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("perPage", "20"))
	return page, perPage
}

func ledgerPage(perPage int) ledger.Page {
	return ledger.Page{PerPage: perPage}.Clamped()
}

func transferPage(page, perPage int) transfer.Page {
	return transfer.Page{Page: page, PerPage: perPage}.Clamped()
}
