// Package routes wires the HTTP surface's endpoint table, generalized from
// the teacher's single banking-app route list to the account/transfer/
// reconciliation surface SPEC_FULL §6 describes.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coreledger/engine/internal/api/handlers"
	"github.com/coreledger/engine/internal/api/middleware"
	"github.com/coreledger/engine/internal/config"
)

// Register installs middleware and every route on router.
func Register(router *gin.Engine, deps handlers.Dependencies, cors config.CORSConfig, rateLimit config.RateLimitConfig) {
	router.Use(middleware.CORS(cors))
	router.Use(middleware.Prometheus())
	router.Use(middleware.RateLimit(rateLimit))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	accounts := router.Group("/accounts")
	{
		accounts.POST("", handlers.MakeOpenAccountHandler(deps))
		accounts.GET("/:id", handlers.MakeGetAccountHandler(deps))
		accounts.POST("/:id/freeze", handlers.MakeFreezeAccountHandler(deps))
		accounts.POST("/:id/unfreeze", handlers.MakeUnfreezeAccountHandler(deps))
		accounts.POST("/:id/close", handlers.MakeCloseAccountHandler(deps))
		accounts.GET("/:id/ledger", handlers.MakeGetLedgerHandler(deps))
	}

	transfers := router.Group("/transfers")
	{
		transfers.POST("", handlers.MakeCreateTransferHandler(deps))
		transfers.GET("", handlers.MakeListTransfersHandler(deps))
		transfers.GET("/:id", handlers.MakeGetTransferHandler(deps))
		transfers.POST("/:id/reverse", handlers.MakeReverseTransferHandler(deps))
	}
}
