// cmd/api is the HTTP surface process: it wires a repository backend, the
// transactional engine, and gin's router together and serves until a
// shutdown signal arrives, the same shape as the teacher's
// internal/pkg/components.Container.Start but built directly in main
// instead of behind a singleton container.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/coreledger/engine/internal/api/handlers"
	"github.com/coreledger/engine/internal/api/routes"
	"github.com/coreledger/engine/internal/bootstrap"
	"github.com/coreledger/engine/internal/clock"
	"github.com/coreledger/engine/internal/config"
	"github.com/coreledger/engine/internal/engine"
	"github.com/coreledger/engine/internal/logging"
	"github.com/coreledger/engine/internal/telemetry"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	backend, err := bootstrap.Open(ctx, cfg)
	cancel()
	if err != nil {
		log.Error("failed to open storage backend", err, nil)
		os.Exit(1)
	}
	defer backend.Close()

	shutdown, err := telemetry.InitTracing(context.Background(), "coreledger-api")
	if err != nil {
		log.Error("failed to init tracing", err, nil)
	} else {
		defer func() { _ = shutdown(context.Background()) }()
	}

	eng := engine.New(backend.Repos, clock.Real())

	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	routes.Register(router, handlers.Dependencies{Engine: eng}, cfg.CORS, cfg.RateLimit)

	handler := otelhttp.NewHandler(router, "coreledger-api")
	server := &http.Server{
		Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:        handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Info("starting HTTP server", logging.Fields{
		"address": server.Addr, "backend": cfg.Server.StorageBackend,
	})

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed to start", err, nil)
			os.Exit(1)
		}
	}()

	waitForShutdown(server, log)
}

func waitForShutdown(server *http.Server, log *logging.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", err, nil)
		return
	}
	fmt.Fprintln(os.Stdout, "server shutdown complete")
}
