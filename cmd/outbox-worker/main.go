// cmd/outbox-worker is the publish side of the transactional outbox: a
// standalone process that, while holding the Redis single-leader lease,
// polls outbox_events and ships due rows to Kafka. Grounded on
// SimonKvalheim-hm9-banking/cmd/worker/main.go's connect-db/connect-redis/
// run-until-signal shape.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coreledger/engine/internal/bootstrap"
	"github.com/coreledger/engine/internal/clock"
	"github.com/coreledger/engine/internal/config"
	"github.com/coreledger/engine/internal/logging"
	"github.com/coreledger/engine/internal/transport/kafka"
	redislease "github.com/coreledger/engine/internal/transport/redis"
	"github.com/coreledger/engine/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutdown signal received, stopping outbox worker", nil)
		cancel()
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	backend, err := bootstrap.Open(connectCtx, cfg)
	connectCancel()
	if err != nil {
		log.Error("failed to open storage backend", err, nil)
		os.Exit(1)
	}
	defer backend.Close()

	producer, err := kafka.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Error("failed to initialize kafka producer", err, nil)
		os.Exit(1)
	}
	defer producer.Close()

	publisher := worker.NewPublisher(backend.Repos.Outbox, producer, clock.Real(), log, cfg.Outbox.BatchSize)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	lease := redislease.NewLease(redisClient, cfg.Redis, log)

	log.Info("outbox worker started", logging.Fields{
		"poll_interval": cfg.Outbox.PollInterval.String(),
		"batch_size":    cfg.Outbox.BatchSize,
	})

	var workerCtx context.Context
	var workerCancel context.CancelFunc
	lease.RunWhileLeader(ctx,
		func() {
			workerCtx, workerCancel = context.WithCancel(ctx)
			go publisher.Run(workerCtx, cfg.Outbox.PollInterval)
		},
		func() {
			if workerCancel != nil {
				workerCancel()
			}
		},
	)

	if workerCancel != nil {
		workerCancel()
	}
	log.Info("outbox worker stopped", nil)
}
