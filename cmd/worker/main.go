package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/pagegate/internal/config"
	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/queue"
	"github.com/nikhilbhutani/pagegate/internal/queue/workers"
	"github.com/nikhilbhutani/pagegate/internal/rules"
	"github.com/nikhilbhutani/pagegate/internal/store"
)

const concurrency = 4

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logging.Configure(cfg.Log.Env, cfg.Log.Level); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	logger := logging.Default()
	defer logger.Sync()

	st, err := store.Open(context.Background(), cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	srv := asynq.NewServer(queue.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
	})

	registry := queue.NewHandlersRegistry(logger)
	heartbeat := workers.NewHeartbeatWorker(rules.NewGateway(st, cfg.Database.QueryTimeout, logger))
	registry.Register(queue.TypeHeartbeatTouch, asynq.HandlerFunc(heartbeat.ProcessTask))

	logger.Info(map[string]any{"concurrency": concurrency}, "starting worker")
	if err := srv.Run(registry.Mux()); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}
