package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhilbhutani/pagegate/internal/api"
	"github.com/nikhilbhutani/pagegate/internal/api/handlers"
	"github.com/nikhilbhutani/pagegate/internal/audit"
	"github.com/nikhilbhutani/pagegate/internal/cache"
	"github.com/nikhilbhutani/pagegate/internal/config"
	"github.com/nikhilbhutani/pagegate/internal/decision"
	"github.com/nikhilbhutani/pagegate/internal/judge"
	"github.com/nikhilbhutani/pagegate/internal/llm"
	"github.com/nikhilbhutani/pagegate/internal/logging"
	"github.com/nikhilbhutani/pagegate/internal/policy"
	"github.com/nikhilbhutani/pagegate/internal/queue"
	"github.com/nikhilbhutani/pagegate/internal/rules"
	"github.com/nikhilbhutani/pagegate/internal/store"
)

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

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ruleGW := rules.NewGateway(st, cfg.Database.QueryTimeout, logger)

	var auditStore audit.Store
	if cfg.Audit.Enabled {
		auditStore = st
	}

	pipeline := decision.NewPipeline(
		ruleGW,
		policy.NewTable(cfg.Policy.InfraDomains),
		judge.New(llm.NewGateway(cfg.LLM, logger), cfg.Judge, logger),
		audit.NewRecorder(auditStore, cfg.Audit.WriteTimeout, logger),
		logger,
	)

	deps := api.Deps{
		Pipeline: pipeline,
		Rules:    ruleGW,
		Checks:   map[string]handlers.Pinger{"database": st},
	}

	if cfg.Redis.Enabled {
		rdb := cache.NewClient(cfg.Redis)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(map[string]any{"error": err, "addr": cfg.Redis.Addr}, "redis unavailable at startup")
		}

		counter := cache.NewCounter(rdb, "pagegate:ratelimit:")
		deps.Limiter = counter
		deps.Checks["redis"] = counter

		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		deps.Heartbeats = qc
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(cfg, deps, logger).Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(map[string]any{"addr": cfg.Addr(), "driver": cfg.Database.Driver, "redis": cfg.Redis.Enabled}, "starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	logger.Info(nil, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(map[string]any{"error": err}, "server forced shutdown")
	}
	logger.Info(nil, "server stopped")
	return nil
}
