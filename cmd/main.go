package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/backend-scheduler/config"
	"github.com/angeloszaimis/backend-scheduler/internal/api"
	"github.com/angeloszaimis/backend-scheduler/internal/httpserver"
	"github.com/angeloszaimis/backend-scheduler/internal/policy"
	"github.com/angeloszaimis/backend-scheduler/internal/scheduler"
	"github.com/angeloszaimis/backend-scheduler/internal/store"
	"github.com/angeloszaimis/backend-scheduler/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, store.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, log)
	if err != nil {
		log.Error("Failed to connect to redis",
			slog.String("addr", cfg.Redis.Addr),
			slog.Any("err", err))
		os.Exit(1)
	}
	defer st.Close()

	sched := scheduler.New(st, log,
		scheduler.WithDefaultPolicy(defaultPolicy(log, cfg.Policy)))

	router := api.NewRouter(log, sched)

	srv, err := httpserver.New(cfg.Server.Address, router)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("scheduler listening", slog.String("address", cfg.Server.Address))

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting scheduler", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func defaultPolicy(logger *slog.Logger, cfg config.PolicyConfig) policy.Config {
	t := policy.Type(cfg.Type)
	if !policy.Known(t) {
		logger.Warn("Unknown policy type, defaulting to round_robin",
			slog.String("requested", cfg.Type))
		return policy.Default()
	}

	limit := cfg.Limit
	if limit < 1 {
		limit = 1
	}

	return policy.Config{Type: t, Limit: limit}
}
