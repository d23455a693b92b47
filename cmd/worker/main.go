package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/app"
	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var accounts account.AccountStore
	switch cfg.StoreBackend {
	case app.StoreBackendMemory:
		accounts = account.NewMemoryAccountStore()
	default:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		accounts = account.NewPGAccountStore(pool)
	}

	sweepTask, err := jobs.NewBanSweepTask(jobs.BanSweepPayload{})
	if err != nil {
		logger.Error("build ban sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		BanSweep:  jobs.NewBanSweepJob(accounts, logger),
		Cron: []jobs.CronRegistration{
			{Spec: "@every " + cfg.BanSweepInterval.String(), Task: sweepTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
