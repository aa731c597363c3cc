package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/alert"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/repository"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/scheduler"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/db"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	jobs, err := gocron.NewScheduler()
	if err != nil {
		log.Error("failed to create job scheduler", "error", err)
		panic("failed to create job scheduler: " + err.Error())
	}
	cleanup := scheduler.NewSearchSessionCleanup(repository.New(pool), log, cfg.GetSearchCleanupInterval(), cfg.GetSearchSessionTTL())
	if err := cleanup.Register(ctx, jobs); err != nil {
		log.Error("failed to register search session cleanup", "error", err)
		panic("failed to register search session cleanup: " + err.Error())
	}
	jobs.Start()
	defer func() {
		if err := jobs.Shutdown(); err != nil {
			log.Warn("job scheduler shutdown failed", "error", err)
		}
	}()

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; alert worker disabled")
		<-ctx.Done()
		return
	}

	var notifier scheduler.AlertNotifier
	if n := alert.NewNotifier(cfg, log); n != nil {
		notifier = n
	} else {
		log.Warn("SLACK_BOT_TOKEN or SLACK_CHANNEL_ID not configured; alerts are only logged")
	}

	worker, err := scheduler.NewWorker(cfg, notifier, log)
	if err != nil {
		log.Error("failed to initialize alert worker", "error", err)
		panic("failed to initialize alert worker: " + err.Error())
	}

	log.Info("alert worker running", "queue", cfg.GetAsynqQueueName())
	worker.Run(ctx)
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
