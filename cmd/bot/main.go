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

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/crm"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/estate"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/events"
	apphttp "github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/http"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/http/router"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/pipeline"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/postlink"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/prompts"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/repository"
	botrouter "github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/router"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/scheduler"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/telegram"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/webhook"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/ai/yandexgpt"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/db"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/telemetry"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/mmdev2003/real-estate-ai-tg-bot-sub001"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting bot", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	migrator := db.NewMigrator(cfg)
	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return migrator.Up(ctx)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	var rdb redis.Cmdable
	redisClient, err := db.NewRedis(ctx, cfg)
	switch {
	case err != nil:
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	case redisClient == nil:
		log.Warn("REDIS_URL not configured; membership cache and crm delivery dedup disabled")
	default:
		rdb = redisClient
		defer func() { _ = redisClient.Close() }()
	}

	providers := telemetry.New(telemetry.Options{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		SetGlobal:   true,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	alertClient, closeAlerts := initAlertClient(cfg, log)
	if closeAlerts != nil {
		defer closeAlerts()
	}

	val := validator.New()
	store := repository.New(pool)
	scheduler.NewSubscribers(alertClient, store, log).RegisterHandlers(eventBus)

	// ========================================================================
	// Bot Layer
	// ========================================================================

	tg, err := telegram.NewClient(cfg, eventBus, log)
	if err != nil {
		log.Error("failed to initialize telegram client", "error", err)
		panic("failed to initialize telegram client: " + err.Error())
	}

	catalogue, err := prompts.NewStore(cfg.GetPromptsPath(), log)
	if err != nil {
		log.Error("failed to load prompts", "error", err)
		panic("failed to load prompts: " + err.Error())
	}

	mirror := crm.NewMirror(cfg, crm.NewClient(cfg), store, tg, rdb, log)
	if !mirror.Enabled() {
		log.Warn("CRM_BASE_URL not configured; crm mirroring disabled")
	}

	cache, err := postlink.NewCache(ctx)
	if err != nil {
		log.Error("failed to initialize post cache", "error", err)
		panic("failed to initialize post cache: " + err.Error())
	}
	botUsername := cfg.GetBotUsername()
	if botUsername == "" {
		botUsername = tg.Username()
	}
	posts := postlink.NewService(store, cache, botUsername, log)

	llm := yandexgpt.NewClient(yandexgpt.Config{
		APIKey:      cfg.GetYandexAPIKey(),
		FolderID:    cfg.GetYandexFolderID(),
		Temperature: cfg.GetLLMTemperature(),
		MaxTokens:   cfg.GetLLMMaxTokens(),
		Timeout:     cfg.GetOutboundTimeout(),
	})

	var membership pipeline.Membership
	if cfg.GetChannelUsername() != "" {
		membership = telegram.NewMembershipChecker(tg, rdb, cfg.GetChannelUsername(), log)
	}

	bot := botrouter.New(botrouter.Deps{
		Store:      store,
		Provider:   tg,
		Mirror:     mirror,
		LLM:        llm,
		Searcher:   estate.NewSearchClient(cfg),
		Calculator: estate.NewCalculatorClient(cfg),
		News:       estate.NewNewsClient(cfg),
		PostLinks:  posts,
		Catalogue:  catalogue,
		Engagement: cfg,
		Log:        log,
	})

	executor := pipeline.NewExecutor()
	updates, err := pipeline.New(pipeline.Deps{
		Store:      store,
		Router:     bot,
		Mirror:     mirror,
		Membership: membership,
		Provider:   tg,
		Catalogue:  catalogue,
		Engagement: cfg,
		Tracer:     providers.Tracer(instrumentationName),
		Meter:      providers.Meter(instrumentationName),
		Bus:        eventBus,
		Log:        log,
	}, executor)
	if err != nil {
		log.Error("failed to initialize update pipeline", "error", err)
		panic("failed to initialize update pipeline: " + err.Error())
	}

	webhookModule := webhook.NewModule(webhook.Services{
		Updates:  updates,
		Executor: executor,
		Manager:  mirror,
		States:   store,
		Posts:    posts,
		Provider: tg,
		Schema:   migrator,
	}, cfg, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Health:  db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{webhookModule},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return catalogue.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

func initAlertClient(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.AlertEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; internal error alerts disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize alert queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
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
