package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"ProspectScanner/internal/config"
	"ProspectScanner/internal/crawler"
	"ProspectScanner/internal/discovery"
	"ProspectScanner/internal/ensemble"
	"ProspectScanner/internal/features"
	"ProspectScanner/internal/infrastructure/cache"
	"ProspectScanner/internal/infrastructure/httpapi"
	"ProspectScanner/internal/infrastructure/llm"
	"ProspectScanner/internal/infrastructure/scheduler"
	"ProspectScanner/internal/infrastructure/storage"
	"ProspectScanner/internal/infrastructure/telegram"
	"ProspectScanner/internal/infrastructure/web"
	"ProspectScanner/internal/logging"
	"ProspectScanner/internal/ports"
	"ProspectScanner/internal/usecase"
	"ProspectScanner/pkg/metrics"
)

const redisPingTimeout = 3 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Manager

	repository ports.ProspectRepository
	pipeline   *usecase.Pipeline
	scoring    *usecase.ScoringService

	db    *sqlx.DB
	redis *redis.Client
}

// New connects the configured backends and builds every use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{
		cfg:     cfg,
		logger:  baseLogger,
		metrics: metrics.NewManager(),
	}

	if err := a.openRepository(ctx); err != nil {
		return nil, err
	}

	chat, err := llm.New(cfg.LLM, baseLogger, a.metrics)
	if err != nil {
		if !errors.Is(err, llm.ErrDisabled) {
			_ = a.Close()
			return nil, fmt.Errorf("build llm client: %w", err)
		}
		baseLogger.Warn("llm disabled, discovery returns no seeds and ratings stay neutral")
	}

	fetcher := web.NewFetcher(nil, cfg.Crawler.UserAgent, cfg.Crawler.Timeout)
	siteCrawler := crawler.New(crawler.Deps{
		Fetcher: fetcher,
		Logger:  baseLogger,
		Metrics: a.metrics,
		Config:  crawler.Config{MaxPages: cfg.Crawler.MaxPages, Delay: cfg.Crawler.Delay},
	})
	discoverer := discovery.New(chat, discovery.Config{
		Model:        cfg.Discovery.Model,
		Temperature:  cfg.Discovery.Temperature,
		MaxTokens:    cfg.Discovery.MaxTokens,
		SystemPrompt: cfg.Discovery.SystemPrompt,
	}, baseLogger)

	var notifier ports.Notifier
	if n := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); n.Enabled() {
		notifier = n
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Discoverer: discoverer,
		Crawler:    siteCrawler,
		Repository: a.repository,
		Notifier:   notifier,
		Logger:     baseLogger,
		Metrics:    a.metrics,
		Seeds:      cfg.Seeds,
		Workers:    cfg.Crawler.Workers,
	})

	var ratingCache ports.RatingCache
	if rc := a.openRatingCache(ctx); rc != nil {
		ratingCache = rc
	}
	rater := features.NewRater(chat, cfg.Scoring.RatingModel, ratingCache, baseLogger)

	a.scoring = usecase.NewScoringService(usecase.ScoringDeps{
		Repository: a.repository,
		Builder:    features.NewBuilder(rater),
		Logger:     baseLogger,
		Metrics:    a.metrics,
		Config: usecase.ScoringConfig{
			Ensemble: ensemble.Config{
				Trees:          cfg.Scoring.Trees,
				BoostingRounds: cfg.Scoring.BoostingRounds,
				Seed:           cfg.Scoring.Seed,
			},
			PositiveThreshold: cfg.Scoring.PositiveThreshold,
			ModelPath:         cfg.Scoring.ModelPath,
		},
	})

	return a, nil
}

func (a *Application) openRepository(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("no database dsn configured, using in-memory store")
		a.repository = storage.NewMemoryRepository()
		return nil
	}

	db, err := storage.Open(ctx, a.cfg.Database.DSN, a.cfg.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	if a.cfg.Database.AutoMigrate {
		if err := storage.MigrateUp(db.DB, a.logger.With("component", "migrate")); err != nil {
			db.Close()
			return err
		}
	}
	a.db = db
	a.repository = storage.NewPostgresRepository(db)
	return nil
}

func (a *Application) openRatingCache(ctx context.Context) *cache.RedisRatingCache {
	if a.cfg.Cache.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Cache.RedisAddr,
		Password: a.cfg.Cache.Password,
		DB:       a.cfg.Cache.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn("redis unavailable, rating cache disabled", "addr", a.cfg.Cache.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	a.redis = client
	return cache.NewRedisRatingCache(client, a.cfg.Cache.TTL)
}

// Config returns the configuration the application was built with.
func (a *Application) Config() config.Config { return a.cfg }

// Logger returns the base logger.
func (a *Application) Logger() *slog.Logger { return a.logger }

// Repository returns the prospect store.
func (a *Application) Repository() ports.ProspectRepository { return a.repository }

// Pipeline returns the campaign pipeline.
func (a *Application) Pipeline() *usecase.Pipeline { return a.pipeline }

// Scoring returns the ensemble scoring service.
func (a *Application) Scoring() *usecase.ScoringService { return a.scoring }

// Router builds the HTTP API.
func (a *Application) Router() http.Handler {
	handler := httpapi.NewHandler(a.repository, a.pipeline, a.scoring)
	return httpapi.NewRouter(handler, a.metrics, a.logger)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	return httpapi.Serve(ctx, a.cfg.Server.Addr, a.Router(), a.logger.With("component", "http"))
}

// Scheduler builds the cron-driven campaign runner from the scheduler section.
func (a *Application) Scheduler() (*usecase.Scheduler, error) {
	sc := a.cfg.Scheduler
	driver, err := scheduler.NewCronScheduler(sc.CronExpression, sc.Location(), a.logger)
	if err != nil {
		return nil, err
	}
	return usecase.NewScheduler(driver, a.pipeline, sc.CampaignDescription, sc.MaxOrganizations, a.logger), nil
}

// Close releases database and cache connections.
func (a *Application) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
