package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/client"
	"github.com/noah-isme/wave-alert-api/internal/repository"
	"github.com/noah-isme/wave-alert-api/internal/service"
	"github.com/noah-isme/wave-alert-api/pkg/cache"
	"github.com/noah-isme/wave-alert-api/pkg/config"
	"github.com/noah-isme/wave-alert-api/pkg/database"
)

// App holds every long-lived dependency of one process.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sqlx.DB
	Cache   *repository.CacheRepository
	Metrics *service.MetricsService

	Reminders *service.ReminderService
	Digests   *service.DigestService
	Sync      *service.SessionSyncService
	Changes   *repository.ChangeRepository
}

// New connects to storage and assembles the engine services.
func New(cfg *config.Config, logr *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, weather cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	a, err := assemble(cfg, logr, db, redisClient)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func assemble(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*App, error) {
	clock, err := service.LoadClock(cfg.Engine.Timezone)
	if err != nil {
		return nil, err
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, "wave-alert", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Weather.CacheTTL, logr, redisClient != nil)

	sessions := repository.NewSessionRepository(db)
	subscribers := repository.NewSubscriberRepository(db)
	ledger := repository.NewSendLedgerRepository(db)
	deliveries := repository.NewDigestDeliveryRepository(db)
	changes := repository.NewChangeRepository(db)

	messenger := client.NewTelegramMessenger(client.TelegramConfig{
		BaseURL:       cfg.Channel.BaseURL,
		Token:         cfg.Channel.BotToken,
		ChunkSize:     cfg.Channel.ChunkSize,
		RatePerSecond: cfg.Channel.RatePerSecond,
		Burst:         cfg.Channel.Burst,
	}, &http.Client{}, logr.Named("telegram"))

	var weather service.WeatherProvider
	if cfg.Weather.Enabled {
		source := client.NewWeatherClient(cfg.Weather.APIURL, &http.Client{Timeout: cfg.Weather.Timeout})
		weather = service.NewWeatherService(source, cacheSvc, cfg.Weather.CacheTTL, cfg.Weather.Timeout, logr.Named("weather"))
	}

	var feed service.ScheduleFeed
	if cfg.Feed.URL != "" {
		feed = client.NewFeedClient(client.FeedConfig{
			URL:      cfg.Feed.URL,
			Attempts: cfg.Feed.Attempts,
		}, &http.Client{Timeout: cfg.Feed.Timeout}, logr.Named("feed"))
	}

	renderer := service.NewMessageRenderer(clock.Location(), cfg.Engine.FillingFastThreshold)
	dispatcher := service.NewDispatcher(ledger, messenger, renderer, weather, metrics, service.DispatcherConfig{
		Concurrency: cfg.Engine.Concurrency,
		SendTimeout: cfg.Channel.Timeout,
	}, logr.Named("dispatcher"))

	changeSvc := service.NewChangeService(clock, subscribers, changes, dispatcher, service.ChangeThresholds{
		BecameAvailableFrom: cfg.Engine.BecameAvailableFrom,
		FillingFast:         cfg.Engine.FillingFastThreshold,
		RetryWindow:         cfg.Engine.PromotionRetryWindow,
	}, metrics, logr.Named("changes"))

	return &App{
		Config:  cfg,
		Logger:  logr,
		DB:      db,
		Cache:   cacheRepo,
		Metrics: metrics,
		Reminders: service.NewReminderService(clock, sessions, subscribers, dispatcher, metrics, service.ReminderConfig{
			Tolerance: cfg.Engine.Tolerance,
			RunBudget: cfg.Engine.RunBudget,
		}, logr.Named("reminders")),
		Digests: service.NewDigestService(clock, sessions, subscribers, deliveries, dispatcher, renderer, metrics, service.DigestConfig{
			LookaheadDays: cfg.Digest.LookaheadDays,
			RunBudget:     cfg.Engine.RunBudget,
		}, logr.Named("digests")),
		Sync:    service.NewSessionSyncService(clock, sessions, changeSvc, feed, validator.New(), metrics, cfg.Engine.RunBudget, logr.Named("sync")),
		Changes: changes,
	}, nil
}

// Ping checks the database.
func (a *App) Ping(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}

// Close releases storage connections.
func (a *App) Close() {
	if err := a.Cache.Close(); err != nil {
		a.Logger.Warn("close redis", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("close database", zap.Error(err))
	}
}
