package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Trigger  TriggerConfig
	Engine   EngineConfig
	Channel  ChannelConfig
	Digest   DigestConfig
	Weather  WeatherConfig
	Feed     FeedConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	// ApplicationName is reported to Postgres in pg_stat_activity.
	ApplicationName string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// TriggerConfig holds the shared bearer secret expected from the scheduler.
type TriggerConfig struct {
	Secret string
}

// EngineConfig tunes reminder windows, dispatch bounds and change thresholds.
type EngineConfig struct {
	Timezone             string
	Tolerance            time.Duration
	TriggerInterval      time.Duration
	RunBudget            time.Duration
	Concurrency          int
	BecameAvailableFrom  int
	FillingFastThreshold int
	PromotionRetryWindow time.Duration
}

// ChannelConfig configures the outbound push channel (Telegram Bot API).
type ChannelConfig struct {
	BotToken      string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	ChunkSize     int
}

// DigestConfig controls the evening digest look-ahead.
type DigestConfig struct {
	LookaheadDays int
}

// WeatherConfig configures optional weather enrichment.
type WeatherConfig struct {
	Enabled  bool
	APIURL   string
	CacheTTL time.Duration
	Timeout  time.Duration
}

// FeedConfig points at an optional upstream schedule feed.
type FeedConfig struct {
	URL      string
	Timeout  time.Duration
	Attempts int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		ApplicationName: v.GetString("DB_APPLICATION_NAME"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Trigger = TriggerConfig{Secret: v.GetString("TRIGGER_SECRET")}

	cfg.Engine = EngineConfig{
		Timezone:             v.GetString("BUSINESS_TIMEZONE"),
		Tolerance:            parseDuration(v.GetString("REMINDER_TOLERANCE"), 45*time.Minute),
		TriggerInterval:      parseDuration(v.GetString("TRIGGER_INTERVAL"), 30*time.Minute),
		RunBudget:            parseDuration(v.GetString("RUN_TIME_BUDGET"), 50*time.Second),
		Concurrency:          v.GetInt("DISPATCH_CONCURRENCY"),
		BecameAvailableFrom:  v.GetInt("BECAME_AVAILABLE_FROM"),
		FillingFastThreshold: v.GetInt("FILLING_FAST_THRESHOLD"),
		PromotionRetryWindow: parseDuration(v.GetString("PROMOTION_RETRY_WINDOW"), 24*time.Hour),
	}

	cfg.Channel = ChannelConfig{
		BotToken:      v.GetString("TELEGRAM_BOT_TOKEN"),
		BaseURL:       v.GetString("TELEGRAM_BASE_URL"),
		Timeout:       parseDuration(v.GetString("CHANNEL_TIMEOUT"), 10*time.Second),
		RatePerSecond: v.GetFloat64("CHANNEL_RATE_PER_SECOND"),
		Burst:         v.GetInt("CHANNEL_RATE_BURST"),
		ChunkSize:     v.GetInt("MESSAGE_CHUNK_SIZE"),
	}

	cfg.Digest = DigestConfig{LookaheadDays: v.GetInt("DIGEST_LOOKAHEAD_DAYS")}

	cfg.Weather = WeatherConfig{
		Enabled:  v.GetBool("ENABLE_WEATHER"),
		APIURL:   v.GetString("WEATHER_API_URL"),
		CacheTTL: parseDuration(v.GetString("WEATHER_CACHE_TTL"), 3*time.Hour),
		Timeout:  parseDuration(v.GetString("WEATHER_TIMEOUT"), 3*time.Second),
	}

	cfg.Feed = FeedConfig{
		URL:      v.GetString("SCHEDULE_FEED_URL"),
		Timeout:  parseDuration(v.GetString("SCHEDULE_FEED_TIMEOUT"), 15*time.Second),
		Attempts: v.GetInt("SCHEDULE_FEED_ATTEMPTS"),
	}

	return cfg, nil
}

// Validate reports every missing or inconsistent setting required to run an invocation.
func (c *Config) Validate() error {
	return joinProblems(c.problems())
}

// ValidateServer is Validate plus the settings only the HTTP trigger surface needs.
func (c *Config) ValidateServer() error {
	errs := c.problems()
	if c.Trigger.Secret == "" {
		errs = append(errs, errors.New("TRIGGER_SECRET is required"))
	}
	return joinProblems(errs)
}

func joinProblems(errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) problems() []error {
	var errs []error

	if c.Channel.BotToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("DB_HOST and DB_NAME are required"))
	}
	if _, err := time.LoadLocation(c.Engine.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("BUSINESS_TIMEZONE %q: %w", c.Engine.Timezone, err))
	}
	// the window must outlast the gap between two scheduled invocations
	if c.Engine.Tolerance*2 < c.Engine.TriggerInterval*3 {
		errs = append(errs, fmt.Errorf("REMINDER_TOLERANCE %s must be at least 1.5x TRIGGER_INTERVAL %s", c.Engine.Tolerance, c.Engine.TriggerInterval))
	}
	if c.Engine.Concurrency <= 0 {
		errs = append(errs, errors.New("DISPATCH_CONCURRENCY must be positive"))
	}
	if c.Weather.Enabled && c.Weather.APIURL == "" {
		errs = append(errs, errors.New("WEATHER_API_URL is required when ENABLE_WEATHER is set"))
	}
	return errs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "wave_alerts")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_APPLICATION_NAME", "wave-alert-api")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TRIGGER_SECRET", "")

	v.SetDefault("BUSINESS_TIMEZONE", "Europe/London")
	v.SetDefault("REMINDER_TOLERANCE", "45m")
	v.SetDefault("TRIGGER_INTERVAL", "30m")
	v.SetDefault("RUN_TIME_BUDGET", "50s")
	v.SetDefault("DISPATCH_CONCURRENCY", 10)
	v.SetDefault("BECAME_AVAILABLE_FROM", 0)
	v.SetDefault("FILLING_FAST_THRESHOLD", 3)
	v.SetDefault("PROMOTION_RETRY_WINDOW", "24h")

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_BASE_URL", "https://api.telegram.org")
	v.SetDefault("CHANNEL_TIMEOUT", "10s")
	v.SetDefault("CHANNEL_RATE_PER_SECOND", 25)
	v.SetDefault("CHANNEL_RATE_BURST", 5)
	v.SetDefault("MESSAGE_CHUNK_SIZE", 4000)

	v.SetDefault("DIGEST_LOOKAHEAD_DAYS", 1)

	v.SetDefault("ENABLE_WEATHER", false)
	v.SetDefault("WEATHER_API_URL", "")
	v.SetDefault("WEATHER_CACHE_TTL", "3h")
	v.SetDefault("WEATHER_TIMEOUT", "3s")

	v.SetDefault("SCHEDULE_FEED_URL", "")
	v.SetDefault("SCHEDULE_FEED_TIMEOUT", "15s")
	v.SetDefault("SCHEDULE_FEED_ATTEMPTS", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
