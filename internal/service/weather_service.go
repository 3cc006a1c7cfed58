package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

type weatherSource interface {
	Fetch(ctx context.Context, day string) (*models.WeatherReport, error)
}

// WeatherService serves cached forecasts. Any failure yields no forecast.
type WeatherService struct {
	source  weatherSource
	cache   *CacheService
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewWeatherService constructs the service.
func NewWeatherService(source weatherSource, cache *CacheService, ttl, timeout time.Duration, logger *zap.Logger) *WeatherService {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeatherService{source: source, cache: cache, ttl: ttl, timeout: timeout, logger: logger}
}

// Forecast implements WeatherProvider.
func (s *WeatherService) Forecast(ctx context.Context, day string) *models.WeatherReport {
	if s == nil || s.source == nil {
		return nil
	}

	key := "weather:" + day
	var cached models.WeatherReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	report, err := s.source.Fetch(fetchCtx, day)
	if err != nil {
		s.logger.Sugar().Warnw("weather unavailable, omitting section", "date", day, "error", err)
		return nil
	}

	s.cache.Set(ctx, key, report, s.ttl)
	return report
}
