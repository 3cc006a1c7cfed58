package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"

	"github.com/noah-isme/wave-alert-api/internal/dto"
)

// FeedConfig configures the schedule feed client.
type FeedConfig struct {
	URL      string
	Attempts int
	Delay    time.Duration
}

// StatusError reports a non-OK upstream HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// retryable treats 4xx (other than 429) as permanent.
func retryable(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode == http.StatusTooManyRequests || status.StatusCode >= 500
	}
	return true
}

// FeedClient pulls acquisitions from an upstream JSON schedule feed.
type FeedClient struct {
	httpClient *http.Client
	cfg        FeedConfig
	logger     *zap.Logger
}

// NewFeedClient builds a feed client.
func NewFeedClient(cfg FeedConfig, httpClient *http.Client, logger *zap.Logger) *FeedClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedClient{httpClient: httpClient, cfg: cfg, logger: logger}
}

// Fetch downloads and decodes one acquisition.
func (c *FeedClient) Fetch(ctx context.Context) (*dto.AcquisitionRequest, error) {
	var acquisition dto.AcquisitionRequest

	err := retry.Do(
		func() error {
			raw, err := getJSON(ctx, c.httpClient, c.cfg.URL)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &acquisition); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode schedule feed: %w", err))
			}
			return nil
		},
		retry.Attempts(uint(c.cfg.Attempts)),
		retry.Delay(c.cfg.Delay),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Sugar().Warnw("retrying schedule feed fetch", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule feed: %w", err)
	}

	c.logger.Sugar().Infow("schedule feed fetched", "from", acquisition.From, "to", acquisition.To, "sessions", len(acquisition.Sessions))
	return &acquisition, nil
}

func getJSON(ctx context.Context, httpClient *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: truncate(body, 200)}
	}
	return body, nil
}
