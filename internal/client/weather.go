package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

// WeatherClient reads daily conditions from a JSON weather endpoint.
// The endpoint is called as GET <url>?date=YYYY-MM-DD.
type WeatherClient struct {
	httpClient *http.Client
	baseURL    string
	attempts   uint
}

// NewWeatherClient builds a weather client.
func NewWeatherClient(baseURL string, httpClient *http.Client) *WeatherClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &WeatherClient{httpClient: httpClient, baseURL: baseURL, attempts: 2}
}

// Fetch returns the report for the given date.
func (c *WeatherClient) Fetch(ctx context.Context, day string) (*models.WeatherReport, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse weather url: %w", err)
	}
	query := endpoint.Query()
	query.Set("date", day)
	endpoint.RawQuery = query.Encode()

	var report models.WeatherReport
	err = retry.Do(
		func() error {
			raw, err := getJSON(ctx, c.httpClient, endpoint.String())
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, &report); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode weather: %w", err))
			}
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(200*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch weather for %s: %w", day, err)
	}
	if report.Date == "" {
		report.Date = day
	}
	return &report, nil
}
