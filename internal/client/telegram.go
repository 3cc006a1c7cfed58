package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/wave-alert-api/internal/models"
)

// DefaultChunkSize stays under the Bot API's 4096 character cap.
const DefaultChunkSize = 4000

// TelegramConfig configures the Bot API messenger.
type TelegramConfig struct {
	BaseURL       string
	Token         string
	ChunkSize     int
	RatePerSecond float64
	Burst         int
}

// APIError is a non-successful Bot API reply.
type APIError struct {
	StatusCode  int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %d: %s (retry after %ds)", e.StatusCode, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %d: %s", e.StatusCode, e.Description)
}

// TelegramMessenger sends messages through the Telegram Bot API sendMessage method.
type TelegramMessenger struct {
	httpClient *http.Client
	endpoint   string
	chunkSize  int
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID                int64        `json:"chat_id"`
	Text                  string       `json:"text"`
	DisableWebPagePreview bool         `json:"disable_web_page_preview"`
	ReplyMarkup           *replyMarkup `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// NewTelegramMessenger builds a messenger. Per-call timeouts come from the caller's context.
func NewTelegramMessenger(cfg TelegramConfig, httpClient *http.Client, logger *zap.Logger) *TelegramMessenger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 25
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &TelegramMessenger{
		httpClient: httpClient,
		endpoint:   fmt.Sprintf("%s/bot%s/sendMessage", base, cfg.Token),
		chunkSize:  cfg.ChunkSize,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:     logger,
	}
}

// Send delivers the message, chunked if needed. Buttons ride on the last chunk.
func (m *TelegramMessenger) Send(ctx context.Context, msg models.OutboundMessage) error {
	chunks := ChunkText(msg.Text, m.chunkSize)
	for i, chunk := range chunks {
		req := sendMessageRequest{ChatID: msg.ChatID, Text: chunk, DisableWebPagePreview: true}
		if i == len(chunks)-1 && len(msg.Buttons) > 0 {
			req.ReplyMarkup = keyboard(msg.Buttons)
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		if err := m.post(ctx, req); err != nil {
			if len(chunks) > 1 {
				return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
			}
			return err
		}
	}
	return nil
}

func (m *TelegramMessenger) post(ctx context.Context, payload sendMessageRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sendMessage: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var reply apiResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{StatusCode: resp.StatusCode, Description: truncate(raw, 200)}
		}
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !reply.OK {
		return &APIError{StatusCode: resp.StatusCode, Description: reply.Description, RetryAfter: reply.Parameters.RetryAfter}
	}

	m.logger.Debug("telegram message sent", zap.Int64("chat_id", payload.ChatID), zap.Int("length", len(payload.Text)))
	return nil
}

func keyboard(buttons []models.MessageButton) *replyMarkup {
	rows := make([][]inlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []inlineButton{{Text: b.Text, URL: b.URL}})
	}
	return &replyMarkup{InlineKeyboard: rows}
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
