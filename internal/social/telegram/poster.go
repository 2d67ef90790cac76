// Package telegram posts announcements through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/contentq/internal/domain"
	"github.com/bissquit/contentq/internal/social"
	"golang.org/x/time/rate"
)

const (
	defaultAPIURL     = "https://api.telegram.org/bot%s/sendMessage"
	defaultRateLimit  = 25
	defaultTimeout    = 10 * time.Second
	defaultRetryAfter = time.Second
)

// Config holds Telegram poster configuration.
type Config struct {
	BotToken  string
	ChatID    string
	RateLimit float64
	Timeout   time.Duration
}

// Poster sends messages to one chat through a bot.
type Poster struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
}

// NewPoster creates a new Telegram poster.
func NewPoster(config Config) (*Poster, error) {
	if config.BotToken == "" {
		return nil, errors.New("telegram poster: bot token is required")
	}
	if config.ChatID == "" {
		return nil, errors.New("telegram poster: chat id is required")
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("telegram poster configured",
		"chat_id", config.ChatID,
		"rate_limit", config.RateLimit,
	)

	return &Poster{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		apiURL:     defaultAPIURL,
	}, nil
}

// Platform returns the platform identifier.
func (p *Poster) Platform() domain.Platform {
	return domain.PlatformTelegram
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Post sends msg as an HTML message.
func (p *Poster) Post(ctx context.Context, msg social.Message) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    p.config.ChatID,
		Text:      msg.Body,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf(p.apiURL, p.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return p.handleResponse(resp)
}

func (p *Poster) handleResponse(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	var tgResp telegramResponse
	if err := json.Unmarshal(raw, &tgResp); err != nil && resp.StatusCode == http.StatusOK {
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}

	if resp.StatusCode == http.StatusOK && tgResp.OK {
		slog.Debug("telegram announcement posted", "chat_id", p.config.ChatID)
		return nil
	}

	description := tgResp.Description
	if description == "" {
		description = string(raw)
	}

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if tgResp.Parameters != nil && tgResp.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(tgResp.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter, Message: description}
	case code == http.StatusUnauthorized:
		return &PermanentError{Code: code, Message: "invalid bot token"}
	case code == http.StatusBadRequest, code == http.StatusForbidden, code == http.StatusNotFound:
		return &PermanentError{Code: code, Message: description}
	case code >= 500:
		return &RetryableError{Code: code, Message: description}
	default:
		return &PermanentError{Code: code, Message: fmt.Sprintf("unexpected response: %s", description)}
	}
}

// RateLimitError is returned when Telegram asks the client to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// IsRetryable always returns true.
func (e *RateLimitError) IsRetryable() bool { return true }

// PermanentError indicates a failure that retrying will not fix,
// such as a blocked bot or unknown chat.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable always returns false.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError indicates a temporary failure.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("telegram error: %s", e.Message)
}

// IsRetryable always returns true.
func (e *RetryableError) IsRetryable() bool { return true }

// GetRetryAfter returns the server-requested delay, or zero.
func GetRetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
