// Package mattermost posts announcements through a Mattermost incoming webhook.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bissquit/contentq/internal/domain"
	"github.com/bissquit/contentq/internal/social"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultUsername = "contentq"
)

// Config holds Mattermost poster configuration.
type Config struct {
	WebhookURL string
	Username   string
	IconURL    string
	Timeout    time.Duration
}

// Poster posts to a single Mattermost channel.
type Poster struct {
	config     Config
	httpClient *http.Client
}

// NewPoster creates a new Mattermost poster.
func NewPoster(config Config) *Poster {
	if config.Username == "" {
		config.Username = defaultUsername
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &Poster{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Platform returns the platform identifier.
func (p *Poster) Platform() domain.Platform {
	return domain.PlatformMattermost
}

// Post sends msg to the configured webhook. The body is sent as-is since the
// template already carries the heading.
func (p *Poster) Post(ctx context.Context, msg social.Message) error {
	if p.config.WebhookURL == "" {
		return &PermanentError{Message: "webhook URL is empty"}
	}

	body, err := json.Marshal(webhookPayload{
		Text:     msg.Body,
		Username: p.config.Username,
		IconURL:  p.config.IconURL,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.WebhookURL, bytes.NewReader(body))
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

type webhookPayload struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

func (p *Poster) handleResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		slog.Debug("mattermost announcement posted", "webhook", maskWebhookURL(p.config.WebhookURL))
		return nil
	case code == http.StatusBadRequest:
		return &PermanentError{Code: code, Message: fmt.Sprintf("bad request: %s", body)}
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return &PermanentError{Code: code, Message: "invalid or expired webhook"}
	case code == http.StatusNotFound:
		return &PermanentError{Code: code, Message: "webhook not found"}
	case code == http.StatusTooManyRequests:
		return &RetryableError{Code: code, Message: "rate limited"}
	case code >= 500:
		return &RetryableError{Code: code, Message: fmt.Sprintf("server error: %s", body)}
	default:
		return &PermanentError{Code: code, Message: fmt.Sprintf("unexpected status: %s", body)}
	}
}

// maskWebhookURL hides the webhook secret for logging.
func maskWebhookURL(url string) string {
	if len(url) > 40 {
		return url[:20] + "..." + url[len(url)-10:]
	}
	return url
}

// PermanentError indicates a failure that retrying will not fix.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mattermost error: %s", e.Message)
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
		return fmt.Sprintf("mattermost error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mattermost error: %s", e.Message)
}

// IsRetryable always returns true.
func (e *RetryableError) IsRetryable() bool { return true }
