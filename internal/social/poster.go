// Package social announces published queue items on chat platforms.
package social

import (
	"context"
	"errors"

	"github.com/bissquit/contentq/internal/domain"
)

// Message is a rendered announcement for one platform.
type Message struct {
	Subject string
	Body    string
}

// Poster delivers messages to a single platform.
type Poster interface {
	Platform() domain.Platform
	Post(ctx context.Context, msg Message) error
}

// IsRetryable reports whether a post error is temporary.
// Errors that do not classify themselves are retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}
