package social

import (
	"context"
	"log/slog"
	"time"

	"github.com/bissquit/contentq/internal/domain"
)

// Dispatcher posts an item's announcement to each of its platforms.
type Dispatcher struct {
	renderer *Renderer
	posters  map[domain.Platform]Poster
}

// NewDispatcher creates a dispatcher over the given posters.
func NewDispatcher(renderer *Renderer, posters ...Poster) *Dispatcher {
	posterMap := make(map[domain.Platform]Poster)
	for _, p := range posters {
		posterMap[p.Platform()] = p
	}
	return &Dispatcher{
		renderer: renderer,
		posters:  posterMap,
	}
}

// Platforms lists platforms with a configured poster.
func (d *Dispatcher) Platforms() []domain.Platform {
	out := make([]domain.Platform, 0, len(d.posters))
	for p := range d.posters {
		out = append(out, p)
	}
	return out
}

// Dispatch posts item to its platforms and returns the resulting social status.
//
// An item is posted once any platform accepted it, so a successful platform
// is never posted to twice. With no success it stays queued while some
// platform failed temporarily, and is skipped otherwise.
func (d *Dispatcher) Dispatch(ctx context.Context, item *domain.QueueItem) domain.SocialStatus {
	var posted, retry bool

	for _, platform := range item.SocialPlatforms {
		poster, ok := d.posters[platform]
		if !ok {
			slog.Debug("no poster for platform", "platform", platform, "item_id", item.ID)
			recordPost(string(platform), "unsupported")
			continue
		}

		msg, err := d.renderer.Render(platform, item)
		if err != nil {
			slog.Error("failed to render announcement",
				"platform", platform,
				"item_id", item.ID,
				"error", err,
			)
			recordPost(string(platform), "failed")
			continue
		}

		start := time.Now()
		err = poster.Post(ctx, msg)
		recordPostDuration(string(platform), time.Since(start))

		if err != nil {
			if IsRetryable(err) {
				retry = true
				recordPost(string(platform), "retry")
			} else {
				recordPost(string(platform), "failed")
			}
			slog.Warn("social post failed",
				"platform", platform,
				"item_id", item.ID,
				"slug", item.Slug,
				"retryable", IsRetryable(err),
				"error", err,
			)
			continue
		}

		posted = true
		recordPost(string(platform), "success")
	}

	switch {
	case posted:
		return domain.SocialStatusPosted
	case retry:
		return domain.SocialStatusQueued
	default:
		return domain.SocialStatusSkipped
	}
}
