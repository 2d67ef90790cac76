package contentqueue

import (
	"time"

	"github.com/bissquit/contentq/internal/domain"
)

// QueueStats summarizes the queue.
type QueueStats struct {
	Total          int `json:"total"`
	Draft          int `json:"draft"`
	Scheduled      int `json:"scheduled"`
	Published      int `json:"published"`
	Failed         int `json:"failed"`
	TodayScheduled int `json:"today_scheduled"`
	TodayRemaining int `json:"today_remaining"`
	MaxPostsPerDay int `json:"max_posts_per_day"`
}

// computeStats tallies items by status and counts items whose scheduled_at
// falls on the current local day. MaxPostsPerDay is reported, not enforced.
func computeStats(items []*domain.QueueItem, now time.Time, cfg domain.SpacingConfig) *QueueStats {
	stats := &QueueStats{MaxPostsPerDay: cfg.MaxPostsPerDay}
	start, end := dayBounds(now, cfg.Location())

	for _, item := range items {
		switch item.Status {
		case domain.QueueStatusDraft:
			stats.Draft++
		case domain.QueueStatusScheduled:
			stats.Scheduled++
		case domain.QueueStatusPublished:
			stats.Published++
		case domain.QueueStatusFailed:
			stats.Failed++
		default:
			continue
		}
		stats.Total++

		if item.ScheduledAt != nil && !item.ScheduledAt.Before(start) && item.ScheduledAt.Before(end) {
			stats.TodayScheduled++
		}
	}

	stats.TodayRemaining = max(0, cfg.MaxPostsPerDay-stats.TodayScheduled)
	return stats
}
