// Package domain holds the queue item and spacing configuration types.
package domain

import "time"

// QueueStatus represents the lifecycle status of a queue item.
type QueueStatus string

// Queue statuses.
const (
	QueueStatusDraft     QueueStatus = "draft"
	QueueStatusScheduled QueueStatus = "scheduled"
	QueueStatusPublished QueueStatus = "published"
	QueueStatusFailed    QueueStatus = "failed"
)

// AllQueueStatuses lists statuses in lifecycle order.
var AllQueueStatuses = []QueueStatus{
	QueueStatusDraft,
	QueueStatusScheduled,
	QueueStatusPublished,
	QueueStatusFailed,
}

// IsValid checks if the queue status is valid.
func (s QueueStatus) IsValid() bool {
	switch s {
	case QueueStatusDraft, QueueStatusScheduled, QueueStatusPublished, QueueStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that ordinary flow never leaves.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusPublished || s == QueueStatusFailed
}

// SocialStatus tracks companion social posts for an item.
// It is independent of QueueStatus.
type SocialStatus string

// Social statuses.
const (
	SocialStatusPending SocialStatus = "pending"
	SocialStatusQueued  SocialStatus = "queued"
	SocialStatusPosted  SocialStatus = "posted"
	SocialStatusSkipped SocialStatus = "skipped"
)

// IsValid checks if the social status is valid.
func (s SocialStatus) IsValid() bool {
	switch s {
	case SocialStatusPending, SocialStatusQueued, SocialStatusPosted, SocialStatusSkipped:
		return true
	}
	return false
}

// ContentType classifies queued content.
type ContentType string

// Content types.
const (
	ContentTypeEssay        ContentType = "essay"
	ContentTypeGuide        ContentType = "guide"
	ContentTypeTutorial     ContentType = "tutorial"
	ContentTypeAnnouncement ContentType = "announcement"
)

// IsValid checks if the content type is valid.
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeEssay, ContentTypeGuide, ContentTypeTutorial, ContentTypeAnnouncement:
		return true
	}
	return false
}

// Platform identifies a social platform an item should be announced on.
type Platform string

// Platforms with a poster implementation. Other identifiers are stored
// as-is and skipped at posting time.
const (
	PlatformMattermost Platform = "mattermost"
	PlatformTelegram   Platform = "telegram"
)

// QueueItem is one schedulable unit of content.
//
// SlotDate is the queue-timezone calendar date (YYYY-MM-DD) claimed by the
// slot allocator. It is empty for operator-chosen times, which are never
// refused for sharing a date with another item.
type QueueItem struct {
	ID                  string       `json:"id"`
	Slug                string       `json:"slug"`
	Title               string       `json:"title"`
	ContentType         ContentType  `json:"content_type"`
	Priority            int          `json:"priority"`
	Status              QueueStatus  `json:"status"`
	ScheduledAt         *time.Time   `json:"scheduled_at"`
	SlotDate            string       `json:"-"`
	PublishedAt         *time.Time   `json:"published_at"`
	SocialStatus        SocialStatus `json:"social_status"`
	SocialPlatforms     []Platform   `json:"social_platforms"`
	SocialPostedAt      *time.Time   `json:"social_posted_at"`
	SocialAttempts      int          `json:"social_attempts"`
	SocialNextAttemptAt *time.Time   `json:"social_next_attempt_at"`
	ErrorMessage        *string      `json:"error_message"`
	RetryCount          int          `json:"retry_count"`
	SourcePath          string       `json:"source_path"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// IsSocialDue reports whether a queued social post may be attempted at now.
func (q *QueueItem) IsSocialDue(now time.Time) bool {
	return q.SocialNextAttemptAt == nil || !q.SocialNextAttemptAt.After(now)
}

// IsDue reports whether a scheduled item's publish time has passed.
func (q *QueueItem) IsDue(now time.Time) bool {
	return q.Status == QueueStatusScheduled && q.ScheduledAt != nil && !q.ScheduledAt.After(now)
}
