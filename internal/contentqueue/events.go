package contentqueue

import (
	"context"
	"errors"
	"time"

	"github.com/bissquit/contentq/internal/domain"
)

// EventType names a lifecycle change.
type EventType string

// Lifecycle event types.
const (
	EventQueued        EventType = "queued"
	EventDrafted       EventType = "drafted"
	EventScheduled     EventType = "scheduled"
	EventRescheduled   EventType = "rescheduled"
	EventPublished     EventType = "published"
	EventFailed        EventType = "failed"
	EventSocialUpdated EventType = "social_updated"
	EventDeleted       EventType = "deleted"
)

// Event describes a change to a queue item.
type Event struct {
	Type         EventType           `json:"type"`
	ItemID       string              `json:"item_id"`
	Slug         string              `json:"slug"`
	Title        string              `json:"title"`
	Status       domain.QueueStatus  `json:"status"`
	SocialStatus domain.SocialStatus `json:"social_status"`
	ScheduledAt  *time.Time          `json:"scheduled_at"`
	At           time.Time           `json:"at"`
}

// NewEvent builds an event snapshot of item.
func NewEvent(eventType EventType, item *domain.QueueItem, at time.Time) Event {
	return Event{
		Type:         eventType,
		ItemID:       item.ID,
		Slug:         item.Slug,
		Title:        item.Title,
		Status:       item.Status,
		SocialStatus: item.SocialStatus,
		ScheduledAt:  item.ScheduledAt,
		At:           at,
	}
}

// EventPublisher receives lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

// MultiPublisher fans an event out to several publishers.
type MultiPublisher []EventPublisher

// PublishEvent delivers to every publisher and joins their errors.
func (m MultiPublisher) PublishEvent(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
