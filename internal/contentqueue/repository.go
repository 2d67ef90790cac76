// Package contentqueue schedules content for publication and drives its lifecycle.
package contentqueue

import (
	"context"
	"time"

	"github.com/bissquit/contentq/internal/domain"
)

// Repository defines the interface for queue storage.
//
// Implementations return ErrItemNotFound for unknown ids and slugs,
// ErrSlugExists when a slug is reused and ErrSlotTaken when two scheduled
// items would claim the same allocator SlotDate. Items with an empty
// SlotDate never conflict on schedule.
type Repository interface {
	CreateItem(ctx context.Context, item *domain.QueueItem) error
	GetItem(ctx context.Context, id string) (*domain.QueueItem, error)
	GetItemBySlug(ctx context.Context, slug string) (*domain.QueueItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*domain.QueueItem, error)
	UpdateItem(ctx context.Context, item *domain.QueueItem) error
	DeleteItem(ctx context.Context, id string) error

	GetSpacingConfig(ctx context.Context) (*domain.SpacingConfig, error)

	Ping(ctx context.Context) error
}

// ItemFilter holds filter options for listing queue items.
// Results are ordered by priority, then scheduled_at (nulls last), then created_at.
type ItemFilter struct {
	Status          *domain.QueueStatus
	SocialStatus    *domain.SocialStatus
	ScheduledBefore *time.Time // inclusive
	SocialDueAt     *time.Time // social_next_attempt_at unset or <= this
	Limit           int
}

// Matches reports whether item passes the filter. Used by in-process stores.
func (f ItemFilter) Matches(item *domain.QueueItem) bool {
	if f.Status != nil && item.Status != *f.Status {
		return false
	}
	if f.SocialStatus != nil && item.SocialStatus != *f.SocialStatus {
		return false
	}
	if f.ScheduledBefore != nil {
		if item.ScheduledAt == nil || item.ScheduledAt.After(*f.ScheduledBefore) {
			return false
		}
	}
	if f.SocialDueAt != nil && !item.IsSocialDue(*f.SocialDueAt) {
		return false
	}
	return true
}

// LessItems implements the listing order shared by every store.
func LessItems(a, b *domain.QueueItem) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	switch {
	case a.ScheduledAt != nil && b.ScheduledAt == nil:
		return true
	case a.ScheduledAt == nil && b.ScheduledAt != nil:
		return false
	case a.ScheduledAt != nil && b.ScheduledAt != nil && !a.ScheduledAt.Equal(*b.ScheduledAt):
		return a.ScheduledAt.Before(*b.ScheduledAt)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
