// Package memory provides an in-process implementation of the queue repository.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	"github.com/google/uuid"
)

var errSpacingNotSet = errors.New("spacing config not set")

// Repository implements contentqueue.Repository in memory.
// Stored items are copied on the way in and out.
type Repository struct {
	mu      sync.RWMutex
	items   map[string]*domain.QueueItem
	spacing *domain.SpacingConfig
	now     func() time.Time
}

// NewRepository creates an empty repository using the default spacing config.
func NewRepository() *Repository {
	cfg := domain.DefaultSpacingConfig()
	return &Repository{
		items:   make(map[string]*domain.QueueItem),
		spacing: &cfg,
		now:     time.Now,
	}
}

// SetSpacingConfig replaces the stored spacing config. A nil config makes
// GetSpacingConfig fail, which exercises the service fallback.
func (r *Repository) SetSpacingConfig(cfg *domain.SpacingConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spacing = cfg
}

// CreateItem stores a new item and assigns its id and timestamps.
func (r *Repository) CreateItem(_ context.Context, item *domain.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkConflicts(item, ""); err != nil {
		return err
	}

	now := r.now()
	item.ID = uuid.NewString()
	item.CreatedAt = now
	item.UpdatedAt = now

	r.items[item.ID] = clone(item)
	return nil
}

// GetItem retrieves an item by ID.
func (r *Repository) GetItem(_ context.Context, id string) (*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, contentqueue.ErrItemNotFound
	}
	return clone(item), nil
}

// GetItemBySlug retrieves an item by slug.
func (r *Repository) GetItemBySlug(_ context.Context, slug string) (*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items {
		if item.Slug == slug {
			return clone(item), nil
		}
	}
	return nil, contentqueue.ErrItemNotFound
}

// ListItems returns items matching filter in listing order.
func (r *Repository) ListItems(_ context.Context, filter contentqueue.ItemFilter) ([]*domain.QueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.QueueItem, 0, len(r.items))
	for _, item := range r.items {
		if filter.Matches(item) {
			result = append(result, clone(item))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return contentqueue.LessItems(result[i], result[j])
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateItem overwrites the mutable fields of an existing item.
func (r *Repository) UpdateItem(_ context.Context, item *domain.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[item.ID]
	if !ok {
		return contentqueue.ErrItemNotFound
	}

	if err := r.checkConflicts(item, item.ID); err != nil {
		return err
	}

	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = r.now()
	r.items[item.ID] = clone(item)
	return nil
}

// DeleteItem removes an item by ID.
func (r *Repository) DeleteItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return contentqueue.ErrItemNotFound
	}
	delete(r.items, id)
	return nil
}

// GetSpacingConfig returns the stored spacing configuration.
func (r *Repository) GetSpacingConfig(_ context.Context) (*domain.SpacingConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.spacing == nil {
		return nil, errSpacingNotSet
	}
	cfg := *r.spacing
	return &cfg, nil
}

// Ping always succeeds.
func (r *Repository) Ping(_ context.Context) error {
	return nil
}

// checkConflicts enforces slug uniqueness and one allocator slot per date.
func (r *Repository) checkConflicts(item *domain.QueueItem, selfID string) error {
	for id, other := range r.items {
		if id == selfID {
			continue
		}
		if other.Slug == item.Slug {
			return contentqueue.ErrSlugExists
		}
		if item.Status == domain.QueueStatusScheduled && other.Status == domain.QueueStatusScheduled &&
			item.SlotDate != "" && item.SlotDate == other.SlotDate {
			return contentqueue.ErrSlotTaken
		}
	}
	return nil
}

func clone(item *domain.QueueItem) *domain.QueueItem {
	c := *item
	c.ScheduledAt = cloneTime(item.ScheduledAt)
	c.PublishedAt = cloneTime(item.PublishedAt)
	c.SocialPostedAt = cloneTime(item.SocialPostedAt)
	c.SocialNextAttemptAt = cloneTime(item.SocialNextAttemptAt)
	if item.ErrorMessage != nil {
		msg := *item.ErrorMessage
		c.ErrorMessage = &msg
	}
	c.SocialPlatforms = append([]domain.Platform{}, item.SocialPlatforms...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
