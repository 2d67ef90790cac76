package contentqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/bissquit/contentq/internal/domain"
	"github.com/bissquit/contentq/internal/pkg/slug"
)

// slotAttempts bounds re-allocation when a concurrent writer takes the slot first.
const slotAttempts = 3

// Service implements queue lifecycle logic.
type Service struct {
	repo      Repository
	publisher Publisher
	events    EventPublisher
	now       func() time.Time
}

// NewService creates a new queue service.
// A nil publisher publishes every due item; a nil events publisher drops events.
func NewService(repo Repository, publisher Publisher, events EventPublisher) *Service {
	if publisher == nil {
		publisher = SourcePublisher{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		events:    events,
		now:       time.Now,
	}
}

// QueueOptions holds optional attributes for new queue items.
type QueueOptions struct {
	ScheduledAt     *time.Time
	ContentType     domain.ContentType
	Priority        int
	SocialPlatforms []domain.Platform
	SourcePath      string
}

// ProcessResult lists the outcome of a ProcessQueue pass.
type ProcessResult struct {
	Published []*domain.QueueItem `json:"published"`
	Failed    []*domain.QueueItem `json:"failed"`
}

// SpacingConfig reads the stored spacing configuration.
// Falls back to defaults when the store cannot provide it.
func (s *Service) SpacingConfig(ctx context.Context) domain.SpacingConfig {
	cfg, err := s.repo.GetSpacingConfig(ctx)
	if err != nil || cfg == nil {
		slog.Warn("failed to read spacing config, using defaults", "error", err)
		return domain.DefaultSpacingConfig()
	}

	defaults := domain.DefaultSpacingConfig()
	out := *cfg
	if out.Timezone == "" {
		out.Timezone = defaults.Timezone
	}
	if out.MaxPostsPerDay <= 0 {
		out.MaxPostsPerDay = defaults.MaxPostsPerDay
	}
	return out
}

// GetNextSlot returns the next free daily publish instant.
// It does not reserve the slot.
func (s *Service) GetNextSlot(ctx context.Context) (time.Time, error) {
	return s.nextSlot(ctx, s.SpacingConfig(ctx))
}

func (s *Service) nextSlot(ctx context.Context, cfg domain.SpacingConfig) (time.Time, error) {
	occupied, err := s.occupiedDates(ctx, cfg.Location())
	if err != nil {
		return time.Time{}, err
	}
	return NextSlot(s.now(), occupied, cfg), nil
}

func (s *Service) occupiedDates(ctx context.Context, loc *time.Location) (OccupiedDates, error) {
	status := domain.QueueStatusScheduled
	items, err := s.repo.ListItems(ctx, ItemFilter{Status: &status})
	if err != nil {
		return nil, fmt.Errorf("list scheduled items: %w", err)
	}

	occupied := make(OccupiedDates, len(items))
	for _, item := range items {
		if item.ScheduledAt != nil {
			occupied.Add(*item.ScheduledAt, loc)
		}
	}
	return occupied, nil
}

// QueueEssay creates an item directly in the scheduled state.
// Without opts.ScheduledAt the next free slot is allocated.
func (s *Service) QueueEssay(ctx context.Context, itemSlug, title string, opts QueueOptions) (*domain.QueueItem, error) {
	item, err := s.newItem(itemSlug, title, opts)
	if err != nil {
		return nil, err
	}
	item.Status = domain.QueueStatusScheduled

	if opts.ScheduledAt != nil {
		at := *opts.ScheduledAt
		item.ScheduledAt = &at
		item.SlotDate = ""
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, fmt.Errorf("queue essay: %w", err)
		}
	} else {
		err := s.withAllocatedSlot(ctx, item, func() error {
			return s.repo.CreateItem(ctx, item)
		})
		if err != nil {
			return nil, fmt.Errorf("queue essay: %w", err)
		}
	}

	s.emit(ctx, EventQueued, item)
	return item, nil
}

// AddDraft creates an unscheduled item.
func (s *Service) AddDraft(ctx context.Context, itemSlug, title string, opts QueueOptions) (*domain.QueueItem, error) {
	item, err := s.newItem(itemSlug, title, opts)
	if err != nil {
		return nil, err
	}
	item.Status = domain.QueueStatusDraft

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("add draft: %w", err)
	}

	s.emit(ctx, EventDrafted, item)
	return item, nil
}

// ScheduleDraft moves an item to scheduled, allocating a slot when at is nil.
// An already scheduled item gets its schedule overwritten; published and
// failed items are rejected with ErrItemTerminal.
func (s *Service) ScheduleDraft(ctx context.Context, id string, at *time.Time) (*domain.QueueItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	if item.Status.IsTerminal() {
		return nil, ErrItemTerminal
	}

	item.Status = domain.QueueStatusScheduled

	if at != nil {
		t := *at
		item.ScheduledAt = &t
		item.SlotDate = ""
		if err := s.repo.UpdateItem(ctx, item); err != nil {
			return nil, fmt.Errorf("schedule draft: %w", err)
		}
	} else {
		err := s.withAllocatedSlot(ctx, item, func() error {
			return s.repo.UpdateItem(ctx, item)
		})
		if err != nil {
			return nil, fmt.Errorf("schedule draft: %w", err)
		}
	}

	s.emit(ctx, EventScheduled, item)
	return item, nil
}

// Reschedule sets a new publish time and status scheduled regardless of the
// current status. This is the operator path back from published or failed.
// An explicit time is never refused for sharing a date with another item.
func (s *Service) Reschedule(ctx context.Context, id string, at time.Time) (*domain.QueueItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	item.Status = domain.QueueStatusScheduled
	item.ScheduledAt = &at
	item.SlotDate = ""

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("reschedule: %w", err)
	}

	s.emit(ctx, EventRescheduled, item)
	return item, nil
}

// GetDueItems returns scheduled items whose publish time has passed,
// oldest first.
func (s *Service) GetDueItems(ctx context.Context) ([]*domain.QueueItem, error) {
	status := domain.QueueStatusScheduled
	now := s.now()

	items, err := s.repo.ListItems(ctx, ItemFilter{Status: &status, ScheduledBefore: &now})
	if err != nil {
		return nil, fmt.Errorf("get due items: %w", err)
	}

	due := make([]*domain.QueueItem, 0, len(items))
	for _, item := range items {
		if item.IsDue(now) {
			due = append(due, item)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})
	return due, nil
}

// MarkPublished sets status published and stamps published_at once.
// Items with social platforms move to social status queued.
func (s *Service) MarkPublished(ctx context.Context, id string) (*domain.QueueItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	item.Status = domain.QueueStatusPublished
	if item.PublishedAt == nil {
		now := s.now()
		item.PublishedAt = &now
	}
	if len(item.SocialPlatforms) > 0 && item.SocialStatus == domain.SocialStatusPending {
		item.SocialStatus = domain.SocialStatusQueued
	}

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("mark published: %w", err)
	}

	s.emit(ctx, EventPublished, item)
	return item, nil
}

// MarkFailed sets status failed, records message and increments retry_count.
func (s *Service) MarkFailed(ctx context.Context, id, message string) (*domain.QueueItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	item.Status = domain.QueueStatusFailed
	item.ErrorMessage = &message
	item.RetryCount++

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}

	s.emit(ctx, EventFailed, item)
	return item, nil
}

// UpdateSocialStatus sets the social sub-state; posted also stamps social_posted_at.
// It clears any pending retry backoff.
func (s *Service) UpdateSocialStatus(ctx context.Context, id string, status domain.SocialStatus) (*domain.QueueItem, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSocialStatus, status)
	}

	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	item.SocialStatus = status
	if status == domain.SocialStatusPosted {
		now := s.now()
		item.SocialPostedAt = &now
	}
	// Re-queueing starts a fresh retry budget.
	if status == domain.SocialStatusQueued {
		item.SocialAttempts = 0
	}
	item.SocialNextAttemptAt = nil

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update social status: %w", err)
	}

	s.emit(ctx, EventSocialUpdated, item)
	return item, nil
}

// RetrySocial records a failed social attempt and defers the next one until
// next. The social status stays queued.
func (s *Service) RetrySocial(ctx context.Context, id string, next time.Time) (*domain.QueueItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	item.SocialAttempts++
	item.SocialNextAttemptAt = &next

	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("retry social: %w", err)
	}
	return item, nil
}

// DeleteFromQueue removes an item permanently.
func (s *Service) DeleteFromQueue(ctx context.Context, id string) error {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}

	if err := s.repo.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("delete from queue: %w", err)
	}

	s.emit(ctx, EventDeleted, item)
	return nil
}

// ListQueue returns items, optionally filtered by status.
func (s *Service) ListQueue(ctx context.Context, status *domain.QueueStatus) ([]*domain.QueueItem, error) {
	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *status)
	}

	items, err := s.repo.ListItems(ctx, ItemFilter{Status: status})
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return items, nil
}

// ListSocialQueued returns published items waiting for social posts whose
// retry backoff has elapsed.
func (s *Service) ListSocialQueued(ctx context.Context, limit int) ([]*domain.QueueItem, error) {
	status := domain.QueueStatusPublished
	social := domain.SocialStatusQueued
	now := s.now()

	items, err := s.repo.ListItems(ctx, ItemFilter{
		Status:       &status,
		SocialStatus: &social,
		SocialDueAt:  &now,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list social queue: %w", err)
	}
	return items, nil
}

// GetItem retrieves an item by ID.
func (s *Service) GetItem(ctx context.Context, id string) (*domain.QueueItem, error) {
	return s.repo.GetItem(ctx, id)
}

// GetBySlug retrieves an item by slug.
func (s *Service) GetBySlug(ctx context.Context, itemSlug string) (*domain.QueueItem, error) {
	return s.repo.GetItemBySlug(ctx, itemSlug)
}

// ProcessQueue publishes every due item. A failing item is marked failed and
// does not stop the pass.
func (s *Service) ProcessQueue(ctx context.Context) (*ProcessResult, error) {
	start := time.Now()

	due, err := s.GetDueItems(ctx)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{
		Published: make([]*domain.QueueItem, 0, len(due)),
		Failed:    make([]*domain.QueueItem, 0),
	}

	for _, item := range due {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("process queue: %w", err)
		}

		if pubErr := s.publisher.Publish(ctx, item); pubErr != nil {
			slog.Warn("publish failed", "item_id", item.ID, "slug", item.Slug, "error", pubErr)

			failed, err := s.MarkFailed(ctx, item.ID, pubErr.Error())
			if err != nil {
				slog.Error("failed to mark as failed", "item_id", item.ID, "error", err)
				continue
			}
			result.Failed = append(result.Failed, failed)
			continue
		}

		published, err := s.MarkPublished(ctx, item.ID)
		if err != nil {
			slog.Error("failed to mark as published", "item_id", item.ID, "error", err)
			continue
		}
		result.Published = append(result.Published, published)

		slog.Info("item published", "item_id", item.ID, "slug", item.Slug)
	}

	recordProcessRun(time.Since(start), len(result.Published), len(result.Failed))
	return result, nil
}

// GetQueueStats aggregates item counts.
func (s *Service) GetQueueStats(ctx context.Context) (*QueueStats, error) {
	cfg := s.SpacingConfig(ctx)

	items, err := s.repo.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}

	return computeStats(items, s.now(), cfg), nil
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) newItem(itemSlug, title string, opts QueueOptions) (*domain.QueueItem, error) {
	if !slug.IsValid(itemSlug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, itemSlug)
	}
	if title == "" {
		return nil, ErrTitleRequired
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeEssay
	}
	if !contentType.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	if opts.SourcePath != "" && !filepath.IsLocal(opts.SourcePath) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSourcePath, opts.SourcePath)
	}

	platforms := opts.SocialPlatforms
	if platforms == nil {
		platforms = []domain.Platform{}
	}

	return &domain.QueueItem{
		Slug:            itemSlug,
		Title:           title,
		ContentType:     contentType,
		Priority:        opts.Priority,
		SocialStatus:    domain.SocialStatusPending,
		SocialPlatforms: platforms,
		SourcePath:      opts.SourcePath,
	}, nil
}

// withAllocatedSlot assigns the next free slot to item and runs write.
// When the store reports the slot as taken the allocation is retried.
func (s *Service) withAllocatedSlot(ctx context.Context, item *domain.QueueItem, write func() error) error {
	cfg := s.SpacingConfig(ctx)
	loc := cfg.Location()

	var err error
	for attempt := 1; attempt <= slotAttempts; attempt++ {
		var slot time.Time
		slot, err = s.nextSlot(ctx, cfg)
		if err != nil {
			return err
		}
		item.ScheduledAt = &slot
		item.SlotDate = DateKey(slot, loc)

		err = write()
		if !errors.Is(err, ErrSlotTaken) {
			return err
		}
		slog.Warn("publish slot taken concurrently, reallocating",
			"slot", slot,
			"attempt", attempt,
		)
	}
	return err
}

func (s *Service) emit(ctx context.Context, eventType EventType, item *domain.QueueItem) {
	recordTransition(eventType)

	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, NewEvent(eventType, item, s.now())); err != nil {
		slog.Error("failed to publish queue event",
			"event", eventType,
			"item_id", item.ID,
			"error", err,
		)
	}
}
