package contentqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bissquit/contentq/internal/domain"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	items   map[string]*domain.QueueItem
	nextID  int
	spacing *domain.SpacingConfig

	spacingErr error
	listErr    error
	// slotTaken makes the next N scheduled writes fail with ErrSlotTaken.
	slotTaken int
}

func newMockRepository() *mockRepository {
	cfg := domain.DefaultSpacingConfig()
	return &mockRepository{
		items:   make(map[string]*domain.QueueItem),
		spacing: &cfg,
	}
}

func (m *mockRepository) write(item *domain.QueueItem) error {
	if item.Status == domain.QueueStatusScheduled && m.slotTaken > 0 {
		m.slotTaken--
		return ErrSlotTaken
	}
	for id, other := range m.items {
		if id != item.ID && other.Slug == item.Slug {
			return ErrSlugExists
		}
	}
	c := *item
	m.items[item.ID] = &c
	return nil
}

func (m *mockRepository) CreateItem(_ context.Context, item *domain.QueueItem) error {
	m.nextID++
	id := fmt.Sprintf("item-%d", m.nextID)
	prev := item.ID
	item.ID = id
	item.CreatedAt = time.Unix(int64(m.nextID), 0)
	if err := m.write(item); err != nil {
		item.ID = prev
		return err
	}
	return nil
}

func (m *mockRepository) GetItem(_ context.Context, id string) (*domain.QueueItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	c := *item
	return &c, nil
}

func (m *mockRepository) GetItemBySlug(_ context.Context, s string) (*domain.QueueItem, error) {
	for _, item := range m.items {
		if item.Slug == s {
			c := *item
			return &c, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *mockRepository) ListItems(_ context.Context, filter ItemFilter) ([]*domain.QueueItem, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*domain.QueueItem
	for _, item := range m.items {
		if filter.Matches(item) {
			c := *item
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return LessItems(result[i], result[j]) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *mockRepository) UpdateItem(_ context.Context, item *domain.QueueItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	return m.write(item)
}

func (m *mockRepository) DeleteItem(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepository) GetSpacingConfig(_ context.Context) (*domain.SpacingConfig, error) {
	if m.spacingErr != nil {
		return nil, m.spacingErr
	}
	if m.spacing == nil {
		return nil, errors.New("no spacing config")
	}
	c := *m.spacing
	return &c, nil
}

func (m *mockRepository) Ping(_ context.Context) error {
	return nil
}

// recordingPublisher captures emitted events.
type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) PublishEvent(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) types() []EventType {
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(repo Repository, publisher Publisher, now time.Time) (*Service, *recordingPublisher) {
	events := &recordingPublisher{}
	svc := NewService(repo, publisher, events)
	svc.now = func() time.Time { return now }
	return svc, events
}

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}
