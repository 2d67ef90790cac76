package memory

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	item := &domain.QueueItem{Slug: "copy", Title: "Copy", Status: domain.QueueStatusDraft}
	require.NoError(t, repo.CreateItem(ctx, item))

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	got.Title = "Changed"
	got.SocialPlatforms = append(got.SocialPlatforms, domain.PlatformTelegram)

	again, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Copy", again.Title)
	assert.Empty(t, again.SocialPlatforms)
}

func TestRepository_Constraints(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	at := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	first := &domain.QueueItem{
		Slug: "first", Title: "First", Status: domain.QueueStatusScheduled,
		ScheduledAt: &at, SlotDate: "2030-01-01",
	}
	require.NoError(t, repo.CreateItem(ctx, first))

	err := repo.CreateItem(ctx, &domain.QueueItem{Slug: "first", Title: "Dup", Status: domain.QueueStatusDraft})
	assert.ErrorIs(t, err, contentqueue.ErrSlugExists)

	afternoon := at.Add(5 * time.Hour)
	second := &domain.QueueItem{
		Slug: "second", Title: "Second", Status: domain.QueueStatusScheduled,
		ScheduledAt: &afternoon, SlotDate: "2030-01-01",
	}
	assert.ErrorIs(t, repo.CreateItem(ctx, second), contentqueue.ErrSlotTaken)

	sameAt := at
	explicit := &domain.QueueItem{Slug: "explicit", Title: "Explicit", Status: domain.QueueStatusScheduled, ScheduledAt: &sameAt}
	require.NoError(t, repo.CreateItem(ctx, explicit))

	require.NoError(t, repo.UpdateItem(ctx, first))

	first.Status = domain.QueueStatusPublished
	require.NoError(t, repo.UpdateItem(ctx, first))
	assert.NoError(t, repo.CreateItem(ctx, second))
}

func TestRepository_ListItems(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	base := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	at := func(days int) *time.Time {
		v := base.AddDate(0, 0, days)
		return &v
	}

	items := []*domain.QueueItem{
		{Slug: "draft", Status: domain.QueueStatusDraft},
		{Slug: "later", Status: domain.QueueStatusScheduled, ScheduledAt: at(2)},
		{Slug: "sooner", Status: domain.QueueStatusScheduled, ScheduledAt: at(1)},
		{Slug: "urgent", Status: domain.QueueStatusScheduled, ScheduledAt: at(3), Priority: -1},
	}
	for _, item := range items {
		require.NoError(t, repo.CreateItem(ctx, item))
	}

	all, err := repo.ListItems(ctx, contentqueue.ItemFilter{})
	require.NoError(t, err)
	slugs := make([]string, 0, len(all))
	for _, item := range all {
		slugs = append(slugs, item.Slug)
	}
	assert.Equal(t, []string{"urgent", "sooner", "later", "draft"}, slugs)

	status := domain.QueueStatusScheduled
	limited, err := repo.ListItems(ctx, contentqueue.ItemFilter{Status: &status, ScheduledBefore: at(2), Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "sooner", limited[0].Slug)
}

func TestRepository_DeleteAndNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	item := &domain.QueueItem{Slug: "gone", Title: "Gone", Status: domain.QueueStatusDraft}
	require.NoError(t, repo.CreateItem(ctx, item))
	require.NoError(t, repo.DeleteItem(ctx, item.ID))

	_, err := repo.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, contentqueue.ErrItemNotFound)
	_, err = repo.GetItemBySlug(ctx, "gone")
	assert.ErrorIs(t, err, contentqueue.ErrItemNotFound)
	assert.ErrorIs(t, repo.DeleteItem(ctx, item.ID), contentqueue.ErrItemNotFound)
	assert.ErrorIs(t, repo.UpdateItem(ctx, item), contentqueue.ErrItemNotFound)
}

func TestRepository_SpacingConfig(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	cfg, err := repo.GetSpacingConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSpacingConfig(), *cfg)

	repo.SetSpacingConfig(nil)
	_, err = repo.GetSpacingConfig(ctx)
	assert.Error(t, err)

	svc := contentqueue.NewService(repo, nil, nil)
	assert.Equal(t, domain.DefaultSpacingConfig(), svc.SpacingConfig(ctx))
}
