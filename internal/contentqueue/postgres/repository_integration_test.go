//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	pgutil "github.com/bissquit/contentq/internal/pkg/postgres"
	"github.com/bissquit/contentq/internal/testutil"
	"github.com/bissquit/contentq/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}

	if err := pgutil.Migrate(migrations.FS, pgContainer.ConnectionString); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	testDB, err = pgutil.Connect(ctx, pgutil.Config{
		URL:             pgContainer.ConnectionString,
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnectAttempts: 3,
	})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	code := m.Run()

	testDB.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		log.Printf("terminate postgres: %v", err)
	}
	os.Exit(code)
}

// setSpacingConfig overwrites the singleton row; the service only reads it.
func setSpacingConfig(t *testing.T, cfg domain.SpacingConfig) {
	t.Helper()

	_, err := testDB.Exec(context.Background(), `
		UPDATE spacing_config
		SET min_gap_hours = $1, max_gap_hours = $2, max_posts_per_day = $3, timezone = $4, updated_at = NOW()
		WHERE id = 1
	`, cfg.MinGapHours, cfg.MaxGapHours, cfg.MaxPostsPerDay, cfg.Timezone)
	require.NoError(t, err)
}

func newRepo(t *testing.T) *Repository {
	t.Helper()
	_, err := testDB.Exec(context.Background(), `TRUNCATE content_queue`)
	require.NoError(t, err)
	return NewRepository(testDB)
}

func TestRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	at := time.Date(2030, 1, 1, 14, 0, 0, 0, time.UTC)
	item := &domain.QueueItem{
		Slug:            "hello",
		Title:           "Hello",
		ContentType:     domain.ContentTypeGuide,
		Status:          domain.QueueStatusScheduled,
		ScheduledAt:     &at,
		SocialStatus:    domain.SocialStatusPending,
		SocialPlatforms: []domain.Platform{domain.PlatformTelegram, domain.PlatformMattermost},
		SourcePath:      "hello.md",
	}
	require.NoError(t, repo.CreateItem(ctx, item))
	assert.NotEmpty(t, item.ID)
	assert.False(t, item.CreatedAt.IsZero())

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Slug)
	assert.Equal(t, domain.ContentTypeGuide, got.ContentType)
	assert.True(t, at.Equal(*got.ScheduledAt))
	assert.Equal(t, item.SocialPlatforms, got.SocialPlatforms)
	assert.Nil(t, got.ErrorMessage)

	bySlug, err := repo.GetItemBySlug(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, item.ID, bySlug.ID)

	_, err = repo.GetItem(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, contentqueue.ErrItemNotFound)

	_, err = repo.GetItem(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, contentqueue.ErrItemNotFound)
}

func TestRepository_Constraints(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	at := time.Date(2030, 1, 1, 14, 0, 0, 0, time.UTC)
	first := &domain.QueueItem{
		Slug: "first", Title: "First", ContentType: domain.ContentTypeEssay,
		Status: domain.QueueStatusScheduled, ScheduledAt: &at, SlotDate: "2030-01-01",
		SocialStatus: domain.SocialStatusPending,
	}
	require.NoError(t, repo.CreateItem(ctx, first))

	dupSlug := &domain.QueueItem{
		Slug: "first", Title: "Again", ContentType: domain.ContentTypeEssay,
		Status: domain.QueueStatusDraft, SocialStatus: domain.SocialStatusPending,
	}
	assert.ErrorIs(t, repo.CreateItem(ctx, dupSlug), contentqueue.ErrSlugExists)

	evening := at.Add(4 * time.Hour)
	sameSlot := &domain.QueueItem{
		Slug: "second", Title: "Second", ContentType: domain.ContentTypeEssay,
		Status: domain.QueueStatusScheduled, ScheduledAt: &evening, SlotDate: "2030-01-01",
		SocialStatus: domain.SocialStatusPending,
	}
	assert.ErrorIs(t, repo.CreateItem(ctx, sameSlot), contentqueue.ErrSlotTaken)

	explicit := &domain.QueueItem{
		Slug: "explicit", Title: "Explicit", ContentType: domain.ContentTypeEssay,
		Status: domain.QueueStatusScheduled, ScheduledAt: &at, SocialStatus: domain.SocialStatusPending,
	}
	require.NoError(t, repo.CreateItem(ctx, explicit))

	first.Status = domain.QueueStatusPublished
	require.NoError(t, repo.UpdateItem(ctx, first))
	assert.NoError(t, repo.CreateItem(ctx, sameSlot))

	got, err := repo.GetItem(ctx, sameSlot.ID)
	require.NoError(t, err)
	assert.Equal(t, "2030-01-01", got.SlotDate)

	got, err = repo.GetItem(ctx, explicit.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SlotDate)
}

func TestRepository_SocialRetryFields(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	backoff := now.Add(time.Hour)

	ready := &domain.QueueItem{
		Slug: "ready", Title: "Ready", ContentType: domain.ContentTypeEssay,
		Status: domain.QueueStatusPublished, SocialStatus: domain.SocialStatusQueued,
	}
	waiting := &domain.QueueItem{
		Slug: "waiting", Title: "Waiting", ContentType: domain.ContentTypeEssay,
		Status: domain.QueueStatusPublished, SocialStatus: domain.SocialStatusQueued,
		SocialAttempts: 2, SocialNextAttemptAt: &backoff,
	}
	require.NoError(t, repo.CreateItem(ctx, ready))
	require.NoError(t, repo.CreateItem(ctx, waiting))

	got, err := repo.GetItem(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SocialAttempts)
	require.NotNil(t, got.SocialNextAttemptAt)
	assert.True(t, backoff.Equal(*got.SocialNextAttemptAt))

	due, err := repo.ListItems(ctx, contentqueue.ItemFilter{SocialDueAt: &now})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "ready", due[0].Slug)
}

func TestRepository_ListItems(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	base := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	create := func(s string, status domain.QueueStatus, priority int, offset *time.Duration) {
		item := &domain.QueueItem{
			Slug: s, Title: s, ContentType: domain.ContentTypeEssay, Priority: priority,
			Status: status, SocialStatus: domain.SocialStatusPending,
		}
		if offset != nil {
			at := base.Add(*offset)
			item.ScheduledAt = &at
		}
		require.NoError(t, repo.CreateItem(ctx, item))
	}
	day := 24 * time.Hour
	twoDays := 2 * day
	zero := time.Duration(0)

	create("later", domain.QueueStatusScheduled, 0, &twoDays)
	create("sooner", domain.QueueStatusScheduled, 0, &day)
	create("urgent", domain.QueueStatusScheduled, -1, &zero)
	create("draft", domain.QueueStatusDraft, 0, nil)

	all, err := repo.ListItems(ctx, contentqueue.ItemFilter{})
	require.NoError(t, err)
	slugs := make([]string, 0, len(all))
	for _, item := range all {
		slugs = append(slugs, item.Slug)
	}
	assert.Equal(t, []string{"urgent", "sooner", "later", "draft"}, slugs)

	status := domain.QueueStatusScheduled
	before := base.Add(day)
	due, err := repo.ListItems(ctx, contentqueue.ItemFilter{Status: &status, ScheduledBefore: &before})
	require.NoError(t, err)
	assert.Len(t, due, 2)

	limited, err := repo.ListItems(ctx, contentqueue.ItemFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRepository_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	item := &domain.QueueItem{
		Slug: "mutable", Title: "Mutable", ContentType: domain.ContentTypeEssay,
		Status: domain.QueueStatusDraft, SocialStatus: domain.SocialStatusPending,
	}
	require.NoError(t, repo.CreateItem(ctx, item))

	msg := "boom"
	item.Status = domain.QueueStatusFailed
	item.ErrorMessage = &msg
	item.RetryCount = 2
	require.NoError(t, repo.UpdateItem(ctx, item))

	got, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStatusFailed, got.Status)
	assert.Equal(t, "boom", *got.ErrorMessage)
	assert.Equal(t, 2, got.RetryCount)

	require.NoError(t, repo.DeleteItem(ctx, item.ID))
	assert.ErrorIs(t, repo.DeleteItem(ctx, item.ID), contentqueue.ErrItemNotFound)
	assert.ErrorIs(t, repo.UpdateItem(ctx, item), contentqueue.ErrItemNotFound)
}

func TestRepository_SpacingConfig(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	cfg, err := repo.GetSpacingConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSpacingConfig(), *cfg)

	updated := domain.SpacingConfig{MinGapHours: 1, MaxGapHours: 2, MaxPostsPerDay: 3, Timezone: "Europe/Berlin"}
	setSpacingConfig(t, updated)

	cfg, err = repo.GetSpacingConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, *cfg)

	setSpacingConfig(t, domain.DefaultSpacingConfig())
}
