// Package sqlite provides a single-file SQLite implementation of the queue
// repository for local and CLI use.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// timeLayout is fixed-width UTC so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS content_queue (
	id               TEXT PRIMARY KEY,
	slug             TEXT NOT NULL UNIQUE,
	title            TEXT NOT NULL,
	content_type     TEXT NOT NULL DEFAULT 'essay',
	priority         INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'draft',
	scheduled_at     TEXT,
	slot_date        TEXT,
	published_at     TEXT,
	social_status    TEXT NOT NULL DEFAULT 'pending',
	social_platforms TEXT NOT NULL DEFAULT '[]',
	social_posted_at TEXT,
	social_attempts  INTEGER NOT NULL DEFAULT 0,
	social_next_attempt_at TEXT,
	error_message    TEXT,
	retry_count      INTEGER NOT NULL DEFAULT 0,
	source_path      TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS content_queue_slot_date_key
	ON content_queue (slot_date) WHERE status = 'scheduled' AND slot_date IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_content_queue_status ON content_queue (status, scheduled_at);

CREATE TABLE IF NOT EXISTS spacing_config (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	min_gap_hours     INTEGER NOT NULL,
	max_gap_hours     INTEGER NOT NULL,
	max_posts_per_day INTEGER NOT NULL,
	timezone          TEXT NOT NULL
);
`

const itemColumns = `
	id, slug, title, content_type, priority, status,
	scheduled_at, slot_date, published_at,
	social_status, social_platforms, social_posted_at, social_attempts, social_next_attempt_at,
	error_message, retry_count, source_path, created_at, updated_at
`

// Repository implements contentqueue.Repository on SQLite.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at dsn and creates the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serializes writers and keeps a :memory: database on one connection.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db, now: time.Now}
	if err := repo.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// InitSchema creates tables and seeds the default spacing config.
func (r *Repository) InitSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}

	cfg := domain.DefaultSpacingConfig()
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO spacing_config (id, min_gap_hours, max_gap_hours, max_posts_per_day, timezone)
		VALUES (1, ?, ?, ?, ?)
	`, cfg.MinGapHours, cfg.MaxGapHours, cfg.MaxPostsPerDay, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("seed spacing config: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for pool metrics.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateItem inserts a new queue item.
func (r *Repository) CreateItem(ctx context.Context, item *domain.QueueItem) error {
	platforms, err := encodePlatforms(item.SocialPlatforms)
	if err != nil {
		return err
	}

	now := r.now()
	id := uuid.NewString()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO content_queue (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		item.Slug,
		item.Title,
		item.ContentType,
		item.Priority,
		item.Status,
		formatTime(item.ScheduledAt),
		nullString(item.SlotDate),
		formatTime(item.PublishedAt),
		item.SocialStatus,
		platforms,
		formatTime(item.SocialPostedAt),
		item.SocialAttempts,
		formatTime(item.SocialNextAttemptAt),
		item.ErrorMessage,
		item.RetryCount,
		item.SourcePath,
		formatTime(&now),
		formatTime(&now),
	)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("create queue item: %w", err)
	}

	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// GetItem retrieves a queue item by ID.
func (r *Repository) GetItem(ctx context.Context, id string) (*domain.QueueItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_queue WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contentqueue.ErrItemNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// GetItemBySlug retrieves a queue item by slug.
func (r *Repository) GetItemBySlug(ctx context.Context, slug string) (*domain.QueueItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_queue WHERE slug = ?`, slug)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contentqueue.ErrItemNotFound
		}
		return nil, fmt.Errorf("get queue item by slug: %w", err)
	}
	return item, nil
}

// ListItems retrieves queue items matching filter.
func (r *Repository) ListItems(ctx context.Context, filter contentqueue.ItemFilter) ([]*domain.QueueItem, error) {
	query := `SELECT ` + itemColumns + ` FROM content_queue`

	var conditions []string
	var args []any

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.SocialStatus != nil {
		conditions = append(conditions, "social_status = ?")
		args = append(args, *filter.SocialStatus)
	}
	if filter.ScheduledBefore != nil {
		conditions = append(conditions, "scheduled_at IS NOT NULL AND scheduled_at <= ?")
		args = append(args, formatTime(filter.ScheduledBefore))
	}
	if filter.SocialDueAt != nil {
		conditions = append(conditions, "(social_next_attempt_at IS NULL OR social_next_attempt_at <= ?)")
		args = append(args, formatTime(filter.SocialDueAt))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY priority ASC, scheduled_at IS NULL, scheduled_at ASC, created_at ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*domain.QueueItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}

// UpdateItem persists the mutable fields of a queue item.
func (r *Repository) UpdateItem(ctx context.Context, item *domain.QueueItem) error {
	platforms, err := encodePlatforms(item.SocialPlatforms)
	if err != nil {
		return err
	}

	now := r.now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE content_queue
		SET slug = ?, title = ?, content_type = ?, priority = ?, status = ?,
		    scheduled_at = ?, slot_date = ?, published_at = ?,
		    social_status = ?, social_platforms = ?, social_posted_at = ?,
		    social_attempts = ?, social_next_attempt_at = ?,
		    error_message = ?, retry_count = ?, source_path = ?,
		    updated_at = ?
		WHERE id = ?
	`,
		item.Slug,
		item.Title,
		item.ContentType,
		item.Priority,
		item.Status,
		formatTime(item.ScheduledAt),
		nullString(item.SlotDate),
		formatTime(item.PublishedAt),
		item.SocialStatus,
		platforms,
		formatTime(item.SocialPostedAt),
		item.SocialAttempts,
		formatTime(item.SocialNextAttemptAt),
		item.ErrorMessage,
		item.RetryCount,
		item.SourcePath,
		formatTime(&now),
		item.ID,
	)
	if err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update queue item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	if affected == 0 {
		return contentqueue.ErrItemNotFound
	}

	item.UpdatedAt = now
	return nil
}

// DeleteItem removes a queue item.
func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM content_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if affected == 0 {
		return contentqueue.ErrItemNotFound
	}
	return nil
}

// GetSpacingConfig reads the singleton spacing configuration row.
func (r *Repository) GetSpacingConfig(ctx context.Context) (*domain.SpacingConfig, error) {
	var cfg domain.SpacingConfig
	err := r.db.QueryRowContext(ctx, `
		SELECT min_gap_hours, max_gap_hours, max_posts_per_day, timezone
		FROM spacing_config WHERE id = 1
	`).Scan(&cfg.MinGapHours, &cfg.MaxGapHours, &cfg.MaxPostsPerDay, &cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("get spacing config: %w", err)
	}
	return &cfg, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var scheduledAt, slotDate, publishedAt, socialPostedAt, nextAttemptAt, errorMessage sql.NullString
	var platforms, createdAt, updatedAt string

	err := row.Scan(
		&item.ID,
		&item.Slug,
		&item.Title,
		&item.ContentType,
		&item.Priority,
		&item.Status,
		&scheduledAt,
		&slotDate,
		&publishedAt,
		&item.SocialStatus,
		&platforms,
		&socialPostedAt,
		&item.SocialAttempts,
		&nextAttemptAt,
		&errorMessage,
		&item.RetryCount,
		&item.SourcePath,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if item.ScheduledAt, err = parseNullTime(scheduledAt); err != nil {
		return nil, err
	}
	if item.PublishedAt, err = parseNullTime(publishedAt); err != nil {
		return nil, err
	}
	if item.SocialPostedAt, err = parseNullTime(socialPostedAt); err != nil {
		return nil, err
	}
	if item.SocialNextAttemptAt, err = parseNullTime(nextAttemptAt); err != nil {
		return nil, err
	}
	item.SlotDate = slotDate.String
	if item.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		item.ErrorMessage = &msg
	}

	item.SocialPlatforms = make([]domain.Platform, 0)
	if err := json.Unmarshal([]byte(platforms), &item.SocialPlatforms); err != nil {
		return nil, fmt.Errorf("decode social platforms: %w", err)
	}

	return &item, nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", s.String, err)
	}
	return &t, nil
}

func encodePlatforms(platforms []domain.Platform) (string, error) {
	if platforms == nil {
		platforms = []domain.Platform{}
	}
	data, err := json.Marshal(platforms)
	if err != nil {
		return "", fmt.Errorf("encode social platforms: %w", err)
	}
	return string(data), nil
}

func mapConstraintError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil
	}

	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "content_queue.slug"):
		return contentqueue.ErrSlugExists
	case strings.Contains(msg, "content_queue.slot_date"):
		return contentqueue.ErrSlotTaken
	}
	return nil
}
