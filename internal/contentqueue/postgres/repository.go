// Package postgres provides PostgreSQL implementation of the queue repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation = "23505"
	pgInvalidText     = "22P02"

	slugConstraint = "content_queue_slug_key"
	slotConstraint = "content_queue_scheduled_slot_key"
)

const itemColumns = `
	id, slug, title, content_type, priority, status,
	scheduled_at, COALESCE(to_char(slot_date, 'YYYY-MM-DD'), ''), published_at,
	social_status, social_platforms, social_posted_at, social_attempts, social_next_attempt_at,
	error_message, retry_count, source_path, created_at, updated_at
`

// Repository implements contentqueue.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateItem inserts a new queue item.
func (r *Repository) CreateItem(ctx context.Context, item *domain.QueueItem) error {
	query := `
		INSERT INTO content_queue (
			slug, title, content_type, priority, status,
			scheduled_at, slot_date, published_at, social_status, social_platforms, social_posted_at,
			social_attempts, social_next_attempt_at, error_message, retry_count, source_path
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::date, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.Slug,
		item.Title,
		item.ContentType,
		item.Priority,
		item.Status,
		item.ScheduledAt,
		item.SlotDate,
		item.PublishedAt,
		item.SocialStatus,
		platformsToStrings(item.SocialPlatforms),
		item.SocialPostedAt,
		item.SocialAttempts,
		item.SocialNextAttemptAt,
		item.ErrorMessage,
		item.RetryCount,
		item.SourcePath,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("create queue item: %w", err)
	}
	return nil
}

// GetItem retrieves a queue item by ID.
func (r *Repository) GetItem(ctx context.Context, id string) (*domain.QueueItem, error) {
	query := `SELECT ` + itemColumns + ` FROM content_queue WHERE id = $1`

	item, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFound(err) {
			return nil, contentqueue.ErrItemNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// GetItemBySlug retrieves a queue item by slug.
func (r *Repository) GetItemBySlug(ctx context.Context, slug string) (*domain.QueueItem, error) {
	query := `SELECT ` + itemColumns + ` FROM content_queue WHERE slug = $1`

	item, err := scanItem(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	argNum := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}
	if filter.SocialStatus != nil {
		conditions = append(conditions, fmt.Sprintf("social_status = $%d", argNum))
		args = append(args, *filter.SocialStatus)
		argNum++
	}
	if filter.ScheduledBefore != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_at <= $%d", argNum))
		args = append(args, *filter.ScheduledBefore)
		argNum++
	}
	if filter.SocialDueAt != nil {
		conditions = append(conditions,
			fmt.Sprintf("(social_next_attempt_at IS NULL OR social_next_attempt_at <= $%d)", argNum))
		args = append(args, *filter.SocialDueAt)
		argNum++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY priority ASC, scheduled_at ASC NULLS LAST, created_at ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

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
	query := `
		UPDATE content_queue
		SET slug = $2, title = $3, content_type = $4, priority = $5, status = $6,
		    scheduled_at = $7, slot_date = NULLIF($8, '')::date, published_at = $9,
		    social_status = $10, social_platforms = $11, social_posted_at = $12,
		    social_attempts = $13, social_next_attempt_at = $14,
		    error_message = $15, retry_count = $16, source_path = $17,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		item.ID,
		item.Slug,
		item.Title,
		item.ContentType,
		item.Priority,
		item.Status,
		item.ScheduledAt,
		item.SlotDate,
		item.PublishedAt,
		item.SocialStatus,
		platformsToStrings(item.SocialPlatforms),
		item.SocialPostedAt,
		item.SocialAttempts,
		item.SocialNextAttemptAt,
		item.ErrorMessage,
		item.RetryCount,
		item.SourcePath,
	).Scan(&item.UpdatedAt)

	if err != nil {
		if isNotFound(err) {
			return contentqueue.ErrItemNotFound
		}
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update queue item: %w", err)
	}
	return nil
}

// DeleteItem removes a queue item.
func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM content_queue WHERE id = $1`, id)
	if err != nil {
		if isNotFound(err) {
			return contentqueue.ErrItemNotFound
		}
		return fmt.Errorf("delete queue item: %w", err)
	}

	if result.RowsAffected() == 0 {
		return contentqueue.ErrItemNotFound
	}
	return nil
}

// GetSpacingConfig reads the singleton spacing configuration row.
func (r *Repository) GetSpacingConfig(ctx context.Context) (*domain.SpacingConfig, error) {
	query := `
		SELECT min_gap_hours, max_gap_hours, max_posts_per_day, timezone
		FROM spacing_config
		WHERE id = 1
	`
	var cfg domain.SpacingConfig
	err := r.db.QueryRow(ctx, query).Scan(
		&cfg.MinGapHours,
		&cfg.MaxGapHours,
		&cfg.MaxPostsPerDay,
		&cfg.Timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("get spacing config: %w", err)
	}
	return &cfg, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanItem(row pgx.Row) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var platforms []string

	err := row.Scan(
		&item.ID,
		&item.Slug,
		&item.Title,
		&item.ContentType,
		&item.Priority,
		&item.Status,
		&item.ScheduledAt,
		&item.SlotDate,
		&item.PublishedAt,
		&item.SocialStatus,
		&platforms,
		&item.SocialPostedAt,
		&item.SocialAttempts,
		&item.SocialNextAttemptAt,
		&item.ErrorMessage,
		&item.RetryCount,
		&item.SourcePath,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.SocialPlatforms = make([]domain.Platform, 0, len(platforms))
	for _, p := range platforms {
		item.SocialPlatforms = append(item.SocialPlatforms, domain.Platform(p))
	}
	return &item, nil
}

func platformsToStrings(platforms []domain.Platform) []string {
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, string(p))
	}
	return out
}

// isNotFound treats malformed ids the same as missing rows.
func isNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidText
}

func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}

	switch pgErr.ConstraintName {
	case slugConstraint:
		return contentqueue.ErrSlugExists
	case slotConstraint:
		return contentqueue.ErrSlotTaken
	}
	return nil
}
