package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamania/backend/internal/apperr"
	"github.com/streamania/backend/internal/database"
	"github.com/streamania/backend/internal/models"
)

type StreamRepository struct {
	db *database.DB
}

func NewStreamRepository(db *database.DB) *StreamRepository {
	return &StreamRepository{db: db}
}

const streamColumns = `id, title, platform, video_ref, is_active, is_live, viewer_count, thumbnail_url, status_checked_at, created_at, updated_at`

func scanStream(row rowScanner) (*models.StreamConfig, error) {
	s := &models.StreamConfig{}
	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Platform,
		&s.VideoRef,
		&s.IsActive,
		&s.IsLive,
		&s.ViewerCount,
		&s.ThumbnailURL,
		&s.StatusCheckedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

func (r *StreamRepository) CreateStream(ctx context.Context, s *models.StreamConfig) error {
	query := `
		INSERT INTO stream_configs (id, title, platform, video_ref, thumbnail_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING is_active, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		s.ID,
		s.Title,
		s.Platform,
		s.VideoRef,
		s.ThumbnailURL,
	).Scan(&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if database.IsUniqueViolation(err, "") {
		return fmt.Errorf("stream %s: %w", s.ID, apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// List returns every stream config, newest first
func (r *StreamRepository) List(ctx context.Context) ([]models.StreamConfig, error) {
	query := `SELECT ` + streamColumns + ` FROM stream_configs ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	defer rows.Close()

	out := []models.StreamConfig{}
	for rows.Next() {
		s, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stream: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *StreamRepository) Get(ctx context.Context, id uuid.UUID) (*models.StreamConfig, error) {
	query := `SELECT ` + streamColumns + ` FROM stream_configs WHERE id = $1`

	s, err := scanStream(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "stream")
	}
	return s, nil
}

// Active returns nil when no stream is active
func (r *StreamRepository) Active(ctx context.Context) (*models.StreamConfig, error) {
	query := `SELECT ` + streamColumns + ` FROM stream_configs WHERE is_active`

	s, err := scanStream(r.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active stream: %w", err)
	}
	return s, nil
}

// Activate clears every other active flag and sets this one in a single
// transaction. A concurrent activation that wins the race surfaces as
// apperr.ErrConflict through the single-active index.
func (r *StreamRepository) Activate(ctx context.Context, id uuid.UUID, at time.Time) (*models.StreamConfig, error) {
	var out *models.StreamConfig

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT true FROM stream_configs WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			return notFound(err, "stream")
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE stream_configs SET is_active = false, updated_at = $1 WHERE is_active AND id <> $2`,
			at, id,
		); err != nil {
			return fmt.Errorf("failed to deactivate streams: %w", err)
		}

		s, err := scanStream(tx.QueryRowContext(ctx,
			`UPDATE stream_configs SET is_active = true, updated_at = $1 WHERE id = $2 RETURNING `+streamColumns,
			at, id,
		))
		if err != nil {
			return err
		}
		out = s
		return nil
	})

	if database.IsUniqueViolation(err, "stream_configs_single_active") {
		return nil, fmt.Errorf("activate stream: %w", apperr.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *StreamRepository) Deactivate(ctx context.Context, id uuid.UUID) (*models.StreamConfig, error) {
	query := `UPDATE stream_configs SET is_active = false, updated_at = NOW() WHERE id = $1 RETURNING ` + streamColumns

	s, err := scanStream(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "stream")
	}
	return s, nil
}

// UpdateLiveStatus records a status check. An empty thumbnail keeps the
// stored one.
func (r *StreamRepository) UpdateLiveStatus(ctx context.Context, id uuid.UUID, status models.StreamStatus, checkedAt time.Time) error {
	query := `
		UPDATE stream_configs
		SET is_live = $1, viewer_count = $2, thumbnail_url = COALESCE(NULLIF($3, ''), thumbnail_url),
		    status_checked_at = $4, updated_at = $4
		WHERE id = $5
	`
	res, err := r.db.ExecContext(ctx, query, status.IsLive, status.ViewerCount, status.ThumbnailURL, checkedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update stream status: %w", err)
	}
	return expectRow(res, "stream")
}

func (r *StreamRepository) DeleteStream(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stream_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete stream: %w", err)
	}
	return expectRow(res, "stream")
}
