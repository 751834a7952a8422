package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

// ErrNotConfigured is returned when the crawl_config singleton row is absent,
// which means the scheduler stays idle.
var ErrNotConfigured = errors.New("crawl config not set")

// CrawlConfigRepository manages the singleton scheduler configuration row.
type CrawlConfigRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewCrawlConfigRepository(db *sqlx.DB, log logger.Logger) *CrawlConfigRepository {
	return &CrawlConfigRepository{
		db:     db,
		logger: log,
	}
}

// Get returns the active configuration, or ErrNotConfigured.
func (r *CrawlConfigRepository) Get(ctx context.Context) (*models.CrawlConfig, error) {
	query := `
		SELECT enabled, core_interval_hours, authors_interval_hours,
		       apps_interval_hours, uptimes_interval_hours,
		       delay_minutes, jitter_minutes, updated_at
		FROM crawl_config
		WHERE id = 1
	`

	var cfg models.CrawlConfig
	err := r.db.QueryRowContext(ctx, query).Scan(
		&cfg.Enabled,
		&cfg.CoreIntervalHours,
		&cfg.AuthorsIntervalHours,
		&cfg.AppsIntervalHours,
		&cfg.UptimesIntervalHours,
		&cfg.DelayMinutes,
		&cfg.JitterMinutes,
		&cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("query crawl config: %w", err)
	}

	return &cfg, nil
}

// Upsert writes the singleton row, creating it on first use.
func (r *CrawlConfigRepository) Upsert(ctx context.Context, cfg *models.CrawlConfig) error {
	cfg.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO crawl_config (
			id, enabled, core_interval_hours, authors_interval_hours,
			apps_interval_hours, uptimes_interval_hours,
			delay_minutes, jitter_minutes, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			core_interval_hours = EXCLUDED.core_interval_hours,
			authors_interval_hours = EXCLUDED.authors_interval_hours,
			apps_interval_hours = EXCLUDED.apps_interval_hours,
			uptimes_interval_hours = EXCLUDED.uptimes_interval_hours,
			delay_minutes = EXCLUDED.delay_minutes,
			jitter_minutes = EXCLUDED.jitter_minutes,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx,
		query,
		cfg.Enabled,
		cfg.CoreIntervalHours,
		cfg.AuthorsIntervalHours,
		cfg.AppsIntervalHours,
		cfg.UptimesIntervalHours,
		cfg.DelayMinutes,
		cfg.JitterMinutes,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert crawl config: %w", err)
	}

	r.logger.Info("Crawl config updated",
		logger.Bool("enabled", cfg.Enabled),
		logger.Int("delay_minutes", cfg.DelayMinutes),
		logger.Int("jitter_minutes", cfg.JitterMinutes),
	)

	return nil
}
