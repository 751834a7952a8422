package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

// CrawlRunRepository records crawl run lifecycles. Completed rows give the
// scheduler restart-safe last-run timestamps and operators a failure history.
type CrawlRunRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewCrawlRunRepository(db *sqlx.DB, log logger.Logger) *CrawlRunRepository {
	return &CrawlRunRepository{
		db:     db,
		logger: log,
	}
}

// Start records a new running crawl.
func (r *CrawlRunRepository) Start(ctx context.Context, run *models.CrawlRun) error {
	run.Status = models.RunRunning
	run.StartedAt = time.Now().UTC()

	query := `
		INSERT INTO crawl_runs (id, category, status, started_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, run.ID, run.Category, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert crawl run: %w", err)
	}
	return nil
}

// Complete marks a run finished, success or failure.
func (r *CrawlRunRepository) Complete(ctx context.Context, run *models.CrawlRun) error {
	now := time.Now().UTC()
	run.CompletedAt = &now

	query := `
		UPDATE crawl_runs
		SET status = $2, error = $3, created = $4, updated = $5, removed = $6, completed_at = $7
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx,
		query,
		run.ID,
		run.Status,
		run.Error,
		run.Created,
		run.Updated,
		run.Removed,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("complete crawl run: %w", err)
	}
	return nil
}

// LastCompleted returns the most recent completion time per category,
// regardless of run outcome. Categories that never ran are absent.
func (r *CrawlRunRepository) LastCompleted(ctx context.Context) (map[models.Category]time.Time, error) {
	query := `
		SELECT category, MAX(completed_at)
		FROM crawl_runs
		WHERE completed_at IS NOT NULL
		GROUP BY category
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query last completed runs: %w", err)
	}
	defer rows.Close()

	result := make(map[models.Category]time.Time)
	for rows.Next() {
		var category models.Category
		var completed time.Time
		if scanErr := rows.Scan(&category, &completed); scanErr != nil {
			return nil, fmt.Errorf("scan last completed run: %w", scanErr)
		}
		result[category] = completed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate last completed runs: %w", err)
	}

	return result, nil
}

// List returns recent runs, newest first, optionally scoped to one category.
func (r *CrawlRunRepository) List(ctx context.Context, category *models.Category, limit int) ([]models.CrawlRun, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	query := `
		SELECT id, category, status, error, created, updated, removed, started_at, completed_at
		FROM crawl_runs
	`
	var args []any
	if category != nil {
		query += ` WHERE category = $1 ORDER BY started_at DESC LIMIT $2`
		args = []any{*category, limit}
	} else {
		query += ` ORDER BY started_at DESC LIMIT $1`
		args = []any{limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query crawl runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.CrawlRun, 0)
	for rows.Next() {
		var run models.CrawlRun
		if scanErr := rows.Scan(
			&run.ID,
			&run.Category,
			&run.Status,
			&run.Error,
			&run.Created,
			&run.Updated,
			&run.Removed,
			&run.StartedAt,
			&run.CompletedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan crawl run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl runs: %w", err)
	}

	return runs, nil
}
