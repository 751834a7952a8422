package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

// SnapshotRepository stores raw upstream payloads for audit. Rows are
// insert-only; nothing ever mutates them.
type SnapshotRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewSnapshotRepository(db *sqlx.DB, log logger.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: log,
	}
}

// InsertTx stores one payload within the crawl transaction, so an aborted
// crawl leaves no snapshot behind.
func (r *SnapshotRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, snapshot models.RawSnapshot) error {
	query := `
		INSERT INTO raw_snapshots (crawl_id, category, kind, payload, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.ExecContext(ctx,
		query,
		snapshot.CrawlID,
		snapshot.Category,
		snapshot.Kind,
		[]byte(snapshot.Payload),
		snapshot.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert raw snapshot: %w", err)
	}
	return nil
}
