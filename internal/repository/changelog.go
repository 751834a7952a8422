// Package repository implements the postgres-backed stores of the
// catalogwatch pipeline: the append-only change log, the materialized entity
// state, raw snapshots, crawl runs, and the scheduler configuration.
package repository

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ChangeLogRepository is the append-only change log. Sequence numbers come
// from a BIGSERIAL at insert time; no update or delete statements exist.
type ChangeLogRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewChangeLogRepository(db *sqlx.DB, log logger.Logger) *ChangeLogRepository {
	return &ChangeLogRepository{
		db:     db,
		logger: log,
	}
}

// AppendTx inserts the records within an existing crawl transaction and
// fills in their store-assigned sequence numbers.
func (r *ChangeLogRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, records []models.ChangeRecord) error {
	query := `
		INSERT INTO change_log (
			entity_type, entity_id, crawl_id, field,
			old_value, new_value, kind, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING sequence
	`

	for i := range records {
		record := &records[i]

		oldJSON, err := marshalValue(record.OldValue)
		if err != nil {
			return fmt.Errorf("marshal old value: %w", err)
		}
		newJSON, err := marshalValue(record.NewValue)
		if err != nil {
			return fmt.Errorf("marshal new value: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			query,
			record.EntityType,
			record.EntityID,
			record.CrawlID,
			record.Field,
			oldJSON,
			newJSON,
			record.Kind,
			record.DetectedAt,
		).Scan(&record.Sequence)
		if err != nil {
			return fmt.Errorf("append change record: %w", err)
		}
	}

	return nil
}

// FeedFilter holds pagination and filter params for the change feed.
type FeedFilter struct {
	Cursor     string
	PageSize   int
	EntityType *models.EntityType
}

// FeedPage is one page of the change feed, newest first.
type FeedPage struct {
	Items      []models.ChangeRecord `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
	IsDone     bool                  `json:"is_done"`
}

// List returns a page of change records descending by sequence. The cursor is
// an opaque encoding of the last seen sequence, so a traversal resumes
// exactly where it left off regardless of rows inserted after the cursor was
// issued.
func (r *ChangeLogRepository) List(ctx context.Context, filter FeedFilter) (*FeedPage, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var clauses []string
	var args []any
	pos := 1

	if filter.Cursor != "" {
		seq, err := DecodeCursor(filter.Cursor)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, fmt.Sprintf("sequence < $%d", pos))
		args = append(args, seq)
		pos++
	}
	if filter.EntityType != nil {
		clauses = append(clauses, fmt.Sprintf("entity_type = $%d", pos))
		args = append(args, *filter.EntityType)
		pos++
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	// Fetch one extra row to know whether the feed continues.
	query := `
		SELECT sequence, entity_type, entity_id, crawl_id, field,
		       old_value, new_value, kind, detected_at
		FROM change_log` + where + `
		ORDER BY sequence DESC
		LIMIT $` + strconv.Itoa(pos)
	args = append(args, pageSize+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query change log: %w", err)
	}
	defer rows.Close()

	items, err := scanChangeRows(rows)
	if err != nil {
		return nil, err
	}

	page := &FeedPage{IsDone: true}
	if len(items) > pageSize {
		items = items[:pageSize]
		page.IsDone = false
	}
	page.Items = items
	if len(items) > 0 && !page.IsDone {
		page.NextCursor = EncodeCursor(items[len(items)-1].Sequence)
	}

	return page, nil
}

// ListByEntity returns one entity's change history, newest first.
func (r *ChangeLogRepository) ListByEntity(
	ctx context.Context,
	entityType models.EntityType,
	entityID string,
	limit int,
) ([]models.ChangeRecord, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	query := `
		SELECT sequence, entity_type, entity_id, crawl_id, field,
		       old_value, new_value, kind, detected_at
		FROM change_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY sequence DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query entity history: %w", err)
	}
	defer rows.Close()

	return scanChangeRows(rows)
}

func scanChangeRows(rows *sql.Rows) ([]models.ChangeRecord, error) {
	records := make([]models.ChangeRecord, 0)
	for rows.Next() {
		var record models.ChangeRecord
		var oldJSON, newJSON []byte

		if err := rows.Scan(
			&record.Sequence,
			&record.EntityType,
			&record.EntityID,
			&record.CrawlID,
			&record.Field,
			&oldJSON,
			&newJSON,
			&record.Kind,
			&record.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan change record: %w", err)
		}

		var err error
		if record.OldValue, err = unmarshalValue(oldJSON); err != nil {
			return nil, fmt.Errorf("unmarshal old value: %w", err)
		}
		if record.NewValue, err = unmarshalValue(newJSON); err != nil {
			return nil, fmt.Errorf("unmarshal new value: %w", err)
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change records: %w", err)
	}
	return records, nil
}

func marshalValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalValue(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

const cursorPrefix = "seq:"

// ErrInvalidCursor is returned for continuation tokens this service never
// issued.
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor wraps a sequence number in an opaque continuation token.
func EncodeCursor(sequence int64) string {
	raw := cursorPrefix + strconv.FormatInt(sequence, 10)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor unwraps a continuation token.
func DecodeCursor(cursor string) (int64, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	s, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: bad prefix", ErrInvalidCursor)
	}
	seq, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad sequence", ErrInvalidCursor)
	}
	return seq, nil
}
