package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

// ErrStateNotFound is returned when an entity has no materialized row.
var ErrStateNotFound = errors.New("materialized state not found")

// MaterializedStateRepository holds the latest canonical state per entity.
// Writes happen only inside a crawl transaction, paired with the change-log
// appends for the same entities.
type MaterializedStateRepository struct {
	db     *sqlx.DB
	logger logger.Logger
}

func NewMaterializedStateRepository(db *sqlx.DB, log logger.Logger) *MaterializedStateRepository {
	return &MaterializedStateRepository{
		db:     db,
		logger: log,
	}
}

// ListForUpdateTx loads every materialized row of the given entity types,
// locking them for the duration of the crawl transaction so concurrent
// writers to the same entities serialize.
func (r *MaterializedStateRepository) ListForUpdateTx(
	ctx context.Context,
	tx *sqlx.Tx,
	entityTypes []models.EntityType,
) (map[models.EntityKey]models.MaterializedEntityState, error) {
	types := make([]string, len(entityTypes))
	for i, t := range entityTypes {
		types[i] = string(t)
	}

	query := `
		SELECT entity_type, entity_id, fields, last_crawl_id, updated_at
		FROM materialized_state
		WHERE entity_type = ANY($1)
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, pq.Array(types))
	if err != nil {
		return nil, fmt.Errorf("query materialized states: %w", err)
	}
	defer rows.Close()

	states := make(map[models.EntityKey]models.MaterializedEntityState)
	for rows.Next() {
		state, scanErr := scanStateRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		states[state.Key()] = *state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materialized states: %w", err)
	}

	return states, nil
}

// UpsertTx writes one entity's new state within the crawl transaction.
func (r *MaterializedStateRepository) UpsertTx(
	ctx context.Context,
	tx *sqlx.Tx,
	state models.MaterializedEntityState,
) error {
	fieldsJSON, err := json.Marshal(state.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	query := `
		INSERT INTO materialized_state (entity_type, entity_id, fields, last_crawl_id, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			fields = EXCLUDED.fields,
			last_crawl_id = EXCLUDED.last_crawl_id,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx,
		query,
		state.EntityType,
		state.EntityID,
		fieldsJSON,
		state.LastCrawlID,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert materialized state: %w", err)
	}

	return nil
}

// DeleteTx drops a removed entity's row within the crawl transaction.
func (r *MaterializedStateRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, key models.EntityKey) error {
	query := `DELETE FROM materialized_state WHERE entity_type = $1 AND entity_id = $2`

	if _, err := tx.ExecContext(ctx, query, key.Type, key.ID); err != nil {
		return fmt.Errorf("delete materialized state: %w", err)
	}
	return nil
}

// Get returns one entity's current materialized state.
func (r *MaterializedStateRepository) Get(
	ctx context.Context,
	entityType models.EntityType,
	entityID string,
) (*models.MaterializedEntityState, error) {
	query := `
		SELECT entity_type, entity_id, fields, last_crawl_id, updated_at
		FROM materialized_state
		WHERE entity_type = $1 AND entity_id = $2
	`

	row := r.db.QueryRowContext(ctx, query, entityType, entityID)

	var state models.MaterializedEntityState
	var fieldsJSON []byte
	err := row.Scan(
		&state.EntityType,
		&state.EntityID,
		&fieldsJSON,
		&state.LastCrawlID,
		&state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query materialized state: %w", err)
	}

	if err := json.Unmarshal(fieldsJSON, &state.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}

	return &state, nil
}

func scanStateRow(rows *sql.Rows) (*models.MaterializedEntityState, error) {
	var state models.MaterializedEntityState
	var fieldsJSON []byte

	if err := rows.Scan(
		&state.EntityType,
		&state.EntityID,
		&fieldsJSON,
		&state.LastCrawlID,
		&state.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan materialized state: %w", err)
	}
	if err := json.Unmarshal(fieldsJSON, &state.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return &state, nil
}
