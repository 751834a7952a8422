package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

func stateColumns() []string {
	return []string{"entity_type", "entity_id", "fields", "last_crawl_id", "updated_at"}
}

func TestMaterialized_ListForUpdateTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMaterializedStateRepository(db, logger.NewNop())

	now := time.Now()
	rows := sqlmock.NewRows(stateColumns()).
		AddRow("endpoint", "E1", []byte(`{"entity_id":"E1","price":0.002}`), "crawl-1", now).
		AddRow("model", "acme/gpt-1", []byte(`{"entity_id":"acme/gpt-1"}`), "crawl-1", now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(rows)

	tx, err := db.Beginx()
	require.NoError(t, err)

	states, err := repo.ListForUpdateTx(context.Background(), tx,
		[]models.EntityType{models.EntityModel, models.EntityEndpoint, models.EntityProvider})
	require.NoError(t, err)

	require.Len(t, states, 2)
	e1 := states[models.EntityKey{Type: models.EntityEndpoint, ID: "E1"}]
	assert.Equal(t, 0.002, e1.Fields["price"])
	assert.Equal(t, "crawl-1", e1.LastCrawlID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialized_UpsertTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMaterializedStateRepository(db, logger.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO materialized_state")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)

	err = repo.UpsertTx(context.Background(), tx, models.MaterializedEntityState{
		EntityType:  models.EntityEndpoint,
		EntityID:    "E1",
		Fields:      map[string]any{"entity_id": "E1", "price": 0.003},
		LastCrawlID: "crawl-2",
		UpdatedAt:   time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialized_DeleteTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMaterializedStateRepository(db, logger.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM materialized_state")).
		WithArgs("endpoint", "E2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Beginx()
	require.NoError(t, err)

	err = repo.DeleteTx(context.Background(), tx,
		models.EntityKey{Type: models.EntityEndpoint, ID: "E2"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialized_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMaterializedStateRepository(db, logger.NewNop())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM materialized_state")).
		WithArgs("app", "42").
		WillReturnRows(sqlmock.NewRows(stateColumns()).
			AddRow("app", "42", []byte(`{"entity_id":"42","title":"ChatThing"}`), "crawl-5", now))

	state, err := repo.Get(context.Background(), models.EntityApp, "42")
	require.NoError(t, err)
	assert.Equal(t, "ChatThing", state.Fields["title"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialized_Get_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMaterializedStateRepository(db, logger.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("FROM materialized_state")).
		WithArgs("app", "missing").
		WillReturnRows(sqlmock.NewRows(stateColumns()))

	_, err := repo.Get(context.Background(), models.EntityApp, "missing")
	require.ErrorIs(t, err, ErrStateNotFound)
}
