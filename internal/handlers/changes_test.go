package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/catalogwatch/internal/handlers"
	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/repository"
)

func setupChangeRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	db := sqlx.NewDb(raw, "sqlmock")
	log := logger.NewNop()
	handler := handlers.NewChangeHandler(
		repository.NewChangeLogRepository(db, log),
		repository.NewMaterializedStateRepository(db, log),
		log,
	)

	router := gin.New()
	router.GET("/changes", handler.List)
	router.GET("/changes/:entity_type/:entity_id", handler.History)
	router.GET("/entities/:entity_type/:entity_id", handler.State)
	return router, mock
}

func changeColumns() []string {
	return []string{
		"sequence", "entity_type", "entity_id", "crawl_id", "field",
		"old_value", "new_value", "kind", "detected_at",
	}
}

func TestChanges_List(t *testing.T) {
	router, mock := setupChangeRouter(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM change_log")).
		WillReturnRows(sqlmock.NewRows(changeColumns()).
			AddRow(int64(12), "endpoint", "E1", "crawl-2", "price", []byte(`0.002`), []byte(`0.003`), "updated", now).
			AddRow(int64(11), "model", "acme/gpt-1", "crawl-2", "name", nil, []byte(`"GPT One"`), "created", now))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/changes", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var page repository.FeedPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)
	assert.True(t, page.IsDone)
	assert.Equal(t, "price", page.Items[0].Field)
	assert.Equal(t, 0.003, page.Items[0].NewValue)
	assert.Nil(t, page.Items[1].OldValue)
}

func TestChanges_List_InvalidEntityType(t *testing.T) {
	router, _ := setupChangeRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/changes?entity_type=banana", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChanges_List_InvalidCursor(t *testing.T) {
	router, _ := setupChangeRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/changes?cursor=not-a-cursor", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChanges_List_InvalidPageSize(t *testing.T) {
	router, _ := setupChangeRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/changes?page_size=zero", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChanges_History(t *testing.T) {
	router, mock := setupChangeRouter(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE entity_type = $1 AND entity_id = $2")).
		WithArgs("endpoint", "E1", 50).
		WillReturnRows(sqlmock.NewRows(changeColumns()).
			AddRow(int64(12), "endpoint", "E1", "crawl-2", "price", []byte(`0.002`), []byte(`0.003`), "updated", now))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/changes/endpoint/E1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Changes []json.RawMessage `json:"changes"`
		Count   int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestChanges_State(t *testing.T) {
	router, mock := setupChangeRouter(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM materialized_state")).
		WithArgs("model", "gpt-1").
		WillReturnRows(sqlmock.NewRows([]string{"entity_type", "entity_id", "fields", "last_crawl_id", "updated_at"}).
			AddRow("model", "gpt-1", []byte(`{"entity_id":"gpt-1","name":"GPT One"}`), "crawl-2", time.Now()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/entities/model/gpt-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "GPT One")
}

func TestChanges_State_NotFound(t *testing.T) {
	router, mock := setupChangeRouter(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM materialized_state")).
		WillReturnRows(sqlmock.NewRows([]string{"entity_type", "entity_id", "fields", "last_crawl_id", "updated_at"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/entities/model/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChanges_State_UnknownEntityType(t *testing.T) {
	router, _ := setupChangeRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/entities/banana/1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
