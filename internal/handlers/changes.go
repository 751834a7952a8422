// Package handlers exposes the change feed, entity state, and crawl
// administration over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
	"github.com/jonesrussell/catalogwatch/internal/repository"
)

type ChangeHandler struct {
	changes *repository.ChangeLogRepository
	states  *repository.MaterializedStateRepository
	logger  logger.Logger
}

func NewChangeHandler(
	changes *repository.ChangeLogRepository,
	states *repository.MaterializedStateRepository,
	log logger.Logger,
) *ChangeHandler {
	return &ChangeHandler{
		changes: changes,
		states:  states,
		logger:  log,
	}
}

// List serves the paginated change feed, newest first.
func (h *ChangeHandler) List(c *gin.Context) {
	filter := repository.FeedFilter{
		Cursor: c.Query("cursor"),
	}

	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page_size"})
			return
		}
		filter.PageSize = size
	}

	if raw := c.Query("entity_type"); raw != "" {
		entityType := models.EntityType(raw)
		if !entityType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown entity_type"})
			return
		}
		filter.EntityType = &entityType
	}

	page, err := h.changes.List(c.Request.Context(), filter)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		h.logger.Error("Failed to list changes",
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list changes"})
		return
	}

	c.JSON(http.StatusOK, page)
}

// History serves one entity's change records, newest first.
func (h *ChangeHandler) History(c *gin.Context) {
	entityType, entityID, ok := entityParams(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := h.changes.ListByEntity(c.Request.Context(), entityType, entityID, limit)
	if err != nil {
		h.logger.Error("Failed to list entity history",
			logger.String("entity_type", string(entityType)),
			logger.String("entity_id", entityID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list entity history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changes": records,
		"count":   len(records),
	})
}

// State serves one entity's latest materialized attributes.
func (h *ChangeHandler) State(c *gin.Context) {
	entityType, entityID, ok := entityParams(c)
	if !ok {
		return
	}

	state, err := h.states.Get(c.Request.Context(), entityType, entityID)
	if err != nil {
		if errors.Is(err, repository.ErrStateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		h.logger.Error("Failed to get entity state",
			logger.String("entity_type", string(entityType)),
			logger.String("entity_id", entityID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get entity state"})
		return
	}

	c.JSON(http.StatusOK, state)
}

func entityParams(c *gin.Context) (models.EntityType, string, bool) {
	entityType := models.EntityType(c.Param("entity_type"))
	if !entityType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown entity_type"})
		return "", "", false
	}

	entityID := c.Param("entity_id")
	if entityID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing entity_id"})
		return "", "", false
	}

	return entityType, entityID, true
}
