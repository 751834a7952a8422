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

// AdminHandler manages the crawl configuration and exposes run history.
type AdminHandler struct {
	configs *repository.CrawlConfigRepository
	runs    *repository.CrawlRunRepository
	logger  logger.Logger
}

func NewAdminHandler(
	configs *repository.CrawlConfigRepository,
	runs *repository.CrawlRunRepository,
	log logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		configs: configs,
		runs:    runs,
		logger:  log,
	}
}

// GetCrawlConfig returns the active configuration. When no row exists yet the
// disabled defaults are returned, so clients always see a full config shape.
func (h *AdminHandler) GetCrawlConfig(c *gin.Context) {
	cfg, err := h.configs.Get(c.Request.Context())
	if errors.Is(err, repository.ErrNotConfigured) {
		defaults := models.DefaultCrawlConfig()
		c.JSON(http.StatusOK, defaults)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get crawl config",
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get crawl config"})
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// UpdateCrawlConfig replaces the configuration. The scheduler picks the new
// values up on its next tick.
func (h *AdminHandler) UpdateCrawlConfig(c *gin.Context) {
	var cfg models.CrawlConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.configs.Upsert(c.Request.Context(), &cfg); err != nil {
		h.logger.Error("Failed to update crawl config",
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update crawl config"})
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// ListRuns returns recent crawl runs, newest first.
func (h *AdminHandler) ListRuns(c *gin.Context) {
	var category *models.Category
	if raw := c.Query("category"); raw != "" {
		cat := models.Category(raw)
		if !cat.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
			return
		}
		category = &cat
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

	runs, err := h.runs.List(c.Request.Context(), category, limit)
	if err != nil {
		h.logger.Error("Failed to list crawl runs",
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list crawl runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}
