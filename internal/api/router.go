// Package api wires the HTTP surface: middleware, health, and the v1 routes.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/catalogwatch/internal/config"
	"github.com/jonesrussell/catalogwatch/internal/handlers"
	"github.com/jonesrussell/catalogwatch/internal/logger"
)

const (
	corsMaxAgeHours = 12
)

// Handlers groups the route handlers the router mounts.
type Handlers struct {
	Changes *handlers.ChangeHandler
	Admin   *handlers.AdminHandler
}

func NewRouter(cfg *config.Config, h Handlers, log logger.Logger) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// CORS middleware - must be first
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.Server.CORSOrigins,
			AllowMethods: []string{"GET", "PUT", "OPTIONS"},
			AllowHeaders: []string{
				"Origin", "Content-Type", "Content-Length", "Accept-Encoding",
				"Authorization", "accept", "origin", "Cache-Control",
			},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           corsMaxAgeHours * time.Hour,
		}))
	}

	// Middleware
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1
	v1 := router.Group("/api/v1")

	// Change feed and entity state
	v1.GET("/changes", h.Changes.List)
	v1.GET("/changes/:entity_type/:entity_id", h.Changes.History)
	v1.GET("/entities/:entity_type/:entity_id", h.Changes.State)

	// Crawl administration
	v1.GET("/crawl-config", h.Admin.GetCrawlConfig)
	v1.PUT("/crawl-config", h.Admin.UpdateCrawlConfig)
	v1.GET("/crawl-runs", h.Admin.ListRuns)

	return router
}

func ginLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status_code", statusCode),
			logger.String("client_ip", c.ClientIP()),
			logger.Duration("duration", duration),
		)
	}
}
