package bootstrap

import (
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/catalogwatch/internal/config"
	"github.com/jonesrussell/catalogwatch/internal/events"
	"github.com/jonesrussell/catalogwatch/internal/logger"
)

// SetupEventPublisher creates an optional event publisher if Redis is enabled.
// Returns nil if Redis is disabled; events are then skipped silently.
func SetupEventPublisher(cfg *config.Config, log logger.Logger) *events.Publisher {
	if !cfg.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	log.Info("Event publisher initialized",
		logger.String("redis_address", cfg.Redis.Address),
	)
	return events.NewPublisher(client, log)
}
