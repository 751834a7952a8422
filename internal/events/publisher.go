// Package events publishes crawl lifecycle events to Redis Streams so
// downstream consumers can react to catalog changes without polling the feed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/catalogwatch/internal/logger"
	"github.com/jonesrussell/catalogwatch/internal/models"
)

// StreamName is the Redis stream crawl events are appended to.
const StreamName = "catalog-change-events"

// asyncPublishTimeout is the context timeout for async publish operations.
const asyncPublishTimeout = 5 * time.Second

// EventType identifies the kind of crawl event.
type EventType string

const (
	EventCrawlCompleted EventType = "CRAWL_COMPLETED"
	EventCrawlFailed    EventType = "CRAWL_FAILED"
	EventSchemaDrift    EventType = "SCHEMA_DRIFT"
)

// CrawlEvent is the payload appended to the stream.
type CrawlEvent struct {
	EventID   uuid.UUID       `json:"event_id"`
	EventType EventType       `json:"event_type"`
	CrawlID   string          `json:"crawl_id"`
	Category  models.Category `json:"category"`
	Created   int             `json:"created,omitempty"`
	Updated   int             `json:"updated,omitempty"`
	Removed   int             `json:"removed,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher publishes crawl events to Redis Streams.
type Publisher struct {
	client *redis.Client
	log    logger.Logger
}

// NewPublisher creates a new event publisher.
// Returns nil if client is nil; a nil Publisher is a safe no-op.
func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{
		client: client,
		log:    log,
	}
}

// Publish sends an event to the Redis stream.
func (p *Publisher) Publish(ctx context.Context, event CrawlEvent) error {
	if p == nil || p.client == nil {
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]any{
			"event": string(payload),
		},
	})

	if publishErr := result.Err(); publishErr != nil {
		if p.log != nil {
			p.log.Error("Failed to publish event",
				logger.String("event_type", string(event.EventType)),
				logger.String("crawl_id", event.CrawlID),
				logger.Error(publishErr),
			)
		}
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	if p.log != nil {
		p.log.Info("Published crawl event",
			logger.String("event_type", string(event.EventType)),
			logger.String("crawl_id", event.CrawlID),
			logger.String("stream_id", result.Val()),
		)
	}

	return nil
}

// PublishAsync publishes an event asynchronously.
// Errors are logged but not returned.
func (p *Publisher) PublishAsync(event CrawlEvent) {
	if p == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil && p.log != nil {
			p.log.Error("Async publish failed",
				logger.String("event_type", string(event.EventType)),
				logger.String("crawl_id", event.CrawlID),
				logger.Error(err),
			)
		}
	}()
}
