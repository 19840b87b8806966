package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	EventProductScraped EventType = "PRODUCT_SCRAPED"
	EventJobStarted     EventType = "JOB_STARTED"
	EventJobFinished    EventType = "JOB_FINISHED"
)

// Event is one scraper notification as published to the stream.
type Event struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	Variants  int       `json:"variants,omitempty"`
	Images    int       `json:"images,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Publisher pushes scraper events onto a redis stream. A nil Publisher is
// valid and drops everything, so callers never need to branch on whether
// eventing is configured.
type Publisher struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		logger: slog.Default().With("component", "events"),
	}
}

// Publish appends the event to the stream. Failures are logged, not
// returned: eventing is advisory and must never fail a scrape.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil || p.client == nil {
		return
	}

	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("event marshal failed", "type", event.EventType, "error", err)
		return
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		p.logger.Warn("event publish failed", "type", event.EventType, "error", err)
		return
	}

	p.logger.Debug("event published", "type", event.EventType, "event_id", event.EventID)
}

// Connect dials redis and verifies the connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
