// Package events publishes domain notifications to the configured broker.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	TypeTestPublished   = "test.published"
	TypeAttemptRecorded = "attempt.recorded"
)

// Envelope is the JSON document written to the broker for every event.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

type TestPublished struct {
	TestID      int64  `json:"testId"`
	Category    string `json:"category"`
	TotalQs     int    `json:"totalQs"`
	PublishedBy string `json:"publishedBy"`
	Automatic   bool   `json:"automatic"`
}

type AttemptRecorded struct {
	Username   string  `json:"username"`
	Category   string  `json:"category"`
	TestID     int64   `json:"testId"`
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Producer is implemented by the NATS and Kafka publishers.
type Producer interface {
	SendMessage(ctx context.Context, key string, value interface{}) error
	Close() error
}

// HealthChecker is implemented by producers that can report broker reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Notifier wraps a Producer. A nil Notifier, or one without a producer, drops every event.
type Notifier struct {
	producer Producer
	logger   *slog.Logger
	now      func() time.Time
}

func NewNotifier(producer Producer, logger *slog.Logger) *Notifier {
	return &Notifier{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

func (n *Notifier) TestPublished(ctx context.Context, e TestPublished) {
	n.publish(ctx, TypeTestPublished, e.Category, e)
}

func (n *Notifier) AttemptRecorded(ctx context.Context, e AttemptRecorded) {
	n.publish(ctx, TypeAttemptRecorded, e.Username, e)
}

// Producer returns the underlying producer, nil when events are disabled.
func (n *Notifier) Producer() Producer {
	if n == nil {
		return nil
	}
	return n.producer
}

func (n *Notifier) Close() error {
	if n == nil || n.producer == nil {
		return nil
	}
	return n.producer.Close()
}

// publish never fails the caller; broker errors are logged and counted by the producer.
func (n *Notifier) publish(ctx context.Context, eventType, key string, payload interface{}) {
	if n == nil || n.producer == nil {
		return
	}

	envelope := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: n.now().UTC(),
		Payload:    payload,
	}

	if err := n.producer.SendMessage(ctx, key, envelope); err != nil {
		n.logger.WarnContext(ctx, "failed to publish event", "type", eventType, "key", key, "error", err)
		return
	}
	n.logger.DebugContext(ctx, "event published", "type", eventType, "id", envelope.ID)
}
