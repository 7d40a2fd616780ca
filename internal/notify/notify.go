// Package notify delivers application status notifications to downstream
// consumers after a reviewer's decision has been persisted.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"docdesk/pkg/requestcontext"
)

// EventStatusChanged is the type of every event published here.
const EventStatusChanged = "application.status_changed"

// Event describes a committed application status change.
type Event struct {
	Type          string    `json:"type"`
	ApplicationID string    `json:"application_id"`
	DocumentID    string    `json:"document_id"`
	ApplicantID   string    `json:"applicant_id"`
	ReviewerID    string    `json:"reviewer_id"`
	FromStatus    string    `json:"from_status"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Producer is the subset of the Kafka producer the publisher needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaPublisher writes events as JSON records keyed by application id so
// all events for one application land on the same partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return p.producer.Produce(ctx, p.topic, []byte(event.ApplicationID), value)
}

// LogPublisher logs events instead of sending them. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "application notification",
		"type", event.Type,
		"application_id", event.ApplicationID,
		"status", event.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
