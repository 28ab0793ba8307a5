// Package events publishes contact lifecycle events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/folio/backend/internal/model"
)

// RoutingKeyContactSubmitted is the routing key for newly stored contacts.
const RoutingKeyContactSubmitted = "contact.submitted"

// Publisher sends events to a broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// ContactSubmitted is the payload of a contact.submitted event. It carries
// classification results only; message bodies stay in the store.
type ContactSubmitted struct {
	EventID    string         `json:"event_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	ContactID  string         `json:"contact_id"`
	Priority   model.Priority `json:"priority"`
	Tags       []string       `json:"tags"`
	Source     model.Source   `json:"source"`
}

// NewContactSubmitted builds the event for c.
func NewContactSubmitted(c *model.Contact) ContactSubmitted {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return ContactSubmitted{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		ContactID:  c.ID,
		Priority:   c.Priority,
		Tags:       tags,
		Source:     c.Source,
	}
}

// PublishContactSubmitted encodes and publishes the event for c.
func PublishContactSubmitted(ctx context.Context, p Publisher, c *model.Contact) error {
	payload, err := json.Marshal(NewContactSubmitted(c))
	if err != nil {
		return fmt.Errorf("marshal contact.submitted: %w", err)
	}
	return p.Publish(ctx, RoutingKeyContactSubmitted, payload)
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.logger.Debug("noop publish", "routing_key", routingKey, "size", len(payload))
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
