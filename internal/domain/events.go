package domain

import (
	"context"

	"sellerdesk/internal/core/id"
)

// Event is a domain event delivered through the transactional outbox.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher writes events in the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
