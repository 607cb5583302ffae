// Package outbox implements the transactional outbox: events are written in the same
// transaction as the state change they describe and relayed to the broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "claimverifier/pkg/domain"
)

// Event is one outbox row.
type Event struct {
	ID          id.EventID
	EventType   string
	AggregateID string
	Payload     json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewEvent marshals payload into an unpublished event.
func NewEvent(eventType, aggregateID string, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal outbox payload: %w", err)
	}
	return Event{
		ID:          id.EventID(uuid.New()),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     raw,
		CreatedAt:   now,
	}, nil
}

// Store persists outbox events. Append honours a transaction carried in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
	// FetchUnpublished returns up to limit unpublished events, oldest first. Inside a
	// transaction the rows stay locked until commit.
	FetchUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []id.EventID, at time.Time) error
}

// Publisher delivers one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
