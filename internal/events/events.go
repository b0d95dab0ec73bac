// Package events publishes order lifecycle events to a queue or topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	OrderCreated     Type = "order.created"
	OrderUpdated     Type = "order.updated"
	OrderDeleted     Type = "order.deleted"
	LineItemCreated  Type = "order.line_item.created"
	LineItemUpdated  Type = "order.line_item.updated"
	LineItemDeleted  Type = "order.line_item.deleted"
	ShipmentAssigned Type = "shipment.assigned"
	// OrderReprice asks the worker to re-price an order whose lines fell back to zero.
	OrderReprice Type = "order.reprice"
)

// Event is the message body shared by the API, the queue and the worker.
type Event struct {
	ID            string    `json:"event_id"`
	Type          Type      `json:"type"`
	OrderNumber   int64     `json:"order_number"`
	LineItemID    int64     `json:"line_item_id,omitempty"`
	ShipmentID    int64     `json:"shipment_id,omitempty"`
	LineItemIDs   []int64   `json:"line_item_ids,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// New returns an event with a fresh id and timestamp.
func New(t Type, orderNumber int64) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		OrderNumber: orderNumber,
		OccurredAt:  time.Now().UTC(),
	}
}

// Decode parses a message body produced by a Publisher.
func Decode(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}
	return e, nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards events. Used when no events backend is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
