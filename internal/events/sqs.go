package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// MessageSender sends a message body with string attributes. *aws.Publisher implements it.
type MessageSender interface {
	SendMessage(ctx context.Context, messageBody string, attributes map[string]string) error
}

// SQSPublisher publishes events as JSON SQS messages.
type SQSPublisher struct {
	sender MessageSender
}

func NewSQSPublisher(sender MessageSender) *SQSPublisher {
	return &SQSPublisher{sender: sender}
}

func (p *SQSPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := map[string]string{
		"event_type":     string(e.Type),
		"correlation_id": e.CorrelationID,
	}
	if err := p.sender.SendMessage(ctx, string(body), attrs); err != nil {
		return fmt.Errorf("publish %s for order %d: %w", e.Type, e.OrderNumber, err)
	}
	return nil
}
