package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lambdaevents "github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-orderlines/internal/events"
	"github.com/imrishuroy/go-orderlines/internal/logging"
	"github.com/imrishuroy/go-orderlines/internal/orders"
	"github.com/imrishuroy/go-orderlines/internal/pricing"
	"github.com/imrishuroy/go-orderlines/internal/service"
)

// OrderCommands is what the worker needs from the order service.
type OrderCommands interface {
	RepriceOrder(ctx context.Context, orderNumber int64) (*orders.Order, pricing.Result, error)
	AssignShipment(ctx context.Context, orderNumber, shipmentID int64, lineIDs []int64) (*orders.Order, error)
}

// errStillUnpriced asks SQS to redeliver a re-price whose catalog lookups failed again.
var errStillUnpriced = errors.New("order still has unpriced line items")

// Processor handles SQS batches of order events.
type Processor struct {
	orders OrderCommands
}

func NewProcessor(svc OrderCommands) *Processor {
	return &Processor{orders: svc}
}

// Handle processes each record and reports the ones that should be
// redelivered as batch item failures.
func (p *Processor) Handle(ctx context.Context, ev lambdaevents.SQSEvent) (lambdaevents.SQSEventResponse, error) {
	var resp lambdaevents.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			slog.ErrorContext(ctx, "worker error", "message_id", rec.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, lambdaevents.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec lambdaevents.SQSMessage) error {
	e, err := events.Decode([]byte(rec.Body))
	if err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if e.CorrelationID != "" {
		ctx = logging.WithRequestID(ctx, e.CorrelationID)
	}

	switch e.Type {
	case events.OrderReprice:
		return p.reprice(ctx, e)
	case events.ShipmentAssigned:
		return p.assignShipment(ctx, e)
	default:
		slog.DebugContext(ctx, "ignoring event", "type", e.Type, "order_number", e.OrderNumber)
		return nil
	}
}

func (p *Processor) reprice(ctx context.Context, e events.Event) error {
	o, res, err := p.orders.RepriceOrder(ctx, e.OrderNumber)
	if err != nil {
		return err
	}
	if o == nil {
		slog.InfoContext(ctx, "order gone before re-price", "order_number", e.OrderNumber)
		return nil
	}
	if res.Degraded() {
		return fmt.Errorf("order %d: %w (products %v)", e.OrderNumber, errStillUnpriced, res.Unpriced)
	}
	return nil
}

func (p *Processor) assignShipment(ctx context.Context, e events.Event) error {
	o, err := p.orders.AssignShipment(ctx, e.OrderNumber, e.ShipmentID, e.LineItemIDs)
	switch {
	case errors.Is(err, service.ErrUnknownLineItem), errors.Is(err, service.ErrInvalidOrder):
		// redelivery cannot fix a bad assignment
		slog.WarnContext(ctx, "dropping shipment assignment", "order_number", e.OrderNumber, "shipment_id", e.ShipmentID, "error", err)
		return nil
	case err != nil:
		return err
	case o == nil:
		slog.InfoContext(ctx, "order gone before shipment assignment", "order_number", e.OrderNumber, "shipment_id", e.ShipmentID)
	}
	return nil
}
