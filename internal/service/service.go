// Package service implements order and line item commands on top of the
// order store, pricing them through the catalog and announcing changes as
// events.
//
// Lookups of a single order or line item return (nil, nil) when it does not
// exist; mutations of an unknown order do the same and touch nothing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/go-orderlines/internal/events"
	"github.com/imrishuroy/go-orderlines/internal/logging"
	"github.com/imrishuroy/go-orderlines/internal/orders"
	"github.com/imrishuroy/go-orderlines/internal/pricing"
)

var (
	// ErrInvalidOrder is returned for orders or line items that cannot be stored.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrUnknownLineItem is returned when a shipment names a line item the order does not have.
	ErrUnknownLineItem = errors.New("unknown line item")
)

type OrderService struct {
	store     orders.Store
	pricing   *pricing.Engine
	publisher events.Publisher
}

func NewOrderService(store orders.Store, engine *pricing.Engine, publisher events.Publisher) *OrderService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &OrderService{store: store, pricing: engine, publisher: publisher}
}

func (s *OrderService) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return s.store.FindAll(ctx)
}

// ListOrdersByAccount returns the account's orders, oldest first.
func (s *OrderService) ListOrdersByAccount(ctx context.Context, accountID int64) ([]orders.Order, error) {
	return s.store.FindAllByAccountID(ctx, accountID, true)
}

func (s *OrderService) GetOrder(ctx context.Context, orderNumber int64) (*orders.Order, error) {
	return s.store.FindByOrderNumber(ctx, orderNumber)
}

func (s *OrderService) GetLineItems(ctx context.Context, orderNumber int64) ([]orders.OrderLineItem, error) {
	return s.store.FindLineItemsByOrderNumber(ctx, orderNumber)
}

// CreateOrder prices and stores a new order. Identities in the payload are
// ignored; the stored order carries the assigned ones.
func (s *OrderService) CreateOrder(ctx context.Context, o orders.Order) (*orders.Order, error) {
	if err := validateOrder(o); err != nil {
		return nil, err
	}
	o.OrderNumber = 0
	for i := range o.LineItems {
		o.LineItems[i].ID = 0
	}

	res := s.pricing.PriceOrder(ctx, &o)
	if err := s.store.Save(ctx, &o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	slog.InfoContext(ctx, "order created", "order_number", o.OrderNumber, "total_price", o.TotalPrice())
	s.publish(ctx, events.New(events.OrderCreated, o.OrderNumber))
	s.scheduleReprice(ctx, o.OrderNumber, res)
	return &o, nil
}

// UpdateOrder replaces order orderNumber with o. The path number wins over
// any number in the payload. Line items whose id is not part of the stored
// order are added as new items; stored items missing from o are removed.
func (s *OrderService) UpdateOrder(ctx context.Context, orderNumber int64, o orders.Order) (*orders.Order, error) {
	if err := validateOrder(o); err != nil {
		return nil, err
	}
	existing, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderNumber, err)
	}
	if existing == nil {
		return nil, nil
	}

	o.OrderNumber = orderNumber
	for i := range o.LineItems {
		if existing.LineItem(o.LineItems[i].ID) < 0 {
			o.LineItems[i].ID = 0
		}
	}

	res := s.pricing.PriceOrder(ctx, &o)
	if err := s.store.Save(ctx, &o); err != nil {
		return nil, fmt.Errorf("save order %d: %w", orderNumber, err)
	}

	slog.InfoContext(ctx, "order updated", "order_number", orderNumber, "total_price", o.TotalPrice())
	s.publish(ctx, events.New(events.OrderUpdated, orderNumber))
	s.scheduleReprice(ctx, orderNumber, res)
	return &o, nil
}

// DeleteOrder removes the order and its line items and returns the order as
// it was before deletion.
func (s *OrderService) DeleteOrder(ctx context.Context, orderNumber int64) (*orders.Order, error) {
	existing, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderNumber, err)
	}
	if existing == nil {
		return nil, nil
	}
	if err := s.store.Delete(ctx, *existing); err != nil {
		return nil, fmt.Errorf("delete order %d: %w", orderNumber, err)
	}

	slog.InfoContext(ctx, "order deleted", "order_number", orderNumber)
	s.publish(ctx, events.New(events.OrderDeleted, orderNumber))
	return existing, nil
}

func (s *OrderService) CreateLineItem(ctx context.Context, orderNumber int64, li orders.OrderLineItem) (*orders.OrderLineItem, error) {
	if err := validateLineItem(li); err != nil {
		return nil, err
	}
	o, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderNumber, err)
	}
	if o == nil {
		return nil, nil
	}

	li.ID = 0
	res := s.pricing.PriceLineItem(ctx, &li)
	o.AddLineItem(li)
	if err := s.store.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order %d: %w", orderNumber, err)
	}
	created := o.LineItems[len(o.LineItems)-1]

	slog.InfoContext(ctx, "line item created", "order_number", orderNumber, "line_item_id", created.ID)
	e := events.New(events.LineItemCreated, orderNumber)
	e.LineItemID = created.ID
	s.publish(ctx, e)
	s.scheduleReprice(ctx, orderNumber, res)
	return &created, nil
}

// UpdateLineItem replaces line item lineID of order orderNumber.
func (s *OrderService) UpdateLineItem(ctx context.Context, orderNumber, lineID int64, li orders.OrderLineItem) (*orders.OrderLineItem, error) {
	if err := validateLineItem(li); err != nil {
		return nil, err
	}
	o, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderNumber, err)
	}
	if o == nil {
		return nil, nil
	}
	i := o.LineItem(lineID)
	if i < 0 {
		return nil, nil
	}

	li.ID = lineID
	res := s.pricing.PriceLineItem(ctx, &li)
	o.LineItems[i] = li
	if err := s.store.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order %d: %w", orderNumber, err)
	}

	slog.InfoContext(ctx, "line item updated", "order_number", orderNumber, "line_item_id", lineID)
	e := events.New(events.LineItemUpdated, orderNumber)
	e.LineItemID = lineID
	s.publish(ctx, e)
	s.scheduleReprice(ctx, orderNumber, res)
	return &li, nil
}

// DeleteLineItem removes line item lineID from order orderNumber and returns it.
func (s *OrderService) DeleteLineItem(ctx context.Context, orderNumber, lineID int64) (*orders.OrderLineItem, error) {
	o, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderNumber, err)
	}
	if o == nil {
		return nil, nil
	}
	removed, ok := o.RemoveLineItem(lineID)
	if !ok {
		return nil, nil
	}
	if err := s.store.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order %d: %w", orderNumber, err)
	}

	slog.InfoContext(ctx, "line item deleted", "order_number", orderNumber, "line_item_id", lineID)
	e := events.New(events.LineItemDeleted, orderNumber)
	e.LineItemID = lineID
	s.publish(ctx, e)
	return &removed, nil
}

// RepriceOrder prices every line item of the order again and stores the
// result. It does not schedule another re-price; the caller decides what to
// do with a degraded result.
func (s *OrderService) RepriceOrder(ctx context.Context, orderNumber int64) (*orders.Order, pricing.Result, error) {
	o, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, pricing.Result{}, fmt.Errorf("find order %d: %w", orderNumber, err)
	}
	if o == nil {
		return nil, pricing.Result{}, nil
	}

	res := s.pricing.PriceOrder(ctx, o)
	if err := s.store.Save(ctx, o); err != nil {
		return nil, res, fmt.Errorf("save order %d: %w", orderNumber, err)
	}

	slog.InfoContext(ctx, "order repriced", "order_number", orderNumber, "total_price", o.TotalPrice(), "unpriced", len(res.Unpriced))
	s.publish(ctx, events.New(events.OrderUpdated, orderNumber))
	return o, res, nil
}

// AssignShipment points the given line items of the order at shipmentID.
// All line ids must belong to the order; otherwise nothing is changed.
func (s *OrderService) AssignShipment(ctx context.Context, orderNumber, shipmentID int64, lineIDs []int64) (*orders.Order, error) {
	if shipmentID <= 0 {
		return nil, fmt.Errorf("%w: shipment id must be positive", ErrInvalidOrder)
	}
	o, err := s.store.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderNumber, err)
	}
	if o == nil {
		return nil, nil
	}

	for _, id := range lineIDs {
		i := o.LineItem(id)
		if i < 0 {
			return nil, fmt.Errorf("order %d line item %d: %w", orderNumber, id, ErrUnknownLineItem)
		}
		o.LineItems[i].ShipmentID = shipmentID
	}
	if err := s.store.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("save order %d: %w", orderNumber, err)
	}

	slog.InfoContext(ctx, "shipment assigned", "order_number", orderNumber, "shipment_id", shipmentID, "line_items", len(lineIDs))
	s.publish(ctx, events.New(events.OrderUpdated, orderNumber))
	return o, nil
}

func (s *OrderService) scheduleReprice(ctx context.Context, orderNumber int64, res pricing.Result) {
	if !res.Degraded() {
		return
	}
	slog.WarnContext(ctx, "order priced with missing catalog data", "order_number", orderNumber, "products", res.Unpriced)
	s.publish(ctx, events.New(events.OrderReprice, orderNumber))
}

func (s *OrderService) publish(ctx context.Context, e events.Event) {
	e.CorrelationID = logging.RequestID(ctx)
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "publish event failed", "type", e.Type, "order_number", e.OrderNumber, "error", err)
	}
}

func validateOrder(o orders.Order) error {
	for _, li := range o.LineItems {
		if err := validateLineItem(li); err != nil {
			return err
		}
	}
	return nil
}

func validateLineItem(li orders.OrderLineItem) error {
	if li.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, li.Quantity)
	}
	return nil
}
