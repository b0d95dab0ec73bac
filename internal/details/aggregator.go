// Package details builds account-wide order detail views by joining stored
// orders with addresses, product names and shipments.
package details

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-orderlines/internal/gateway"
	"github.com/imrishuroy/go-orderlines/internal/orders"
)

// DefaultWorkers bounds the number of orders aggregated at once.
const DefaultWorkers = 4

type Aggregator struct {
	store     orders.Store
	addresses gateway.AddressResolver
	products  gateway.ProductResolver
	shipments gateway.ShipmentResolver
	guard     gateway.Guard
	workers   int
}

func NewAggregator(
	store orders.Store,
	addresses gateway.AddressResolver,
	products gateway.ProductResolver,
	shipments gateway.ShipmentResolver,
	guard gateway.Guard,
	workers int,
) *Aggregator {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Aggregator{
		store:     store,
		addresses: addresses,
		products:  products,
		shipments: shipments,
		guard:     guard,
		workers:   workers,
	}
}

// GetOrderDetails returns one detail per order of the account, oldest first.
// An account without orders yields an empty slice. Store errors are returned;
// collaborator failures follow the guard's policy.
func (a *Aggregator) GetOrderDetails(ctx context.Context, accountID int64) ([]OrderDetail, error) {
	list, err := a.store.FindAllByAccountID(ctx, accountID, true)
	if err != nil {
		return nil, fmt.Errorf("find orders for account %d: %w", accountID, err)
	}

	result := make([]OrderDetail, len(list))
	if len(list) == 0 {
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range list {
		i := i
		o := list[i]
		g.Go(func() error {
			d, err := a.orderDetail(gctx, o)
			if err != nil {
				return err
			}
			result[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Aggregator) orderDetail(ctx context.Context, o orders.Order) (OrderDetail, error) {
	addr, err := gateway.Call(ctx, a.guard, gateway.CollaboratorAddress, gateway.Address{}, func(ctx context.Context) (gateway.Address, error) {
		return a.addresses.ResolveAddress(ctx, o.AccountID, o.ShippingAddressID)
	})
	if err != nil {
		return OrderDetail{}, fmt.Errorf("order %d: %w", o.OrderNumber, err)
	}

	items, err := a.store.FindLineItemsByOrderNumber(ctx, o.OrderNumber)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("find line items for order %d: %w", o.OrderNumber, err)
	}

	summaries := make([]OrderLineSummary, len(items))
	names := make(map[int64]string, len(items))
	for i, li := range items {
		name, ok := names[li.ProductID]
		if !ok {
			name, err = a.productName(ctx, li.ProductID)
			if err != nil {
				return OrderDetail{}, fmt.Errorf("order %d: %w", o.OrderNumber, err)
			}
			names[li.ProductID] = name
		}
		summaries[i] = OrderLineSummary{ProductName: name, Quantity: li.Quantity}
	}

	shipments, err := a.groupShipments(ctx, items, summaries)
	if err != nil {
		return OrderDetail{}, fmt.Errorf("order %d: %w", o.OrderNumber, err)
	}

	return OrderDetail{
		OrderNumber:     o.OrderNumber,
		ShippingAddress: addr,
		TotalPrice:      o.TotalPrice(),
		LineItems:       summaries,
		Shipments:       shipments,
	}, nil
}

func (a *Aggregator) productName(ctx context.Context, productID int64) (string, error) {
	p, err := gateway.Call(ctx, a.guard, gateway.CollaboratorProduct, gateway.Product{}, func(ctx context.Context) (gateway.Product, error) {
		return a.products.ResolveProduct(ctx, productID)
	})
	return p.Name, err
}

// groupShipments partitions summaries by the shipment their line item
// references. summaries[i] belongs to items[i].
func (a *Aggregator) groupShipments(ctx context.Context, items []orders.OrderLineItem, summaries []OrderLineSummary) ([]Shipment, error) {
	shipments := []Shipment{}
	index := map[int64]int{}
	for i, li := range items {
		if li.ShipmentID == 0 {
			continue
		}
		pos, ok := index[li.ShipmentID]
		if !ok {
			s, err := a.shipment(ctx, li.ShipmentID)
			if err != nil {
				return nil, err
			}
			pos = len(shipments)
			index[li.ShipmentID] = pos
			shipments = append(shipments, s)
		}
		shipments[pos].LineItems = append(shipments[pos].LineItems, summaries[i])
	}
	return shipments, nil
}

func (a *Aggregator) shipment(ctx context.Context, shipmentID int64) (Shipment, error) {
	s, err := gateway.Call(ctx, a.guard, gateway.CollaboratorShipment, gateway.Shipment{ID: shipmentID}, func(ctx context.Context) (gateway.Shipment, error) {
		return a.shipments.ResolveShipment(ctx, shipmentID)
	})
	if err != nil {
		return Shipment{}, err
	}
	return Shipment{
		ID:           shipmentID,
		ShippedDate:  s.ShippedDate,
		DeliveryDate: s.DeliveryDate,
		LineItems:    []OrderLineSummary{},
	}, nil
}
