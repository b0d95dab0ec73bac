package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root. It owns its line items: they are saved and
// deleted together with the order.
type Order struct {
	OrderNumber       int64
	AccountID         int64
	OrderDate         time.Time
	ShippingAddressID int64
	LineItems         []OrderLineItem
}

// OrderLineItem is a single product line of an order. ShipmentID is a plain
// reference to a shipment assigned at fulfillment time; 0 means not shipped.
type OrderLineItem struct {
	ID         int64
	ProductID  int64
	Quantity   int
	Price      float64
	ShipmentID int64
}

// TotalPrice returns price * quantity rounded to cents.
func (li OrderLineItem) TotalPrice() float64 {
	return li.total().InexactFloat64()
}

func (li OrderLineItem) total() decimal.Decimal {
	return decimal.NewFromFloat(li.Price).Mul(decimal.NewFromInt(int64(li.Quantity))).Round(2)
}

// TotalPrice returns the sum of the line item totals.
func (o Order) TotalPrice() float64 {
	sum := decimal.Zero
	for _, li := range o.LineItems {
		sum = sum.Add(li.total())
	}
	return sum.Round(2).InexactFloat64()
}

// LineItem returns the index of the line item with the given id, or -1.
func (o Order) LineItem(id int64) int {
	for i, li := range o.LineItems {
		if li.ID == id {
			return i
		}
	}
	return -1
}

// AddLineItem appends an item to the owned collection.
func (o *Order) AddLineItem(li OrderLineItem) {
	o.LineItems = append(o.LineItems, li)
}

// RemoveLineItem drops the item with the given id and reports whether it was present.
func (o *Order) RemoveLineItem(id int64) (OrderLineItem, bool) {
	i := o.LineItem(id)
	if i < 0 {
		return OrderLineItem{}, false
	}
	removed := o.LineItems[i]
	o.LineItems = append(o.LineItems[:i:i], o.LineItems[i+1:]...)
	return removed, true
}

// Store persists orders together with their line items.
//
// Save assigns an OrderNumber to new orders and an ID to every line item
// whose ID is 0. Items no longer present in Order.LineItems are deleted.
// Lookups of a single order return (nil, nil) when it does not exist.
type Store interface {
	FindAll(ctx context.Context) ([]Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber int64) (*Order, error)
	FindAllByAccountID(ctx context.Context, accountID int64, ascending bool) ([]Order, error)
	FindLineItemsByOrderNumber(ctx context.Context, orderNumber int64) ([]OrderLineItem, error)
	Save(ctx context.Context, o *Order) error
	Delete(ctx context.Context, o Order) error
}
