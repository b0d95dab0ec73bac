package validation

import (
	"github.com/imrishuroy/go-orderlines/internal/jsontime"
	"github.com/imrishuroy/go-orderlines/internal/orders"
)

// LineItemRequest is the payload for POST/PUT /orders/{id}/lines and an
// element of OrderRequest. Price is ignored: it always comes from the catalog.
type LineItemRequest struct {
	ID         int64   `json:"id" validate:"gte=0"`
	ProductID  int64   `json:"productId" validate:"required,gt=0"`
	Quantity   int     `json:"quantity" validate:"required,min=1"` // must be >= 1
	Price      float64 `json:"price,omitempty"`
	ShipmentID int64   `json:"shipmentId" validate:"gte=0"` // 0 = not shipped
}

// OrderRequest is the payload for POST /orders and PUT /orders/{id}.
type OrderRequest struct {
	OrderNumber       int64             `json:"orderNumber" validate:"gte=0"`
	AccountID         int64             `json:"accountId" validate:"required,gt=0"`
	OrderDate         string            `json:"orderDate" validate:"required,orderdate"`
	ShippingAddressID int64             `json:"shippingAddressId" validate:"gte=0"`
	LineItems         []LineItemRequest `json:"orderLineItems" validate:"dive"`
}

func (r LineItemRequest) ToLineItem() orders.OrderLineItem {
	return orders.OrderLineItem{
		ID:         r.ID,
		ProductID:  r.ProductID,
		Quantity:   r.Quantity,
		ShipmentID: r.ShipmentID,
	}
}

// ToOrder converts a validated request. The order date must already have
// passed the orderdate check.
func (r OrderRequest) ToOrder() orders.Order {
	date, _ := jsontime.Parse(r.OrderDate)
	o := orders.Order{
		OrderNumber:       r.OrderNumber,
		AccountID:         r.AccountID,
		OrderDate:         date,
		ShippingAddressID: r.ShippingAddressID,
		LineItems:         make([]orders.OrderLineItem, 0, len(r.LineItems)),
	}
	for _, li := range r.LineItems {
		o.LineItems = append(o.LineItems, li.ToLineItem())
	}
	return o
}
