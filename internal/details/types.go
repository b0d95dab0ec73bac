package details

import (
	"github.com/imrishuroy/go-orderlines/internal/gateway"
	"github.com/imrishuroy/go-orderlines/internal/jsontime"
)

// OrderDetail is the externally facing view of one order.
type OrderDetail struct {
	OrderNumber     int64              `json:"orderNumber"`
	ShippingAddress gateway.Address    `json:"shippingAddress"`
	TotalPrice      float64            `json:"totalPrice"`
	LineItems       []OrderLineSummary `json:"orderLineItems"`
	Shipments       []Shipment         `json:"shipments"`
}

// OrderLineSummary is a line item reduced to product name and quantity.
type OrderLineSummary struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// Shipment groups the summaries of the line items shipped together.
type Shipment struct {
	ID           int64              `json:"-"`
	ShippedDate  *jsontime.Time     `json:"shippedDate"`
	DeliveryDate *jsontime.Time     `json:"deliveryDate"`
	LineItems    []OrderLineSummary `json:"orderLineItems"`
}
