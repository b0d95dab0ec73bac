package handlers

import (
	"github.com/imrishuroy/go-orderlines/internal/jsontime"
	"github.com/imrishuroy/go-orderlines/internal/orders"
)

type lineItemResponse struct {
	ID         int64   `json:"id"`
	ProductID  int64   `json:"productId"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	TotalPrice float64 `json:"totalPrice"`
	ShipmentID int64   `json:"shipmentId"`
}

type orderResponse struct {
	OrderNumber       int64              `json:"orderNumber"`
	AccountID         int64              `json:"accountId"`
	OrderDate         jsontime.Time      `json:"orderDate"`
	ShippingAddressID int64              `json:"shippingAddressId"`
	LineItems         []lineItemResponse `json:"orderLineItems"`
	TotalPrice        float64            `json:"totalPrice"`
}

func newLineItemResponse(li orders.OrderLineItem) lineItemResponse {
	return lineItemResponse{
		ID:         li.ID,
		ProductID:  li.ProductID,
		Quantity:   li.Quantity,
		Price:      li.Price,
		TotalPrice: li.TotalPrice(),
		ShipmentID: li.ShipmentID,
	}
}

func newLineItemResponses(items []orders.OrderLineItem) []lineItemResponse {
	out := make([]lineItemResponse, 0, len(items))
	for _, li := range items {
		out = append(out, newLineItemResponse(li))
	}
	return out
}

func newOrderResponse(o orders.Order) orderResponse {
	return orderResponse{
		OrderNumber:       o.OrderNumber,
		AccountID:         o.AccountID,
		OrderDate:         jsontime.Time{Time: o.OrderDate},
		ShippingAddressID: o.ShippingAddressID,
		LineItems:         newLineItemResponses(o.LineItems),
		TotalPrice:        o.TotalPrice(),
	}
}

func newOrderResponses(list []orders.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, newOrderResponse(o))
	}
	return out
}
