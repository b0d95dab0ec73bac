// Package gateway talks to the collaborator services the order service
// depends on: account addresses, the product catalog and shipment tracking.
//
// Resolvers return ErrNotFound when the collaborator has no such entity and
// any other error when it could not be reached. Guard turns both into either
// a placeholder value or ErrUnavailable depending on the failure Policy.
package gateway

import (
	"context"
	"errors"

	"github.com/imrishuroy/go-orderlines/internal/jsontime"
)

// Collaborator names used in logs and metrics.
const (
	CollaboratorAddress  = "address"
	CollaboratorProduct  = "product"
	CollaboratorShipment = "shipment"
)

var (
	// ErrNotFound is returned when the collaborator reports that the entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned by Guard under FailClosed when a lookup fails.
	ErrUnavailable = errors.New("collaborator unavailable")
)

// Address is a shipping address owned by the account service.
// The zero value is the empty placeholder used when the address cannot be resolved.
type Address struct {
	ID        int64  `json:"id"`
	Street    string `json:"street"`
	Apartment string `json:"apartment"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

// Product is a catalog entry.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Shipment is a shipment as reported by the shipment service.
type Shipment struct {
	ID                int64          `json:"id"`
	AccountID         int64          `json:"accountId"`
	ShippingAddressID int64          `json:"shippingAddressId"`
	ShippedDate       *jsontime.Time `json:"shippedDate"`
	DeliveryDate      *jsontime.Time `json:"deliveryDate"`
}

type AddressResolver interface {
	ResolveAddress(ctx context.Context, accountID, addressID int64) (Address, error)
}

type ProductResolver interface {
	ResolveProduct(ctx context.Context, productID int64) (Product, error)
}

type ShipmentResolver interface {
	ResolveShipment(ctx context.Context, shipmentID int64) (Shipment, error)
}
