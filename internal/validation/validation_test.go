package validation

import (
	"testing"
	"time"
)

func validOrder() OrderRequest {
	return OrderRequest{
		AccountID:         1,
		OrderDate:         "2018-09-12T10:30:00",
		ShippingAddressID: 1,
		LineItems: []LineItemRequest{
			{ProductID: 1, Quantity: 3},
			{ProductID: 3, Quantity: 8},
		},
	}
}

func TestOrderRequest_Valid(t *testing.T) {
	v := New()

	if err := v.Struct(validOrder()); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}

	req := validOrder()
	req.OrderDate = "2018-09-12"
	req.LineItems = nil
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected order without line items and with a bare date to be valid, got: %v", err)
	}
}

func TestOrderRequest_MissingFields(t *testing.T) {
	v := New()

	req := OrderRequest{
		// AccountID and OrderDate missing
		LineItems: []LineItemRequest{{ProductID: 1, Quantity: 1}},
	}

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation errors for missing required fields, got nil")
	}
}

func TestOrderRequest_BadDate(t *testing.T) {
	v := New()

	req := validOrder()
	req.OrderDate = "12/09/2018"

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for unparseable order date, got nil")
	}
}

func TestOrderRequest_InvalidLineItem(t *testing.T) {
	v := New()

	req := validOrder()
	req.LineItems[1].Quantity = 0

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for zero quantity, got nil")
	}
}

func TestOrderRequest_DuplicateLineIDs(t *testing.T) {
	v := New()

	req := validOrder()
	req.LineItems[0].ID = 4
	req.LineItems[1].ID = 4

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for duplicate line ids, got nil")
	}
}

func TestLineItemRequest_Validation(t *testing.T) {
	v := New()

	if err := v.Struct(LineItemRequest{ProductID: 2, Quantity: 1}); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
	if err := v.Struct(LineItemRequest{Quantity: 1}); err == nil {
		t.Fatal("expected validation error for missing product id, got nil")
	}
	if err := v.Struct(LineItemRequest{ProductID: 2, Quantity: -1}); err == nil {
		t.Fatal("expected validation error for negative quantity, got nil")
	}
}

func TestOrderRequest_ToOrder(t *testing.T) {
	req := validOrder()
	req.LineItems[0].Price = 999
	req.LineItems[1].ShipmentID = 5

	o := req.ToOrder()

	want := time.Date(2018, 9, 12, 10, 30, 0, 0, time.UTC)
	if !o.OrderDate.Equal(want) {
		t.Fatalf("order date = %v, want %v", o.OrderDate, want)
	}
	if len(o.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(o.LineItems))
	}
	if o.LineItems[0].Price != 0 {
		t.Fatalf("client price must be ignored, got %v", o.LineItems[0].Price)
	}
	if o.LineItems[1].ShipmentID != 5 {
		t.Fatalf("shipment id = %d, want 5", o.LineItems[1].ShipmentID)
	}
}

func TestFieldErrors_UsesJSONNames(t *testing.T) {
	v := New()

	req := validOrder()
	req.AccountID = 0
	req.LineItems[1].Quantity = 0

	fields := FieldErrors(v.Struct(req))

	if fields["accountId"] != "required" {
		t.Fatalf("accountId error = %q, fields = %v", fields["accountId"], fields)
	}
	if fields["orderLineItems[1].quantity"] != "required" {
		t.Fatalf("quantity error = %q, fields = %v", fields["orderLineItems[1].quantity"], fields)
	}
}
