package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is an unexpected HTTP status from a collaborator.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// client performs JSON GETs against one collaborator base URL.
type client struct {
	baseURL string
	http    *http.Client
	retry   RetryConfig
}

func newClient(baseURL string, httpClient *http.Client, retry RetryConfig) *client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		retry:   retry,
	}
}

func (c *client) getJSON(ctx context.Context, path string, out any) error {
	_, err := retryWithBackoff(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.getOnce(ctx, path, out)
	})
	return err
}

func (c *client) getOnce(ctx context.Context, path string, out any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("GET %s: %w", url, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, URL: url}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// AddressClient resolves addresses from the account-address service.
type AddressClient struct{ c *client }

func NewAddressClient(baseURL string, httpClient *http.Client, retry RetryConfig) *AddressClient {
	return &AddressClient{c: newClient(baseURL, httpClient, retry)}
}

func (a *AddressClient) ResolveAddress(ctx context.Context, accountID, addressID int64) (Address, error) {
	var out Address
	if err := a.c.getJSON(ctx, fmt.Sprintf("/accounts/%d/address/%d", accountID, addressID), &out); err != nil {
		return Address{}, err
	}
	return out, nil
}

// ProductClient resolves products from the product service.
type ProductClient struct{ c *client }

func NewProductClient(baseURL string, httpClient *http.Client, retry RetryConfig) *ProductClient {
	return &ProductClient{c: newClient(baseURL, httpClient, retry)}
}

func (p *ProductClient) ResolveProduct(ctx context.Context, productID int64) (Product, error) {
	var out Product
	if err := p.c.getJSON(ctx, fmt.Sprintf("/products/%d", productID), &out); err != nil {
		return Product{}, err
	}
	return out, nil
}

// ShipmentClient resolves shipments from the shipment service.
type ShipmentClient struct{ c *client }

func NewShipmentClient(baseURL string, httpClient *http.Client, retry RetryConfig) *ShipmentClient {
	return &ShipmentClient{c: newClient(baseURL, httpClient, retry)}
}

func (s *ShipmentClient) ResolveShipment(ctx context.Context, shipmentID int64) (Shipment, error) {
	var out Shipment
	if err := s.c.getJSON(ctx, fmt.Sprintf("/shipments/%d", shipmentID), &out); err != nil {
		return Shipment{}, err
	}
	return out, nil
}
