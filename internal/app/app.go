// Package app composes the service from configuration. Both the API and the
// worker binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/imrishuroy/go-orderlines/internal/aws"
	"github.com/imrishuroy/go-orderlines/internal/config"
	"github.com/imrishuroy/go-orderlines/internal/details"
	"github.com/imrishuroy/go-orderlines/internal/events"
	"github.com/imrishuroy/go-orderlines/internal/gateway"
	"github.com/imrishuroy/go-orderlines/internal/idempotency"
	"github.com/imrishuroy/go-orderlines/internal/orders"
	"github.com/imrishuroy/go-orderlines/internal/orders/sqlite"
	"github.com/imrishuroy/go-orderlines/internal/pricing"
	"github.com/imrishuroy/go-orderlines/internal/service"
)

// App holds the wired components.
type App struct {
	Orders  *service.OrderService
	Details *details.Aggregator
	// Idempotency is nil when IDEMPOTENCY_TABLE is not set.
	Idempotency *idempotency.Store

	closers []func() error
}

// New wires the store, collaborator clients, pricing, events and services
// selected by cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	clients, err := aws.NewAWSClients(ctx, aws.Options{Region: cfg.AWSRegion, EndpointOverride: cfg.AWSEndpointOverride})
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}

	store, err := a.openStore(ctx, cfg, clients)
	if err != nil {
		return nil, err
	}

	publisher, err := a.newPublisher(cfg, clients)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	guard := gateway.Guard{Timeout: cfg.LookupTimeout, Policy: cfg.Policy()}
	if cfg.MetricsNamespace != "" {
		guard.Recorder = aws.NewMetricsRecorder(clients.CloudWatch, cfg.MetricsNamespace)
	}

	retry := gateway.DefaultRetryConfig()
	retry.MaxAttempts = cfg.LookupRetries
	httpClient := &http.Client{}
	addresses := gateway.NewAddressClient(cfg.AccountAddressServiceURL, httpClient, retry)
	products := gateway.NewProductClient(cfg.ProductServiceURL, httpClient, retry)
	shipments := gateway.NewShipmentClient(cfg.ShipmentServiceURL, httpClient, retry)

	a.Orders = service.NewOrderService(store, pricing.NewEngine(products, guard), publisher)
	a.Details = details.NewAggregator(store, addresses, products, shipments, guard, cfg.AggregationWorkers)
	if cfg.IdempotencyTable != "" {
		a.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}

	slog.Info("service wired",
		"store", cfg.StoreBackend,
		"events", cfg.EventsBackend,
		"failure_policy", guard.Policy,
		"idempotency", a.Idempotency != nil,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, clients *aws.AWSClients) (orders.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case config.StoreDynamoDB:
		return orders.NewDynamoStore(clients.DynamoDB, cfg.OrdersTable, cfg.OrdersAccountIndex), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (a *App) newPublisher(cfg *config.Config, clients *aws.AWSClients) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsSQS:
		return events.NewSQSPublisher(aws.NewPublisher(clients.SQS, cfg.OrdersQueueURL)), nil
	case config.EventsKafka:
		p, err := events.NewKafkaPublisher(cfg.Brokers(), cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		return p, nil
	case config.EventsNone:
		return events.Noop{}, nil
	}
	return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
}

// Close releases the store and the event producer.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
