// Package config loads service configuration from the environment and an
// optional config/config.yaml.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/imrishuroy/go-orderlines/internal/gateway"
)

// Store backends.
const (
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
)

// Events backends.
const (
	EventsSQS   = "sqs"
	EventsKafka = "kafka"
	EventsNone  = "none"
)

// Config holds all application configuration.
type Config struct {
	RunLocal bool   `mapstructure:"run_local"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogLevel string `mapstructure:"log_level"`

	StoreBackend       string `mapstructure:"store_backend"`
	OrdersTable        string `mapstructure:"orders_table"`
	OrdersAccountIndex string `mapstructure:"orders_account_index"`
	SQLitePath         string `mapstructure:"sqlite_path"`

	IdempotencyTable string        `mapstructure:"idempotency_table"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`

	EventsBackend  string `mapstructure:"events_backend"`
	OrdersQueueURL string `mapstructure:"orders_queue_url"`
	KafkaBrokers   string `mapstructure:"kafka_brokers"`
	KafkaTopic     string `mapstructure:"kafka_topic"`

	AccountAddressServiceURL string        `mapstructure:"account_address_service_url"`
	ProductServiceURL        string        `mapstructure:"product_service_url"`
	ShipmentServiceURL       string        `mapstructure:"shipment_service_url"`
	LookupTimeout            time.Duration `mapstructure:"lookup_timeout"`
	LookupRetries            int           `mapstructure:"lookup_retries"`
	FailurePolicy            string        `mapstructure:"failure_policy"`
	AggregationWorkers       int           `mapstructure:"aggregation_workers"`

	MetricsNamespace    string `mapstructure:"metrics_namespace"`
	AWSRegion           string `mapstructure:"aws_region"`
	AWSEndpointOverride string `mapstructure:"aws_endpoint_override"`
}

var defaults = map[string]any{
	"run_local":                   false,
	"http_addr":                   ":8080",
	"log_level":                   "info",
	"store_backend":               StoreDynamoDB,
	"orders_table":                "orders",
	"orders_account_index":        "account_id-order_date-index",
	"sqlite_path":                 "orders.db",
	"idempotency_table":           "",
	"idempotency_ttl":             48 * time.Hour,
	"events_backend":              EventsSQS,
	"orders_queue_url":            "",
	"kafka_brokers":               "127.0.0.1:9092",
	"kafka_topic":                 "order-events",
	"account_address_service_url": "http://localhost:8081",
	"product_service_url":         "http://localhost:8082",
	"shipment_service_url":        "http://localhost:8083",
	"lookup_timeout":              2 * time.Second,
	"lookup_retries":              3,
	"failure_policy":              string(gateway.FailOpen),
	"aggregation_workers":         4,
	"metrics_namespace":           "",
	"aws_region":                  "us-east-1",
	"aws_endpoint_override":       "",
}

// Load reads configuration. Environment variables use the upper-case key
// names (ORDERS_TABLE, LOOKUP_TIMEOUT, ...) and win over the config file.
func Load() (*Config, error) {
	return load(viper.New(), "./config")
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreDynamoDB, StoreSQLite:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.EventsBackend {
	case EventsSQS, EventsKafka, EventsNone:
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}
	if c.EventsBackend == EventsSQS && c.OrdersQueueURL == "" {
		return errors.New("ORDERS_QUEUE_URL is required when EVENTS_BACKEND=sqs")
	}
	if _, err := gateway.ParsePolicy(c.FailurePolicy); err != nil {
		return err
	}
	if c.LookupTimeout <= 0 {
		return fmt.Errorf("LOOKUP_TIMEOUT must be positive, got %s", c.LookupTimeout)
	}
	return nil
}

// Policy returns the parsed failure policy. Validate has already accepted it.
func (c *Config) Policy() gateway.Policy {
	p, _ := gateway.ParsePolicy(c.FailurePolicy)
	return p
}

// Brokers splits KAFKA_BROKERS on commas.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
