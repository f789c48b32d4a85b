// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/QiangXu1564/order-reserve-aid/internal/aws"
	"github.com/QiangXu1564/order-reserve-aid/internal/chat"
	"github.com/QiangXu1564/order-reserve-aid/internal/reservations"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

// Config holds every setting the api and worker binaries read.
type Config struct {
	RunLocal bool   `env:"RUN_LOCAL,default=false"`
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	StoreBackend string `env:"STORE_BACKEND,default=dynamodb"`
	DatabaseURL  string `env:"DATABASE_URL"`

	OrdersTable       string        `env:"ORDERS_TABLE,default=orders"`
	ReservationsTable string        `env:"RESERVATIONS_TABLE,default=reservations"`
	ApprovalsTable    string        `env:"APPROVALS_TABLE,default=reservation_approvals"`
	IdempotencyTable  string        `env:"IDEMPOTENCY_TABLE,default=idempotency"`
	IdempotencyTTL    time.Duration `env:"IDEMPOTENCY_TTL,default=48h"`
	ChangeQueueURL    string        `env:"CHANGE_QUEUE_URL"`

	AWSRegion   string `env:"AWS_REGION,default=us-east-1"`
	AWSEndpoint string `env:"AWS_ENDPOINT_OVERRIDE"`

	LeapingAPIURL   string `env:"LEAPING_API_URL"`
	AgentSnapshotID string `env:"AGENT_SNAPSHOT_ID"`
	BearerToken     string `env:"BEARER_TOKEN"`

	Timezone     string        `env:"RESTAURANT_TIMEZONE,default=UTC"`
	SlotCapacity int           `env:"SLOT_CAPACITY,default=50"`
	OpeningHour  int           `env:"OPENING_HOUR,default=12"`
	ClosingHour  int           `env:"CLOSING_HOUR,default=23"`
	SlotWindow   time.Duration `env:"SLOT_WINDOW,default=30m"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=10"`

	MetricsNamespace string `env:"METRICS_NAMESPACE,default=OrderReserveAid"`
}

// Load reads an optional .env file from the working directory and then
// decodes the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the environment without touching .env.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that tags cannot express.
func (c *Config) Validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendDynamoDB:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.OpeningHour < 0 || c.ClosingHour > 24 || c.OpeningHour >= c.ClosingHour {
		return fmt.Errorf("invalid opening hours %d-%d", c.OpeningHour, c.ClosingHour)
	}
	if c.SlotCapacity <= 0 {
		return fmt.Errorf("SLOT_CAPACITY must be positive, got %d", c.SlotCapacity)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location loads the restaurant timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid RESTAURANT_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Policy is the availability policy described by the slot settings.
func (c *Config) Policy() (reservations.Policy, error) {
	loc, err := c.Location()
	if err != nil {
		return reservations.Policy{}, err
	}
	return reservations.Policy{
		Capacity:  c.SlotCapacity,
		OpenHour:  c.OpeningHour,
		CloseHour: c.ClosingHour,
		Window:    c.SlotWindow,
		Location:  loc,
	}, nil
}

// Relay returns the chat relay settings. The relay refuses to build when
// any of the three values is empty.
func (c *Config) Relay() chat.Config {
	return chat.Config{
		BaseURL:     c.LeapingAPIURL,
		AgentID:     c.AgentSnapshotID,
		BearerToken: c.BearerToken,
	}
}

func (c *Config) AWS() aws.Settings {
	return aws.Settings{Region: c.AWSRegion, Endpoint: c.AWSEndpoint}
}
