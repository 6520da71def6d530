package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process-level configuration. Values come from environment
// variables so main stays lean.
type Server struct {
	Addr          string        `env:"ROLLBOOK_ADDR" envDefault:":8080"`
	JWTSigningKey string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"rollbook"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`

	// Store selects ledger persistence: "memory" or "postgres".
	Store       string `env:"LEDGER_STORE" envDefault:"memory"`
	PostgresURL string `env:"DATABASE_URL" envDefault:""`

	// EventSink selects external event delivery: "none", "kafka" or "redis".
	EventSink    string   `env:"EVENT_SINK" envDefault:"none"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:""`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"rollbook.events"`
	RedisURL     string   `env:"REDIS_URL" envDefault:""`
	RedisStream  string   `env:"REDIS_STREAM" envDefault:"rollbook:events"`

	// EventBuffer sizes the outbox between the publisher and the delivery
	// worker; overflow drops deliveries, never ledger writes.
	EventBuffer int `env:"EVENT_BUFFER" envDefault:"256"`
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
