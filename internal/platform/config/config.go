// Package config loads service configuration from environment variables so
// main stays lean. Every external system is optional: with nothing set the
// service runs on in-memory stores, which is what local development and the
// test suite use.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Postgres configures the primary chain store. An empty DSN selects the
// in-memory store.
type Postgres struct {
	DSN string
}

// Redis configures the SIEM delivery dedup guard. An empty URL disables it.
type Redis struct {
	URL      string
	DedupTTL time.Duration
}

// Kafka configures the SIEM sink. No brokers disables delivery.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Archive configures the S3 archival mirror. An empty bucket selects the
// in-memory archive.
type Archive struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Retention time.Duration
}

// Fanout bounds the background mirror pipeline.
type Fanout struct {
	BufferSize     int
	DeliverTimeout time.Duration
}

// Config is the full service configuration.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Archive  Archive
	Fanout   Fanout
}

// FromEnv builds a Config from environment variables, applying defaults for
// anything unset.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envString("AUDIT_ADDR", ":8080"),
			ShutdownTimeout: envDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			DSN: os.Getenv("AUDIT_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:      os.Getenv("AUDIT_REDIS_URL"),
			DedupTTL: envDuration("AUDIT_SIEM_DEDUP_TTL", 24*time.Hour),
		},
		Kafka: Kafka{
			Brokers: envList("AUDIT_KAFKA_BROKERS"),
			Topic:   envString("AUDIT_KAFKA_TOPIC", "audit.events"),
		},
		Archive: Archive{
			Bucket:    os.Getenv("AUDIT_ARCHIVE_BUCKET"),
			Region:    envString("AUDIT_ARCHIVE_REGION", "us-east-1"),
			Endpoint:  os.Getenv("AUDIT_ARCHIVE_ENDPOINT"),
			AccessKey: os.Getenv("AUDIT_ARCHIVE_ACCESS_KEY"),
			SecretKey: os.Getenv("AUDIT_ARCHIVE_SECRET_KEY"),
			Retention: envDuration("AUDIT_ARCHIVE_RETENTION", 7*365*24*time.Hour),
		},
		Fanout: Fanout{
			BufferSize:     envInt("AUDIT_FANOUT_BUFFER", 4096),
			DeliverTimeout: envDuration("AUDIT_FANOUT_DELIVER_TIMEOUT", 10*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
