// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Auth modes.
const (
	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

// Store backends for push tokens and feature flags.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Config holds the settings shared by the API server and the worker.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	// ProjectID is the Google Cloud project hosting Firestore, Pub/Sub and FCM.
	ProjectID string
	// CredentialsFile is an optional service account key. Application default
	// credentials are used when empty.
	CredentialsFile string

	Subscription           string
	MaxOutstandingMessages int

	OTelEnabled  bool
	OTLPEndpoint string

	AuthMode    string
	JWTKey      string
	JWTIssuer   string
	JWTAudience string

	TokenStore string
	FlagStore  string

	RoomRetention     time.Duration
	UnreadConcurrency int
	FlagCacheTTL      time.Duration
	RequireTLS        bool
}

// Load reads a .env file when present and builds a Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		Port:            getEnv("APP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ProjectID:       getEnv("GOOGLE_CLOUD_PROJECT", "qoomy-dev"),
		CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		Subscription:    getEnv("PUBSUB_SUBSCRIPTION", "qoomy-notifier-events"),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		AuthMode:        strings.ToLower(getEnv("AUTH_MODE", AuthModeFirebase)),
		JWTKey:          getEnv("JWT_SIGNING_KEY", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "https://notifier.qoomy.app"),
		JWTAudience:     getEnv("JWT_AUDIENCE", "qoomy-notifier"),
		TokenStore:      strings.ToLower(getEnv("TOKEN_STORE", StoreFirestore)),
		FlagStore:       strings.ToLower(getEnv("FLAG_STORE", StoreFirestore)),
	}

	var errs []error
	cfg.MaxOutstandingMessages, errs = getInt("PUBSUB_MAX_OUTSTANDING", 10, errs)
	cfg.UnreadConcurrency, errs = getInt("UNREAD_CONCURRENCY", 8, errs)
	cfg.RoomRetention, errs = getDuration("ROOM_RETENTION", 24*time.Hour, errs)
	cfg.FlagCacheTTL, errs = getDuration("FLAG_CACHE_TTL", time.Minute, errs)
	cfg.OTelEnabled, errs = getBool("OTEL_ENABLED", false, errs)
	cfg.RequireTLS, errs = getBool("REQUIRE_TLS", false, errs)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are consistent.
func (c *Config) Validate() error {
	var errs []error

	switch c.AuthMode {
	case AuthModeFirebase:
	case AuthModeJWT:
		if c.JWTKey == "" {
			errs = append(errs, errors.New("JWT_SIGNING_KEY is required when AUTH_MODE=jwt"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE: unsupported value %q", c.AuthMode))
	}

	for name, store := range map[string]string{"TOKEN_STORE": c.TokenStore, "FLAG_STORE": c.FlagStore} {
		switch store {
		case StoreFirestore, StorePostgres, StoreMemory:
		default:
			errs = append(errs, fmt.Errorf("%s: unsupported value %q", name, store))
		}
	}

	if c.ProjectID == "" {
		errs = append(errs, errors.New("GOOGLE_CLOUD_PROJECT is required"))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether any store is backed by PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.TokenStore == StorePostgres || c.FlagStore == StorePostgres
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int, errs []error) (int, []error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, errs
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return defaultValue, append(errs, fmt.Errorf("%s: expected a positive integer, got %q", key, raw))
	}
	return v, errs
}

func getDuration(key string, defaultValue time.Duration, errs []error) (time.Duration, []error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, errs
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return defaultValue, append(errs, fmt.Errorf("%s: expected a positive duration, got %q", key, raw))
	}
	return v, errs
}

func getBool(key string, defaultValue bool, errs []error) (bool, []error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, errs
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, append(errs, fmt.Errorf("%s: expected a boolean, got %q", key, raw))
	}
	return v, errs
}
