// Package app wires the notifier components from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/qoomy/notifier/internal/api/handler"
	"github.com/qoomy/notifier/internal/auth"
	"github.com/qoomy/notifier/internal/config"
	"github.com/qoomy/notifier/internal/database"
	"github.com/qoomy/notifier/internal/device"
	"github.com/qoomy/notifier/internal/events"
	"github.com/qoomy/notifier/internal/featureflags"
	"github.com/qoomy/notifier/internal/firebase"
	"github.com/qoomy/notifier/internal/notification"
	"github.com/qoomy/notifier/internal/notification/fcm"
	"github.com/qoomy/notifier/internal/provider/resilience"
	"github.com/qoomy/notifier/internal/room"
	"github.com/qoomy/notifier/internal/unread"
)

// App holds the components shared by the API server and the worker.
type App struct {
	Firebase *firebase.Clients
	Pool     *pgxpool.Pool

	Directory room.Directory
	Devices   *device.Registry
	Flags     *featureflags.Service
	Unread    *unread.Aggregator
	Providers *resilience.Registry
	Events    *events.Router
	Cleanup   *room.CleanupJob
}

// NewLogger creates the service logger.
func NewLogger(w io.Writer, service, version, level string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// New connects to Firebase and, when configured, PostgreSQL and builds the components.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	fb, err := firebase.New(ctx, firebase.Config{
		ProjectID:       cfg.ProjectID,
		CredentialsFile: cfg.CredentialsFile,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("project_id", cfg.ProjectID).Msg("firebase initialized")

	a := &App{Firebase: fb}

	if cfg.UsesPostgres() {
		dbConfig := database.ConfigFromEnv()
		retry := resilience.DefaultRetryConfig()
		retry.OnRetry = func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("wait", wait).Msg("database not reachable, retrying")
		}

		a.Pool, err = database.Connect(ctx, dbConfig, retry)
		if err != nil {
			_ = fb.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	}

	directory := room.NewFirestoreDirectory(fb.Firestore)
	a.Directory = directory

	a.Devices = device.NewRegistry(device.RegistryConfig{
		Repository: a.tokenRepository(cfg.TokenStore),
		Logger:     log,
	})

	a.Flags = featureflags.NewService(featureflags.ServiceConfig{
		Repository: a.flagRepository(cfg.FlagStore),
		Logger:     log,
		CacheTTL:   cfg.FlagCacheTTL,
	})

	a.Unread = unread.New(unread.Config{
		Directory:   directory,
		Logger:      log,
		Concurrency: cfg.UnreadConcurrency,
	})

	a.Providers = resilience.NewRegistry()
	transport := fcm.New(fcm.Config{
		Sender:   fb.Messaging,
		Logger:   log,
		Registry: a.Providers,
	})

	a.Events = events.NewRouter(events.Config{
		Directory: directory,
		Tokens:    a.Devices,
		Unread:    a.Unread,
		Builder:   notification.NewBuilder(notification.BuilderConfig{}),
		Dispatcher: notification.NewDispatcher(notification.DispatcherConfig{
			Transport: transport,
			Pruner:    a.Devices,
			Logger:    log,
		}),
		Flags:  a.Flags,
		Logger: log,
	})

	a.Cleanup = room.NewCleanupJob(room.CleanupConfig{
		Sweeper:   directory,
		Logger:    log,
		Retention: cfg.RoomRetention,
	})

	log.Info().
		Str("token_store", cfg.TokenStore).
		Str("flag_store", cfg.FlagStore).
		Msg("notifier components initialized")

	return a, nil
}

// Verifier returns the token verifier selected by the auth mode.
func (a *App) Verifier(cfg *config.Config) auth.Verifier {
	if cfg.AuthMode == config.AuthModeJWT {
		return auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.JWTKey,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
		})
	}
	return auth.NewFirebaseVerifier(a.Firebase.Auth)
}

// ReadinessChecks returns the dependency checks for the readiness probe.
func (a *App) ReadinessChecks() map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"firestore": func(ctx context.Context) error {
			_, err := a.Firebase.Firestore.Collection("rooms").Limit(1).Documents(ctx).GetAll()
			return err
		},
	}
	if a.Pool != nil {
		checks["postgres"] = a.Pool.Ping
	}
	return checks
}

// Close releases the database pool and the Firebase clients.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
	}
	return a.Firebase.Close()
}

func (a *App) tokenRepository(store string) device.Repository {
	switch store {
	case config.StorePostgres:
		return device.NewPostgresRepository(a.Pool)
	case config.StoreMemory:
		return device.NewInMemoryRepository()
	default:
		return device.NewFirestoreRepository(a.Firebase.Firestore)
	}
}

func (a *App) flagRepository(store string) featureflags.Repository {
	switch store {
	case config.StorePostgres:
		return featureflags.NewPostgresRepository(a.Pool)
	case config.StoreMemory:
		return featureflags.NewInMemoryRepository()
	default:
		return featureflags.NewFirestoreRepository(a.Firebase.Firestore)
	}
}
