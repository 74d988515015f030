// Package firebase initializes the Firebase clients shared by the API server and the worker.
package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Config holds configuration for the Firebase app.
type Config struct {
	ProjectID string

	// CredentialsFile is a service account key. Application default credentials
	// are used when empty.
	CredentialsFile string
}

// Clients bundles the Firebase clients.
type Clients struct {
	app       *firebase.App
	Firestore *firestore.Client
	Messaging *messaging.Client
	Auth      *auth.Client
}

// New initializes the Firebase app and its Firestore, Messaging and Auth clients.
func New(ctx context.Context, cfg Config) (*Clients, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var appConfig *firebase.Config
	if cfg.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	msg, err := app.Messaging(ctx)
	if err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("create messaging client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("create auth client: %w", err)
	}

	return &Clients{app: app, Firestore: fs, Messaging: msg, Auth: authClient}, nil
}

// Close releases the Firestore connection.
func (c *Clients) Close() error {
	return c.Firestore.Close()
}
