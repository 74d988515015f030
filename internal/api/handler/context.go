package handler

import (
	"context"

	"github.com/qoomy/notifier/internal/api/middleware"
)

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	return middleware.GetUserID(ctx)
}
