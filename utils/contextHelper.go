package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/appctx"
	"github.com/google/uuid"
)

var (
	ContextKeyUsername      = appctx.ContextKeyUsername
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUsername)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyUsername, username)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

// WithCorrelationId stamps a fresh correlation id unless ctx already has one.
func WithCorrelationId(ctx context.Context) context.Context {
	if v, ok := GetCorrelationIdFromContext(ctx); ok && v != "" {
		return ctx
	}
	return appctx.Set(ctx, ContextKeyCorrelationId, uuid.NewString())
}
