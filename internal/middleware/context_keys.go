package middleware

import (
	"context"
	"log/slog"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	"github.com/gin-gonic/gin"
)

// contextKey is the type of the keys stored in request contexts.
// Using a custom type prevents collisions.
type contextKey string

const (
	loggerCtxKey = contextKey("logger")
	userIDKey    = contextKey("userID")
	usernameKey  = contextKey("username")
)

// WithLogger returns a context carrying the logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// GetLoggerFromCtx retrieves the request-scoped logger, falling back to slog.Default().
func GetLoggerFromCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerCtxKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithActor returns a context carrying the acting user.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	ctx = context.WithValue(ctx, userIDKey, actor.UserID)
	return context.WithValue(ctx, usernameKey, actor.Username)
}

// GetActorFromCtx returns the acting user, or domain.SystemActor when none is set.
func GetActorFromCtx(ctx context.Context) domain.Actor {
	if ctx == nil {
		return domain.SystemActor
	}
	userID, _ := ctx.Value(userIDKey).(string)
	if userID == "" {
		return domain.SystemActor
	}
	username, _ := ctx.Value(usernameKey).(string)
	return domain.Actor{UserID: userID, Username: username}
}

// GetUserIDFromContext retrieves the authenticated user ID from the Gin request context.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, ok := c.Request.Context().Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}
