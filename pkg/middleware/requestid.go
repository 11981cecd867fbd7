package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey carries the request id in request contexts.
	RequestIDKey contextKey = "requestID"
	// UserEmailKey carries the authenticated user's email in request contexts.
	UserEmailKey contextKey = "userEmail"
)

// RequestIDMiddleware tags each request with an id, honoring one supplied by
// an upstream proxy, and echoes it back in the response headers.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		c.Next()
	}
}

// ContextPropagationMiddleware copies the request id and, once auth has run,
// the user's email into the request context so services and repositories see
// them without touching gin.
func ContextPropagationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if email := c.GetString("userEmail"); email != "" {
			ctx = context.WithValue(ctx, UserEmailKey, email)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetRequestID extracts the request id from a context.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserEmail extracts the authenticated user's email from a context.
func GetUserEmail(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}
