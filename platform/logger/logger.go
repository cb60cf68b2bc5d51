// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		return l.WithRequestID(requestID)
	}

	return l
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// AccessDecision logs the outcome of a download access check.
func (l *Logger) AccessDecision(productID int64, customerEmail string, customerID int64, granted bool, path string) {
	if granted {
		l.Info("access_decision",
			slog.Int64("product_id", productID),
			slog.String("customer_email", customerEmail),
			slog.Int64("customer_id", customerID),
			slog.Bool("granted", granted),
			slog.String("path", path),
		)
	} else {
		l.Warn("access_decision",
			slog.Int64("product_id", productID),
			slog.String("customer_email", customerEmail),
			slog.Int64("customer_id", customerID),
			slog.Bool("granted", granted),
		)
	}
}

// IndexBuilt logs a completed index build.
func (l *Logger) IndexBuilt(itemCount int, ttlSeconds int64) {
	l.Info("index_built",
		slog.Int("item_count", itemCount),
		slog.Int64("ttl_seconds", ttlSeconds),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// CacheError logs cache store errors. Cache failures degrade to a rebuild,
// they never fail the request.
func (l *Logger) CacheError(operation string, err error) {
	l.Warn("cache_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
