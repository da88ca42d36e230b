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
	// ReceiptIDKey is the context key for the receipt being processed
	ReceiptIDKey contextKey = "receipt_id"
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
// Supports request_id and receipt_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if receiptID, ok := ctx.Value(ReceiptIDKey).(string); ok && receiptID != "" {
		newLogger = newLogger.WithReceiptID(receiptID)
	}

	return newLogger
}

// WithReceiptID returns a logger scoped to a single receipt.
func (l *Logger) WithReceiptID(receiptID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("receipt_id", receiptID)),
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

// ReceiptOutcome logs the terminal-for-now outcome of one processing pass.
func (l *Logger) ReceiptOutcome(receiptID, status string, attempt int, reason string) {
	attrs := []any{
		slog.String("receipt_id", receiptID),
		slog.String("status", status),
		slog.Int("attempt", attempt),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}
	l.Info("receipt_outcome", attrs...)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
