package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"
)

// ContextKey is the key type for request-scoped values.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context.
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID
	// (32 hex characters on the wire).
	TraceIDLength = 16
)

// SetTraceID adds a fresh trace ID to the context for correlating logs
// and error responses across one request.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// generateTraceID returns a random 32-character hex string. If crypto/rand
// fails it falls back to a time-derived ID rather than a static value, so
// concurrent requests stay distinguishable in the logs.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	n, err := rand.Read(b)

	if err != nil || n != TraceIDLength {
		slog.Error("failed to generate random trace ID",
			"error", err,
			"bytes_read", n)
		return generateFallbackTraceID()
	}

	return hex.EncodeToString(b)
}

// generateFallbackTraceID derives a trace ID from the clock when the
// random source is unavailable.
func generateFallbackTraceID() string {
	fallbackID := make([]byte, TraceIDLength)

	now := time.Now()
	binary.BigEndian.PutUint64(fallbackID[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(fallbackID[8:12], uint32(now.Nanosecond()))
	binary.BigEndian.PutUint32(fallbackID[12:16], uint32(now.Unix()))

	return hex.EncodeToString(fallbackID)
}
