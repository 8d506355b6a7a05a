// Package logging provides structured logging with trace propagation.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	TraceIDKey contextKey = "trace_id"
	SignerKey  contextKey = "signer"
	WorldKey   contextKey = "world"
)

// Logger wraps logrus with service metadata and context-aware helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a logger for the named service. Unknown levels fall back to info,
// any format other than "text" produces JSON.
func New(service, level, format string) *Logger {
	return NewWithOutput(service, level, format, os.Stdout)
}

// NewWithOutput is New writing to out.
func NewWithOutput(service, level, format string, out io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(out)

	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return &Logger{Logger: l, service: service}
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return NewWithOutput("nop", "panic", "json", io.Discard)
}

// Service returns the service name the logger was created for.
func (l *Logger) Service() string {
	return l.service
}

// WithContext returns an entry carrying the trace, signer and world found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{"service": l.service}
	if ctx != nil {
		if traceID := GetTraceID(ctx); traceID != "" {
			fields["trace_id"] = traceID
		}
		if signer := GetSigner(ctx); signer != "" {
			fields["signer"] = signer
		}
		if world := GetWorld(ctx); world != "" {
			fields["world"] = world
		}
	}
	return l.Logger.WithFields(fields)
}

// WithFields returns an entry with the service name and the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	return entry.WithFields(logrus.Fields(fields))
}

// WithError returns an entry with the service name and the error attached.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithError(err)
}

// LogRequest records a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})

	switch {
	case status >= 500:
		entry.Error("HTTP request failed")
	case status >= 400:
		entry.Warn("HTTP request rejected")
	default:
		entry.Info("HTTP request")
	}
}

// LogSecurityEvent records an authorization or abuse related event.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).
		WithField("security_event", event).
		WithFields(logrus.Fields(fields)).
		Warn("Security event")
}

// NewTraceID generates a new trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores the trace ID in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID stored in ctx, if any.
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// WithSigner stores the (already redacted) signer label in ctx for log enrichment.
func WithSigner(ctx context.Context, signer string) context.Context {
	return context.WithValue(ctx, SignerKey, signer)
}

// GetSigner returns the signer label stored in ctx, if any.
func GetSigner(ctx context.Context) string {
	v, _ := ctx.Value(SignerKey).(string)
	return v
}

// WithWorld stores the world name in ctx.
func WithWorld(ctx context.Context, world string) context.Context {
	return context.WithValue(ctx, WorldKey, world)
}

// GetWorld returns the world name stored in ctx, if any.
func GetWorld(ctx context.Context) string {
	v, _ := ctx.Value(WorldKey).(string)
	return v
}
