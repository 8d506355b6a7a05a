package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelAndFormat(t *testing.T) {
	l := New("worldstore", "debug", "text")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)

	l = New("worldstore", "not-a-level", "json")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
}

func TestWithContext_AddsTraceSignerAndWorld(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("worldstore", "info", "json", &buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithSigner(ctx, "0xabc")
	ctx = WithWorld(ctx, "my-world.dcl.eth")
	l.WithContext(ctx).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "0xabc", entry["signer"])
	assert.Equal(t, "my-world.dcl.eth", entry["world"])
	assert.Equal(t, "worldstore", entry["service"])
}

func TestLogRequest_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("worldstore", "info", "json", &buf)

	l.LogRequest(context.Background(), http.MethodGet, "/values/a", http.StatusInternalServerError, 5*time.Millisecond)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, float64(500), entry["status"])
	assert.Equal(t, "/values/a", entry["path"])
}

func TestTraceIDRoundTrip(t *testing.T) {
	id := NewTraceID()
	require.NotEmpty(t, id)
	assert.Equal(t, id, GetTraceID(WithTraceID(context.Background(), id)))
	assert.Empty(t, GetTraceID(context.Background()))
}
