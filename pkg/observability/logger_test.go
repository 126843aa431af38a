package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrylabs/cookbook/pkg/contextkeys"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Info("should be filtered")
	assert.Empty(t, buf.String())

	logger.Warn("warned")
	assert.Contains(t, buf.String(), "warned")
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("user_id", 42).Info("scoped")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(42), entry["user_id"])
	assert.Equal(t, "scoped", entry["msg"])
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(assert.AnError).Error("boom")
	assert.Contains(t, buf.String(), assert.AnError.Error())

	// nil error is a no-op
	same := logger.WithError(nil)
	assert.Equal(t, logger, same)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = context.WithValue(ctx, contextkeys.RequestIDKey, "req-123")

	FromContext(ctx).Info("traced")
	assert.Contains(t, buf.String(), "req-123")
}

func TestGetLoggerFallback(t *testing.T) {
	// A bare context still yields a usable logger
	logger := GetLogger(context.Background())
	assert.NotNil(t, logger)
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}
