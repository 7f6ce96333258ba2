package logging

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New("production", "warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = New("development", "loud")
	assert.Error(t, err)
}

func TestLogError_WithOopsError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	err := oops.Code("TEST_ERROR").With("key", "value").Errorf("something failed")
	LogError(logger, "operation failed", err, zap.String("route", "/api/login"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "operation failed", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "TEST_ERROR", fields["code"])
	assert.Equal(t, "/api/login", fields["route"])
	assert.Contains(t, fields["context"], "key")
}

func TestLogError_WithStandardError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	LogError(logger, "operation failed", errors.New("standard error"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "standard error", fields["error"])
	assert.NotContains(t, fields, "code")
}
