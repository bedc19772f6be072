package logging

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("WEBPANE_LOG_LEVEL", "")
		t.Setenv("WEBPANE_LOG_FORMAT", "")
		logger := NewFromEnv()
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("level from environment", func(t *testing.T) {
		t.Setenv("WEBPANE_LOG_LEVEL", "debug")
		logger := NewFromEnv()
		assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	})

	t.Run("invalid level falls back to default", func(t *testing.T) {
		t.Setenv("WEBPANE_LOG_LEVEL", "loud")
		logger := NewFromEnv()
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})
}

func TestNewFromConfigValues(t *testing.T) {
	logger := NewFromConfigValues("warn", "json")
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger = NewFromConfigValues("bogus", "carrier-pigeon")
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestContextRoundTrip(t *testing.T) {
	logger := New(Config{Level: zerolog.DebugLevel, Format: "json"})
	ctx := WithContext(context.Background(), logger)

	got := FromContext(ctx)
	assert.Equal(t, zerolog.DebugLevel, got.GetLevel())

	// A context without a logger yields the disabled default, not nil.
	bare := FromContext(context.Background())
	assert.NotNil(t, bare)
}

func TestWithComponent(t *testing.T) {
	logger := New(DefaultConfig())
	ctx := WithContext(context.Background(), logger)
	ctx = WithComponent(ctx, "capture")
	ctx = WithViewID(ctx, 3)
	assert.NotNil(t, FromContext(ctx))
}
