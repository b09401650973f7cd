package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"Error", slog.LevelError},
	}
	for _, tc := range cases {
		level, err := parseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, level)
	}

	_, err := parseLevel("verbose")
	assert.Error(t, err)
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	logger, err := Setup("loud")
	assert.Error(t, err)
	assert.Nil(t, logger)
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	t.Parallel()

	got := FromContext(context.Background())
	require.NotNil(t, got)
	assert.Equal(t, slog.Default(), got)
}

func TestWithLoggerRoundTrip(t *testing.T) {
	t.Parallel()

	attached := slog.Default().With("component", "test")
	ctx := WithLogger(context.Background(), attached)

	assert.Same(t, attached, FromContext(ctx))
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	fallback := slog.Default().With("component", "store")
	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))

	attached := slog.Default().With("component", "request")
	ctx := WithLogger(context.Background(), attached)
	assert.Same(t, attached, FromContextOrDefault(ctx, fallback))

	assert.NotNil(t, FromContextOrDefault(context.Background(), nil))
}
