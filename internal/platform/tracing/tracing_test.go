package tracing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"farmerid/internal/platform/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
