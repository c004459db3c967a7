package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := build("production", &buf)

	logger.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Info().Str("username", "alice").Msg("login")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ztconsole", line["service"])
	assert.Equal(t, "production", line["env"])
	assert.Equal(t, "alice", line["username"])
	assert.Equal(t, "login", line["message"])
}

func TestDevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := build("development", &buf)

	logger.Debug().Msg("poll cycle")
	assert.Contains(t, buf.String(), "poll cycle")
	assert.Contains(t, buf.String(), "ztconsole")
}
