package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "info", "json", "1.2.3")
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("op", "list").Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "unitdesk", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "list", entry["op"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "debug", "console", "dev")
	require.NoError(t, err)

	log.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "json", "dev")
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "info", "xml", "dev")
	assert.Error(t, err)
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RequestID(ctx))

	ctx = WithRequestID(ctx, "req_abc")
	assert.Equal(t, "req_abc", RequestID(ctx))

	var buf bytes.Buffer
	log, err := New(&buf, "info", "json", "dev")
	require.NoError(t, err)
	For(ctx, log).Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req_abc", entry["request_id"])
}

func TestFor_WithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "info", "json", "dev")
	require.NoError(t, err)
	For(context.Background(), log).Warn().Msg("y")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.NotContains(t, entry, "request_id")
}
