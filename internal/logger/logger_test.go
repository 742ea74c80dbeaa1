package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"loud":    zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}

	assert.True(t, ValidLevel("Debug"))
	assert.False(t, ValidLevel("loud"))
	assert.False(t, ValidLevel(""))
}

func TestWithSession_TagsEntries(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("debug", false, &buf)
	t.Cleanup(func() { Init("info", false) })

	WithSession("pipeline", "abc123").Debug().Int("frames", 3).Msg("tick")
	WithComponent("api").Info().Msg("up")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "abc123", entry["session"])
	assert.Equal(t, float64(3), entry["frames"])
	assert.Equal(t, "tick", entry["message"])

	require.NoError(t, json.Unmarshal(lines[1], &entry))
	assert.Equal(t, "api", entry["component"])
}

func TestInitWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", false, &buf)
	t.Cleanup(func() { Init("info", false) })

	WithComponent("capture").Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	WithComponent("capture").Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
