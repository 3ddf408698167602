package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		" error ": ERROR,
		"none":    SILENT,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	level, err := ParseLevel("loud")
	require.Error(t, err)
	assert.Equal(t, INFO, level)
}

func TestLoggerFiltersAndPrefixesModule(t *testing.T) {
	var buf bytes.Buffer
	l := New(WARN, &buf, false)

	l.Info("FeedPoller", "hidden %d", 1)
	l.Warn("FeedPoller", "fallback after %s", "timeout")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] [FeedPoller] fallback after timeout")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestSilentLevelDropsEverything(t *testing.T) {
	var buf bytes.Buffer
	l := New(SILENT, &buf, true)
	l.Error("Main", "boom")
	assert.Empty(t, buf.String())
	assert.False(t, l.Enabled(ERROR))
}

func TestGlobalFunctionsUseDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(New(DEBUG, &buf, false))
	t.Cleanup(func() { SetDefault(nil) })

	Debug("Overlay", "redraw %d", 3)
	assert.Contains(t, buf.String(), "[DEBUG] [Overlay] redraw 3")
	assert.Equal(t, DEBUG, GetLevel())

	SetDefault(nil)
	assert.Equal(t, INFO, GetLevel())
	Info("Overlay", "no logger installed")
}
