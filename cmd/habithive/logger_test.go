// ABOUTME: Tests for the colorized slog handler used by the CLI
// ABOUTME: Color is disabled so lines compare as plain text

package main

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorHandler(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	logger := slog.New(&colorHandler{mu: &sync.Mutex{}, out: &buf, level: slog.LevelInfo})

	logger.Debug("hidden")
	logger.With("component", "engine").WithGroup("hive").Warn("load failed", "id", "hv1")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "WRN load failed component=engine hive.id=hv1"), lines[0])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
