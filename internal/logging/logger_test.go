package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})

	l.WithComponent("applier").Info("active route switched", "from", "none", "to", "wan_primary")

	line := strings.TrimSuffix(buf.String(), "\n")
	assert.Contains(t, line, "uplinkd[")
	assert.Contains(t, line, "[info] applier: active route switched")
	assert.Contains(t, line, "from=none")
	assert.Contains(t, line, "to=wan_primary")
	assert.False(t, strings.Contains(line, "component="), "component is a prefix tag, not an attr")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Info("quiet")
	assert.Empty(t, buf.String())

	l.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestSetLevelIsDynamic(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestComponentLevelIsShared(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})
	scoped := l.WithComponent("monitor")

	l.SetLevel(LevelError)
	scoped.Warn("suppressed")
	assert.Empty(t, buf.String())
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, JSON: true})

	l.Info("hello", "route", "wan_primary")
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"route":"wan_primary"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("anything-else"))
}
