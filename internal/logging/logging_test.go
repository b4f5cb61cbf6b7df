package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info("hidden")
	l.Warn("shown", "rule", "x")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "rule=x")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "loud", Output: &buf})
	l.Debug("debug line")
	l.Info("info line")
	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestFactory_ForComponentPrefixAndCache(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory(New(Config{Level: "debug", Output: &buf}))

	a := f.ForComponent("regexcache")
	b := f.ForComponent("regexcache")
	require.Same(t, a, b)

	a.Info("compiled")
	assert.True(t, strings.Contains(buf.String(), "regexcache"), "expected prefix in %q", buf.String())
}

func TestFactory_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	f := NewFactory(New(Config{Level: "debug", Output: &buf}))
	require.NoError(t, f.SetLevel("ngram", "error"))
	require.Error(t, f.SetLevel("ngram", "nope"))

	f.ForComponent("ngram").Warn("quiet")
	assert.Empty(t, buf.String())
}
