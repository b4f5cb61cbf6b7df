package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())
	require.NoError(t, DefaultConfig().Validate())
}

func TestSettingsNormalize(t *testing.T) {
	s := Settings{
		PruningCycle:     2,
		NgramMax:         50,
		PatternMinCommon: 1,
		SlopThreshold:    0.5,
		Whitelist:        []string{" Alice ", "alice", ""},
		Blacklist:        map[string]int{"Suddenly": 42, "softly": 0, " ": 3},
	}
	n := s.Normalize()

	assert.Equal(t, MinPruningCycle, n.PruningCycle)
	assert.Equal(t, MaxNgramMax, n.NgramMax)
	assert.Equal(t, MinPatternMinCommon, n.PatternMinCommon)
	assert.Equal(t, DefaultSlopThreshold, n.SlopThreshold)
	assert.Equal(t, DefaultDynamicTriggerCount, n.DynamicTriggerCount)
	assert.Equal(t, DefaultLeaderboardUpdateCycle, n.LeaderboardUpdateCycle)
	assert.Equal(t, []string{"alice"}, n.Whitelist)
	assert.Equal(t, map[string]int{"suddenly": 10, "softly": 1}, n.Blacklist)
	assert.NotNil(t, n.DynamicRules)

	// Input untouched.
	assert.Equal(t, 2, s.PruningCycle)
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	s.NgramMax = 2
	s.Blacklist = map[string]int{"x": 11}

	err := s.Validate()
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestCheck_ComponentLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logging.components]
regex = "debug"
ngram = "loud"
`), 0o644))

	err := Check(path)
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "logging.components.ngram", verrs[0].Field)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Clone().Logging.Components["regex"])
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultNgramMax, cfg.Settings.NgramMax)
	assert.True(t, cfg.Settings.IsStaticEnabled)
}

func TestLoad_Formats(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	dir := t.TempDir()

	cases := map[string]string{
		"config.toml": `
[settings]
ngram_max = 6
is_static_enabled = false
[settings.blacklist]
suddenly = 3
`,
		"config.yaml": `
settings:
  ngramMax: 6
  isStaticEnabled: false
  blacklist:
    suddenly: 3
`,
		"config.json": `{"settings": {"ngramMax": 6, "isStaticEnabled": false, "blacklist": {"suddenly": 3}}}`,
		"blob.json":   `{"ngramMax": 6, "isStaticEnabled": false, "blacklist": {"suddenly": 3}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 6, cfg.Settings.NgramMax)
			assert.False(t, cfg.Settings.IsStaticEnabled)
			assert.Equal(t, 3, cfg.Settings.Blacklist["suddenly"])
			// Untouched keys keep defaults.
			assert.Equal(t, DefaultPruningCycle, cfg.Settings.PruningCycle)
			assert.True(t, cfg.Settings.IntegrateWithGlobalRegex)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/pp-test.db")
	t.Setenv(EnvCompletionsKey, "sk-test")
	t.Setenv(EnvCompletionsTimeout, "5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pp-test.db", cfg.Storage.DBPath)
	assert.Equal(t, "sk-test", cfg.Completions.APIKey)
	assert.Equal(t, 5, cfg.Completions.TimeoutSec)
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	for _, ext := range []string{".toml", ".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg"+ext)
			cfg := DefaultConfig()
			cfg.Settings.Whitelist = []string{"alice"}
			cfg.Settings.PatternMinCommon = 4
			require.NoError(t, Save(cfg, path))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, []string{"alice"}, got.Settings.Whitelist)
			assert.Equal(t, 4, got.Settings.PatternMinCommon)
		})
	}
}

func TestLoaderWatchReloads(t *testing.T) {
	t.Setenv(EnvDBPath, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[settings]\nngram_max = 5\n"), 0o644))

	l := NewLoader(path)
	defer l.Close()
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Settings.NgramMax)

	changed := make(chan *Config, 1)
	l.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	require.NoError(t, l.Watch())

	require.NoError(t, os.WriteFile(path, []byte("[settings]\nngram_max = 7\n"), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, 7, c.Settings.NgramMax)
		assert.Equal(t, 7, l.Config().Settings.NgramMax)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.Blacklist["x"] = 2
	c := cfg.Clone()
	c.Settings.Blacklist["x"] = 9
	c.Settings.Whitelist = append(c.Settings.Whitelist, "y")
	assert.Equal(t, 2, cfg.Settings.Blacklist["x"])
	assert.Empty(t, cfg.Settings.Whitelist)
}
