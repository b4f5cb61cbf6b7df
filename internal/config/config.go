// Package config handles configuration loading, validation and defaults for
// prosepolisher.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rcliao/prosepolisher/internal/model"
)

// Config holds the complete application configuration.
type Config struct {
	// Settings is the analyzer/rule option blob.
	Settings Settings `toml:"settings" json:"settings" yaml:"settings"`

	// Storage configuration for persistence.
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage"`

	// Completions configures the rule-generation endpoint.
	Completions CompletionsConfig `toml:"completions" json:"completions" yaml:"completions"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// DBPath is the SQLite database file.
	DBPath string `toml:"db_path" json:"db_path" yaml:"db_path"`
}

// CompletionsConfig holds the OpenAI-compatible endpoint used for rule
// generation. Provider is "openai", "ollama" or empty; empty picks openai
// when an APIKey is set and disables generation otherwise.
type CompletionsConfig struct {
	Provider   string `toml:"provider" json:"provider" yaml:"provider"`
	APIURL     string `toml:"api_url" json:"api_url" yaml:"api_url"`
	APIKey     string `toml:"api_key" json:"api_key" yaml:"api_key"`
	Model      string `toml:"model" json:"model" yaml:"model"`
	TimeoutSec int    `toml:"timeout_sec" json:"timeout_sec" yaml:"timeout_sec"`
	MaxPhrases int    `toml:"max_phrases" json:"max_phrases" yaml:"max_phrases"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
	// Components overrides the level per component, e.g. {"regex": "debug"}.
	Components map[string]string `toml:"components" json:"components,omitempty" yaml:"components,omitempty"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return &Config{
		Settings: DefaultSettings(),
		Storage: StorageConfig{
			DBPath: DefaultDBPath(),
		},
		Completions: CompletionsConfig{
			APIURL:     "https://api.openai.com/v1",
			Model:      "gpt-4.1-mini",
			TimeoutSec: 60,
			MaxPhrases: 25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDBPath returns ~/.prosepolisher/prosepolisher.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".prosepolisher", "prosepolisher.db")
}

// DefaultConfigPath returns ~/.prosepolisher/config.toml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".prosepolisher", "config.toml")
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	n := *c
	s := c.Settings
	n.Settings = s
	n.Settings.Whitelist = append([]string(nil), s.Whitelist...)
	n.Settings.Blacklist = make(map[string]int, len(s.Blacklist))
	for k, v := range s.Blacklist {
		n.Settings.Blacklist[k] = v
	}
	n.Settings.DynamicRules = make([]model.Rule, 0, len(s.DynamicRules))
	for _, r := range s.DynamicRules {
		n.Settings.DynamicRules = append(n.Settings.DynamicRules, r.Clone())
	}
	if c.Logging.Components != nil {
		n.Logging.Components = make(map[string]string, len(c.Logging.Components))
		for k, v := range c.Logging.Components {
			n.Logging.Components[k] = v
		}
	}
	return &n
}

// Normalize clamps settings and fills empty app fields with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	c.Settings = c.Settings.Normalize()
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		c.Storage.DBPath = d.Storage.DBPath
	}
	if c.Completions.APIURL == "" {
		c.Completions.APIURL = d.Completions.APIURL
	}
	if c.Completions.Model == "" {
		c.Completions.Model = d.Completions.Model
	}
	if c.Completions.TimeoutSec <= 0 {
		c.Completions.TimeoutSec = d.Completions.TimeoutSec
	}
	if c.Completions.MaxPhrases <= 0 {
		c.Completions.MaxPhrases = d.Completions.MaxPhrases
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}
