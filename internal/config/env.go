package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvDBPath              = "PROSEPOLISHER_DB"
	EnvLogLevel            = "PROSEPOLISHER_LOG_LEVEL"
	EnvCompletionsProvider = "COMPLETIONS_PROVIDER"
	EnvCompletionsURL      = "COMPLETIONS_API_URL"
	EnvCompletionsKey      = "COMPLETIONS_API_KEY"
	EnvCompletionsModel    = "COMPLETIONS_MODEL"
	EnvCompletionsTimeout  = "COMPLETIONS_TIMEOUT_SEC"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// LoadDotEnv loads a .env file from the working directory if one exists.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() {
	c.Storage.DBPath = getEnv(EnvDBPath, c.Storage.DBPath)
	c.Logging.Level = getEnv(EnvLogLevel, c.Logging.Level)
	c.Completions.Provider = getEnv(EnvCompletionsProvider, c.Completions.Provider)
	c.Completions.APIURL = getEnv(EnvCompletionsURL, c.Completions.APIURL)
	c.Completions.APIKey = getEnv(EnvCompletionsKey, c.Completions.APIKey)
	if c.Completions.APIKey == "" {
		c.Completions.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	c.Completions.Model = getEnv(EnvCompletionsModel, c.Completions.Model)
	if v := os.Getenv(EnvCompletionsTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Completions.TimeoutSec = n
		}
	}
}
