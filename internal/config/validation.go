package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate reports every out-of-range option. Callers that must not fail
// (the analyzer) use Normalize instead.
func (c *Config) Validate() error {
	errs := c.Settings.validate()

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)})
	}
	for comp, lvl := range c.Logging.Components {
		switch strings.ToLower(lvl) {
		case "debug", "info", "warn", "error":
		default:
			errs = append(errs, ValidationError{Field: "logging.components." + comp, Message: fmt.Sprintf("unknown level %q", lvl)})
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json", "logfmt":
	default:
		errs = append(errs, ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)})
	}
	switch strings.ToLower(c.Completions.Provider) {
	case "", "openai", "ollama":
	default:
		errs = append(errs, ValidationError{Field: "completions.provider", Message: fmt.Sprintf("unknown provider %q", c.Completions.Provider)})
	}
	if c.Completions.TimeoutSec < 0 {
		errs = append(errs, ValidationError{Field: "completions.timeout_sec", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate reports out-of-range settings.
func (s Settings) Validate() error {
	if errs := s.validate(); len(errs) > 0 {
		return errs
	}
	return nil
}

func (s Settings) validate() ValidationErrors {
	var errs ValidationErrors
	if s.DynamicTriggerCount < 1 {
		errs = append(errs, ValidationError{Field: "dynamicTriggerCount", Message: "must be >= 1"})
	}
	if s.SlopThreshold < 1 {
		errs = append(errs, ValidationError{Field: "slopThreshold", Message: "must be >= 1"})
	}
	if s.LeaderboardUpdateCycle < 1 {
		errs = append(errs, ValidationError{Field: "leaderboardUpdateCycle", Message: "must be >= 1"})
	}
	if s.PruningCycle < MinPruningCycle {
		errs = append(errs, ValidationError{Field: "pruningCycle", Message: fmt.Sprintf("must be >= %d", MinPruningCycle)})
	}
	if s.NgramMax < MinNgramMax || s.NgramMax > MaxNgramMax {
		errs = append(errs, ValidationError{Field: "ngramMax", Message: fmt.Sprintf("must be in [%d,%d]", MinNgramMax, MaxNgramMax)})
	}
	if s.PatternMinCommon < MinPatternMinCommon || s.PatternMinCommon > MaxPatternMinCommon {
		errs = append(errs, ValidationError{Field: "patternMinCommon", Message: fmt.Sprintf("must be in [%d,%d]", MinPatternMinCommon, MaxPatternMinCommon)})
	}
	for term, w := range s.Blacklist {
		if w < MinBlacklistWeight || w > MaxBlacklistWeight {
			errs = append(errs, ValidationError{
				Field:   "blacklist." + term,
				Message: fmt.Sprintf("weight %d not in [%d,%d]", w, MinBlacklistWeight, MaxBlacklistWeight),
			})
		}
	}
	return errs
}
