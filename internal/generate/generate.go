// Package generate asks a chat-completion model for regex rules that
// rewrite repetitive phrases, and validates what comes back.
package generate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/rcliao/prosepolisher/internal/config"
)

// ErrGenerationFailed wraps every failure of a generation round. Nothing is
// committed when it is returned.
var ErrGenerationFailed = errors.New("rule generation failed")

// Request is the input of one generation round.
type Request struct {
	// Phrases are the repeated phrases to target, highest score first.
	Phrases []string
	// ExistingRules are script names already active, to avoid duplicates.
	ExistingRules []string
	// MaxRules caps the number of rules requested.
	MaxRules int
}

// Generator produces the raw model output for a request. The output is
// expected to hold a JSON array of rules; ParseRules checks it.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// NewFromConfig builds the configured generator. It returns nil when
// generation is disabled (no provider and no API key).
func NewFromConfig(cfg config.CompletionsConfig, logger *log.Logger) Generator {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		url := cfg.APIURL
		if url == "" || url == config.DefaultConfig().Completions.APIURL {
			url = ollamaURL()
		}
		return NewOpenAIGenerator(url, "", cfg.Model, logger)
	case "openai":
		return NewOpenAIGenerator(cfg.APIURL, cfg.APIKey, cfg.Model, logger)
	case "":
		if cfg.APIKey == "" {
			return nil
		}
		return NewOpenAIGenerator(cfg.APIURL, cfg.APIKey, cfg.Model, logger)
	default:
		return nil
	}
}

func ollamaURL() string {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	return strings.TrimRight(host, "/") + "/v1"
}

const systemPrompt = `You write regular-expression rewrite rules that remove repetitive, clichéd phrasing from AI-written fiction.
Reply with ONLY a JSON array. Each element is an object with:
  "scriptName": short human label,
  "findRegex": JavaScript regular expression source (no slashes or flags; matching is case-insensitive),
  "replaceString": either literal text with $1, $2 backreferences or "{{random:option one,option two,option three}}".
Prefer several natural alternatives inside {{random:...}}. Keep capture groups for pronouns and names.`

// BuildPrompt returns the system and user messages for req.
func BuildPrompt(req Request) (system, user string) {
	var b strings.Builder
	limit := req.MaxRules
	if limit <= 0 || limit > len(req.Phrases) {
		limit = len(req.Phrases)
	}
	fmt.Fprintf(&b, "Write at most %d rules for these repeated phrases (score order):\n", limit)
	for _, p := range req.Phrases {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	if len(req.ExistingRules) > 0 {
		b.WriteString("\nThese rules already exist; do not duplicate them:\n")
		for _, name := range req.ExistingRules {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	return systemPrompt, b.String()
}
