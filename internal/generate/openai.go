package generate

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/rcliao/prosepolisher/internal/logging"
)

var _ Generator = (*OpenAIGenerator)(nil)

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float64
	logger      *log.Logger
}

// NewOpenAIGenerator creates a generator for baseURL. An empty apiKey is
// allowed for local servers.
func NewOpenAIGenerator(baseURL, apiKey, model string, logger *log.Logger) *OpenAIGenerator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIGenerator{
		client:      &client,
		model:       model,
		temperature: 0.7,
		logger:      logging.OrDiscard(logger),
	}
}

// Generate sends the prompt for req and returns the first choice's content.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	system, user := BuildPrompt(req)
	g.logger.Debug("requesting rules", "model", g.model, "phrases", len(req.Phrases))

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       g.model,
		Temperature: param.Opt[float64]{Value: g.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
