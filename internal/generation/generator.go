// Package generation implements the content generation capability on top of
// an OpenAI-compatible chat completion API (OpenRouter in production).
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/logger"
	openai "github.com/sashabaranov/go-openai"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/core"
)

const (
	generationTemperature = 0.8
	generationMaxTokens   = 2000
	expectedVariants      = 3
)

// ErrNoChoices indicates the API returned an empty completion.
var ErrNoChoices = errors.New("generation API returned no choices")

// Generator implements core.ContentGenerator.
type Generator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

// New creates a Generator from the configured base URL, model, and API key.
func New(cfg config.GenerationConfig, apiKey string, log *logger.Logger) *Generator {
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		log:     log,
	}
}

// Generate produces the requested content as a single formatted message with
// three numbered variants.
func (g *Generator) Generate(ctx context.Context, req core.GenerationRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(req.ContentType, req.Profile),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt(req.ContentType, req.Prompt),
			},
		},
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generation API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	variants := ParseNumberedVariants(content, expectedVariants)

	g.log.Info("Generated %s content for request %s: %d variant(s), %d tokens",
		req.ContentType, req.RequestID, len(variants), resp.Usage.TotalTokens)

	return strings.Join(variants, "\n\n---\n\n"), nil
}

// ParseNumberedVariants splits a numbered AI response ("1. ...", "۲. ...")
// into at most expected items, falling back to blank-line chunks when the
// model ignored the numbering instruction.
func ParseNumberedVariants(content string, expected int) []string {
	var (
		variants []string
		current  strings.Builder
	)

	flush := func() {
		item := strings.TrimSpace(current.String())
		if item != "" {
			variants = append(variants, item)
		}

		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if startsNumbered(trimmed) {
			flush()
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}

		current.WriteString(trimmed)
	}

	flush()

	if len(variants) < 2 {
		variants = variants[:0]

		for _, chunk := range strings.Split(content, "\n\n") {
			if trimmed := strings.TrimSpace(chunk); trimmed != "" {
				variants = append(variants, trimmed)
			}
		}
	}

	if len(variants) == 0 {
		return []string{strings.TrimSpace(content)}
	}

	if len(variants) > expected {
		variants = variants[:expected]
	}

	return variants
}

func startsNumbered(line string) bool {
	prefixes := []string{"1.", "2.", "3.", "۱.", "۲.", "۳.", "1)", "2)", "3)"}
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}

	return false
}
