// Package openai implements the card generator against the OpenAI chat
// completion API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/mirthlabs/triumphs/internal/ai"
	"github.com/mirthlabs/triumphs/internal/domain"
)

const (
	// DefaultModel is the default completion model
	DefaultModel = goopenai.GPT4oMini

	// DefaultRequestTimeout bounds a single completion request. There is no
	// retry; a timed-out request surfaces as an error card at the route layer.
	DefaultRequestTimeout = 30 * time.Second

	// Fixed sampling parameters for card generation
	temperature = 1.0
	maxTokens   = 300
)

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// Provider implements ai.Generator using the OpenAI chat completion API.
type Provider struct {
	config Config
	client *goopenai.Client
	logger *slog.Logger
}

// New creates a new OpenAI card generator.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.HTTPClient = &http.Client{
		Timeout: config.RequestTimeout,
	}

	return &Provider{
		config: config,
		client: goopenai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

// GenerateCard requests one card and parses the reply. Transport failures and
// non-success statuses are returned as errors; malformed-but-delivered replies
// are absorbed by the parser into placeholder cards.
func (p *Provider) GenerateCard(ctx context.Context, params ai.GenerateParams) (domain.Card, error) {
	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: BuildUserPrompt(params.Category, params.Theme, params.Tone)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return domain.Card{}, ai.WrapError("create completion", classifyError(err))
	}
	if len(resp.Choices) == 0 {
		return domain.Card{}, ai.WrapError("create completion", ai.EAIEmptyResponse)
	}

	card := ai.ParseCard(resp.Choices[0].Message.Content)

	p.logger.Debug("card generated",
		"model", p.config.Model,
		"category", card.Category,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return card, nil
}

// classifyError maps API failures onto the package error vocabulary so the
// route layer can log them consistently. Unrecognized errors pass through.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.EAITimeout, err)
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ai.EAIUnauthorized, err)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ai.EAIRateLimit, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ai.EAIUnavailable, err)
		}
	}

	return err
}
