// Package mock provides a canned card generator for testing and development.
package mock

import (
	"context"
	"log/slog"

	"github.com/mirthlabs/triumphs/internal/ai"
	"github.com/mirthlabs/triumphs/internal/domain"
)

// Provider is a mock card generator.
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	GenerateCardResponse *domain.Card
	GenerateCardError    error

	// Call tracking for testing
	GenerateCardCalls int
	LastParams        ai.GenerateParams
}

// New creates a new mock generator.
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// GenerateCard returns the configured response or error, or a canned card in
// the requested category.
func (p *Provider) GenerateCard(ctx context.Context, params ai.GenerateParams) (domain.Card, error) {
	p.GenerateCardCalls++
	p.LastParams = params

	if p.GenerateCardError != nil {
		return domain.Card{}, p.GenerateCardError
	}
	if p.GenerateCardResponse != nil {
		return *p.GenerateCardResponse, nil
	}

	return domain.Card{
		Title:    "Reply-All Apocalypse",
		Subtitle: "Everyone saw it. Everyone.",
		Body: "You meant to forward the thread to one trusted ally. Instead, forty-seven coworkers " +
			"now know exactly how you feel about the Monday standup. Take a breath, own the chaos, " +
			"and remember: legends are made, not BCC'd.",
		Category: domain.NormalizeCategory(params.Category),
		Tags:     []string{"email", "chaos", "workplace"},
	}, nil
}
