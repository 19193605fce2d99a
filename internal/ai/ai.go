// Package ai defines the card generation provider interface and its error
// vocabulary. Concrete providers live in subpackages.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mirthlabs/triumphs/internal/domain"
)

// Generator produces one card per call from the external completion API.
type Generator interface {
	// GenerateCard requests a single card. The returned card is always
	// schema-complete; transport and provider failures surface as errors for
	// the route layer to recover.
	GenerateCard(ctx context.Context, params GenerateParams) (domain.Card, error)
}

// GenerateParams describes the requested card.
type GenerateParams struct {
	Category string // one of domain.Categories; unknown values fall back to Trigger
	Theme    string // optional free-text theme, may be empty
	Tone     string // one of domain.Tones; unknown values fall back to the default
}

// Error codes for generation failures.
var (
	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("completion provider authentication failed")

	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("completion provider rate limit exceeded")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("completion request timed out")

	// EAIUnavailable indicates the completion service is temporarily unavailable
	EAIUnavailable = errors.New("completion service temporarily unavailable")

	// EAIEmptyResponse indicates the API returned no choices
	EAIEmptyResponse = errors.New("completion response contained no choices")
)

// WrapError wraps an error with context about the generation operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
