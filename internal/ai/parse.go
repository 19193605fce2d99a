package ai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mirthlabs/triumphs/internal/domain"
)

// objectPattern finds the outermost {...} span in a reply. Greedy on purpose:
// the first opening brace through the last closing brace.
var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseCard extracts a card from a raw model reply. Replies are expected to be
// strict JSON but in practice arrive wrapped in code fences or with stray
// commentary, so the parser strips fences, cuts out the first JSON object span
// and fills any missing keys with safe defaults. It never fails: malformed
// input produces one of the fixed placeholder cards instead.
func ParseCard(raw string) domain.Card {
	text := stripFences(strings.TrimSpace(raw))

	obj := objectPattern.FindString(text)
	if obj == "" {
		return domain.NoJSONCard()
	}

	var card domain.Card
	if err := json.Unmarshal([]byte(obj), &card); err != nil {
		return domain.DecodeErrorCard()
	}

	if card.Category == "" {
		card.Category = domain.CategoryTrigger
	}
	if card.Tags == nil {
		card.Tags = []string{}
	}
	return card
}

// stripFences removes a leading ``` or ```json marker and a trailing ```.
func stripFences(text string) string {
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
