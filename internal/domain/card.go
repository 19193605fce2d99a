// Package domain contains core business types for the card generator.
package domain

import "fmt"

// Card categories. Unknown values silently normalize to Trigger.
const (
	CategoryTrigger = "Trigger"
	CategoryCoping  = "Coping"
	CategoryHealing = "Healing"
	CategoryWild    = "Wild"
)

// Categories lists the valid card categories in display order.
var Categories = []string{CategoryTrigger, CategoryCoping, CategoryHealing, CategoryWild}

// Card tones. Unknown values silently normalize to DefaultTone.
const (
	ToneClassic    = "Classic"
	ToneSassy      = "Sassy"
	ToneSpicy      = "Spicy"
	ToneExtraSpicy = "Extra Spicy"

	DefaultTone = ToneSassy
)

// Tones lists the valid tones in display order.
var Tones = []string{ToneClassic, ToneSassy, ToneSpicy, ToneExtraSpicy}

// ToneGuide describes each tone for the prompt builder and the UI.
var ToneGuide = map[string]string{
	ToneClassic:    "balanced, gently witty, broadly appealing",
	ToneSassy:      "campy, flirtatious, bold quips, playful shade",
	ToneSpicy:      "edgier quips, darker humor, more bite (still kind)",
	ToneExtraSpicy: "max sass and innuendo; toe the PG-13 line without crossing it",
}

// Card is a single generated game card. Cards are ephemeral; at most the last
// one is remembered per session.
type Card struct {
	Title    string   `json:"title"`    // <= 8 words
	Subtitle string   `json:"subtitle"` // <= 14 words
	Body     string   `json:"body"`     // <= 80 words
	Category string   `json:"category"` // one of Categories
	Tags     []string `json:"tags"`     // 2-5 simple words
}

// NormalizeCategory returns the category unchanged if valid, CategoryTrigger otherwise.
func NormalizeCategory(category string) string {
	for _, c := range Categories {
		if category == c {
			return category
		}
	}
	return CategoryTrigger
}

// NormalizeTone returns the tone unchanged if valid, DefaultTone otherwise.
func NormalizeTone(tone string) string {
	if _, ok := ToneGuide[tone]; ok {
		return tone
	}
	return DefaultTone
}

// NoJSONCard is the placeholder shown when the model reply contains no JSON
// object at all.
func NoJSONCard() Card {
	return Card{
		Title:    "Card Error",
		Subtitle: "Parsing issue",
		Body:     "We couldn't parse the AI response as JSON. Try again.",
		Category: CategoryTrigger,
		Tags:     []string{"error"},
	}
}

// DecodeErrorCard is the placeholder shown when a JSON object was found but
// failed to decode.
func DecodeErrorCard() Card {
	return Card{
		Title:    "Card Error",
		Subtitle: "JSON decode failed",
		Body:     "The response wasn't valid JSON. Try again.",
		Category: CategoryTrigger,
		Tags:     []string{"error"},
	}
}

// NetworkErrorCard is the placeholder shown when the completion request itself
// failed. It keeps the category the player asked for.
func NetworkErrorCard(category string, err error) Card {
	return Card{
		Title:    "Network Error",
		Subtitle: "",
		Body:     fmt.Sprintf("Card request failed: %v", err),
		Category: NormalizeCategory(category),
		Tags:     []string{"error"},
	}
}
