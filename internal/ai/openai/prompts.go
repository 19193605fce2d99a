package openai

import (
	"fmt"
	"strings"

	"github.com/mirthlabs/triumphs/internal/domain"
)

// safetyRails is appended to the system prompt to keep output PG-13.
const safetyRails = "Keep it PG-13. No slurs, hate, graphic violence, explicit sexual content, " +
	"self-harm instructions, or illegal advice. Do not demean or target protected groups. " +
	"Snark is fine, cruelty is not. Innuendo allowed; keep it tasteful."

// SystemPrompt is the fixed instruction sent with every card request. It pins
// the voice, the strict JSON schema and the safety rails.
const SystemPrompt = `You write cards for the satirical healing card game "Triggers & Triumphs".

VOICE: Samantha Jones meets a drag show emcee — witty, camp, irreverent, flirtatious; confident,
sharp one-liners; a little savage but ultimately kind. Embrace double entendre and theatrical flair.
Never punch down. Keep it cathartic and empowering.

Each card must be STRICT JSON with keys:
- title (<= 8 words)
- subtitle (<= 14 words)
- body (<= 80 words)
- category (one of: Trigger, Coping, Healing, Wild)
- tags (2-5 simple words)

Tone: darkly comedic + empathetic + clever. ` + safetyRails + `
Output JSON only. No commentary, no backticks.`

// BuildUserPrompt composes the per-request instruction from category, theme
// and tone. Unknown tones fall back to the default; an empty theme is omitted
// entirely.
func BuildUserPrompt(category, theme, tone string) string {
	category = domain.NormalizeCategory(category)
	tone = domain.NormalizeTone(tone)

	var b strings.Builder
	fmt.Fprintf(&b, "Create one %s card. Target tone: %s (%s).", category, tone, domain.ToneGuide[tone])
	if t := strings.TrimSpace(theme); t != "" {
		fmt.Fprintf(&b, " Theme: %s.", t)
	}
	b.WriteString(" Keep it original and on-brand. Return strict JSON only.")
	return b.String()
}
