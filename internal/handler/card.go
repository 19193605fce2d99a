// Package handler contains the HTTP route layer.
//
// This file implements the home page and card generation: the quota gate, the
// completion call and the error-card recovery at the route boundary.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/mirthlabs/triumphs/internal/ai"
	"github.com/mirthlabs/triumphs/internal/domain"
	"github.com/mirthlabs/triumphs/internal/metrics"
	"github.com/mirthlabs/triumphs/internal/quota"
	"github.com/mirthlabs/triumphs/internal/session"
)

// TemplateRenderer is the interface for rendering HTML templates.
// This interface allows for mocking in tests.
type TemplateRenderer interface {
	RenderHTTP(w http.ResponseWriter, name string, data interface{})
}

// HomePageData is passed to the home page template.
type HomePageData struct {
	CurrentPath   string
	Categories    []string
	Tones         []string
	Remaining     int
	Pro           bool
	Email         string
	Last          *domain.Card
	StripeEnabled bool
	Flashes       []session.Flash
}

// CardHandler handles the home page and card generation.
//
// Routes handled:
//   - GET  /          -> Home
//   - POST /generate  -> Generate
type CardHandler struct {
	generator     ai.Generator
	quota         *quota.Tracker
	sessions      *session.Manager
	renderer      TemplateRenderer
	logger        *slog.Logger
	stripeEnabled bool
}

// NewCardHandler creates a new CardHandler. stripeEnabled controls whether the
// upgrade call-to-action is shown at all.
func NewCardHandler(
	generator ai.Generator,
	tracker *quota.Tracker,
	sessions *session.Manager,
	renderer TemplateRenderer,
	logger *slog.Logger,
	stripeEnabled bool,
) *CardHandler {
	return &CardHandler{
		generator:     generator,
		quota:         tracker,
		sessions:      sessions,
		renderer:      renderer,
		logger:        logger,
		stripeEnabled: stripeEnabled,
	}
}

// RegisterRoutes registers card routes on the provided mux.
func (h *CardHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("POST /generate", h.Generate)
}

// Home renders the home page with the remaining quota and the last card.
func (h *CardHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)

	data := h.homeData(r, sess)
	h.sessions.Save(r, w, sess)
	h.renderer.RenderHTTP(w, "pages/home", data)
}

// Generate gates on the quota, calls the completion API and renders the
// result. Generation failures become a themed error card, never a 500.
func (h *CardHandler) Generate(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)
	pro := session.IsPro(sess)
	identity := quota.Key(session.Email(sess), r)

	if h.quota.Remaining(identity, pro) <= 0 && !pro {
		metrics.QuotaBlocks.Inc()
		session.AddFlash(sess, session.FlashError, "You've used today's free cards. Upgrade for unlimited.")
		h.sessions.Save(r, w, sess)
		http.Redirect(w, r, "/upgrade", http.StatusSeeOther)
		return
	}

	_ = r.ParseForm()
	params := ai.GenerateParams{
		Category: domain.NormalizeCategory(r.FormValue("category")),
		Theme:    r.FormValue("theme"),
		Tone:     domain.NormalizeTone(r.FormValue("tone")),
	}

	card, err := h.generator.GenerateCard(r.Context(), params)
	if err != nil {
		h.logger.Error("card generation failed", "error", err, "category", params.Category)
		metrics.CardsGenerated.WithLabelValues(params.Category, "error").Inc()
		card = domain.NetworkErrorCard(params.Category, err)
	} else {
		metrics.CardsGenerated.WithLabelValues(params.Category, "ok").Inc()
	}

	// A failed call still consumes a free use, matching the quota's purpose
	// of bounding upstream requests rather than successes.
	h.quota.Record(identity, pro)
	session.SetLastCard(sess, card)

	data := h.homeData(r, sess)
	data.Last = &card
	h.sessions.Save(r, w, sess)
	h.renderer.RenderHTTP(w, "pages/home", data)
}

// homeData assembles the shared home page payload. Draining flashes mutates
// the session, so callers must save it afterwards.
func (h *CardHandler) homeData(r *http.Request, sess *sessions.Session) HomePageData {
	email := session.Email(sess)
	pro := session.IsPro(sess)

	data := HomePageData{
		CurrentPath:   r.URL.Path,
		Categories:    domain.Categories,
		Tones:         domain.Tones,
		Remaining:     h.quota.Remaining(quota.Key(email, r), pro),
		Pro:           pro,
		Email:         email,
		StripeEnabled: h.stripeEnabled,
		Flashes:       session.Flashes(sess),
	}
	if last, ok := session.LastCard(sess); ok {
		data.Last = &last
	}
	return data
}
