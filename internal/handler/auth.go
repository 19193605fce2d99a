package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mirthlabs/triumphs/internal/billing"
	"github.com/mirthlabs/triumphs/internal/metrics"
	"github.com/mirthlabs/triumphs/internal/session"
)

// LoginPageData is passed to the login page template.
type LoginPageData struct {
	CurrentPath string
	Email       string
	Flashes     []session.Flash
}

// AuthHandler handles email sign-in and sign-out. There are no passwords:
// signing in with an email lets the billing lookup restore Pro bought under
// that address on another device.
type AuthHandler struct {
	billing  billing.Service
	sessions *session.Manager
	renderer TemplateRenderer
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. svc may be nil when Stripe is not
// configured; sign-in then skips the Pro lookup.
func NewAuthHandler(
	svc billing.Service,
	sessions *session.Manager,
	renderer TemplateRenderer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		billing:  svc,
		sessions: sessions,
		renderer: renderer,
		logger:   logger,
	}
}

// RegisterRoutes registers auth routes on the provided mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /logout", h.Logout)
}

// LoginPage renders the login form.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)

	data := LoginPageData{
		CurrentPath: r.URL.Path,
		Email:       session.Email(sess),
		Flashes:     session.Flashes(sess),
	}
	h.sessions.Save(r, w, sess)
	h.renderer.RenderHTTP(w, "pages/login", data)
}

// Login records the submitted email and restores Pro when the billing
// processor knows this address.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)

	_ = r.ParseForm()
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	if email == "" {
		session.AddFlash(sess, session.FlashError, "Please enter a valid email.")
		h.sessions.Save(r, w, sess)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	session.MakePermanent(sess)
	session.SetEmail(sess, email)

	if h.billing != nil && h.billing.EmailHasPro(email) {
		session.SetPro(sess, true)
		metrics.ProUnlocks.WithLabelValues("login").Inc()
		session.AddFlash(sess, session.FlashSuccess, "Welcome back! Pro recognized for this email.")
	} else {
		session.AddFlash(sess, session.FlashSuccess, "Signed in. Upgrade anytime to activate Pro on all devices.")
	}

	h.sessions.Save(r, w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout wipes the session, including any Pro unlocked on this device.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)

	session.Clear(sess)
	session.AddFlash(sess, session.FlashSuccess, "Signed out.")
	h.sessions.Save(r, w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
