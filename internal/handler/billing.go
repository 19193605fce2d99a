package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"github.com/mirthlabs/triumphs/internal/billing"
	"github.com/mirthlabs/triumphs/internal/metrics"
	"github.com/mirthlabs/triumphs/internal/quota"
	"github.com/mirthlabs/triumphs/internal/session"
)

// UpgradePageData is passed to the upgrade page template.
type UpgradePageData struct {
	CurrentPath string
	Remaining   int
	Pro         bool
	Email       string
	StripeLink  string
	Flashes     []session.Flash
}

// BillingHandler handles checkout and Pro activation.
//
// Routes handled:
//   - GET  /buy      -> Buy
//   - GET  /upgrade  -> UpgradePage
//   - POST /upgrade  -> RedeemCode
//   - GET  /pro      -> Pro
type BillingHandler struct {
	billing    billing.Service
	quota      *quota.Tracker
	sessions   *session.Manager
	renderer   TemplateRenderer
	logger     *slog.Logger
	baseURL    string
	stripeLink string
	adminCode  string
}

// NewBillingHandler creates a new BillingHandler. svc may be nil when Stripe
// is not configured; the handler then falls back to the static payment link.
func NewBillingHandler(
	svc billing.Service,
	tracker *quota.Tracker,
	sessions *session.Manager,
	renderer TemplateRenderer,
	logger *slog.Logger,
	baseURL string,
	stripeLink string,
	adminCode string,
) *BillingHandler {
	return &BillingHandler{
		billing:    svc,
		quota:      tracker,
		sessions:   sessions,
		renderer:   renderer,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		stripeLink: stripeLink,
		adminCode:  adminCode,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /buy", h.Buy)
	mux.HandleFunc("GET /upgrade", h.UpgradePage)
	mux.HandleFunc("POST /upgrade", h.RedeemCode)
	mux.HandleFunc("GET /pro", h.Pro)
}

// Buy starts a checkout session and redirects the browser to Stripe. The
// checkout session ID is pinned to this device so /pro can verify the return
// leg came from the same browser.
func (h *BillingHandler) Buy(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)

	if h.billing == nil {
		if h.stripeLink != "" {
			http.Redirect(w, r, h.stripeLink, http.StatusSeeOther)
			return
		}
		session.AddFlash(sess, session.FlashError, "Upgrade is not configured yet.")
		h.sessions.Save(r, w, sess)
		http.Redirect(w, r, "/upgrade", http.StatusSeeOther)
		return
	}

	checkout, err := h.billing.CreateCheckout(
		session.Email(sess),
		h.baseURL+"/pro?session_id={CHECKOUT_SESSION_ID}",
		h.baseURL+"/upgrade",
	)
	if err != nil {
		h.logger.Error("failed to create checkout", "error", err)
		session.AddFlash(sess, session.FlashError, "Could not start checkout. Please try again.")
		h.sessions.Save(r, w, sess)
		http.Redirect(w, r, "/upgrade", http.StatusSeeOther)
		return
	}

	metrics.CheckoutsStarted.Inc()
	session.SetPendingCheckout(sess, checkout.ID)
	h.sessions.Save(r, w, sess)
	http.Redirect(w, r, checkout.URL, http.StatusSeeOther)
}

// UpgradePage renders the upgrade page.
func (h *BillingHandler) UpgradePage(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)

	data := h.upgradeData(r, sess)
	h.sessions.Save(r, w, sess)
	h.renderer.RenderHTTP(w, "pages/upgrade", data)
}

// RedeemCode checks a submitted admin code and unlocks Pro on a match.
func (h *BillingHandler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)

	_ = r.ParseForm()
	code := strings.TrimSpace(r.FormValue("code"))

	if h.adminCode != "" && subtle.ConstantTimeCompare([]byte(code), []byte(h.adminCode)) == 1 {
		session.MakePermanent(sess)
		session.SetPro(sess, true)
		metrics.ProUnlocks.WithLabelValues("admin").Inc()
		session.AddFlash(sess, session.FlashSuccess, "Pro unlocked. Enjoy unlimited cards!")
		h.sessions.Save(r, w, sess)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	session.AddFlash(sess, session.FlashError, "Invalid code.")
	data := h.upgradeData(r, sess)
	h.sessions.Save(r, w, sess)
	h.renderer.RenderHTTP(w, "pages/upgrade", data)
}

// Pro is the checkout return URL. It verifies the checkout session with
// Stripe and unlocks Pro for this browser. The session ID must match the one
// stashed when checkout started, so a forwarded return link from another
// device cannot unlock Pro here.
func (h *BillingHandler) Pro(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r)

	sid := r.URL.Query().Get("session_id")
	if sid == "" || h.billing == nil {
		h.redirectFlash(w, r, sess, session.FlashError,
			"Invalid access. Please complete checkout first.", "/upgrade")
		return
	}

	if session.PendingCheckout(sess) != sid {
		h.redirectFlash(w, r, sess, session.FlashError,
			"Invalid access. Please complete checkout on this device.", "/upgrade")
		return
	}

	result, err := h.billing.VerifyCheckout(sid)
	if err != nil {
		h.logger.Error("failed to verify checkout", "error", err)
		h.redirectFlash(w, r, sess, session.FlashError,
			"Could not verify checkout. Please try again.", "/upgrade")
		return
	}
	if !result.Paid {
		h.redirectFlash(w, r, sess, session.FlashError,
			"Payment not completed. Please try again.", "/upgrade")
		return
	}

	email := session.Email(sess)
	if email != "" && result.Email != "" && email != result.Email {
		h.redirectFlash(w, r, sess, session.FlashError,
			"This checkout used a different email. Please sign in with that email.", "/login")
		return
	}

	session.MakePermanent(sess)
	session.SetPro(sess, true)
	if result.Email != "" {
		session.SetEmail(sess, result.Email)
	}
	session.ClearPendingCheckout(sess)

	mode := "subscription"
	if result.OneTime {
		mode = "payment"
		if result.CustomerID != "" {
			// Lifetime purchases carry no subscription, so tag the customer
			// for EmailHasPro lookups on other devices.
			if err := h.billing.MarkLifetime(result.CustomerID); err != nil {
				h.logger.Error("failed to mark lifetime customer", "error", err, "customer_id", result.CustomerID)
			}
		}
	}
	metrics.CheckoutsCompleted.WithLabelValues(mode).Inc()
	metrics.ProUnlocks.WithLabelValues("checkout").Inc()

	session.AddFlash(sess, session.FlashSuccess, "Thanks for upgrading! Pro is active.")
	h.sessions.Save(r, w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *BillingHandler) redirectFlash(w http.ResponseWriter, r *http.Request, sess *sessions.Session, flashType, message, target string) {
	session.AddFlash(sess, flashType, message)
	h.sessions.Save(r, w, sess)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *BillingHandler) upgradeData(r *http.Request, sess *sessions.Session) UpgradePageData {
	email := session.Email(sess)
	pro := session.IsPro(sess)

	return UpgradePageData{
		CurrentPath: r.URL.Path,
		Remaining:   h.quota.Remaining(quota.Key(email, r), pro),
		Pro:         pro,
		Email:       email,
		StripeLink:  h.stripeLink,
		Flashes:     session.Flashes(sess),
	}
}
