// Package session manages the signed-cookie browser session that carries all
// per-visitor state: sign-in email, Pro entitlement, the in-flight checkout id
// and the last generated card. The cookie is the only persisted state in the
// system; everything in it is re-derivable from the payment processor.
package session

import (
	"encoding/gob"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/mirthlabs/triumphs/internal/domain"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "triumphs_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// PermanentMaxAge is the cookie lifetime once a session is marked
	// permanent (180 days). Until then the cookie is browser-session scoped.
	PermanentMaxAge = 180 * 24 * 60 * 60
)

// Session value keys.
const (
	KeySID             = "sid"
	KeyEmail           = "email"
	KeyPro             = "pro"
	KeyPendingCheckout = "pending_checkout_id"
	KeyLastCard        = "last_card"
)

// Flash is a one-shot notice rendered on the next page view.
type Flash struct {
	Type    string // FlashSuccess or FlashError
	Message string
}

const (
	FlashSuccess = "success"
	FlashError   = "error"
)

func init() {
	// Session values are gob-encoded into the cookie.
	gob.Register(domain.Card{})
	gob.Register(Flash{})
}

// Manager wraps the signed cookie store.
type Manager struct {
	store  *sessions.CookieStore
	logger *slog.Logger
}

// NewManager creates a session manager. Set isSecure outside development so
// the cookie is only sent over HTTPS.
func NewManager(secret []byte, isSecure bool, logger *slog.Logger) *Manager {
	store := sessions.NewCookieStore(secret)
	// Signed payloads stay valid up to the permanent lifetime; the browser
	// cookie itself defaults to session-scoped until MakePermanent.
	store.MaxAge(PermanentMaxAge)
	store.Options = &sessions.Options{
		Path:     CookiePath,
		MaxAge:   0,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		store:  store,
		logger: logger,
	}
}

// Get returns the request's session, starting a fresh one when the cookie is
// missing or fails signature validation. Every session carries a random sid.
func (m *Manager) Get(r *http.Request) *sessions.Session {
	s, err := m.store.Get(r, CookieName)
	if err != nil {
		// Bad signature or stale secret: fall through to the fresh session
		// gorilla already handed us.
		m.logger.Debug("session decode failed, starting fresh", "error", err)
	}
	if _, ok := s.Values[KeySID]; !ok {
		s.Values[KeySID] = uuid.NewString()
	}
	return s
}

// Save writes the session cookie. Failures are logged, not fatal: the request
// still renders, the visitor just loses the state update.
func (m *Manager) Save(r *http.Request, w http.ResponseWriter, s *sessions.Session) {
	if err := s.Save(r, w); err != nil {
		m.logger.Error("failed to save session", "error", err)
	}
}

// =============================================================================
// Value accessors
// =============================================================================

// Email returns the signed-in email, or "" for anonymous sessions.
func Email(s *sessions.Session) string {
	if email, ok := s.Values[KeyEmail].(string); ok {
		return email
	}
	return ""
}

// SetEmail records the signed-in email.
func SetEmail(s *sessions.Session, email string) {
	s.Values[KeyEmail] = email
}

// IsPro reports whether the session holds the Pro entitlement.
func IsPro(s *sessions.Session) bool {
	pro, ok := s.Values[KeyPro].(bool)
	return ok && pro
}

// SetPro records the Pro entitlement.
func SetPro(s *sessions.Session, pro bool) {
	s.Values[KeyPro] = pro
}

// PendingCheckout returns the in-flight checkout session id, if any.
func PendingCheckout(s *sessions.Session) string {
	if id, ok := s.Values[KeyPendingCheckout].(string); ok {
		return id
	}
	return ""
}

// SetPendingCheckout binds a newly created checkout session to this browser
// session. The /pro landing route requires an exact match.
func SetPendingCheckout(s *sessions.Session, id string) {
	s.Values[KeyPendingCheckout] = id
}

// ClearPendingCheckout removes the checkout binding after verification.
func ClearPendingCheckout(s *sessions.Session) {
	delete(s.Values, KeyPendingCheckout)
}

// LastCard returns the most recently generated card, if any.
func LastCard(s *sessions.Session) (domain.Card, bool) {
	card, ok := s.Values[KeyLastCard].(domain.Card)
	return card, ok
}

// SetLastCard remembers the most recently generated card.
func SetLastCard(s *sessions.Session, card domain.Card) {
	s.Values[KeyLastCard] = card
}

// MakePermanent extends the cookie to the 180-day lifetime. Used when the
// session gains state worth keeping: sign-in or Pro.
func MakePermanent(s *sessions.Session) {
	s.Options.MaxAge = PermanentMaxAge
}

// Clear wipes all session state for logout and resets the session to an
// anonymous, browser-scoped one with a new sid.
func Clear(s *sessions.Session) {
	for k := range s.Values {
		delete(s.Values, k)
	}
	s.Options.MaxAge = 0
	s.Values[KeySID] = uuid.NewString()
}

// AddFlash queues a one-shot notice.
func AddFlash(s *sessions.Session, flashType, message string) {
	s.AddFlash(Flash{Type: flashType, Message: message})
}

// Flashes drains queued notices. The session must be saved afterwards for the
// drain to stick.
func Flashes(s *sessions.Session) []Flash {
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	flashes := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			flashes = append(flashes, f)
		}
	}
	return flashes
}
