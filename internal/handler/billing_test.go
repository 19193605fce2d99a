package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirthlabs/triumphs/internal/billing"
	"github.com/mirthlabs/triumphs/internal/quota"
	"github.com/mirthlabs/triumphs/internal/session"
)

// =============================================================================
// Mock billing.Service implementation
// =============================================================================

type mockBillingService struct {
	CreateCheckoutFunc func(email, successURL, cancelURL string) (*billing.Checkout, error)
	VerifyCheckoutFunc func(id string) (*billing.CheckoutResult, error)
	MarkLifetimeFunc   func(customerID string) error
	EmailHasProFunc    func(email string) bool

	CreateCheckoutCalls int
	VerifyCheckoutCalls int
	MarkLifetimeCalls   int
	EmailHasProCalls    int
}

func (m *mockBillingService) CreateCheckout(email, successURL, cancelURL string) (*billing.Checkout, error) {
	m.CreateCheckoutCalls++
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(email, successURL, cancelURL)
	}
	return &billing.Checkout{ID: "cs_test_123", URL: "https://checkout.stripe.test/cs_test_123"}, nil
}

func (m *mockBillingService) VerifyCheckout(id string) (*billing.CheckoutResult, error) {
	m.VerifyCheckoutCalls++
	if m.VerifyCheckoutFunc != nil {
		return m.VerifyCheckoutFunc(id)
	}
	return &billing.CheckoutResult{Paid: true}, nil
}

func (m *mockBillingService) MarkLifetime(customerID string) error {
	m.MarkLifetimeCalls++
	if m.MarkLifetimeFunc != nil {
		return m.MarkLifetimeFunc(customerID)
	}
	return nil
}

func (m *mockBillingService) EmailHasPro(email string) bool {
	m.EmailHasProCalls++
	if m.EmailHasProFunc != nil {
		return m.EmailHasProFunc(email)
	}
	return false
}

func newBillingHandler(svc billing.Service, sm *session.Manager, renderer TemplateRenderer, adminCode string) *BillingHandler {
	tracker := quota.NewTracker(func() int { return 5 })
	return NewBillingHandler(svc, tracker, sm, renderer, testLogger(),
		"https://cards.example.com", "", adminCode)
}

// =============================================================================
// Buy
// =============================================================================

func TestBuyRedirectsToCheckout(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	r := httptest.NewRequest("GET", "/buy", nil)
	seedSession(t, sm, r, func(s *sessions.Session) {
		session.SetEmail(s, "player@example.com")
	})

	w := httptest.NewRecorder()
	h.Buy(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_123", w.Header().Get("Location"))
	assert.Equal(t, 1, svc.CreateCheckoutCalls)

	// The checkout id is pinned to this browser for the /pro return leg
	sess := sessionFromResponse(t, sm, w)
	assert.Equal(t, "cs_test_123", session.PendingCheckout(sess))
}

func TestBuyPassesEmailAndURLs(t *testing.T) {
	sm := newTestSessions(t)
	var gotEmail, gotSuccess, gotCancel string
	svc := &mockBillingService{
		CreateCheckoutFunc: func(email, successURL, cancelURL string) (*billing.Checkout, error) {
			gotEmail, gotSuccess, gotCancel = email, successURL, cancelURL
			return &billing.Checkout{ID: "cs_1", URL: "https://x"}, nil
		},
	}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	r := httptest.NewRequest("GET", "/buy", nil)
	seedSession(t, sm, r, func(s *sessions.Session) {
		session.SetEmail(s, "player@example.com")
	})
	h.Buy(httptest.NewRecorder(), r)

	assert.Equal(t, "player@example.com", gotEmail)
	assert.Equal(t, "https://cards.example.com/pro?session_id={CHECKOUT_SESSION_ID}", gotSuccess)
	assert.Equal(t, "https://cards.example.com/upgrade", gotCancel)
}

func TestBuyCheckoutFailureFlashesAndRedirects(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{
		CreateCheckoutFunc: func(email, successURL, cancelURL string) (*billing.Checkout, error) {
			return nil, errors.New("stripe down")
		},
	}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	w := httptest.NewRecorder()
	h.Buy(w, httptest.NewRequest("GET", "/buy", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/upgrade", w.Header().Get("Location"))

	flashes := session.Flashes(sessionFromResponse(t, sm, w))
	require.Len(t, flashes, 1)
	assert.Equal(t, session.FlashError, flashes[0].Type)
}

func TestBuyWithoutBillingFallsBackToLink(t *testing.T) {
	sm := newTestSessions(t)
	tracker := quota.NewTracker(func() int { return 5 })
	h := NewBillingHandler(nil, tracker, sm, &mockRenderer{}, testLogger(),
		"https://cards.example.com", "https://buy.stripe.test/link", "")

	w := httptest.NewRecorder()
	h.Buy(w, httptest.NewRequest("GET", "/buy", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://buy.stripe.test/link", w.Header().Get("Location"))
}

func TestBuyWithoutBillingOrLinkFlashesNotConfigured(t *testing.T) {
	sm := newTestSessions(t)
	h := newBillingHandler(nil, sm, &mockRenderer{}, "")

	w := httptest.NewRecorder()
	h.Buy(w, httptest.NewRequest("GET", "/buy", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/upgrade", w.Header().Get("Location"))

	flashes := session.Flashes(sessionFromResponse(t, sm, w))
	require.Len(t, flashes, 1)
	assert.Contains(t, flashes[0].Message, "not configured")
}

// =============================================================================
// Upgrade page and code redemption
// =============================================================================

func TestUpgradePageRenders(t *testing.T) {
	sm := newTestSessions(t)
	renderer := &mockRenderer{}
	h := newBillingHandler(&mockBillingService{}, sm, renderer, "")

	w := httptest.NewRecorder()
	h.UpgradePage(w, httptest.NewRequest("GET", "/upgrade", nil))

	assert.Equal(t, "pages/upgrade", renderer.LastName)
	data, ok := renderer.LastData.(UpgradePageData)
	require.True(t, ok)
	assert.Equal(t, 5, data.Remaining)
	assert.False(t, data.Pro)
}

func TestRedeemCodeUnlocksPro(t *testing.T) {
	sm := newTestSessions(t)
	h := newBillingHandler(&mockBillingService{}, sm, &mockRenderer{}, "sesame")

	r := formRequest("/upgrade", url.Values{"code": {"  sesame  "}})
	w := httptest.NewRecorder()
	h.RedeemCode(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	sess := sessionFromResponse(t, sm, w)
	assert.True(t, session.IsPro(sess))
	flashes := session.Flashes(sess)
	require.Len(t, flashes, 1)
	assert.Equal(t, session.FlashSuccess, flashes[0].Type)
}

func TestRedeemCodeRejectsWrongCode(t *testing.T) {
	sm := newTestSessions(t)
	renderer := &mockRenderer{}
	h := newBillingHandler(&mockBillingService{}, sm, renderer, "sesame")

	r := formRequest("/upgrade", url.Values{"code": {"guess"}})
	w := httptest.NewRecorder()
	h.RedeemCode(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pages/upgrade", renderer.LastName)
	assert.False(t, session.IsPro(sessionFromResponse(t, sm, w)))
}

func TestRedeemCodeDisabledWhenUnconfigured(t *testing.T) {
	sm := newTestSessions(t)
	h := newBillingHandler(&mockBillingService{}, sm, &mockRenderer{}, "")

	// An empty submitted code must not match an empty configured code
	r := formRequest("/upgrade", url.Values{"code": {""}})
	w := httptest.NewRecorder()
	h.RedeemCode(w, r)

	assert.False(t, session.IsPro(sessionFromResponse(t, sm, w)))
}

// =============================================================================
// Pro activation
// =============================================================================

func proReturnRequest(t *testing.T, sm *session.Manager, sid, pendingID string) *http.Request {
	t.Helper()

	r := httptest.NewRequest("GET", "/pro?session_id="+url.QueryEscape(sid), nil)
	if pendingID != "" {
		seedSession(t, sm, r, func(s *sessions.Session) {
			session.SetPendingCheckout(s, pendingID)
		})
	}
	return r
}

func TestProActivatesAfterPaidCheckout(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{
		VerifyCheckoutFunc: func(id string) (*billing.CheckoutResult, error) {
			return &billing.CheckoutResult{Paid: true, Email: "player@example.com"}, nil
		},
	}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	r := proReturnRequest(t, sm, "cs_test_123", "cs_test_123")
	w := httptest.NewRecorder()
	h.Pro(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	sess := sessionFromResponse(t, sm, w)
	assert.True(t, session.IsPro(sess))
	assert.Equal(t, "player@example.com", session.Email(sess))
	// The pending checkout binding is single-use
	assert.Equal(t, "", session.PendingCheckout(sess))
	// Subscription checkouts don't get the lifetime flag
	assert.Equal(t, 0, svc.MarkLifetimeCalls)
}

func TestProMarksLifetimeForOneTimePurchase(t *testing.T) {
	sm := newTestSessions(t)
	var markedCustomer string
	svc := &mockBillingService{
		VerifyCheckoutFunc: func(id string) (*billing.CheckoutResult, error) {
			return &billing.CheckoutResult{Paid: true, OneTime: true, CustomerID: "cus_42"}, nil
		},
		MarkLifetimeFunc: func(customerID string) error {
			markedCustomer = customerID
			return nil
		},
	}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	w := httptest.NewRecorder()
	h.Pro(w, proReturnRequest(t, sm, "cs_test_123", "cs_test_123"))

	assert.Equal(t, "cus_42", markedCustomer)
	assert.True(t, session.IsPro(sessionFromResponse(t, sm, w)))
}

func TestProMarkLifetimeFailureStillUnlocks(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{
		VerifyCheckoutFunc: func(id string) (*billing.CheckoutResult, error) {
			return &billing.CheckoutResult{Paid: true, OneTime: true, CustomerID: "cus_42"}, nil
		},
		MarkLifetimeFunc: func(customerID string) error {
			return errors.New("stripe down")
		},
	}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	w := httptest.NewRecorder()
	h.Pro(w, proReturnRequest(t, sm, "cs_test_123", "cs_test_123"))

	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.True(t, session.IsPro(sessionFromResponse(t, sm, w)))
}

func TestProRejectsMissingSessionID(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	w := httptest.NewRecorder()
	h.Pro(w, httptest.NewRequest("GET", "/pro", nil))

	assert.Equal(t, "/upgrade", w.Header().Get("Location"))
	assert.Equal(t, 0, svc.VerifyCheckoutCalls)
	assert.False(t, session.IsPro(sessionFromResponse(t, sm, w)))
}

func TestProRejectsMismatchedDevice(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	// The link was forwarded from another browser: pending id differs
	r := proReturnRequest(t, sm, "cs_test_123", "cs_other_456")
	w := httptest.NewRecorder()
	h.Pro(w, r)

	assert.Equal(t, "/upgrade", w.Header().Get("Location"))
	// Verification is never attempted for a foreign checkout id
	assert.Equal(t, 0, svc.VerifyCheckoutCalls)
	assert.False(t, session.IsPro(sessionFromResponse(t, sm, w)))

	flashes := session.Flashes(sessionFromResponse(t, sm, w))
	require.Len(t, flashes, 1)
	assert.Contains(t, flashes[0].Message, "this device")
}

func TestProRejectsUnpaidCheckout(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{
		VerifyCheckoutFunc: func(id string) (*billing.CheckoutResult, error) {
			return &billing.CheckoutResult{Paid: false}, nil
		},
	}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	w := httptest.NewRecorder()
	h.Pro(w, proReturnRequest(t, sm, "cs_test_123", "cs_test_123"))

	assert.Equal(t, "/upgrade", w.Header().Get("Location"))
	assert.False(t, session.IsPro(sessionFromResponse(t, sm, w)))
}

func TestProRejectsEmailMismatch(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{
		VerifyCheckoutFunc: func(id string) (*billing.CheckoutResult, error) {
			return &billing.CheckoutResult{Paid: true, Email: "other@example.com"}, nil
		},
	}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	r := httptest.NewRequest("GET", "/pro?session_id=cs_test_123", nil)
	seedSession(t, sm, r, func(s *sessions.Session) {
		session.SetEmail(s, "player@example.com")
		session.SetPendingCheckout(s, "cs_test_123")
	})

	w := httptest.NewRecorder()
	h.Pro(w, r)

	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.False(t, session.IsPro(sessionFromResponse(t, sm, w)))
}

func TestProVerifyErrorRedirectsToUpgrade(t *testing.T) {
	sm := newTestSessions(t)
	svc := &mockBillingService{
		VerifyCheckoutFunc: func(id string) (*billing.CheckoutResult, error) {
			return nil, errors.New("stripe down")
		},
	}
	h := newBillingHandler(svc, sm, &mockRenderer{}, "")

	w := httptest.NewRecorder()
	h.Pro(w, proReturnRequest(t, sm, "cs_test_123", "cs_test_123"))

	assert.Equal(t, "/upgrade", w.Header().Get("Location"))
	assert.False(t, session.IsPro(sessionFromResponse(t, sm, w)))
}
