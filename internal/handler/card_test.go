package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirthlabs/triumphs/internal/ai/mock"
	"github.com/mirthlabs/triumphs/internal/domain"
	"github.com/mirthlabs/triumphs/internal/quota"
	"github.com/mirthlabs/triumphs/internal/session"
)

// =============================================================================
// Test helpers
// =============================================================================

// mockRenderer implements TemplateRenderer and records the last render.
type mockRenderer struct {
	RenderCalls int
	LastName    string
	LastData    interface{}
}

func (m *mockRenderer) RenderHTTP(w http.ResponseWriter, name string, data interface{}) {
	m.RenderCalls++
	m.LastName = name
	m.LastData = data
	w.WriteHeader(http.StatusOK)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSessions(t *testing.T) *session.Manager {
	t.Helper()
	return session.NewManager([]byte("0123456789abcdef0123456789abcdef"), false, testLogger())
}

// seedSession bakes session state into a request's cookie, like a browser
// that already visited.
func seedSession(t *testing.T, m *session.Manager, r *http.Request, mutate func(s *sessions.Session)) {
	t.Helper()

	seed := httptest.NewRequest("GET", "/", nil)
	sess := m.Get(seed)
	mutate(sess)

	w := httptest.NewRecorder()
	m.Save(seed, w, sess)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	for _, c := range cookies {
		r.AddCookie(c)
	}
}

// sessionFromResponse reads back the session a handler wrote.
func sessionFromResponse(t *testing.T, m *session.Manager, w *httptest.ResponseRecorder) *sessions.Session {
	t.Helper()

	r := httptest.NewRequest("GET", "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return m.Get(r)
}

func formRequest(path string, form url.Values) *http.Request {
	r := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// =============================================================================
// Home
// =============================================================================

func TestHomeRendersQuotaAndDefaults(t *testing.T) {
	sm := newTestSessions(t)
	renderer := &mockRenderer{}
	tracker := quota.NewTracker(func() int { return 5 })
	h := NewCardHandler(mock.New(testLogger()), tracker, sm, renderer, testLogger(), true)

	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	h.Home(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pages/home", renderer.LastName)

	data, ok := renderer.LastData.(HomePageData)
	require.True(t, ok)
	assert.Equal(t, 5, data.Remaining)
	assert.False(t, data.Pro)
	assert.Equal(t, domain.Categories, data.Categories)
	assert.Equal(t, domain.Tones, data.Tones)
	assert.Nil(t, data.Last)
	assert.True(t, data.StripeEnabled)
}

func TestHomeShowsLastCardAndProState(t *testing.T) {
	sm := newTestSessions(t)
	renderer := &mockRenderer{}
	tracker := quota.NewTracker(func() int { return 5 })
	h := NewCardHandler(mock.New(testLogger()), tracker, sm, renderer, testLogger(), true)

	r := httptest.NewRequest("GET", "/", nil)
	seedSession(t, sm, r, func(s *sessions.Session) {
		session.SetPro(s, true)
		session.SetEmail(s, "player@example.com")
		session.SetLastCard(s, domain.Card{Title: "Held Over", Category: "Healing"})
	})

	w := httptest.NewRecorder()
	h.Home(w, r)

	data := renderer.LastData.(HomePageData)
	assert.True(t, data.Pro)
	assert.Equal(t, "player@example.com", data.Email)
	assert.Equal(t, quota.Unlimited, data.Remaining)
	require.NotNil(t, data.Last)
	assert.Equal(t, "Held Over", data.Last.Title)
}

// =============================================================================
// Generate
// =============================================================================

func TestGenerateRendersCardAndRecordsUse(t *testing.T) {
	sm := newTestSessions(t)
	renderer := &mockRenderer{}
	generator := mock.New(testLogger())
	tracker := quota.NewTracker(func() int { return 5 })
	h := NewCardHandler(generator, tracker, sm, renderer, testLogger(), true)

	r := formRequest("/generate", url.Values{
		"category": {"Coping"},
		"tone":     {"Spicy"},
		"theme":    {"holiday dinner"},
	})
	r.RemoteAddr = "1.2.3.4:5678"

	w := httptest.NewRecorder()
	h.Generate(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pages/home", renderer.LastName)
	assert.Equal(t, 1, generator.GenerateCardCalls)
	assert.Equal(t, "Coping", generator.LastParams.Category)
	assert.Equal(t, "Spicy", generator.LastParams.Tone)
	assert.Equal(t, "holiday dinner", generator.LastParams.Theme)

	data := renderer.LastData.(HomePageData)
	require.NotNil(t, data.Last)
	assert.Equal(t, "Coping", data.Last.Category)
	// Page shows the count after this draw
	assert.Equal(t, 4, data.Remaining)

	// The card survives into the next request's session
	sess := sessionFromResponse(t, sm, w)
	card, ok := session.LastCard(sess)
	require.True(t, ok)
	assert.Equal(t, data.Last.Title, card.Title)
}

func TestGenerateNormalizesBadInputs(t *testing.T) {
	sm := newTestSessions(t)
	generator := mock.New(testLogger())
	tracker := quota.NewTracker(func() int { return 5 })
	h := NewCardHandler(generator, tracker, sm, &mockRenderer{}, testLogger(), true)

	r := formRequest("/generate", url.Values{
		"category": {"nonsense"},
		"tone":     {"nonsense"},
	})
	w := httptest.NewRecorder()
	h.Generate(w, r)

	assert.Equal(t, domain.CategoryTrigger, generator.LastParams.Category)
	assert.Equal(t, domain.DefaultTone, generator.LastParams.Tone)
}

func TestGenerateBlockedWhenQuotaExhausted(t *testing.T) {
	sm := newTestSessions(t)
	renderer := &mockRenderer{}
	generator := mock.New(testLogger())
	tracker := quota.NewTracker(func() int { return 1 })
	h := NewCardHandler(generator, tracker, sm, renderer, testLogger(), true)

	tracker.Record("ip:1.2.3.4", false)

	r := formRequest("/generate", url.Values{"category": {"Trigger"}})
	r.RemoteAddr = "1.2.3.4:5678"
	w := httptest.NewRecorder()
	h.Generate(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/upgrade", w.Header().Get("Location"))
	// The provider is never called for a blocked draw
	assert.Equal(t, 0, generator.GenerateCardCalls)
	assert.Equal(t, 0, renderer.RenderCalls)

	sess := sessionFromResponse(t, sm, w)
	flashes := session.Flashes(sess)
	require.Len(t, flashes, 1)
	assert.Equal(t, session.FlashError, flashes[0].Type)
	assert.Contains(t, flashes[0].Message, "free cards")
}

func TestGenerateProBypassesQuota(t *testing.T) {
	sm := newTestSessions(t)
	generator := mock.New(testLogger())
	tracker := quota.NewTracker(func() int { return 0 })
	h := NewCardHandler(generator, tracker, sm, &mockRenderer{}, testLogger(), true)

	r := formRequest("/generate", url.Values{"category": {"Wild"}})
	seedSession(t, sm, r, func(s *sessions.Session) {
		session.SetPro(s, true)
	})

	w := httptest.NewRecorder()
	h.Generate(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, generator.GenerateCardCalls)
}

func TestGenerateFailureRendersErrorCardAndCountsUse(t *testing.T) {
	sm := newTestSessions(t)
	renderer := &mockRenderer{}
	generator := mock.New(testLogger())
	generator.GenerateCardError = errors.New("connection refused")
	tracker := quota.NewTracker(func() int { return 5 })
	h := NewCardHandler(generator, tracker, sm, renderer, testLogger(), true)

	r := formRequest("/generate", url.Values{"category": {"Healing"}})
	r.RemoteAddr = "1.2.3.4:5678"
	w := httptest.NewRecorder()
	h.Generate(w, r)

	// Failures render a placeholder card, never an error page
	assert.Equal(t, http.StatusOK, w.Code)
	data := renderer.LastData.(HomePageData)
	require.NotNil(t, data.Last)
	assert.Equal(t, "Network Error", data.Last.Title)
	assert.Equal(t, "Healing", data.Last.Category)

	// The failed attempt still consumed a free use
	assert.Equal(t, 4, tracker.Remaining("ip:1.2.3.4", false))
}
