package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/http/middleware"
	"github.com/wolfman30/vocal-vent/internal/prefs"
	"github.com/wolfman30/vocal-vent/internal/session"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

type fakeSessions struct {
	flags  map[string]bool
	groups map[string]any
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{flags: map[string]bool{}, groups: map[string]any{}}
}

func (f *fakeSessions) SetAdminLoggedIn(_ context.Context, visitorID string, loggedIn bool) error {
	f.flags[visitorID] = loggedIn
	return nil
}

func (f *fakeSessions) SaveSettingGroup(_ context.Context, key string, value any) error {
	f.groups[key] = value
	return nil
}

const testSecret = "test-secret"

func newTestAdmin(t *testing.T) (http.Handler, *gateway.MemoryBackend, *fakeSessions) {
	t.Helper()
	backend := gateway.NewMemoryBackend(nil)
	sessions := newFakeSessions()
	h := NewHandler(Options{
		Auth:     NewAuthenticator("ops@vocalvent.com", hashPassword(t, "s3cret")),
		Tokens:   NewTokenIssuer(testSecret, time.Hour),
		Backend:  backend,
		Sessions: sessions,
		Logger:   logging.Discard(),
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithVisitorID(req.Context(), "visitor-1")))
		})
	})
	r.Post("/admin/login", h.Login)
	r.Post("/admin/logout", h.Logout)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminJWT(testSecret))
		r.Get("/admin/bookings", h.ListBookings)
		r.Patch("/admin/bookings/{id}", h.UpdateBooking)
		r.Get("/admin/chat-sessions", h.ListChatSessions)
		r.Patch("/admin/chat-sessions/{id}", h.UpdateChatSession)
		r.Put("/admin/settings/{group}", h.SaveSettings)
		r.Get("/admin/stats", h.Stats)
	})
	return r, backend, sessions
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"email":"ops@vocalvent.com","password":"s3cret"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func authed(method, target, body, token string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestLoginSetsCookieAndFlag(t *testing.T) {
	h, _, sessions := newTestAdmin(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"email":"ops@vocalvent.com","password":"s3cret"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.AdminCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, sessions.flags["visitor-1"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, sessions.flags["visitor-1"])
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h, _, sessions := newTestAdmin(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"email":"ops@vocalvent.com","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized access")
	assert.Empty(t, sessions.flags)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h, _, _ := newTestAdmin(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/bookings", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListAndUpdateBookings(t *testing.T) {
	h, backend, _ := newTestAdmin(t)
	ctx := context.Background()
	first, err := backend.Create(ctx, gateway.CollectionBookings, map[string]any{"status": "pending", "date": "2026-07-01"})
	require.NoError(t, err)
	_, err = backend.Create(ctx, gateway.CollectionBookings, map[string]any{"status": "pending", "date": "2026-08-01"})
	require.NoError(t, err)

	token := login(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/admin/bookings?status=pending&start=2026-06-01&end=2026-07-15", "", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, first, list.Items[0]["id"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPatch, "/admin/bookings/"+first, `{"status":"confirmed"}`, token))
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := backend.Query(ctx, gateway.CollectionBookings, gateway.Filter{Status: "confirmed"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ops@vocalvent.com", records[0].String("updatedBy"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPatch, "/admin/bookings/missing", `{"status":"confirmed"}`, token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateChatSessionDropsProtectedFields(t *testing.T) {
	h, backend, _ := newTestAdmin(t)
	ctx := context.Background()
	id, err := backend.Create(ctx, gateway.CollectionChatSessions, map[string]any{"status": "active", "platform": "sms"})
	require.NoError(t, err)
	token := login(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPatch, "/admin/chat-sessions/"+id, `{"status":"closed","id":"hijack"}`, token))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/admin/chat-sessions?status=closed&platform=sms", "", token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
	assert.NotContains(t, rec.Body.String(), "hijack")
}

func TestSaveSettingsGroups(t *testing.T) {
	h, _, sessions := newTestAdmin(t)
	token := login(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPut, "/admin/settings/pricing", `{"mini":"250"}`, token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.Pricing{"mini": "250"}, sessions.groups[prefs.KeyPackagePricing])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPut, "/admin/settings/contacts", `{"email":"help@vocalvent.com"}`, token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "help@vocalvent.com", sessions.groups[prefs.KeyContactSettings].(session.Contacts).Email)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodPut, "/admin/settings/unknown", `{}`, token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsFallsBackToGateway(t *testing.T) {
	h, backend, _ := newTestAdmin(t)
	_, err := backend.Create(context.Background(), gateway.CollectionChatSessions, map[string]any{"status": "active"})
	require.NoError(t, err)
	token := login(t, h)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(http.MethodGet, "/admin/stats", "", token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bookings":0,"chatSessions":1,"corporateInquiries":0}`, rec.Body.String())
}
