package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/http/middleware"
	"github.com/wolfman30/vocal-vent/internal/pages"
	"github.com/wolfman30/vocal-vent/internal/prefs"
	"github.com/wolfman30/vocal-vent/internal/session"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// Setting group names accepted by PUT /admin/settings/{group}.
const (
	GroupContacts = "contacts"
	GroupPricing  = "pricing"
	GroupChat     = "chat"
)

var groupKeys = map[string]string{
	GroupContacts: prefs.KeyContactSettings,
	GroupPricing:  prefs.KeyPackagePricing,
	GroupChat:     prefs.KeyChatSettings,
}

// protectedFields never change through a chat session update.
var protectedFields = []string{"id", "createdAt", "updatedAt"}

// ErrUnknownGroup is returned for a setting group outside contacts, pricing and chat.
var ErrUnknownGroup = errors.New("admin: unknown setting group")

// Sessions is the slice of the visitor registry the admin surface needs.
type Sessions interface {
	SetAdminLoggedIn(ctx context.Context, visitorID string, loggedIn bool) error
	SaveSettingGroup(ctx context.Context, key string, value any) error
}

// Handler serves the admin endpoints.
type Handler struct {
	auth         *Authenticator
	tokens       *TokenIssuer
	backend      gateway.Backend
	sessions     Sessions
	stats        pages.StatsSource
	secureCookie bool
	logger       *logging.Logger
}

// Options configure a Handler.
type Options struct {
	Auth         *Authenticator
	Tokens       *TokenIssuer
	Backend      gateway.Backend
	Sessions     Sessions
	Stats        pages.StatsSource
	SecureCookie bool
	Logger       *logging.Logger
}

// NewHandler creates the admin handler.
func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Stats == nil && opts.Backend != nil {
		opts.Stats = pages.GatewayStats{Backend: opts.Backend}
	}
	return &Handler{
		auth:         opts.Auth,
		tokens:       opts.Tokens,
		backend:      opts.Backend,
		sessions:     opts.Sessions,
		stats:        opts.Stats,
		secureCookie: opts.SecureCookie,
		logger:       opts.Logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /admin/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("admin: login rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "Unauthorized access")
		return
	}
	token, expires, err := h.tokens.Issue(email)
	if err != nil {
		h.logger.Error("admin: token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AdminCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	h.setFlag(r, true)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Email: email, ExpiresAt: expires})
}

// Logout handles POST /admin/logout. It is idempotent.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AdminCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	h.setFlag(r, false)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setFlag(r *http.Request, loggedIn bool) {
	visitorID, ok := middleware.VisitorIDFromContext(r.Context())
	if !ok || h.sessions == nil {
		return
	}
	if err := h.sessions.SetAdminLoggedIn(r.Context(), visitorID, loggedIn); err != nil {
		h.logger.Warn("admin: persisting admin flag failed", "error", err, "visitor_id", visitorID)
	}
}

// ListBookings handles GET /admin/bookings?status=&start=&end=.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, gateway.CollectionBookings, gateway.Filter{
		Status:   q.Get("status"),
		DateFrom: q.Get("start"),
		DateTo:   q.Get("end"),
	})
}

// ListChatSessions handles GET /admin/chat-sessions?status=&platform=.
func (h *Handler) ListChatSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, gateway.CollectionChatSessions, gateway.Filter{
		Status:   q.Get("status"),
		Platform: q.Get("platform"),
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, collection string, f gateway.Filter) {
	records, err := h.backend.Query(r.Context(), collection, f)
	if err != nil {
		h.logger.Error("admin: query failed", "error", err, "collection", collection)
		writeError(w, statusFor(err), "failed to load records")
		return
	}
	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, flatten(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// UpdateBooking handles PATCH /admin/bookings/{id}; only the status changes.
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	h.update(w, r, gateway.CollectionBookings, map[string]any{"status": strings.TrimSpace(req.Status)})
}

// UpdateChatSession handles PATCH /admin/chat-sessions/{id}.
func (h *Handler) UpdateChatSession(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, f := range protectedFields {
		delete(partial, f)
	}
	if len(partial) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	h.update(w, r, gateway.CollectionChatSessions, partial)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, collection string, partial map[string]any) {
	id := chi.URLParam(r, "id")
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok {
		partial["updatedBy"] = claims.Email
	}
	if err := h.backend.Update(r.Context(), collection, id, partial); err != nil {
		h.logger.Error("admin: update failed", "error", err, "collection", collection, "id", id)
		writeError(w, statusFor(err), "failed to update record")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// SaveSettings handles PUT /admin/settings/{group}. The group is replaced
// wholesale and reaches every visitor.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	value, err := decodeGroup(group, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnknownGroup) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	if err := h.sessions.SaveSettingGroup(r.Context(), groupKeys[group], value); err != nil {
		h.logger.Error("admin: saving settings failed", "error", err, "group", group)
		writeError(w, http.StatusServiceUnavailable, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "value": value})
}

func decodeGroup(group string, r *http.Request) (any, error) {
	dec := json.NewDecoder(r.Body)
	switch group {
	case GroupContacts:
		var c session.Contacts
		if err := dec.Decode(&c); err != nil {
			return nil, errors.New("invalid contacts")
		}
		return c, nil
	case GroupPricing:
		var p session.Pricing
		if err := dec.Decode(&p); err != nil {
			return nil, errors.New("invalid pricing")
		}
		return p, nil
	case GroupChat:
		var c session.ChatSettings
		if err := dec.Decode(&c); err != nil {
			return nil, errors.New("invalid chat settings")
		}
		return c, nil
	default:
		return nil, ErrUnknownGroup
	}
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "statistics unavailable")
		return
	}
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Error("admin: stats failed", "error", err)
		writeError(w, statusFor(err), "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func flatten(rec gateway.Record) map[string]any {
	out := make(map[string]any, len(rec.Data)+3)
	for k, v := range rec.Data {
		out[k] = v
	}
	out["id"] = rec.ID
	out["createdAt"] = rec.CreatedAt
	out["updatedAt"] = rec.UpdatedAt
	return out
}

func statusFor(err error) int {
	var gerr *gateway.Error
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &gerr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
