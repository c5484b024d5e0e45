package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vocal-vent/internal/flows"
	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/http/middleware"
	"github.com/wolfman30/vocal-vent/internal/pages"
	"github.com/wolfman30/vocal-vent/internal/session"
	"github.com/wolfman30/vocal-vent/internal/validation"
	"github.com/wolfman30/vocal-vent/internal/wizard"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// SiteHandler serves the visitor-facing endpoints. Every call runs against
// the caller's controller, one request per visitor at a time.
type SiteHandler struct {
	registry   *flows.Registry
	dispatcher *pages.Dispatcher
	logger     *logging.Logger
	now        func() time.Time
}

// NewSiteHandler creates the visitor-facing handler.
func NewSiteHandler(registry *flows.Registry, dispatcher *pages.Dispatcher, logger *logging.Logger) *SiteHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SiteHandler{registry: registry, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// SessionResponse is the restored session as the browser sees it.
type SessionResponse struct {
	VisitorID      string                          `json:"visitorId"`
	CurrentBooking *session.BookingSelection       `json:"currentBooking"`
	CurrentChat    *session.ChatSelection          `json:"currentChat"`
	Settings       session.Settings                `json:"settings"`
	DarkMode       bool                            `json:"darkMode"`
	AdminLoggedIn  bool                            `json:"adminLoggedIn"`
	Agreed         bool                            `json:"agreed"`
	Unread         int                             `json:"unreadNotifications"`
	Wizards        map[wizard.Flow]wizard.Snapshot `json:"wizards"`
}

// WizardResponse is returned by every wizard transition.
type WizardResponse struct {
	Flow   wizard.Flow             `json:"flow"`
	Wizard wizard.Snapshot         `json:"wizard"`
	Form   map[string]string       `json:"form,omitempty"`
	Errors []validation.FieldError `json:"errors,omitempty"`
}

// Page handles GET /pages/{page}.
func (h *SiteHandler) Page(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	var view pages.View
	err := h.with(r, func(c *flows.Controller) error {
		var err error
		view, err = h.dispatcher.Dispatch(r.Context(), page, c.PageRequest(h.now()))
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CTA handles POST /cta/{action}.
func (h *SiteHandler) CTA(w http.ResponseWriter, r *http.Request) {
	target, err := pages.CTATarget(chi.URLParam(r, "action"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": target})
}

// Agree handles POST /agreement.
func (h *SiteHandler) Agree(w http.ResponseWriter, r *http.Request) {
	var resp SessionResponse
	err := h.with(r, func(c *flows.Controller) error {
		_ = c.Agree(r.Context())
		resp = sessionResponse(c)
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Session handles GET /session.
func (h *SiteHandler) Session(w http.ResponseWriter, r *http.Request) {
	var resp SessionResponse
	if err := h.with(r, func(c *flows.Controller) error {
		resp = sessionResponse(c)
		return nil
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DarkMode handles PUT /session/dark-mode.
func (h *SiteHandler) DarkMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.with(r, func(c *flows.Controller) error {
		_ = c.SetDarkMode(r.Context(), req.Enabled)
		return nil
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"darkMode": req.Enabled})
}

// Notifications handles GET /notifications.
func (h *SiteHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	var (
		items  []session.Notification
		unread int
	)
	if err := h.with(r, func(c *flows.Controller) error {
		items = c.State().Notifications.Items()
		unread = c.State().Notifications.Unread()
		return nil
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "unread": unread})
}

// MarkNotificationRead handles POST /notifications/{index}/read.
func (h *SiteHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification index")
		return
	}
	var unread int
	if err := h.with(r, func(c *flows.Controller) error {
		if err := c.MarkNotificationRead(r.Context(), index); err != nil && errors.Is(err, session.ErrNotificationIndex) {
			return err
		}
		unread = c.State().Notifications.Unread()
		return nil
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": unread})
}

// SelectPackage handles POST /booking/select.
func (h *SiteHandler) SelectPackage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PackageID string `json:"packageId"`
		Price     string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.selectAndRespond(w, r, wizard.FlowBooking, func(c *flows.Controller) error {
		return c.Packages().Select(r.Context(), req.PackageID, req.Price)
	})
}

// SelectPlatform handles POST /chat/select.
func (h *SiteHandler) SelectPlatform(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Platform string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.selectAndRespond(w, r, wizard.FlowChat, func(c *flows.Controller) error {
		return c.Platforms().Select(r.Context(), req.Platform, "")
	})
}

// SelectDuration handles POST /chat/duration.
func (h *SiteHandler) SelectDuration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.selectAndRespond(w, r, wizard.FlowChat, func(c *flows.Controller) error {
		return c.SelectDuration(r.Context(), req.Duration)
	})
}

func (h *SiteHandler) selectAndRespond(w http.ResponseWriter, r *http.Request, flow wizard.Flow, fn func(*flows.Controller) error) {
	h.transition(w, r, flow, func(c *flows.Controller) (wizard.Snapshot, error) {
		if err := fn(c); err != nil {
			return wizard.Snapshot{}, err
		}
		return c.Wizard(flow)
	})
}

// Next handles POST /{flow}/next. The body carries the step's form fields.
func (h *SiteHandler) Next(w http.ResponseWriter, r *http.Request) {
	flow, fields, ok := h.flowAndFields(w, r)
	if !ok {
		return
	}
	h.transition(w, r, flow, func(c *flows.Controller) (wizard.Snapshot, error) {
		return c.Next(r.Context(), flow, fields)
	})
}

// Back handles POST /{flow}/back.
func (h *SiteHandler) Back(w http.ResponseWriter, r *http.Request) {
	flow, err := flows.ParseFlow(chi.URLParam(r, "flow"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.transition(w, r, flow, func(c *flows.Controller) (wizard.Snapshot, error) {
		return c.Back(r.Context(), flow)
	})
}

// GoTo handles POST /{flow}/goto/{step}.
func (h *SiteHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid step")
		return
	}
	flow, fields, ok := h.flowAndFields(w, r)
	if !ok {
		return
	}
	h.transition(w, r, flow, func(c *flows.Controller) (wizard.Snapshot, error) {
		return c.GoTo(r.Context(), flow, step, fields)
	})
}

// Submit handles POST /{flow}/submit.
func (h *SiteHandler) Submit(w http.ResponseWriter, r *http.Request) {
	flow, err := flows.ParseFlow(chi.URLParam(r, "flow"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var receipt flows.Receipt
	if err := h.with(r, func(c *flows.Controller) error {
		var err error
		receipt, err = c.Submit(r.Context(), flow)
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// transition runs fn and answers with the wizard state. A validation
// failure still returns the wizard, with the field annotations, as 422.
func (h *SiteHandler) transition(w http.ResponseWriter, r *http.Request, flow wizard.Flow, fn func(*flows.Controller) (wizard.Snapshot, error)) {
	var (
		resp  WizardResponse
		opErr error
	)
	err := h.with(r, func(c *flows.Controller) error {
		snap, err := fn(c)
		if err != nil {
			opErr = err
			snap, _ = c.Wizard(flow)
		}
		resp = WizardResponse{Flow: flow, Wizard: snap, Form: c.Form(flow)}
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var verrs *validation.Errors
	switch {
	case opErr == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.As(opErr, &verrs):
		resp.Errors = verrs.Fields
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		h.fail(w, r, opErr)
	}
}

func (h *SiteHandler) flowAndFields(w http.ResponseWriter, r *http.Request) (wizard.Flow, map[string]string, bool) {
	flow, err := flows.ParseFlow(chi.URLParam(r, "flow"))
	if err != nil {
		h.fail(w, r, err)
		return "", nil, false
	}
	fields, err := decodeFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form fields")
		return "", nil, false
	}
	return flow, fields, true
}

func (h *SiteHandler) with(r *http.Request, fn func(*flows.Controller) error) error {
	visitorID, ok := middleware.VisitorIDFromContext(r.Context())
	if !ok {
		return errNoVisitor
	}
	return h.registry.With(r.Context(), visitorID, fn)
}

var errNoVisitor = errors.New("handlers: visitor id missing")

// decodeFields reads a flat JSON object of form fields. Non-string scalars
// are kept in their printed form; an empty body means no fields.
func decodeFields(r *http.Request) (map[string]string, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, nil
	}
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case map[string]any, []any:
			return nil, fmt.Errorf("field %q is not a scalar", k)
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out, nil
}

func sessionResponse(c *flows.Controller) SessionResponse {
	s := c.State()
	req := c.PageRequest(time.Time{})
	return SessionResponse{
		VisitorID:      c.VisitorID(),
		CurrentBooking: s.CurrentBooking,
		CurrentChat:    s.CurrentChat,
		Settings:       s.Settings,
		DarkMode:       s.DarkMode,
		AdminLoggedIn:  s.AdminLoggedIn,
		Agreed:         s.Agreed(),
		Unread:         s.Notifications.Unread(),
		Wizards:        req.Wizards,
	}
}

// fail maps domain errors onto HTTP statuses.
func (h *SiteHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		visitorID, _ := middleware.VisitorIDFromContext(r.Context())
		h.logger.Error("site request failed", "error", err, "path", r.URL.Path, "visitor_id", visitorID)
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	var verrs *validation.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, verrs.Error()
	case errors.Is(err, errNoVisitor):
		return http.StatusBadRequest, "visitor cookie required"
	case errors.Is(err, flows.ErrUnknownFlow), errors.Is(err, pages.ErrUnknownAction):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, flows.ErrUnknownOption), errors.Is(err, wizard.ErrUnknownStep):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrNotificationIndex):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, flows.ErrIncomplete), errors.Is(err, wizard.ErrStepNotReached), errors.Is(err, session.ErrNoChatSelection):
		return http.StatusConflict, err.Error()
	case errors.Is(err, gateway.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case gateway.IsError(err):
		return http.StatusBadGateway, "Something went wrong. Please try again."
	case errors.Is(err, context.Canceled):
		return 499, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
