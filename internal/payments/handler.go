package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/vocal-vent/internal/http/middleware"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// clientKeyFields are stripped from browser payloads; the server injects its own key.
var clientKeyFields = []string{"apiKey", "api_key"}

// Handler exposes the payment proxy endpoints.
type Handler struct {
	provider Provider
	velocity *VelocityChecker
	logger   *logging.Logger
}

// NewHandler creates a payment proxy handler. velocity may be nil.
func NewHandler(provider Provider, velocity *VelocityChecker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{provider: provider, velocity: velocity, logger: logger}
}

// Initialize handles POST /api/payments/initialize.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	for _, k := range clientKeyFields {
		delete(data, k)
	}

	visitorID, _ := middleware.VisitorIDFromContext(r.Context())
	if res := h.velocity.CheckInitialize(r.Context(), middleware.ClientKey(r)); !res.Allowed {
		writeError(w, http.StatusTooManyRequests, "Too many payment attempts, please try again later")
		return
	}

	handle, err := h.provider.Initialize(r.Context(), data)
	if err != nil {
		h.logger.Error("payment initialization failed", "error", err, "visitor_id", visitorID)
		writeError(w, statusFor(err), "Payment initialization failed")
		return
	}
	writeJSON(w, http.StatusOK, handle)
}

// Verify handles GET /api/payments/verify/{id}.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}
	status, err := h.provider.Verify(r.Context(), id)
	if err != nil {
		h.logger.Error("payment verification failed", "error", err, "transaction_id", id)
		writeError(w, statusFor(err), "Payment verification failed")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func statusFor(err error) int {
	if errors.Is(err, ErrNotConfigured) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
