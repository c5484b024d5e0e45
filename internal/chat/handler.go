package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/http/middleware"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 8 << 10
)

// Handler exposes chat rooms over REST and a websocket stream.
type Handler struct {
	service        *Service
	allowedOrigins []string
	logger         *logging.Logger
	upgrader       websocket.Upgrader
}

// InboundFrame is what a stream client sends.
type InboundFrame struct {
	Type   string `json:"type"` // "message", "ping"
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text,omitempty"`
}

// OutboundFrame is what the stream pushes to the client.
type OutboundFrame struct {
	Type     string    `json:"type"` // "messages", "sent", "pong", "error"
	ID       string    `json:"id,omitempty"`
	Text     string    `json:"text,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// NewHandler creates a chat handler. An empty allowedOrigins list, or one
// holding "*", accepts any origin.
func NewHandler(service *Service, allowedOrigins []string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{service: service, allowedOrigins: allowedOrigins, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// CreateRoom handles POST /chats.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var p Participant
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if visitorID, ok := middleware.VisitorIDFromContext(r.Context()); ok {
		p.VisitorID = visitorID
	}
	id, err := h.service.CreateRoom(r.Context(), p)
	if err != nil {
		h.logger.Error("chat: create room failed", "error", err)
		writeError(w, statusFor(err), "failed to create chat room")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// History handles GET /chats/{id}/messages.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := h.service.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.logger.Error("chat: history failed", "error", err)
		writeError(w, statusFor(err), "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// Send handles POST /chats/{id}/messages.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.service.SendMessage(r.Context(), chi.URLParam(r, "id"), msg)
	if err != nil && id == "" {
		h.logger.Error("chat: send failed", "error", err)
		writeError(w, statusFor(err), "failed to send message")
		return
	}
	if err != nil {
		h.logger.Warn("chat: message stored but room not updated", "error", err, "message_id", id)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Stream handles GET /chats/{id}/stream. It upgrades to a websocket, pushes
// every batch of added messages and accepts outgoing messages from the
// client on the same connection.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("chat: websocket upgrade failed", "error", err, "room_id", roomID)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	batches, err := h.service.Listen(ctx, roomID)
	if err != nil {
		h.logger.Error("chat: listen failed", "error", err, "room_id", roomID)
		_ = conn.WriteJSON(OutboundFrame{Type: "error", Text: "failed to open room"})
		return
	}

	var writeMu sync.Mutex
	send := func(frame OutboundFrame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(frame)
	}

	h.logger.Info("chat: stream opened", "room_id", roomID)

	go func() {
		defer cancel()
		h.readLoop(ctx, conn, roomID, send)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("chat: stream closed", "room_id", roomID)
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			if err := send(OutboundFrame{Type: "messages", Messages: batch}); err != nil {
				h.logger.Debug("chat: stream write failed", "error", err, "room_id", roomID)
				return
			}
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, roomID string, send func(OutboundFrame) error) {
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var frame InboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("chat: stream read failed", "error", err, "room_id", roomID)
			}
			return
		}
		switch frame.Type {
		case "ping":
			if send(OutboundFrame{Type: "pong"}) != nil {
				return
			}
		case "message":
			id, err := h.service.SendMessage(ctx, roomID, Message{Sender: frame.Sender, Text: frame.Text})
			if id == "" && err != nil {
				h.logger.Warn("chat: stream send failed", "error", err, "room_id", roomID)
				if send(OutboundFrame{Type: "error", Text: "failed to send message"}) != nil {
					return
				}
				continue
			}
			if send(OutboundFrame{Type: "sent", ID: id}) != nil {
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.logger.Warn("chat: websocket origin rejected", "origin", origin)
	return false
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrRoomRequired):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case gateway.IsError(err):
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
