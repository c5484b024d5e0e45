package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vocal-vent/internal/http/middleware"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

func newTestRouter(t *testing.T, origins []string) (*chi.Mux, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	h := NewHandler(svc, origins, logging.Discard())
	r := chi.NewRouter()
	r.Post("/chats", h.CreateRoom)
	r.Get("/chats/{id}/messages", h.History)
	r.Post("/chats/{id}/messages", h.Send)
	r.Get("/chats/{id}/stream", h.Stream)
	return r, svc
}

func TestHandlerCreateSendHistory(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/chats", strings.NewReader(`{"platform":"whatsapp"}`))
	req = req.WithContext(middleware.WithVisitorID(req.Context(), "visitor-1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	roomID := created["id"]
	require.NotEmpty(t, roomID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chats/"+roomID+"/messages", strings.NewReader(`{"sender":"visitor","text":"hi"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats/"+roomID+"/messages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "hi", body.Messages[0].Text)
}

func TestHandlerSendRejectsEmptyText(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chats/room/messages", strings.NewReader(`{"text":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSendUnknownRoomStillCreated(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chats/missing/messages", strings.NewReader(`{"text":"hello"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandlerHistoryRejectsBadLimit(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats/room/messages?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamPushesMessages(t *testing.T) {
	r, svc := newTestRouter(t, nil)
	srv := httptest.NewServer(r)
	defer srv.Close()

	roomID, err := svc.CreateRoom(context.Background(), Participant{})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chats/" + roomID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(InboundFrame{Type: "message", Sender: "visitor", Text: "hello"}))

	deadline := time.Now().Add(2 * time.Second)
	var gotSent, gotMessage bool
	for !(gotSent && gotMessage) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var frame OutboundFrame
		require.NoError(t, conn.ReadJSON(&frame))
		switch frame.Type {
		case "sent":
			gotSent = frame.ID != ""
		case "messages":
			for _, m := range frame.Messages {
				if m.Text == "hello" {
					gotMessage = true
				}
			}
		}
	}
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	r, _ := newTestRouter(t, []string{"https://vocalvent.com"})
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chats/room/stream"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
