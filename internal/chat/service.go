// Package chat runs the live chat rooms behind a paid chat session. Rooms and
// their messages are gateway records; new messages fan out through the
// gateway subscription.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// HistoryLimit is the default number of messages returned by History.
const HistoryLimit = 50

var (
	// ErrEmptyMessage is returned when a message has no text.
	ErrEmptyMessage = errors.New("chat: message text is required")
	// ErrRoomRequired is returned when no room id is given.
	ErrRoomRequired = errors.New("chat: room id is required")
)

// Participant joins a room when it is created.
type Participant struct {
	VisitorID string `json:"visitorId,omitempty"`
	Name      string `json:"name,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// Message is one chat line.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}

// Service creates rooms and moves messages through the gateway.
type Service struct {
	backend gateway.Backend
	tracer  trace.Tracer
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates a chat service over backend.
func NewService(backend gateway.Backend, logger *logging.Logger) *Service {
	if backend == nil {
		panic("chat: backend required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		backend: backend,
		tracer:  otel.Tracer("vocalvent.internal.chat"),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateRoom opens an active room with p as its first participant.
func (s *Service) CreateRoom(ctx context.Context, p Participant) (string, error) {
	ctx, span := s.tracer.Start(ctx, "chat.create_room")
	defer span.End()

	now := s.now()
	id, err := s.backend.Create(ctx, gateway.CollectionChats, map[string]any{
		"participants": []any{participantData(p)},
		"status":       gateway.StatusActive,
		"createdAt":    now.Format(time.RFC3339Nano),
		"lastActivity": now.Format(time.RFC3339Nano),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("chat: create room: %w", err)
	}
	span.SetAttributes(attribute.String("chat.room_id", id))
	return id, nil
}

// SendMessage stores msg in the room and then bumps the room's lastActivity.
// The message id is returned even if the room update fails.
func (s *Service) SendMessage(ctx context.Context, roomID string, msg Message) (string, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return "", ErrRoomRequired
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	ctx, span := s.tracer.Start(ctx, "chat.send_message", trace.WithAttributes(attribute.String("chat.room_id", roomID)))
	defer span.End()

	now := s.now()
	id, err := s.backend.Create(ctx, messagesOf(roomID), map[string]any{
		"sender":    msg.Sender,
		"text":      text,
		"read":      false,
		"timestamp": now.Format(time.RFC3339Nano),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("chat: send message: %w", err)
	}
	if err := s.backend.Update(ctx, gateway.CollectionChats, roomID, map[string]any{
		"lastActivity": now.Format(time.RFC3339Nano),
	}); err != nil {
		span.RecordError(err)
		return id, fmt.Errorf("chat: touch room: %w", err)
	}
	return id, nil
}

// History returns the newest limit messages of a room, oldest first.
func (s *Service) History(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ErrRoomRequired
	}
	if limit <= 0 {
		limit = HistoryLimit
	}
	ctx, span := s.tracer.Start(ctx, "chat.history", trace.WithAttributes(attribute.String("chat.room_id", roomID)))
	defer span.End()

	records, err := s.backend.Query(ctx, messagesOf(roomID), gateway.Filter{Limit: limit})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("chat: history: %w", err)
	}
	out := make([]Message, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = messageFrom(rec)
	}
	return out, nil
}

// Listen streams messages added to a room in ascending order. The first
// batch carries the messages already present; empty batches are skipped.
// The channel closes when ctx is done.
func (s *Service) Listen(ctx context.Context, roomID string) (<-chan []Message, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ErrRoomRequired
	}
	batches, err := s.backend.Subscribe(ctx, messagesOf(roomID))
	if err != nil {
		return nil, fmt.Errorf("chat: listen: %w", err)
	}
	out := make(chan []Message)
	go func() {
		defer close(out)
		for batch := range batches {
			if len(batch) == 0 {
				continue
			}
			msgs := make([]Message, len(batch))
			for i, rec := range batch {
				msgs[i] = messageFrom(rec)
			}
			select {
			case out <- msgs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func messagesOf(roomID string) string {
	return gateway.Subcollection(gateway.CollectionChats, roomID, gateway.SubcollectionMessages)
}

func participantData(p Participant) map[string]any {
	data := map[string]any{}
	if p.VisitorID != "" {
		data["visitorId"] = p.VisitorID
	}
	if p.Name != "" {
		data["name"] = p.Name
	}
	if p.Platform != "" {
		data["platform"] = p.Platform
	}
	return data
}

func messageFrom(rec gateway.Record) Message {
	msg := Message{
		ID:        rec.ID,
		Sender:    rec.String("sender"),
		Text:      rec.String("text"),
		Timestamp: rec.CreatedAt,
	}
	if read, ok := rec.Data["read"].(bool); ok {
		msg.Read = read
	}
	if ts, err := time.Parse(time.RFC3339Nano, rec.String("timestamp")); err == nil {
		msg.Timestamp = ts
	}
	return msg
}
