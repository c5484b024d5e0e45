package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

func newTestService(t *testing.T) (*Service, *gateway.MemoryBackend) {
	t.Helper()
	backend := gateway.NewMemoryBackend(nil)
	return NewService(backend, logging.Discard()), backend
}

func TestCreateRoomStoresActiveRoom(t *testing.T) {
	ctx := context.Background()
	svc, backend := newTestService(t)

	id, err := svc.CreateRoom(ctx, Participant{VisitorID: "v1", Platform: "whatsapp"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rooms, err := backend.Query(ctx, gateway.CollectionChats, gateway.Filter{})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, id, rooms[0].ID)
	assert.Equal(t, gateway.StatusActive, rooms[0].String("status"))
	assert.NotEmpty(t, rooms[0].String("lastActivity"))
}

func TestSendMessageTouchesRoom(t *testing.T) {
	ctx := context.Background()
	svc, backend := newTestService(t)
	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	roomID, err := svc.CreateRoom(ctx, Participant{Name: "anon"})
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(time.Minute) }
	msgID, err := svc.SendMessage(ctx, roomID, Message{Sender: "visitor", Text: "  hello  "})
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	rooms, err := backend.Query(ctx, gateway.CollectionChats, gateway.Filter{})
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute).Format(time.RFC3339Nano), rooms[0].String("lastActivity"))

	history, err := svc.History(ctx, roomID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Text)
	assert.False(t, history[0].Read)
}

func TestSendMessageValidation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SendMessage(context.Background(), "room", Message{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = svc.SendMessage(context.Background(), "", Message{Text: "hi"})
	assert.ErrorIs(t, err, ErrRoomRequired)
}

func TestSendMessageUnknownRoomKeepsMessageID(t *testing.T) {
	svc, _ := newTestService(t)
	id, err := svc.SendMessage(context.Background(), "missing", Message{Text: "hi"})
	assert.NotEmpty(t, id)
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestHistoryReturnsNewestAscending(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	roomID, err := svc.CreateRoom(ctx, Participant{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(ctx, roomID, Message{Sender: "v", Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, roomID, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m2", history[0].Text)
	assert.Equal(t, "m4", history[2].Text)
}

func TestListenDeliversExistingThenAdded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, _ := newTestService(t)
	roomID, err := svc.CreateRoom(ctx, Participant{})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, roomID, Message{Text: "first"})
	require.NoError(t, err)

	stream, err := svc.Listen(ctx, roomID)
	require.NoError(t, err)

	select {
	case batch := <-stream:
		require.Len(t, batch, 1)
		assert.Equal(t, "first", batch[0].Text)
	case <-time.After(time.Second):
		t.Fatal("expected initial batch")
	}

	_, err = svc.SendMessage(ctx, roomID, Message{Text: "second"})
	require.NoError(t, err)

	select {
	case batch := <-stream:
		require.Len(t, batch, 1)
		assert.Equal(t, "second", batch[0].Text)
	case <-time.After(time.Second):
		t.Fatal("expected added message")
	}

	cancel()
	for range stream {
	}
}
