package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEmailSender struct {
	sent []EmailMessage
	err  error
}

func (m *mockEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestNotifySubmission(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, " ops@vocalvent.com ", nil)

	err := svc.NotifySubmission(context.Background(), Submission{
		Collection: "bookings",
		ID:         "b1",
		Fields:     map[string]string{"packageId": "mini", "date": "2026-03-12"},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ops@vocalvent.com", msg.To)
	assert.Equal(t, "New call booking (b1)", msg.Subject)
	assert.Equal(t, "Record b1 in bookings\n\ndate: 2026-03-12\npackageId: mini\n", msg.Text)
}

func TestNotifySubmission_DisabledWithoutOperator(t *testing.T) {
	sender := &mockEmailSender{}
	require.NoError(t, NewService(sender, "", nil).NotifySubmission(context.Background(), Submission{Collection: "bookings"}))
	assert.Empty(t, sender.sent)

	var nilSvc *Service
	assert.NoError(t, nilSvc.NotifySubmission(context.Background(), Submission{}))
}

func TestNotifySubmission_SenderError(t *testing.T) {
	svc := NewService(&mockEmailSender{err: errors.New("down")}, "ops@vocalvent.com", nil)
	err := svc.NotifySubmission(context.Background(), Submission{Collection: "chats", ID: "c1"})
	assert.Error(t, err)
}
