package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// Submission describes a record a visitor just created.
type Submission struct {
	Collection string
	ID         string
	Fields     map[string]string
}

var subjects = map[string]string{
	"bookings":            "New call booking",
	"chat_sessions":       "New chat session",
	"corporate_inquiries": "New corporate inquiry",
}

// Service e-mails the operator about new submissions.
type Service struct {
	email    EmailSender
	operator string
	logger   *logging.Logger
}

// NewService creates a notification service. An empty operator address
// disables notifications.
func NewService(email EmailSender, operatorEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, operator: strings.TrimSpace(operatorEmail), logger: logger}
}

// NotifySubmission sends one e-mail describing sub.
func (s *Service) NotifySubmission(ctx context.Context, sub Submission) error {
	if s == nil || s.email == nil || s.operator == "" {
		return nil
	}
	subject, ok := subjects[sub.Collection]
	if !ok {
		subject = "New " + sub.Collection
	}
	if err := s.email.Send(ctx, EmailMessage{
		To:      s.operator,
		Subject: fmt.Sprintf("%s (%s)", subject, sub.ID),
		Text:    submissionText(sub),
	}); err != nil {
		s.logger.Error("notify: operator email failed", "error", err, "collection", sub.Collection, "id", sub.ID)
		return fmt.Errorf("notify: submission %s: %w", sub.ID, err)
	}
	return nil
}

func submissionText(sub Submission) string {
	keys := make([]string, 0, len(sub.Fields))
	for k := range sub.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Record %s in %s\n\n", sub.ID, sub.Collection)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, sub.Fields[k])
	}
	return b.String()
}
