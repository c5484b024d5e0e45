package session

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultNotificationLimit bounds the notification log when no limit is configured.
const DefaultNotificationLimit = 50

// ErrNotificationIndex is returned for an index outside the log.
var ErrNotificationIndex = errors.New("session: notification index out of range")

// Notification is one entry of a visitor's notification list.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// NotificationLog is an append-only list capped at limit entries; once full
// the oldest entry is evicted. Only the read flag of an entry ever changes.
type NotificationLog struct {
	limit int
	items []Notification
}

// NewNotificationLog creates an empty log holding at most limit entries.
func NewNotificationLog(limit int) *NotificationLog {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	return &NotificationLog{limit: limit}
}

// Add appends a notification, evicting the oldest when the log is full.
func (l *NotificationLog) Add(title, message string, at time.Time) {
	l.items = append(l.items, Notification{Title: title, Message: message, Timestamp: at.UTC()})
	l.trim()
}

// MarkRead flips the read flag of the entry at index.
func (l *NotificationLog) MarkRead(index int) error {
	if index < 0 || index >= len(l.items) {
		return ErrNotificationIndex
	}
	l.items[index].Read = true
	return nil
}

// Unread counts entries not yet read.
func (l *NotificationLog) Unread() int {
	n := 0
	for _, item := range l.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Items returns a copy of the entries, oldest first.
func (l *NotificationLog) Items() []Notification {
	out := make([]Notification, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of entries.
func (l *NotificationLog) Len() int {
	return len(l.items)
}

func (l *NotificationLog) trim() {
	if over := len(l.items) - l.limit; over > 0 {
		l.items = append([]Notification(nil), l.items[over:]...)
	}
}

// MarshalJSON encodes the log as a plain list.
func (l *NotificationLog) MarshalJSON() ([]byte, error) {
	if l == nil || l.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.items)
}

// UnmarshalJSON decodes a plain list, keeping only the newest entries that fit.
func (l *NotificationLog) UnmarshalJSON(data []byte) error {
	var items []Notification
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if l.limit <= 0 {
		l.limit = DefaultNotificationLimit
	}
	l.items = items
	l.trim()
	return nil
}
