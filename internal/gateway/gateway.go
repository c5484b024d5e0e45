// Package gateway is the document store behind every durable record: bookings,
// chat sessions, corporate inquiries and chat rooms with their messages.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Collections written by the site.
const (
	CollectionBookings           = "bookings"
	CollectionChatSessions       = "chat_sessions"
	CollectionCorporateInquiries = "corporate_inquiries"
	CollectionChats              = "chats"
	SubcollectionMessages        = "messages"
)

// Record statuses set on creation.
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

// Record is one stored document.
type Record struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// String returns the string value of a data field, or "".
func (r Record) String(field string) string {
	if v, ok := r.Data[field].(string); ok {
		return v
	}
	return ""
}

// Filter narrows a query. Empty fields do not filter. DateFrom and DateTo
// bound the "date" field inclusively and apply only when both are set.
type Filter struct {
	Status   string
	Platform string
	DateFrom string
	DateTo   string
	Limit    int
}

// Backend is the document store contract.
type Backend interface {
	// Create stores data under a new id and returns it. Once the record is
	// stored the call succeeds, even if its change could not be published.
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	// Query returns matching records, newest first.
	Query(ctx context.Context, collection string, f Filter) ([]Record, error)
	// Update merges partial into an existing record.
	Update(ctx context.Context, collection, id string, partial map[string]any) error
	// Subscribe streams added records of a collection in creation order. The
	// first batch holds the records that already exist; every later batch is
	// a newly created record. The channel closes when ctx is done.
	Subscribe(ctx context.Context, collection string) (<-chan []Record, error)
}

// Subcollection returns the collection path of children of parent/id.
func Subcollection(parent, id, child string) string {
	return parent + "/" + id + "/" + child
}

func validCollection(collection string) error {
	if collection == "" || strings.HasPrefix(collection, "/") || strings.HasSuffix(collection, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}
	return nil
}

func matches(r Record, f Filter) bool {
	if f.Status != "" && r.String("status") != f.Status {
		return false
	}
	if f.Platform != "" && r.String("platform") != f.Platform {
		return false
	}
	if f.DateFrom != "" && f.DateTo != "" {
		d := r.String("date")
		if d < f.DateFrom || d > f.DateTo {
			return false
		}
	}
	return true
}

var (
	// ErrNotFound is returned when updating a record that does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidCollection is returned for an empty or malformed collection path.
	ErrInvalidCollection = errors.New("invalid collection")

	// ErrUnauthorized marks authorization failures of admin operations.
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a failure reported by an external collaborator: the document
// store, the payment provider, or an admin authorization check.
type Error struct {
	Service    string
	Op         string
	Resource   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.Resource != "" {
		b.WriteString(" ")
		b.WriteString(e.Resource)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsError reports whether err carries a *Error.
func IsError(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr)
}

func backendError(op, collection string, err error) error {
	return &Error{Service: "gateway", Op: op, Resource: collection, Err: err}
}
