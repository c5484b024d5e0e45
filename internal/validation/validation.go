// Package validation checks wizard form fields before a step may be left.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// Messages shown next to an offending field.
const (
	MsgRequired = "This field is required"
	MsgEmail    = "Please enter a valid email address"
	MsgPhone    = "Please enter a valid phone number"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[\d\s\-()]+$`)
)

// Kind selects the format check applied to a field.
type Kind string

const (
	KindText  Kind = "text"
	KindEmail Kind = "email"
	KindTel   Kind = "tel"
)

// Field is one form input.
type Field struct {
	Name     string
	Kind     Kind
	Value    string
	Required bool
}

// Required builds a required text field.
func Required(name, value string) Field {
	return Field{Name: name, Kind: KindText, Value: value, Required: true}
}

// FieldError is the annotation for one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects every field annotation of a rejected form.
type Errors struct {
	Fields []FieldError `json:"fields"`
}

func (e *Errors) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends an annotation.
func (e *Errors) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Message returns the annotation for field, if any.
func (e *Errors) Message(field string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message, true
		}
	}
	return "", false
}

// Err returns e as an error, or nil when nothing was annotated.
func (e *Errors) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validate checks every field and returns *Errors listing each failure, or
// nil. One field gets at most one annotation.
func Validate(fields ...Field) error {
	errs := &Errors{}
	for _, f := range fields {
		if msg := check(f); msg != "" {
			errs.Add(f.Name, msg)
		}
	}
	return errs.Err()
}

func check(f Field) string {
	value := strings.TrimSpace(f.Value)
	if value == "" {
		if f.Required {
			return MsgRequired
		}
		return ""
	}
	switch f.Kind {
	case KindEmail:
		if !ValidEmail(value) {
			return MsgEmail
		}
	case KindTel:
		if !ValidPhone(value) {
			return MsgPhone
		}
	}
	return ""
}

// ValidEmail reports whether v looks like an e-mail address. Internationalised
// domains are converted to their ASCII form first.
func ValidEmail(v string) bool {
	normalized, err := NormalizeEmail(v)
	if err != nil {
		return false
	}
	return emailPattern.MatchString(normalized)
}

// NormalizeEmail lowercases the domain and converts it to punycode.
func NormalizeEmail(v string) (string, error) {
	v = strings.TrimSpace(v)
	at := strings.LastIndex(v, "@")
	if at <= 0 || at == len(v)-1 {
		return v, nil
	}
	domain, err := idna.Lookup.ToASCII(strings.ToLower(v[at+1:]))
	if err != nil {
		return "", fmt.Errorf("validation: email domain: %w", err)
	}
	return v[:at+1] + domain, nil
}

// ValidPhone reports whether v looks like a phone number.
func ValidPhone(v string) bool {
	return phonePattern.MatchString(strings.TrimSpace(v))
}
