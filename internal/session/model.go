package session

import (
	"time"

	"github.com/wolfman30/vocal-vent/internal/prefs"
)

// BookingSelection is the package a visitor picked on the booking page.
type BookingSelection struct {
	PackageID  string    `json:"packageId"`
	Price      string    `json:"price"`
	SelectedAt time.Time `json:"selectedAt"`
}

// ChatSelection is the chat platform (and optionally duration) a visitor picked.
type ChatSelection struct {
	Platform   string    `json:"platform"`
	SelectedAt time.Time `json:"selectedAt"`
	Duration   string    `json:"duration,omitempty"`
	Price      string    `json:"price,omitempty"`
}

// Contacts are the support channels shown on every page.
type Contacts struct {
	ContactLine1    string `json:"contactLine1"`
	ContactLine2    string `json:"contactLine2"`
	WhatsappNumber  string `json:"whatsappNumber"`
	InstagramHandle string `json:"instagramHandle"`
	Email           string `json:"email"`
}

// Pricing maps a package or chat-duration id to its price in KSH.
type Pricing map[string]string

// ChatSettings is an operator-defined record; its shape is not fixed.
type ChatSettings map[string]any

// Settings groups the operator-editable setting records.
type Settings struct {
	Contacts Contacts     `json:"contacts"`
	Pricing  Pricing      `json:"pricing"`
	Chat     ChatSettings `json:"chat,omitempty"`
}

// DefaultContacts returns the built-in contact details.
func DefaultContacts() Contacts {
	return Contacts{
		ContactLine1:    "+254 700 000 001",
		ContactLine2:    "+254 700 000 002",
		WhatsappNumber:  "+254 700 000 003",
		InstagramHandle: "@vocalvent",
		Email:           "support@vocalvent.com",
	}
}

// DefaultPricing returns the built-in price table.
func DefaultPricing() Pricing {
	return Pricing{
		"mini":    "200",
		"lite":    "400",
		"vip":     "1000",
		"express": "500",
		"chat30":  "300",
		"chat60":  "500",
	}
}

// DefaultSettings returns every setting group at its built-in value.
func DefaultSettings() Settings {
	return Settings{
		Contacts: DefaultContacts(),
		Pricing:  DefaultPricing(),
	}
}

// ApplyGroup replaces the setting group stored under key. Pricing is laid
// over the built-in table; contacts and chat settings are taken as saved,
// empty values included. It reports whether value matched the group's type.
func (s *Settings) ApplyGroup(key string, value any) bool {
	switch key {
	case prefs.KeyContactSettings:
		v, ok := value.(Contacts)
		if ok {
			s.Contacts = v
		}
		return ok
	case prefs.KeyPackagePricing:
		v, ok := value.(Pricing)
		if ok {
			s.Pricing = v.mergedOver(DefaultPricing())
		}
		return ok
	case prefs.KeyChatSettings:
		v, ok := value.(ChatSettings)
		if ok {
			s.Chat = v
		}
		return ok
	}
	return false
}

// PriceOf returns the configured price for id, falling back to the built-in table.
func (p Pricing) PriceOf(id string) (string, bool) {
	if v, ok := p[id]; ok && v != "" {
		return v, true
	}
	v, ok := DefaultPricing()[id]
	return v, ok
}

// mergedOver returns defaults overlaid with every non-empty entry of p.
func (p Pricing) mergedOver(defaults Pricing) Pricing {
	out := make(Pricing, len(defaults)+len(p))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range p {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func (c Contacts) isZero() bool {
	return c == Contacts{}
}

// appState is the durable snapshot stored under prefs.KeyAppState.
type appState struct {
	CurrentBooking *BookingSelection `json:"currentBooking"`
	CurrentChat    *ChatSelection    `json:"currentChat"`
	Settings       *Settings         `json:"settings,omitempty"`
}
