package pages

import (
	"github.com/wolfman30/vocal-vent/internal/session"
)

// Currency labels every price on the site.
const Currency = "KSH"

// Package is a bookable call package.
type Package struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Duration    string   `json:"duration"`
	Price       string   `json:"price"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

// Platform is a chat channel a visitor can pick.
type Platform struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Badge       string `json:"badge"`
}

// ChatDuration is a priced chat length.
type ChatDuration struct {
	ID      string `json:"id"`
	Minutes int    `json:"minutes"`
	Price   string `json:"price"`
}

// CorporateInfo is the static copy of the corporate page.
type CorporateInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Benefits    []string `json:"benefits"`
}

var packages = []Package{
	{
		ID:          "mini",
		Name:        "MINI Space",
		Duration:    "10 Minutes",
		Description: "A 10 minute space to vent and release whatever is holding you back.",
		Features:    []string{"10 minutes", "Anonymous", "Trained listener", "Safe space"},
	},
	{
		ID:          "lite",
		Name:        "LITE Space",
		Duration:    "20 Minutes",
		Description: "A 20 minute space to vent and release whatever is holding you back.",
		Features:    []string{"20 minutes", "Anonymous", "Trained listener", "Safe space", "Extended time"},
	},
	{
		ID:          "vip",
		Name:        "V.I.P Space",
		Duration:    "2 Hours",
		Description: "A 2 hour space to vent with a priority listener.",
		Features:    []string{"2 hours", "Anonymous", "Priority listener", "Safe space", "Extended support"},
	},
	{
		ID:          "express",
		Name:        "EXPRESS LINE Space",
		Duration:    "30 Minutes",
		Description: "Instant 30 minute calls without scheduling.",
		Features:    []string{"30 minutes", "Instant calls", "Anonymous", "Trained listener", "No scheduling"},
	},
}

var platforms = []Platform{
	{ID: "whatsapp", Name: "WhatsApp Chat", Description: "Chat with our trained listeners via WhatsApp", Badge: "Most Popular"},
	{ID: "inapp", Name: "In-App Chat", Description: "Chat directly within the Vocal Vent app", Badge: "New Feature"},
	{ID: "sms", Name: "SMS Chat", Description: "Vent via text message (SMS)", Badge: "No Internet Required"},
	{ID: "instagram", Name: "Instagram DM", Description: "Message us through Instagram Direct Messages", Badge: "Social Media"},
}

var durations = []ChatDuration{
	{ID: "chat30", Minutes: 30},
	{ID: "chat60", Minutes: 60},
}

var corporateInfo = CorporateInfo{
	Title:       "Vocal Vent Corporate",
	Description: "Employee Well-being Through Anonymous Venting",
	Features: []string{
		"10 Minute Space 4 Times a Month",
		"Complete anonymity for employees",
		"Dedicated corporate dashboard",
		"Usage analytics and reports",
		"Employee well-being metrics",
		"Custom subscription packages",
	},
	Benefits: []string{
		"Improved employee morale",
		"Reduced workplace stress",
		"Early identification of issues",
		"Enhanced company culture",
		"Increased productivity",
	},
}

// Packages returns the package catalog priced from pricing.
func Packages(pricing session.Pricing) []Package {
	out := make([]Package, len(packages))
	for i, p := range packages {
		p.Features = append([]string(nil), p.Features...)
		p.Price, _ = pricing.PriceOf(p.ID)
		out[i] = p
	}
	return out
}

// FindPackage looks a package up by id.
func FindPackage(pricing session.Pricing, id string) (Package, bool) {
	for _, p := range Packages(pricing) {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// Platforms returns the chat platform catalog.
func Platforms() []Platform {
	return append([]Platform(nil), platforms...)
}

// FindPlatform looks a platform up by id.
func FindPlatform(id string) (Platform, bool) {
	for _, p := range platforms {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}

// Durations returns the chat durations priced from pricing.
func Durations(pricing session.Pricing) []ChatDuration {
	out := make([]ChatDuration, len(durations))
	for i, d := range durations {
		d.Price, _ = pricing.PriceOf(d.ID)
		out[i] = d
	}
	return out
}

// FindDuration looks a chat duration up by id.
func FindDuration(pricing session.Pricing, id string) (ChatDuration, bool) {
	for _, d := range Durations(pricing) {
		if d.ID == id {
			return d, true
		}
	}
	return ChatDuration{}, false
}

// Corporate returns the corporate page copy.
func Corporate() CorporateInfo {
	info := corporateInfo
	info.Features = append([]string(nil), info.Features...)
	info.Benefits = append([]string(nil), info.Benefits...)
	return info
}
