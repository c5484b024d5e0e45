// Package pages maps a page name to the routine that builds its view and
// applies the agreement and admin gates in front of it.
package pages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/vocal-vent/internal/session"
	"github.com/wolfman30/vocal-vent/internal/validation"
	"github.com/wolfman30/vocal-vent/internal/wizard"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// Recognised page names.
const (
	PageIndex      = "index.html"
	PageDisclaimer = "disclaimer.html"
	PageBooking    = "booking.html"
	PageMessaging  = "messaging.html"
	PageCorporate  = "corporate.html"
	PageAdmin      = "admin.html"
)

// KindGeneric names the fallback initializer.
const KindGeneric = "generic"

// ErrUnknownAction is returned for a call-to-action the site does not know.
var ErrUnknownAction = errors.New("pages: unknown action")

// Request carries what an initializer may read.
type Request struct {
	State   *session.State
	Wizards map[wizard.Flow]wizard.Snapshot
	Now     time.Time
}

// Common is rendered on every page.
type Common struct {
	Contacts            session.Contacts `json:"contacts"`
	DarkMode            bool             `json:"darkMode"`
	UnreadNotifications int              `json:"unreadNotifications"`
	Agreed              bool             `json:"agreed"`
	AdminLoggedIn       bool             `json:"adminLoggedIn"`
}

// View is the result of dispatching a page.
type View struct {
	Page     string `json:"page"`
	Kind     string `json:"kind"`
	Redirect string `json:"redirect,omitempty"`
	Common   Common `json:"common"`
	Content  any    `json:"content,omitempty"`
}

// Initializer builds the page-specific content.
type Initializer func(ctx context.Context, req Request) (any, error)

// Dispatcher is a lookup table from page name to initializer.
type Dispatcher struct {
	routes  map[string]Initializer
	generic Initializer
	logger  *logging.Logger
}

// NewDispatcher creates a dispatcher with the site's initializers. stats may
// be nil, in which case the home and admin pages carry no statistics.
func NewDispatcher(stats StatsSource, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	d := &Dispatcher{
		routes:  make(map[string]Initializer),
		generic: func(context.Context, Request) (any, error) { return nil, nil },
		logger:  logger,
	}
	d.Handle(PageIndex, homePage(stats, logger))
	d.Handle(PageBooking, bookingPage)
	d.Handle(PageMessaging, messagingPage)
	d.Handle(PageCorporate, corporatePage)
	d.Handle(PageAdmin, adminPage(stats, logger))
	return d
}

// Handle registers or replaces the initializer for page.
func (d *Dispatcher) Handle(page string, init Initializer) {
	d.routes[page] = init
}

// Dispatch gates the page and runs its initializer. Names are matched
// exactly; anything unrecognised gets the generic initializer.
func (d *Dispatcher) Dispatch(ctx context.Context, page string, req Request) (View, error) {
	if req.State == nil {
		req.State = session.NewState(0)
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	view := View{Page: page, Common: common(req.State)}

	if target := Gate(page, req.State); target != "" {
		view.Kind = "redirect"
		view.Redirect = target
		d.logger.Debug("pages: gated", "page", page, "redirect", target)
		return view, nil
	}

	init, ok := d.routes[page]
	view.Kind = page
	if !ok {
		init = d.generic
		view.Kind = KindGeneric
	}
	d.logger.Debug("pages: initializing", "page", page, "kind", view.Kind)

	content, err := init(ctx, req)
	if err != nil {
		return View{}, fmt.Errorf("pages: init %s: %w", page, err)
	}
	view.Content = content
	return view, nil
}

// Gate returns the page a visitor must be sent to instead of page, or "".
// Everything but the home and disclaimer pages needs the agreement, and the
// admin page also needs an admin session.
func Gate(page string, state *session.State) string {
	if page != PageIndex && page != PageDisclaimer && !state.Agreed() {
		return PageDisclaimer
	}
	if page == PageAdmin && !state.AdminLoggedIn {
		return PageIndex
	}
	return ""
}

// CTA actions on the home page.
const (
	ActionBookCall  = "book-call"
	ActionStartChat = "start-chat"
	ActionCorporate = "corporate"
)

// CTATarget returns the page a call-to-action leads to.
func CTATarget(action string) (string, error) {
	switch action {
	case ActionBookCall, ActionStartChat:
		return PageDisclaimer, nil
	case ActionCorporate:
		return PageCorporate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

func common(state *session.State) Common {
	c := Common{
		Contacts:      state.Settings.Contacts,
		DarkMode:      state.DarkMode,
		Agreed:        state.Agreed(),
		AdminLoggedIn: state.AdminLoggedIn,
	}
	if state.Notifications != nil {
		c.UnreadNotifications = state.Notifications.Unread()
	}
	return c
}

// WizardView is a wizard snapshot with its progress bar width.
type WizardView struct {
	wizard.Snapshot
	Progress int `json:"progress"`
}

func wizardView(req Request, flow wizard.Flow) *WizardView {
	snap, ok := req.Wizards[flow]
	if !ok || len(snap.Steps) == 0 {
		return nil
	}
	return &WizardView{Snapshot: snap, Progress: (snap.Current + 1) * 100 / len(snap.Steps)}
}

// HomeContent is the index page.
type HomeContent struct {
	Stats   *Stats   `json:"stats,omitempty"`
	Actions []string `json:"actions"`
}

func homePage(stats StatsSource, logger *logging.Logger) Initializer {
	return func(ctx context.Context, _ Request) (any, error) {
		return HomeContent{
			Stats:   loadStats(ctx, stats, logger),
			Actions: []string{ActionBookCall, ActionStartChat, ActionCorporate},
		}, nil
	}
}

// BookingContent is the booking page.
type BookingContent struct {
	Currency  string                    `json:"currency"`
	Packages  []Package                 `json:"packages"`
	DateMin   string                    `json:"dateMin"`
	DateMax   string                    `json:"dateMax"`
	TimeMin   string                    `json:"timeMin"`
	TimeMax   string                    `json:"timeMax"`
	Selection *session.BookingSelection `json:"selection,omitempty"`
	Wizard    *WizardView               `json:"wizard,omitempty"`
}

func bookingPage(_ context.Context, req Request) (any, error) {
	first, last := validation.DateBounds(req.Now)
	return BookingContent{
		Currency:  Currency,
		Packages:  Packages(req.State.Settings.Pricing),
		DateMin:   first,
		DateMax:   last,
		TimeMin:   validation.OpeningTime,
		TimeMax:   validation.ClosingTime,
		Selection: req.State.CurrentBooking,
		Wizard:    wizardView(req, wizard.FlowBooking),
	}, nil
}

// MessagingContent is the chat page.
type MessagingContent struct {
	Currency  string                 `json:"currency"`
	Platforms []Platform             `json:"platforms"`
	Durations []ChatDuration         `json:"durations"`
	Selection *session.ChatSelection `json:"selection,omitempty"`
	Wizard    *WizardView            `json:"wizard,omitempty"`
}

func messagingPage(_ context.Context, req Request) (any, error) {
	return MessagingContent{
		Currency:  Currency,
		Platforms: Platforms(),
		Durations: Durations(req.State.Settings.Pricing),
		Selection: req.State.CurrentChat,
		Wizard:    wizardView(req, wizard.FlowChat),
	}, nil
}

// CorporateContent is the corporate page.
type CorporateContent struct {
	Info   CorporateInfo `json:"info"`
	Wizard *WizardView   `json:"wizard,omitempty"`
}

func corporatePage(_ context.Context, req Request) (any, error) {
	return CorporateContent{Info: Corporate(), Wizard: wizardView(req, wizard.FlowCorporate)}, nil
}

// AdminContent is the admin dashboard.
type AdminContent struct {
	Stats    *Stats           `json:"stats,omitempty"`
	Settings session.Settings `json:"settings"`
}

func adminPage(stats StatsSource, logger *logging.Logger) Initializer {
	return func(ctx context.Context, req Request) (any, error) {
		return AdminContent{Stats: loadStats(ctx, stats, logger), Settings: req.State.Settings}, nil
	}
}
