package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/vocal-vent/internal/pages"
	"github.com/wolfman30/vocal-vent/internal/prefs"
	"github.com/wolfman30/vocal-vent/internal/session"
	"github.com/wolfman30/vocal-vent/internal/validation"
	"github.com/wolfman30/vocal-vent/internal/wizard"
)

var (
	// ErrUnknownFlow is returned for a flow name the site does not have.
	ErrUnknownFlow = errors.New("flows: unknown flow")
	// ErrIncomplete is returned when submitting before the last step.
	ErrIncomplete = errors.New("flows: wizard not at its last step")
)

// Controller is one visitor's page state. Only the Registry hands it out,
// and only while holding its lock.
type Controller struct {
	mu       sync.Mutex
	restored bool
	evicted  bool
	lastSeen time.Time

	reg       *Registry
	visitorID string
	store     prefs.Store
	state     *session.State
	wizards   map[wizard.Flow]*wizard.Machine
	forms     map[wizard.Flow]map[string]string
	errors    map[wizard.Flow]*validation.Errors
}

func newController(reg *Registry, visitorID string) *Controller {
	return &Controller{
		reg:       reg,
		visitorID: visitorID,
		store:     reg.prefs.Open(visitorID),
		forms:     make(map[wizard.Flow]map[string]string),
		errors:    make(map[wizard.Flow]*validation.Errors),
	}
}

// restoreTimeout bounds the preference reads done on a controller's behalf.
// They outlive the request that triggered them.
const restoreTimeout = 5 * time.Second

func (c *Controller) restore(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	state, err := c.reg.sessions.Restore(ctx, c.store)
	if err != nil {
		c.reg.logger.Warn("flows: session restored with unread keys", "visitor_id", c.visitorID, "keys", state.Unread(), "error", err)
	}
	c.state = state
	c.wizards = map[wizard.Flow]*wizard.Machine{
		wizard.FlowBooking:   c.bookingWizard(),
		wizard.FlowChat:      c.chatWizard(),
		wizard.FlowCorporate: c.corporateWizard(),
	}
	for flow, m := range c.wizards {
		flow := flow
		m.Observe(func(s wizard.Snapshot) {
			c.reg.logger.Debug("flows: wizard moved", "visitor_id", c.visitorID, "flow", flow, "step", s.CurrentName)
		})
	}
	c.restored = true
}

// reload retries the keys the first restore could not read.
func (c *Controller) reload(ctx context.Context) {
	if len(c.state.Unread()) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()
	if err := c.reg.sessions.Reload(ctx, c.store, c.state); err != nil {
		c.reg.logger.Warn("flows: session reload incomplete", "visitor_id", c.visitorID, "keys", c.state.Unread(), "error", err)
	}
}

// VisitorID returns the visitor this controller belongs to.
func (c *Controller) VisitorID() string { return c.visitorID }

// State returns the visitor's session. Callers must not keep it beyond the
// With callback.
func (c *Controller) State() *session.State { return c.state }

// PageRequest builds the dispatcher input for the visitor's current state.
func (c *Controller) PageRequest(now time.Time) pages.Request {
	snaps := make(map[wizard.Flow]wizard.Snapshot, len(c.wizards))
	for flow, m := range c.wizards {
		snaps[flow] = m.Snapshot()
	}
	return pages.Request{State: c.state, Wizards: snaps, Now: now}
}

// Wizard returns the snapshot of flow.
func (c *Controller) Wizard(flow wizard.Flow) (wizard.Snapshot, error) {
	m, err := c.machine(flow)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	return m.Snapshot(), nil
}

// Form returns a copy of the fields entered for flow.
func (c *Controller) Form(flow wizard.Flow) map[string]string {
	out := make(map[string]string, len(c.forms[flow]))
	for k, v := range c.forms[flow] {
		out[k] = v
	}
	return out
}

// FieldErrors returns the annotations left by the last rejected transition.
func (c *Controller) FieldErrors(flow wizard.Flow) *validation.Errors {
	return c.errors[flow]
}

// Next merges fields into the flow's form and advances one step.
func (c *Controller) Next(ctx context.Context, flow wizard.Flow, fields map[string]string) (wizard.Snapshot, error) {
	m, err := c.machine(flow)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	c.mergeForm(flow, fields)
	err = m.Advance()
	c.record(flow, "advance", err)
	return m.Snapshot(), err
}

// Back moves one step back; at the first step nothing changes.
func (c *Controller) Back(_ context.Context, flow wizard.Flow) (wizard.Snapshot, error) {
	m, err := c.machine(flow)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	moved := m.Retreat()
	c.record(flow, "retreat", nil)
	if !moved {
		c.reg.logger.Debug("flows: retreat at first step", "visitor_id", c.visitorID, "flow", flow)
	}
	return m.Snapshot(), nil
}

// GoTo jumps to step, merging fields first so forward jumps see them.
func (c *Controller) GoTo(_ context.Context, flow wizard.Flow, step int, fields map[string]string) (wizard.Snapshot, error) {
	m, err := c.machine(flow)
	if err != nil {
		return wizard.Snapshot{}, err
	}
	c.mergeForm(flow, fields)
	err = m.GoTo(step)
	c.record(flow, "goto", err)
	return m.Snapshot(), err
}

// Agree records the disclaimer agreement.
func (c *Controller) Agree(ctx context.Context) error {
	c.state.Agree(c.reg.now())
	return c.persist(ctx)
}

// SetDarkMode stores the visitor's theme preference.
func (c *Controller) SetDarkMode(ctx context.Context, on bool) error {
	c.state.DarkMode = on
	return c.persist(ctx)
}

// MarkNotificationRead flags one notification as read.
func (c *Controller) MarkNotificationRead(ctx context.Context, index int) error {
	if err := c.state.Notifications.MarkRead(index); err != nil {
		return err
	}
	return c.persist(ctx)
}

// Persist writes the durable session subset. A failing key never stops
// the request; the joined error is logged and returned for callers that care.
func (c *Controller) persist(ctx context.Context) error {
	if err := c.reg.sessions.Persist(ctx, c.store, c.state); err != nil {
		c.reg.logger.Warn("flows: session persist incomplete", "visitor_id", c.visitorID, "error", err)
		return err
	}
	return nil
}

func (c *Controller) machine(flow wizard.Flow) (*wizard.Machine, error) {
	m, ok := c.wizards[flow]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, flow)
	}
	return m, nil
}

func (c *Controller) mergeForm(flow wizard.Flow, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	form := c.forms[flow]
	if form == nil {
		form = make(map[string]string, len(fields))
		c.forms[flow] = form
	}
	for k, v := range fields {
		form[k] = strings.TrimSpace(v)
	}
}

func (c *Controller) record(flow wizard.Flow, op string, err error) {
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		c.errors[flow] = verrs
	} else if err == nil {
		delete(c.errors, flow)
	}
	if c.reg.metrics != nil {
		c.reg.metrics.ObserveTransition(string(flow), op, err == nil)
	}
}

// ParseFlow maps a route segment to a flow.
func ParseFlow(name string) (wizard.Flow, error) {
	switch f := wizard.Flow(strings.ToLower(strings.TrimSpace(name))); f {
	case wizard.FlowBooking, wizard.FlowChat, wizard.FlowCorporate:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFlow, name)
	}
}
