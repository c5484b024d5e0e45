package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/vocal-vent/internal/pages"
	"github.com/wolfman30/vocal-vent/internal/wizard"
)

// ErrUnknownOption is returned when selecting an id the catalog does not have.
var ErrUnknownOption = errors.New("flows: unknown option")

// Selectable is anything a visitor can pick from a card grid.
type Selectable interface {
	Select(ctx context.Context, id, price string) error
}

// PackagePicker records booking package selections.
type PackagePicker struct{ c *Controller }

// PlatformPicker records chat platform selections.
type PlatformPicker struct{ c *Controller }

// Packages returns the booking picker bound to this controller.
func (c *Controller) Packages() PackagePicker { return PackagePicker{c: c} }

// Platforms returns the chat platform picker bound to this controller.
func (c *Controller) Platforms() PlatformPicker { return PlatformPicker{c: c} }

// Select records the package, persists immediately and shows the schedule
// step. The price comes from the current price table; a differing client
// price is ignored.
func (p PackagePicker) Select(ctx context.Context, id, price string) error {
	c := p.c
	pkg, ok := pages.FindPackage(c.state.Settings.Pricing, strings.TrimSpace(id))
	if !ok {
		return fmt.Errorf("%w: package %q", ErrUnknownOption, id)
	}
	if price != "" && price != pkg.Price {
		c.reg.logger.Debug("flows: client price ignored", "package", pkg.ID, "client_price", price, "price", pkg.Price)
	}
	c.state.SelectPackage(pkg.ID, pkg.Price, c.reg.now())
	c.observeSelection("package", pkg.ID)
	_ = c.persist(ctx)
	return c.showSecondStep(wizard.FlowBooking)
}

// Select records the platform, persists immediately and shows the duration
// step. Platforms carry no price of their own.
func (p PlatformPicker) Select(ctx context.Context, id, _ string) error {
	c := p.c
	platform, ok := pages.FindPlatform(strings.TrimSpace(id))
	if !ok {
		return fmt.Errorf("%w: platform %q", ErrUnknownOption, id)
	}
	c.state.SelectPlatform(platform.ID, c.reg.now())
	c.observeSelection("platform", platform.ID)
	_ = c.persist(ctx)
	return c.showSecondStep(wizard.FlowChat)
}

// SelectDuration attaches a chat length and its price to the chat selection.
func (c *Controller) SelectDuration(ctx context.Context, id string) error {
	d, ok := pages.FindDuration(c.state.Settings.Pricing, strings.TrimSpace(id))
	if !ok {
		return fmt.Errorf("%w: duration %q", ErrUnknownOption, id)
	}
	if err := c.state.SelectDuration(d.ID, d.Price); err != nil {
		return err
	}
	c.observeSelection("duration", d.ID)
	_ = c.persist(ctx)
	return nil
}

// showSecondStep puts the flow on its second step. From the first step that
// is an ordinary advance, so the selection guard runs; from further along it
// is a jump back.
func (c *Controller) showSecondStep(flow wizard.Flow) error {
	m := c.wizards[flow]
	var err error
	if m.Current() == 0 {
		err = m.Advance()
		c.record(flow, "advance", err)
	} else {
		err = m.GoTo(1)
		c.record(flow, "goto", err)
	}
	return err
}

func (c *Controller) observeSelection(kind, id string) {
	if c.reg.metrics != nil {
		c.reg.metrics.ObserveSelection(kind, id)
	}
}
