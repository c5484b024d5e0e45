package pages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/session"
	"github.com/wolfman30/vocal-vent/internal/wizard"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

type stubStats struct {
	stats Stats
	err   error
}

func (s stubStats) Stats(context.Context) (Stats, error) { return s.stats, s.err }

func agreedState() *session.State {
	state := session.NewState(0)
	state.Agree(time.Now())
	return state
}

func TestDispatch_ExactMatchElseGeneric(t *testing.T) {
	d := NewDispatcher(nil, logging.Discard())
	ctx := context.Background()
	state := agreedState()

	tests := []struct {
		page string
		kind string
	}{
		{PageIndex, PageIndex},
		{PageBooking, PageBooking},
		{PageMessaging, PageMessaging},
		{PageCorporate, PageCorporate},
		{"about.html", KindGeneric},
		{"Booking.html", KindGeneric},
		{"booking", KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			view, err := d.Dispatch(ctx, tt.page, Request{State: state})
			require.NoError(t, err)
			assert.Equal(t, tt.kind, view.Kind)
			assert.Empty(t, view.Redirect)
		})
	}
}

func TestDispatch_AgreementGate(t *testing.T) {
	d := NewDispatcher(nil, logging.Discard())
	ctx := context.Background()
	state := session.NewState(0)

	for _, page := range []string{PageBooking, PageMessaging, PageCorporate, PageAdmin, "about.html"} {
		view, err := d.Dispatch(ctx, page, Request{State: state})
		require.NoError(t, err)
		assert.Equal(t, PageDisclaimer, view.Redirect, page)
		assert.Nil(t, view.Content)
	}
	for _, page := range []string{PageIndex, PageDisclaimer} {
		view, err := d.Dispatch(ctx, page, Request{State: state})
		require.NoError(t, err)
		assert.Empty(t, view.Redirect, page)
	}
}

func TestDispatch_AdminGate(t *testing.T) {
	d := NewDispatcher(stubStats{stats: Stats{Bookings: 3}}, logging.Discard())
	state := agreedState()

	view, err := d.Dispatch(context.Background(), PageAdmin, Request{State: state})
	require.NoError(t, err)
	assert.Equal(t, PageIndex, view.Redirect)

	state.AdminLoggedIn = true
	view, err = d.Dispatch(context.Background(), PageAdmin, Request{State: state})
	require.NoError(t, err)
	assert.Empty(t, view.Redirect)
	content, ok := view.Content.(AdminContent)
	require.True(t, ok)
	require.NotNil(t, content.Stats)
	assert.Equal(t, 3, content.Stats.Bookings)
	assert.Equal(t, "200", content.Settings.Pricing["mini"])
}

func TestDispatch_HomeStatsFailureIsNotFatal(t *testing.T) {
	d := NewDispatcher(stubStats{err: errors.New("db down")}, logging.Discard())

	view, err := d.Dispatch(context.Background(), PageIndex, Request{State: session.NewState(0)})
	require.NoError(t, err)
	content := view.Content.(HomeContent)
	assert.Nil(t, content.Stats)
	assert.Equal(t, []string{ActionBookCall, ActionStartChat, ActionCorporate}, content.Actions)
}

func TestDispatch_BookingPageUsesPricingAndWizard(t *testing.T) {
	d := NewDispatcher(nil, logging.Discard())
	state := agreedState()
	state.Settings.Pricing["mini"] = "250"
	state.SelectPackage("mini", "250", time.Now())

	m, err := wizard.NewFlow(wizard.FlowBooking)
	require.NoError(t, err)
	require.NoError(t, m.Advance())

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	view, err := d.Dispatch(context.Background(), PageBooking, Request{
		State:   state,
		Wizards: map[wizard.Flow]wizard.Snapshot{wizard.FlowBooking: m.Snapshot()},
		Now:     now,
	})
	require.NoError(t, err)

	content := view.Content.(BookingContent)
	assert.Equal(t, Currency, content.Currency)
	require.Len(t, content.Packages, 4)
	assert.Equal(t, "250", content.Packages[0].Price)
	assert.Equal(t, "1000", content.Packages[2].Price)
	assert.Equal(t, "2026-05-02", content.DateMin)
	assert.Equal(t, "2026-05-31", content.DateMax)
	assert.Equal(t, "09:00", content.TimeMin)
	assert.Equal(t, "20:00", content.TimeMax)
	require.NotNil(t, content.Selection)
	assert.Equal(t, "mini", content.Selection.PackageID)
	require.NotNil(t, content.Wizard)
	assert.Equal(t, 1, content.Wizard.Current)
	assert.Equal(t, 66, content.Wizard.Progress)
}

func TestDispatch_CommonSection(t *testing.T) {
	d := NewDispatcher(nil, logging.Discard())
	state := agreedState()
	state.DarkMode = true
	state.Notifications.Add("Welcome", "hello", time.Now())

	view, err := d.Dispatch(context.Background(), "faq.html", Request{State: state})
	require.NoError(t, err)
	assert.True(t, view.Common.DarkMode)
	assert.True(t, view.Common.Agreed)
	assert.Equal(t, 1, view.Common.UnreadNotifications)
	assert.Equal(t, "support@vocalvent.com", view.Common.Contacts.Email)
}

func TestDispatch_HandleOverridesAndErrors(t *testing.T) {
	d := NewDispatcher(nil, logging.Discard())
	d.Handle(PageCorporate, func(context.Context, Request) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := d.Dispatch(context.Background(), PageCorporate, Request{State: agreedState()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corporate.html")
}

func TestCTATarget(t *testing.T) {
	target, err := CTATarget(ActionBookCall)
	require.NoError(t, err)
	assert.Equal(t, PageDisclaimer, target)

	target, err = CTATarget(ActionStartChat)
	require.NoError(t, err)
	assert.Equal(t, PageDisclaimer, target)

	target, err = CTATarget(ActionCorporate)
	require.NoError(t, err)
	assert.Equal(t, PageCorporate, target)

	_, err = CTATarget("donate")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestGatewayStats(t *testing.T) {
	ctx := context.Background()
	backend := gateway.NewMemoryBackend(nil)
	for _, c := range []string{gateway.CollectionBookings, gateway.CollectionBookings, gateway.CollectionCorporateInquiries} {
		_, err := backend.Create(ctx, c, map[string]any{"status": gateway.StatusPending})
		require.NoError(t, err)
	}

	s, err := GatewayStats{Backend: backend}.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Bookings: 2, CorporateInquiries: 1}, s)
}

func TestCatalogLookups(t *testing.T) {
	pricing := session.DefaultPricing()

	p, ok := FindPackage(pricing, "express")
	require.True(t, ok)
	assert.Equal(t, "500", p.Price)
	_, ok = FindPackage(pricing, "gold")
	assert.False(t, ok)

	_, ok = FindPlatform("instagram")
	assert.True(t, ok)
	_, ok = FindPlatform("telegram")
	assert.False(t, ok)
	assert.Len(t, Platforms(), 4)

	dur, ok := FindDuration(pricing, "chat60")
	require.True(t, ok)
	assert.Equal(t, "500", dur.Price)
	assert.Equal(t, 60, dur.Minutes)

	info := Corporate()
	info.Features[0] = "changed"
	assert.NotEqual(t, "changed", Corporate().Features[0])
}
