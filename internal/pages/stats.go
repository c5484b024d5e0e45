package pages

import (
	"context"
	"fmt"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// Stats are the headline counters on the home page and admin dashboard.
type Stats struct {
	Bookings           int `json:"bookings"`
	ChatSessions       int `json:"chatSessions"`
	CorporateInquiries int `json:"corporateInquiries"`
}

// StatsSource counts stored records.
type StatsSource interface {
	Stats(ctx context.Context) (Stats, error)
}

// GatewayStats counts records through any gateway backend. It is used when
// no SQL stats store is configured.
type GatewayStats struct {
	Backend gateway.Backend
}

func (g GatewayStats) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	counts := []struct {
		collection string
		dst        *int
	}{
		{gateway.CollectionBookings, &s.Bookings},
		{gateway.CollectionChatSessions, &s.ChatSessions},
		{gateway.CollectionCorporateInquiries, &s.CorporateInquiries},
	}
	for _, c := range counts {
		records, err := g.Backend.Query(ctx, c.collection, gateway.Filter{})
		if err != nil {
			return Stats{}, fmt.Errorf("pages: count %s: %w", c.collection, err)
		}
		*c.dst = len(records)
	}
	return s, nil
}

// loadStats never fails the page; statistics are decoration.
func loadStats(ctx context.Context, source StatsSource, logger *logging.Logger) *Stats {
	if source == nil {
		return nil
	}
	s, err := source.Stats(ctx)
	if err != nil {
		logger.Warn("pages: loading statistics failed", "error", err)
		return nil
	}
	return &s
}
