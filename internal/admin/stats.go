package admin

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/wolfman30/vocal-vent/internal/gateway"
	"github.com/wolfman30/vocal-vent/internal/pages"
)

var statsCollections = []string{
	gateway.CollectionBookings,
	gateway.CollectionChatSessions,
	gateway.CollectionCorporateInquiries,
}

// StatsStore counts records per collection straight from the records table.
type StatsStore struct {
	db *sql.DB
}

// NewStatsStore wraps a database/sql handle opened with the pgx driver.
func NewStatsStore(db *sql.DB) *StatsStore {
	return &StatsStore{db: db}
}

// Stats returns the dashboard counts in one round trip.
func (s *StatsStore) Stats(ctx context.Context) (pages.Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, COUNT(*) FROM records WHERE collection = ANY($1) GROUP BY collection`,
		pq.Array(statsCollections),
	)
	if err != nil {
		return pages.Stats{}, &gateway.Error{Service: "gateway", Op: "stats", Err: err}
	}
	defer rows.Close()

	var stats pages.Stats
	for rows.Next() {
		var (
			collection string
			count      int
		)
		if err := rows.Scan(&collection, &count); err != nil {
			return pages.Stats{}, fmt.Errorf("admin: scan stats: %w", err)
		}
		switch collection {
		case gateway.CollectionBookings:
			stats.Bookings = count
		case gateway.CollectionChatSessions:
			stats.ChatSessions = count
		case gateway.CollectionCorporateInquiries:
			stats.CorporateInquiries = count
		}
	}
	if err := rows.Err(); err != nil {
		return pages.Stats{}, &gateway.Error{Service: "gateway", Op: "stats", Err: err}
	}
	return stats, nil
}
