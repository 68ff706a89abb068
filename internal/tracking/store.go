package tracking

import (
	"context"
	"database/sql"
	"time"
)

// Store persists the append-only tracking event log. The unique index on
// (campaign_id, user_id, event_type) makes inserts idempotent: the first
// occurrence of a funnel stage wins, duplicates are no-ops.
type Store struct {
	db *sql.DB
}

// NewStore creates a tracking event store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert appends an event. Duplicate (campaign, user, type) triples are
// ignored so replays and double deliveries from the queue are harmless.
func (s *Store) Insert(ctx context.Context, evt Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO phish_tracking_events
			(campaign_id, user_id, event_type, clicked_url, ip_address, user_agent, event_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (campaign_id, user_id, event_type) DO NOTHING
	`, evt.CampaignID, evt.UserID, evt.EventType, nullable(evt.ClickedURL),
		nullable(evt.IPAddress), nullable(evt.UserAgent), evt.Timestamp)
	return err
}

// ListByCampaign returns all events for a campaign in event order.
func (s *Store) ListByCampaign(ctx context.Context, campaignID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id, user_id, event_type, COALESCE(clicked_url, ''),
			COALESCE(ip_address, ''), COALESCE(user_agent, ''), event_at
		FROM phish_tracking_events WHERE campaign_id = $1 ORDER BY event_at ASC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListBetween returns all events with event_at in [start, end], used to
// build trend series.
func (s *Store) ListBetween(ctx context.Context, campaignID string, start, end time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id, user_id, event_type, COALESCE(clicked_url, ''),
			COALESCE(ip_address, ''), COALESCE(user_agent, ''), event_at
		FROM phish_tracking_events
		WHERE campaign_id = $1 AND event_at >= $2 AND event_at <= $3
		ORDER BY event_at ASC
	`, campaignID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListAll returns the full event log in event order, used to replay the
// funnel tracker at startup.
func (s *Store) ListAll(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id, user_id, event_type, COALESCE(clicked_url, ''),
			COALESCE(ip_address, ''), COALESCE(user_agent, ''), event_at
		FROM phish_tracking_events ORDER BY event_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.CampaignID, &evt.UserID, &evt.EventType, &evt.ClickedURL,
			&evt.IPAddress, &evt.UserAgent, &evt.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
