package tracking

import "time"

// EventType is one stage of the recipient interaction funnel.
type EventType string

const (
	EventSent     EventType = "sent"
	EventOpened   EventType = "opened"
	EventClicked  EventType = "clicked"
	EventReported EventType = "reported"
)

// EventTypes lists all funnel stages in canonical order.
var EventTypes = []EventType{EventSent, EventOpened, EventClicked, EventReported}

// Valid reports whether t is a known funnel stage.
func (t EventType) Valid() bool {
	switch t {
	case EventSent, EventOpened, EventClicked, EventReported:
		return true
	}
	return false
}

// Event is an immutable record that one stage of recipient interaction
// occurred. Events are append-only; the funnel tracker folds them into
// per-recipient interaction records. ClickedURL is only meaningful for
// clicked events; capture-side context (IP, user agent) rides along for
// data-quality review and never feeds scoring.
type Event struct {
	EventType  EventType `json:"event_type"`
	CampaignID string    `json:"campaign_id"`
	UserID     string    `json:"user_id"`
	ClickedURL string    `json:"clicked_url,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
