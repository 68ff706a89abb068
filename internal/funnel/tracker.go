package funnel

import (
	"sync"
	"time"

	"github.com/ignite/phishguard/internal/pkg/logger"
	"github.com/ignite/phishguard/internal/tracking"
)

// Record is the canonical interaction state for one (campaign, recipient)
// pair, folded from the tracking event stream. Each flag is set at most
// once with the timestamp of its first occurrence. Flags are independent:
// a reported recipient need not have a recorded open, because mail
// clients routinely block pixel loads while click and report links are
// explicit.
type Record struct {
	CampaignID string `json:"campaign_id"`
	UserID     string `json:"user_id"`

	Sent       bool       `json:"sent"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	Opened     bool       `json:"opened"`
	OpenedAt   *time.Time `json:"opened_at,omitempty"`
	Clicked    bool       `json:"clicked"`
	ClickedAt  *time.Time `json:"clicked_at,omitempty"`
	Reported   bool       `json:"reported"`
	ReportedAt *time.Time `json:"reported_at,omitempty"`

	// ClickedURL is the landing URL of the first recorded click.
	ClickedURL string `json:"clicked_url,omitempty"`
}

type recordKey struct {
	campaignID string
	userID     string
}

// Tracker folds tracking events into recipient interaction records. The
// fold is idempotent (duplicate events for a set flag change nothing) and
// order-independent (no event is rejected for arriving before its
// predecessor stage). Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	records map[recordKey]*Record

	known      map[string]bool
	checkKnown bool
	orphans    []tracking.Event

	log *logger.Logger
}

// NewTracker creates an empty tracker. Orphan detection is off until the
// first campaign is registered.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[recordKey]*Record),
		known:   make(map[string]bool),
		log:     logger.Component("funnel"),
	}
}

// RegisterCampaign marks a campaign ID as known. Once any campaign is
// registered, events for unknown campaigns are flagged as orphans.
func (t *Tracker) RegisterCampaign(campaignID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.known[campaignID] = true
	t.checkKnown = true
}

// IsRegistered reports whether a campaign ID is known to the tracker.
func (t *Tracker) IsRegistered(campaignID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.known[campaignID]
}

// Apply folds one event into the tracker and returns a copy of the
// resulting record. Events for unknown campaigns are additionally logged
// to the orphan list as a data-quality warning; they are never dropped
// and never an error.
func (t *Tracker) Apply(evt tracking.Event) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.checkKnown && !t.known[evt.CampaignID] {
		t.orphans = append(t.orphans, evt)
		t.log.Warn("orphan tracking event", "campaign_id", evt.CampaignID, "event_type", string(evt.EventType))
	}

	key := recordKey{campaignID: evt.CampaignID, userID: evt.UserID}
	rec, ok := t.records[key]
	if !ok {
		rec = &Record{CampaignID: evt.CampaignID, UserID: evt.UserID}
		t.records[key] = rec
	}

	ts := evt.Timestamp
	switch evt.EventType {
	case tracking.EventSent:
		if !rec.Sent {
			rec.Sent = true
			rec.SentAt = &ts
		}
	case tracking.EventOpened:
		if !rec.Opened {
			rec.Opened = true
			rec.OpenedAt = &ts
		}
	case tracking.EventClicked:
		if !rec.Clicked {
			rec.Clicked = true
			rec.ClickedAt = &ts
			rec.ClickedURL = evt.ClickedURL
		}
	case tracking.EventReported:
		if !rec.Reported {
			rec.Reported = true
			rec.ReportedAt = &ts
		}
	}

	return *rec
}

// Replay folds a stored event stream, typically at startup.
func (t *Tracker) Replay(events []tracking.Event) {
	for _, evt := range events {
		t.Apply(evt)
	}
}

// Get returns the record for a (campaign, recipient) pair.
func (t *Tracker) Get(campaignID, userID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[recordKey{campaignID: campaignID, userID: userID}]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// CampaignRecords returns copies of all records for a campaign.
func (t *Tracker) CampaignRecords(campaignID string) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Record
	for key, rec := range t.records {
		if key.campaignID == campaignID {
			out = append(out, *rec)
		}
	}
	return out
}

// UserRecords returns copies of all records for a recipient across
// campaigns.
func (t *Tracker) UserRecords(userID string) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Record
	for key, rec := range t.records {
		if key.userID == userID {
			out = append(out, *rec)
		}
	}
	return out
}

// AllRecords returns copies of every record.
func (t *Tracker) AllRecords() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	return out
}

// Orphans returns the events flagged for unknown campaigns.
func (t *Tracker) Orphans() []tracking.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]tracking.Event, len(t.orphans))
	copy(out, t.orphans)
	return out
}
