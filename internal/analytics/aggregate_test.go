package analytics

import (
	"reflect"
	"testing"
	"time"

	"github.com/ignite/phishguard/internal/funnel"
	"github.com/ignite/phishguard/internal/tracking"
)

// buildRecords fabricates a funnel where the first `opened` of `sent`
// recipients opened, the first `clicked` clicked, and so on down the
// funnel.
func buildRecords(sent, opened, clicked, reported int) []funnel.Record {
	records := make([]funnel.Record, sent)
	for i := range records {
		records[i] = funnel.Record{
			CampaignID: "c1",
			UserID:     userID(i),
			Sent:       true,
			Opened:     i < opened,
			Clicked:    i < clicked,
			Reported:   i < reported,
		}
	}
	return records
}

func userID(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestComputeCampaignStats(t *testing.T) {
	stats := ComputeCampaignStats("c1", buildRecords(100, 40, 25, 10))

	if stats.EmailsSent != 100 || stats.EmailsOpened != 40 || stats.EmailsClicked != 25 || stats.EmailsReported != 10 {
		t.Fatalf("counts = %d/%d/%d/%d", stats.EmailsSent, stats.EmailsOpened, stats.EmailsClicked, stats.EmailsReported)
	}
	if stats.OpenRate != 40.0 {
		t.Errorf("open rate = %v, want 40.0", stats.OpenRate)
	}
	if stats.ClickRate != 25.0 {
		t.Errorf("click rate = %v, want 25.0", stats.ClickRate)
	}
	// Reports over clicks: 10 of the 25 clickers also reported.
	if stats.ReportRate != 40.0 {
		t.Errorf("report rate = %v, want 40.0", stats.ReportRate)
	}
	if stats.VulnerabilityScore != 5.0 {
		t.Errorf("vulnerability = %v, want 5.0", stats.VulnerabilityScore)
	}
}

func TestComputeCampaignStats_Empty(t *testing.T) {
	stats := ComputeCampaignStats("c1", nil)
	if stats.OpenRate != 0 || stats.ClickRate != 0 || stats.ReportRate != 0 || stats.VulnerabilityScore != 0 {
		t.Errorf("empty campaign rates should all be 0, got %+v", stats)
	}
}

func TestVulnerabilityScore_Bounds(t *testing.T) {
	tests := []struct {
		clickRate, reportRate, want float64
	}{
		{0, 0, 0},
		{25, 40, 5},
		{10, 100, 0},   // heavy reporting floors at 0
		{100, 0, 100},
		{50, 20, 40},
	}
	for _, tt := range tests {
		if got := VulnerabilityScore(tt.clickRate, tt.reportRate); got != tt.want {
			t.Errorf("VulnerabilityScore(%v, %v) = %v, want %v", tt.clickRate, tt.reportRate, got, tt.want)
		}
	}
}

func TestComputeDepartmentStats(t *testing.T) {
	records := []funnel.Record{
		{UserID: "u1", Sent: true, Clicked: true},
		{UserID: "u2", Sent: true},
		{UserID: "u3", Sent: true, Clicked: true},
		{UserID: "u4", Sent: true}, // not in the mapping
	}
	departmentOf := map[string]string{
		"u1": "engineering",
		"u2": "engineering",
		"u3": "sales",
	}

	stats := ComputeDepartmentStats("c1", records, departmentOf)

	var names []string
	for _, d := range stats {
		names = append(names, d.Department)
	}
	want := []string{"engineering", "sales", "unassigned"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("departments = %v, want %v", names, want)
	}

	eng := stats[0]
	if eng.EmailsSent != 2 || eng.EmailsClicked != 1 {
		t.Errorf("engineering = %d sent / %d clicked", eng.EmailsSent, eng.EmailsClicked)
	}
	if eng.ClickRate != 50.0 {
		t.Errorf("engineering click rate = %v, want 50.0", eng.ClickRate)
	}
}

func TestCampaignTrend(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	events := []tracking.Event{
		{EventType: tracking.EventSent, CampaignID: "c1", UserID: "u1", Timestamp: start.Add(9 * time.Hour)},
		{EventType: tracking.EventSent, CampaignID: "c1", UserID: "u2", Timestamp: start.Add(9 * time.Hour)},
		{EventType: tracking.EventOpened, CampaignID: "c1", UserID: "u1", Timestamp: start.Add(10 * time.Hour)},
		{EventType: tracking.EventClicked, CampaignID: "c1", UserID: "u1", Timestamp: start.AddDate(0, 0, 1)},
	}

	points := CampaignTrend(events, start, end)

	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	if points[0].EmailsSent != 2 || points[0].EmailsOpened != 1 {
		t.Errorf("day 0 = %d sent / %d opened", points[0].EmailsSent, points[0].EmailsOpened)
	}
	if points[0].OpenRate != 50.0 {
		t.Errorf("day 0 open rate = %v, want 50.0", points[0].OpenRate)
	}
	if points[1].EmailsClicked != 1 {
		t.Errorf("day 1 clicks = %d, want 1", points[1].EmailsClicked)
	}
	// Quiet trailing day still has a row.
	if points[2].EmailsSent != 0 || points[2].OpenRate != 0 {
		t.Errorf("day 2 should be all zeros, got %+v", points[2])
	}
}

func TestTopClickedLinks(t *testing.T) {
	events := []tracking.Event{
		{EventType: tracking.EventClicked, ClickedURL: "https://a.example.com"},
		{EventType: tracking.EventClicked, ClickedURL: "https://b.example.com"},
		{EventType: tracking.EventClicked, ClickedURL: "https://b.example.com"},
		{EventType: tracking.EventClicked}, // no per-link tracking
		{EventType: tracking.EventOpened, ClickedURL: "https://a.example.com"}, // not a click
	}

	links := TopClickedLinks(events, "template-7")

	want := []LinkCount{
		{URL: "https://b.example.com", Clicks: 2},
		{URL: "https://a.example.com", Clicks: 1},
		{URL: "template-7", Clicks: 1},
	}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}
}
