package analytics

import (
	"sort"
	"time"

	"github.com/ignite/phishguard/internal/funnel"
	"github.com/ignite/phishguard/internal/tracking"
)

// CampaignStats holds the per-campaign funnel counts and rates. Every
// field is a scalar so stats rows export directly to CSV.
type CampaignStats struct {
	CampaignID         string  `json:"campaign_id"`
	EmailsSent         int     `json:"emails_sent"`
	EmailsOpened       int     `json:"emails_opened"`
	EmailsClicked      int     `json:"emails_clicked"`
	EmailsReported     int     `json:"emails_reported"`
	OpenRate           float64 `json:"open_rate"`
	ClickRate          float64 `json:"click_rate"`
	ReportRate         float64 `json:"report_rate"`
	VulnerabilityScore float64 `json:"vulnerability_score"`
}

// ComputeCampaignStats derives counts and rates from the campaign's
// interaction records. Rates resolve to 0 on a zero denominator; the
// report rate is reports over clicks, not sends, so it measures how often
// a lure that landed was also flagged.
func ComputeCampaignStats(campaignID string, records []funnel.Record) CampaignStats {
	stats := CampaignStats{CampaignID: campaignID}
	for _, rec := range records {
		if rec.Sent {
			stats.EmailsSent++
		}
		if rec.Opened {
			stats.EmailsOpened++
		}
		if rec.Clicked {
			stats.EmailsClicked++
		}
		if rec.Reported {
			stats.EmailsReported++
		}
	}
	stats.OpenRate = Ratio(stats.EmailsOpened, stats.EmailsSent)
	stats.ClickRate = Ratio(stats.EmailsClicked, stats.EmailsSent)
	stats.ReportRate = Ratio(stats.EmailsReported, stats.EmailsClicked)
	stats.VulnerabilityScore = VulnerabilityScore(stats.ClickRate, stats.ReportRate)
	return stats
}

// VulnerabilityScore condenses click and report behavior into one number
// in [0,100]: click volume raises it, reporting partially offsets it.
func VulnerabilityScore(clickRate, reportRate float64) float64 {
	score := clickRate - 0.5*reportRate
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return Round1(score)
}

// DepartmentStats is CampaignStats restricted to one department's
// recipients.
type DepartmentStats struct {
	Department string `json:"department"`
	CampaignStats
}

// ComputeDepartmentStats recomputes the funnel rates per department.
// Departments are discovered from the directory mapping, not a fixed
// enumeration; recipients missing from the mapping are grouped under
// "unassigned". Results are sorted by department name.
func ComputeDepartmentStats(campaignID string, records []funnel.Record, departmentOf map[string]string) []DepartmentStats {
	byDept := make(map[string][]funnel.Record)
	for _, rec := range records {
		dept := departmentOf[rec.UserID]
		if dept == "" {
			dept = "unassigned"
		}
		byDept[dept] = append(byDept[dept], rec)
	}

	out := make([]DepartmentStats, 0, len(byDept))
	for dept, recs := range byDept {
		out = append(out, DepartmentStats{
			Department:    dept,
			CampaignStats: ComputeCampaignStats(campaignID, recs),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out
}

// TrendPoint is one day of a campaign trend series.
type TrendPoint struct {
	Date           time.Time `json:"date"`
	EmailsSent     int       `json:"emails_sent"`
	EmailsOpened   int       `json:"emails_opened"`
	EmailsClicked  int       `json:"emails_clicked"`
	EmailsReported int       `json:"emails_reported"`
	OpenRate       float64   `json:"open_rate"`
	ClickRate      float64   `json:"click_rate"`
}

// CampaignTrend buckets a campaign's events into a per-day series over
// [start, end] inclusive, with per-day open and click rates.
func CampaignTrend(events []tracking.Event, start, end time.Time) []TrendPoint {
	classify := func(evt tracking.Event) []string {
		if !evt.EventType.Valid() {
			return nil
		}
		return []string{string(evt.EventType)}
	}
	derive := func(counts map[string]int) map[string]float64 {
		return map[string]float64{
			"open_rate":  Ratio(counts[string(tracking.EventOpened)], counts[string(tracking.EventSent)]),
			"click_rate": Ratio(counts[string(tracking.EventClicked)], counts[string(tracking.EventSent)]),
		}
	}

	buckets := BucketByDay(events, start, end, classify, derive)
	out := make([]TrendPoint, len(buckets))
	for i, b := range buckets {
		out[i] = TrendPoint{
			Date:           b.Date,
			EmailsSent:     b.Counts[string(tracking.EventSent)],
			EmailsOpened:   b.Counts[string(tracking.EventOpened)],
			EmailsClicked:  b.Counts[string(tracking.EventClicked)],
			EmailsReported: b.Counts[string(tracking.EventReported)],
			OpenRate:       b.Rates["open_rate"],
			ClickRate:      b.Rates["click_rate"],
		}
	}
	return out
}

// LinkCount is one entry of the top-clicked-link ranking.
type LinkCount struct {
	URL    string `json:"url"`
	Clicks int    `json:"clicks"`
}

// TopClickedLinks groups clicked events by landing URL and ranks them by
// click count, descending. Clicks without per-link tracking fall back to
// the template-level reference. Ties break alphabetically so the ranking
// is deterministic.
func TopClickedLinks(events []tracking.Event, templateRef string) []LinkCount {
	counts := make(map[string]int)
	for _, evt := range events {
		if evt.EventType != tracking.EventClicked {
			continue
		}
		url := evt.ClickedURL
		if url == "" {
			url = templateRef
		}
		counts[url]++
	}

	out := make([]LinkCount, 0, len(counts))
	for url, n := range counts {
		out = append(out, LinkCount{URL: url, Clicks: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Clicks != out[j].Clicks {
			return out[i].Clicks > out[j].Clicks
		}
		return out[i].URL < out[j].URL
	})
	return out
}
