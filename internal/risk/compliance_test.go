package risk

import (
	"testing"
	"time"
)

func TestCompliance_Precedence(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		ts := now.AddDate(0, 0, -d)
		return &ts
	}

	tests := []struct {
		name    string
		courses int
		last    *time.Time
		want    ComplianceStatus
	}{
		{"lapsed year and no courses is overdue, not not-started", 0, daysAgo(400), ComplianceOverdue},
		{"lapsed year with courses is overdue", 3, daysAgo(400), ComplianceOverdue},
		{"renewal window", 2, daysAgo(330), ComplianceRenewalRequired},
		{"never trained is maximally stale", 0, nil, ComplianceOverdue},
		{"recent training with courses", 2, daysAgo(30), ComplianceCompliant},
		{"recent activity but zero courses", 0, daysAgo(30), ComplianceNotStarted},
		{"exactly a year is still renewal", 1, daysAgo(365), ComplianceRenewalRequired},
		{"exactly 300 days is compliant", 1, daysAgo(300), ComplianceCompliant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Compliance("u1", tt.courses, tt.last, now)
			if rec.Status != tt.want {
				t.Errorf("status = %q, want %q (days=%d)", rec.Status, tt.want, rec.DaysSinceLastTraining)
			}
		})
	}
}

func TestDaysSinceTraining(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	if got := DaysSinceTraining(nil, now); got != NeverTrainedDays {
		t.Errorf("never trained = %d, want sentinel %d", got, NeverTrainedDays)
	}

	past := now.AddDate(0, 0, -10)
	if got := DaysSinceTraining(&past, now); got != 10 {
		t.Errorf("days = %d, want 10", got)
	}

	// Clock skew: a future timestamp clamps to 0 instead of going
	// negative.
	future := now.Add(6 * time.Hour)
	if got := DaysSinceTraining(&future, now); got != 0 {
		t.Errorf("future training = %d, want 0", got)
	}
}
