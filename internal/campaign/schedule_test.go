package campaign

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func mustPlan(t *testing.T, cfg ScheduleConfig, batch *BatchConfig, recipients []string, now time.Time) *DispatchPlan {
	t.Helper()
	plan, err := Plan(cfg, batch, recipients, now)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	return plan
}

func TestPlan_ImmediateSingleWave(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	plan := mustPlan(t, ScheduleConfig{Type: ScheduleImmediate}, nil,
		[]string{"u3", "u1", "u2"}, now)

	if len(plan.Waves) != 1 {
		t.Fatalf("waves = %d, want 1", len(plan.Waves))
	}
	w := plan.Waves[0]
	if !w.At.Equal(now) {
		t.Errorf("wave at = %v, want %v", w.At, now)
	}
	if got, want := w.Recipients, []string{"u1", "u2", "u3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("recipients = %v, want %v (sorted)", got, want)
	}
	if plan.OpenEnded {
		t.Error("immediate plan marked open-ended")
	}
}

func TestPlan_BatchPartition(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	recipients := []string{"u01", "u02", "u03", "u04", "u05", "u06", "u07", "u08", "u09", "u10"}
	batch := &BatchConfig{Size: 3, DelaySeconds: 60}

	plan := mustPlan(t, ScheduleConfig{Type: ScheduleImmediate}, batch, recipients, now)

	if len(plan.Waves) != 4 {
		t.Fatalf("waves = %d, want 4", len(plan.Waves))
	}
	sizes := []int{3, 3, 3, 1}
	for i, w := range plan.Waves {
		if len(w.Recipients) != sizes[i] {
			t.Errorf("wave %d size = %d, want %d", i, len(w.Recipients), sizes[i])
		}
		wantAt := now.Add(time.Duration(i) * time.Minute)
		if !w.At.Equal(wantAt) {
			t.Errorf("wave %d at = %v, want %v", i, w.At, wantAt)
		}
		if w.Batch != i {
			t.Errorf("wave %d batch index = %d", i, w.Batch)
		}
	}

	// No recipient appears twice, none dropped.
	seen := map[string]bool{}
	for _, w := range plan.Waves {
		for _, r := range w.Recipients {
			if seen[r] {
				t.Errorf("recipient %s in multiple waves", r)
			}
			seen[r] = true
		}
	}
	if len(seen) != len(recipients) {
		t.Errorf("covered %d recipients, want %d", len(seen), len(recipients))
	}
}

func TestPlan_Deterministic(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{Type: ScheduleImmediate}
	batch := &BatchConfig{Size: 2, DelaySeconds: 30}

	a := mustPlan(t, cfg, batch, []string{"c", "a", "d", "b"}, now)
	b := mustPlan(t, cfg, batch, []string{"b", "d", "a", "c"}, now)

	if !reflect.DeepEqual(a, b) {
		t.Errorf("plans differ for identical input sets:\n%+v\n%+v", a, b)
	}
}

func TestPlan_WeeklyFourteenDayWindow(t *testing.T) {
	// Monday anchor, Mon/Wed/Fri for exactly 14 days: each of the three
	// weekdays falls twice in the window, all strictly after the anchor.
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) // Monday
	end := now.AddDate(0, 0, 14)
	cfg := ScheduleConfig{
		Type:       ScheduleRecurring,
		Pattern:    PatternWeekly,
		DaysOfWeek: []int{1, 3, 5},
		EndDate:    &end,
	}

	plan := mustPlan(t, cfg, nil, []string{"u1"}, now)

	if len(plan.Waves) != 6 {
		t.Fatalf("waves = %d, want 6", len(plan.Waves))
	}
	wantDays := []int{7, 9, 12, 14, 16, 19}
	for i, w := range plan.Waves {
		if w.At.Day() != wantDays[i] {
			t.Errorf("occurrence %d on day %d, want %d", i, w.At.Day(), wantDays[i])
		}
		if w.At.Hour() != 9 {
			t.Errorf("occurrence %d at hour %d, want anchor time-of-day", i, w.At.Hour())
		}
	}
	if plan.OpenEnded {
		t.Error("bounded recurrence marked open-ended")
	}
}

func TestPlan_DailyEndDateInclusive(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	// End date at midnight of the third day still includes that day's
	// 09:00 occurrence.
	end := time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{Type: ScheduleRecurring, Pattern: PatternDaily, EndDate: &end}

	plan := mustPlan(t, cfg, nil, []string{"u1"}, now)

	if len(plan.Waves) != 3 {
		t.Fatalf("waves = %d, want 3 (Jan 6, 7 and 8)", len(plan.Waves))
	}
	last := plan.Waves[2].At
	if last.Day() != 8 || last.Hour() != 9 {
		t.Errorf("last occurrence = %v, want Jan 8 09:00", last)
	}
}

func TestPlan_MonthlySkipsShortMonths(t *testing.T) {
	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{Type: ScheduleRecurring, Pattern: PatternMonthly, EndDate: &end}

	plan := mustPlan(t, cfg, nil, []string{"u1"}, now)

	var months []time.Month
	for _, w := range plan.Waves {
		months = append(months, w.At.Month())
		if w.At.Day() != 31 {
			t.Errorf("occurrence on day %d, want 31", w.At.Day())
		}
	}
	want := []time.Month{time.March, time.May}
	if !reflect.DeepEqual(months, want) {
		t.Errorf("months = %v, want %v (Feb, Apr, Jun lack day 31)", months, want)
	}
}

func TestPlan_OpenEndedTruncatedAtHorizon(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{Type: ScheduleRecurring, Pattern: PatternDaily}

	plan := mustPlan(t, cfg, nil, []string{"u1"}, now)

	if !plan.OpenEnded {
		t.Error("open-ended recurrence not flagged")
	}
	if len(plan.Waves) != DefaultPlanHorizonDays {
		t.Errorf("waves = %d, want %d (one per day inside horizon)", len(plan.Waves), DefaultPlanHorizonDays)
	}
}

func TestPlan_InvalidInputs(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	tests := []struct {
		name  string
		cfg   ScheduleConfig
		batch *BatchConfig
	}{
		{"unknown type", ScheduleConfig{Type: "yearly"}, nil},
		{"scheduled in past", ScheduleConfig{Type: ScheduleAt, At: past}, nil},
		{"scheduled missing time", ScheduleConfig{Type: ScheduleAt}, nil},
		{"bad timezone", ScheduleConfig{Type: ScheduleAt, At: now.Add(time.Hour), Timezone: "Mars/Olympus"}, nil},
		{"weekly no days", ScheduleConfig{Type: ScheduleRecurring, Pattern: PatternWeekly}, nil},
		{"weekly day out of range", ScheduleConfig{Type: ScheduleRecurring, Pattern: PatternWeekly, DaysOfWeek: []int{7}}, nil},
		{"unknown pattern", ScheduleConfig{Type: ScheduleRecurring, Pattern: "fortnightly"}, nil},
		{"batch size zero", ScheduleConfig{Type: ScheduleImmediate}, &BatchConfig{Size: 0, DelaySeconds: 60}},
		{"batch size too large", ScheduleConfig{Type: ScheduleImmediate}, &BatchConfig{Size: 1001, DelaySeconds: 60}},
		{"batch delay zero", ScheduleConfig{Type: ScheduleImmediate}, &BatchConfig{Size: 10, DelaySeconds: 0}},
		{"batch delay too large", ScheduleConfig{Type: ScheduleImmediate}, &BatchConfig{Size: 10, DelaySeconds: 3601}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.cfg, tt.batch, []string{"u1"}, now)
			if !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("Plan() error = %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func TestFirstDispatch(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	got, err := FirstDispatch(ScheduleConfig{Type: ScheduleImmediate}, now)
	if err != nil {
		t.Fatalf("FirstDispatch() error = %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("immediate first dispatch = %v, want now", got)
	}

	at := now.Add(2 * time.Hour)
	got, err = FirstDispatch(ScheduleConfig{Type: ScheduleAt, At: at}, now)
	if err != nil {
		t.Fatalf("FirstDispatch() error = %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("scheduled first dispatch = %v, want %v", got, at)
	}
}

func TestResolveScheduledAt_Timezone(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	cfg := ScheduleConfig{
		Type:     ScheduleAt,
		At:       time.Date(2026, 1, 6, 8, 30, 0, 0, time.UTC),
		Timezone: "America/New_York",
	}

	at, err := ResolveScheduledAt(cfg, now)
	if err != nil {
		t.Fatalf("ResolveScheduledAt() error = %v", err)
	}
	loc, _ := time.LoadLocation("America/New_York")
	want := time.Date(2026, 1, 6, 8, 30, 0, 0, loc)
	if !at.Equal(want) {
		t.Errorf("resolved = %v, want %v", at, want)
	}
}
