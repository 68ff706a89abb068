package analytics

import (
	"math"
	"time"

	"github.com/ignite/phishguard/internal/tracking"
)

// Classifier maps an event to zero or more named counters for one day
// bucket.
type Classifier func(evt tracking.Event) []string

// Derive computes per-day ratios from a day's counters. Implementations
// must be total: zero denominators resolve to 0, never NaN.
type Derive func(counts map[string]int) map[string]float64

// DayBucket is one calendar-day aggregation row. Days with no events are
// still present with zero counts.
type DayBucket struct {
	Date   time.Time          `json:"date"`
	Counts map[string]int     `json:"counts"`
	Rates  map[string]float64 `json:"rates,omitempty"`
}

// BucketByDay buckets events into fixed calendar-day windows over
// [start, end] inclusive. Day boundaries are local midnight in start's
// location. The result always has exactly (end.date - start.date + 1)
// rows.
func BucketByDay(events []tracking.Event, start, end time.Time, classify Classifier, derive Derive) []DayBucket {
	loc := start.Location()
	startDay := startOfDay(start, loc)
	endDay := startOfDay(end, loc)

	var buckets []DayBucket
	index := make(map[string]int)
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		index[dayKey(day)] = len(buckets)
		buckets = append(buckets, DayBucket{Date: day, Counts: make(map[string]int)})
	}

	for _, evt := range events {
		i, ok := index[dayKey(startOfDay(evt.Timestamp, loc))]
		if !ok {
			continue
		}
		for _, counter := range classify(evt) {
			buckets[i].Counts[counter]++
		}
	}

	if derive != nil {
		for i := range buckets {
			buckets[i].Rates = derive(buckets[i].Counts)
		}
	}
	return buckets
}

// DayCount returns the number of calendar days in [start, end] inclusive.
func DayCount(start, end time.Time) int {
	loc := start.Location()
	s := startOfDay(start, loc)
	e := startOfDay(end, loc)
	n := 0
	for day := s; !day.After(e); day = day.AddDate(0, 0, 1) {
		n++
	}
	return n
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func dayKey(day time.Time) string {
	return day.Format("2006-01-02")
}

// Round1 rounds to one decimal place, the precision of every exported
// rate.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Ratio returns n/d scaled to a percentage and rounded to one decimal,
// or 0 when the denominator is 0.
func Ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return Round1(float64(n) / float64(d) * 100)
}
