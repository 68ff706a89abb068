package campaign

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidSchedule is returned when a schedule or batch config fails
// validation at plan-construction time. Invalid input is rejected here,
// never silently coerced.
var ErrInvalidSchedule = errors.New("invalid schedule")

// DefaultPlanHorizonDays bounds how far ahead an open-ended recurring
// schedule is materialized in a single planning pass.
const DefaultPlanHorizonDays = 30

// DispatchWave is one (instant, recipient-batch) entry of a dispatch plan.
// Sequence is the occurrence index for recurring schedules; Batch is the
// sub-batch index within the occurrence.
type DispatchWave struct {
	At         time.Time `json:"at"`
	Sequence   int       `json:"sequence"`
	Batch      int       `json:"batch"`
	Recipients []string  `json:"recipients"`
}

// DispatchPlan is the scheduler's output, consumed by the delivery
// collaborator. Planning is pure: given identical inputs the plan is
// identical, so re-running it for audit is deterministic.
type DispatchPlan struct {
	GeneratedAt time.Time `json:"generated_at"`
	// OpenEnded marks a recurring schedule without an end date whose
	// waves were truncated at the planning horizon.
	OpenEnded bool           `json:"open_ended"`
	Waves     []DispatchWave `json:"waves"`
}

// Plan turns a schedule config, optional batch config and recipient set
// into a concrete dispatch plan relative to now. It has no side effects.
func Plan(cfg ScheduleConfig, batch *BatchConfig, recipients []string, now time.Time) (*DispatchPlan, error) {
	return PlanWithHorizon(cfg, batch, recipients, now, DefaultPlanHorizonDays)
}

// PlanWithHorizon is Plan with an explicit horizon (in days) for
// open-ended recurring schedules.
func PlanWithHorizon(cfg ScheduleConfig, batch *BatchConfig, recipients []string, now time.Time, horizonDays int) (*DispatchPlan, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}

	instants, openEnded, err := dispatchInstants(cfg, now, horizonDays)
	if err != nil {
		return nil, err
	}

	// Sorted copy so batch membership is stable across runs.
	sorted := make([]string, len(recipients))
	copy(sorted, recipients)
	sort.Strings(sorted)

	plan := &DispatchPlan{GeneratedAt: now, OpenEnded: openEnded}
	for seq, at := range instants {
		for b, wave := range partition(sorted, batch) {
			offset := time.Duration(0)
			if batch != nil {
				offset = time.Duration(b*batch.DelaySeconds) * time.Second
			}
			plan.Waves = append(plan.Waves, DispatchWave{
				At:         at.Add(offset),
				Sequence:   seq,
				Batch:      b,
				Recipients: wave,
			})
		}
	}
	return plan, nil
}

// FirstDispatch resolves the first dispatch instant of a schedule,
// validating it the same way Plan does. Used at launch time to decide
// whether the campaign starts active or scheduled.
func FirstDispatch(cfg ScheduleConfig, now time.Time) (time.Time, error) {
	instants, _, err := dispatchInstants(cfg, now, DefaultPlanHorizonDays)
	if err != nil {
		return time.Time{}, err
	}
	if len(instants) == 0 {
		return time.Time{}, fmt.Errorf("%w: schedule yields no dispatches", ErrInvalidSchedule)
	}
	return instants[0], nil
}

func validateBatch(batch *BatchConfig) error {
	if batch == nil {
		return nil
	}
	if batch.Size < 1 || batch.Size > 1000 {
		return fmt.Errorf("%w: batch size %d outside [1,1000]", ErrInvalidSchedule, batch.Size)
	}
	if batch.DelaySeconds < 1 || batch.DelaySeconds > 3600 {
		return fmt.Errorf("%w: batch delay %ds outside [1,3600]", ErrInvalidSchedule, batch.DelaySeconds)
	}
	return nil
}

// partition splits sorted recipients into waves of batch.Size. With no
// batch config everything goes out as a single wave.
func partition(sorted []string, batch *BatchConfig) [][]string {
	if len(sorted) == 0 {
		return nil
	}
	if batch == nil {
		return [][]string{sorted}
	}
	var waves [][]string
	for i := 0; i < len(sorted); i += batch.Size {
		end := i + batch.Size
		if end > len(sorted) {
			end = len(sorted)
		}
		waves = append(waves, sorted[i:end])
	}
	return waves
}

func dispatchInstants(cfg ScheduleConfig, now time.Time, horizonDays int) ([]time.Time, bool, error) {
	switch cfg.Type {
	case ScheduleImmediate:
		return []time.Time{now}, false, nil

	case ScheduleAt:
		at, err := ResolveScheduledAt(cfg, now)
		if err != nil {
			return nil, false, err
		}
		return []time.Time{at}, false, nil

	case ScheduleRecurring:
		it, err := NewOccurrences(cfg, now)
		if err != nil {
			return nil, false, err
		}
		openEnded := cfg.EndDate == nil
		horizon := now.AddDate(0, 0, horizonDays)
		var instants []time.Time
		for {
			t, ok := it.Next()
			if !ok {
				break
			}
			if openEnded && t.After(horizon) {
				break
			}
			instants = append(instants, t)
		}
		return instants, openEnded, nil

	default:
		return nil, false, fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, cfg.Type)
	}
}

// ResolveScheduledAt resolves a one-shot schedule's wall-clock time in its
// timezone and rejects instants that are not strictly in the future.
func ResolveScheduledAt(cfg ScheduleConfig, now time.Time) (time.Time, error) {
	if cfg.At.IsZero() {
		return time.Time{}, fmt.Errorf("%w: scheduled time is required", ErrInvalidSchedule)
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, cfg.Timezone)
		}
	}
	at := time.Date(cfg.At.Year(), cfg.At.Month(), cfg.At.Day(),
		cfg.At.Hour(), cfg.At.Minute(), cfg.At.Second(), 0, loc)
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("%w: scheduled time %s is not in the future", ErrInvalidSchedule, at.Format(time.RFC3339))
	}
	return at, nil
}

// Occurrences lazily generates the dispatch instants of a recurring
// schedule, strictly after the anchor instant, at the anchor's
// time-of-day. The sequence terminates at the end date if present and is
// otherwise unbounded; callers decide how far to materialize.
type Occurrences struct {
	pattern RecurrencePattern
	days    map[time.Weekday]bool
	end     *time.Time
	anchor  time.Time
	cur     time.Time
	months  int
}

// NewOccurrences validates the recurring config and returns an iterator
// anchored at after.
func NewOccurrences(cfg ScheduleConfig, after time.Time) (*Occurrences, error) {
	it := &Occurrences{pattern: cfg.Pattern, anchor: after, cur: after}

	switch cfg.Pattern {
	case PatternDaily, PatternMonthly:
	case PatternWeekly:
		if len(cfg.DaysOfWeek) == 0 {
			return nil, fmt.Errorf("%w: weekly recurrence requires days of week", ErrInvalidSchedule)
		}
		it.days = make(map[time.Weekday]bool, len(cfg.DaysOfWeek))
		for _, d := range cfg.DaysOfWeek {
			if d < 0 || d > 6 {
				return nil, fmt.Errorf("%w: day of week %d outside [0,6]", ErrInvalidSchedule, d)
			}
			it.days[time.Weekday(d)] = true
		}
	default:
		return nil, fmt.Errorf("%w: unknown recurrence pattern %q", ErrInvalidSchedule, cfg.Pattern)
	}

	if cfg.EndDate != nil {
		// The end date is inclusive through the end of its calendar day.
		e := cfg.EndDate.In(after.Location())
		end := time.Date(e.Year(), e.Month(), e.Day(), 23, 59, 59, 0, after.Location())
		if end.Before(*cfg.EndDate) {
			end = *cfg.EndDate
		}
		it.end = &end
	}
	return it, nil
}

// Next returns the next dispatch instant, or false when the sequence has
// reached its end date.
func (o *Occurrences) Next() (time.Time, bool) {
	var next time.Time
	switch o.pattern {
	case PatternDaily:
		next = o.cur.AddDate(0, 0, 1)

	case PatternWeekly:
		next = o.cur
		for {
			next = next.AddDate(0, 0, 1)
			if o.days[next.Weekday()] {
				break
			}
		}

	case PatternMonthly:
		// Months lacking the anchor's calendar day are skipped rather
		// than rolled over into the following month.
		for {
			o.months++
			candidate := o.anchor.AddDate(0, o.months, 0)
			if candidate.Day() == o.anchor.Day() {
				next = candidate
				break
			}
			if o.months > 48 {
				return time.Time{}, false
			}
		}
	}

	if o.end != nil && next.After(*o.end) {
		return time.Time{}, false
	}
	o.cur = next
	return next, true
}
