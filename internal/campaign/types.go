package campaign

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Campaign status constants. Completed and cancelled are terminal.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// TargetAll is the target-group token selecting every user in the directory.
const TargetAll = "all"

// ScheduleType discriminates the schedule union.
type ScheduleType string

const (
	ScheduleImmediate ScheduleType = "immediate"
	ScheduleAt        ScheduleType = "scheduled"
	ScheduleRecurring ScheduleType = "recurring"
)

// RecurrencePattern is the cadence of a recurring schedule.
type RecurrencePattern string

const (
	PatternDaily   RecurrencePattern = "daily"
	PatternWeekly  RecurrencePattern = "weekly"
	PatternMonthly RecurrencePattern = "monthly"
)

// ScheduleConfig describes when a campaign dispatches. Type selects which
// fields apply: "scheduled" uses At+Timezone, "recurring" uses Pattern,
// DaysOfWeek (weekly only, 0=Sunday) and the optional EndDate. A nil
// EndDate means the recurrence runs until explicitly cancelled.
type ScheduleConfig struct {
	Type       ScheduleType      `json:"type" yaml:"type"`
	At         time.Time         `json:"at,omitempty" yaml:"at,omitempty"`
	Timezone   string            `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Pattern    RecurrencePattern `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	DaysOfWeek []int             `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty"`
	EndDate    *time.Time        `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

// Value implements driver.Valuer so the config can live in a JSONB column.
func (s ScheduleConfig) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ScheduleConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("schedule config: unsupported scan type %T", value)
	}
	return json.Unmarshal(b, s)
}

// BatchConfig splits a dispatch into waves of Size recipients separated by
// DelaySeconds. Size must be in [1,1000] and DelaySeconds in [1,3600].
type BatchConfig struct {
	Size         int `json:"batch_size" yaml:"batch_size"`
	DelaySeconds int `json:"batch_delay_seconds" yaml:"batch_delay_seconds"`
}

// Value implements driver.Valuer.
func (b BatchConfig) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner.
func (b *BatchConfig) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	raw, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("batch config: unsupported scan type %T", value)
	}
	return json.Unmarshal(raw, b)
}

// Campaign is a simulated phishing campaign. Once launched it is never
// deleted; completed campaigns remain as the historical record.
type Campaign struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	TemplateID   string         `json:"template_id"`
	TargetGroups []string       `json:"target_groups"`
	Schedule     ScheduleConfig `json:"schedule"`
	Batch        *BatchConfig   `json:"batch,omitempty"`
	Status       string         `json:"status"`
	LaunchedAt   *time.Time     `json:"launched_at,omitempty"`
	// NextDispatchAt is the next planned dispatch instant for scheduled
	// and recurring campaigns, maintained by the scheduler worker.
	NextDispatchAt *time.Time `json:"next_dispatch_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TargetsAll reports whether the campaign targets the whole directory
// rather than a set of departments.
func (c *Campaign) TargetsAll() bool {
	for _, g := range c.TargetGroups {
		if g == TargetAll {
			return true
		}
	}
	return false
}

// Terminal reports whether the campaign is in a terminal status.
func (c *Campaign) Terminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusCancelled
}
