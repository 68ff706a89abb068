package risk

import "time"

// ComplianceStatus is the categorical training-recency state of a user.
type ComplianceStatus string

const (
	ComplianceNotStarted      ComplianceStatus = "not_started"
	ComplianceCompliant       ComplianceStatus = "compliant"
	ComplianceRenewalRequired ComplianceStatus = "renewal_required"
	ComplianceOverdue         ComplianceStatus = "overdue"
	ComplianceNA              ComplianceStatus = "n/a"
)

// NeverTrainedDays is the sentinel for users with no training history.
// It sits past the overdue threshold on purpose: a user who never
// trained is treated as maximally stale.
const NeverTrainedDays = 999

// ComplianceRecord is the derived per-user compliance state.
type ComplianceRecord struct {
	UserID                string           `json:"user_id"`
	CoursesCompleted      int              `json:"courses_completed"`
	LastTrainingAt        *time.Time       `json:"last_training_at,omitempty"`
	DaysSinceLastTraining int              `json:"days_since_last_training"`
	Status                ComplianceStatus `json:"status"`
}

// DaysSinceTraining returns whole days since the last training event, or
// the never-trained sentinel.
func DaysSinceTraining(lastTrainingAt *time.Time, now time.Time) int {
	if lastTrainingAt == nil {
		return NeverTrainedDays
	}
	days := int(now.Sub(*lastTrainingAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Compliance derives a user's compliance record. Precedence is fixed:
// overdue is checked before anything else, so a long-lapsed user with
// zero completed courses is overdue, never not-started.
func Compliance(userID string, coursesCompleted int, lastTrainingAt *time.Time, now time.Time) ComplianceRecord {
	days := DaysSinceTraining(lastTrainingAt, now)
	rec := ComplianceRecord{
		UserID:                userID,
		CoursesCompleted:      coursesCompleted,
		LastTrainingAt:        lastTrainingAt,
		DaysSinceLastTraining: days,
	}

	switch {
	case days > 365:
		rec.Status = ComplianceOverdue
	case days > 300:
		rec.Status = ComplianceRenewalRequired
	case coursesCompleted > 0:
		rec.Status = ComplianceCompliant
	default:
		rec.Status = ComplianceNotStarted
	}
	return rec
}
