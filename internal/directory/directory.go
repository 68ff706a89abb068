package directory

import (
	"context"
	"time"
)

// User is one directory entry.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// Provider supplies the user→department mapping used for cohort
// aggregation and recipient resolution. Implementations are read-only
// collaborators; the core never writes to the directory.
type Provider interface {
	// Users returns all users.
	Users(ctx context.Context) ([]User, error)
	// UsersInDepartments returns users whose department is in the set.
	UsersInDepartments(ctx context.Context, departments []string) ([]User, error)
	// DepartmentOf returns the mapping for every known user.
	DepartmentOf(ctx context.Context) (map[string]string, error)
}

// TrainingHistory is one user's externally supplied training state.
type TrainingHistory struct {
	UserID           string     `json:"user_id"`
	CoursesCompleted int        `json:"courses_completed"`
	QuizScores       []float64  `json:"quiz_scores"`
	LastTrainingAt   *time.Time `json:"last_training_at,omitempty"`
}

// AvgQuizScore returns the mean quiz score and whether the user has any
// quiz history at all. Callers apply the neutral default for users
// without history.
func (h TrainingHistory) AvgQuizScore() (float64, bool) {
	if len(h.QuizScores) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range h.QuizScores {
		sum += s
	}
	return sum / float64(len(h.QuizScores)), true
}

// TrainingProvider supplies training and quiz history from the learning
// platform. Read-only input to the scorer.
type TrainingProvider interface {
	// History returns the training history for one user.
	History(ctx context.Context, userID string) (TrainingHistory, error)
	// Histories returns histories for all users with any training or
	// quiz activity, keyed by user ID.
	Histories(ctx context.Context) (map[string]TrainingHistory, error)
}
