package directory

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresProvider reads the user directory from the platform database.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider creates a directory provider over db.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// Users returns all active users.
func (p *PostgresProvider) Users(ctx context.Context) ([]User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, email, name, COALESCE(department, '')
		FROM phish_users WHERE active = true ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// UsersInDepartments returns active users in the given departments.
func (p *PostgresProvider) UsersInDepartments(ctx context.Context, departments []string) ([]User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, email, name, COALESCE(department, '')
		FROM phish_users WHERE active = true AND department = ANY($1) ORDER BY id
	`, pq.Array(departments))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// DepartmentOf returns the user→department mapping.
func (p *PostgresProvider) DepartmentOf(ctx context.Context) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, COALESCE(department, '') FROM phish_users WHERE active = true
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, dept string
		if err := rows.Scan(&id, &dept); err != nil {
			return nil, err
		}
		out[id] = dept
	}
	return out, rows.Err()
}

func scanUsers(rows *sql.Rows) ([]User, error) {
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Department); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// PostgresTraining reads training history synced from the learning
// platform.
type PostgresTraining struct {
	db *sql.DB
}

// NewPostgresTraining creates a training provider over db.
func NewPostgresTraining(db *sql.DB) *PostgresTraining {
	return &PostgresTraining{db: db}
}

// History returns one user's training history.
func (p *PostgresTraining) History(ctx context.Context, userID string) (TrainingHistory, error) {
	h := TrainingHistory{UserID: userID}
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(courses_completed, 0), last_training_at
		FROM phish_training_progress WHERE user_id = $1
	`, userID).Scan(&h.CoursesCompleted, &h.LastTrainingAt)
	if err != nil && err != sql.ErrNoRows {
		return h, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT score FROM phish_quiz_results WHERE user_id = $1 ORDER BY taken_at ASC
	`, userID)
	if err != nil {
		return h, err
	}
	defer rows.Close()
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return h, err
		}
		h.QuizScores = append(h.QuizScores, score)
	}
	return h, rows.Err()
}

// Histories returns all users with training activity.
func (p *PostgresTraining) Histories(ctx context.Context) (map[string]TrainingHistory, error) {
	out := make(map[string]TrainingHistory)

	rows, err := p.db.QueryContext(ctx, `
		SELECT user_id, COALESCE(courses_completed, 0), last_training_at
		FROM phish_training_progress
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var h TrainingHistory
		if err := rows.Scan(&h.UserID, &h.CoursesCompleted, &h.LastTrainingAt); err != nil {
			return nil, err
		}
		out[h.UserID] = h
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	quizRows, err := p.db.QueryContext(ctx, `
		SELECT user_id, score FROM phish_quiz_results ORDER BY taken_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer quizRows.Close()
	for quizRows.Next() {
		var userID string
		var score float64
		if err := quizRows.Scan(&userID, &score); err != nil {
			return nil, err
		}
		h := out[userID]
		h.UserID = userID
		h.QuizScores = append(h.QuizScores, score)
		out[userID] = h
	}
	return out, quizRows.Err()
}
