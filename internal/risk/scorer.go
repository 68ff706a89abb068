package risk

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/phishguard/internal/analytics"
	"github.com/ignite/phishguard/internal/directory"
	"github.com/ignite/phishguard/internal/funnel"
	"github.com/ignite/phishguard/internal/tracking"
)

// UserRisk is one row of the per-user risk view. All fields are scalars
// for the export surface.
type UserRisk struct {
	UserID        string  `json:"user_id"`
	Department    string  `json:"department"`
	EmailsSent    int     `json:"emails_sent"`
	EmailsClicked int     `json:"emails_clicked"`
	ClickRate     float64 `json:"click_rate"`
	Score         float64 `json:"score"`
	Bucket        Bucket  `json:"bucket"`
}

// DepartmentRisk is one row of the department risk view.
type DepartmentRisk struct {
	Department     string  `json:"department"`
	Users          int     `json:"users"`
	PhishingClicks int     `json:"phishing_clicks"`
	AvgQuizScore   float64 `json:"avg_quiz_score"`
	Bucket         Bucket  `json:"bucket"`
}

// Scorer combines funnel state with externally supplied training history
// into risk and compliance views. All score computation delegates to the
// pure functions in this package; the scorer only assembles inputs from
// its collaborators.
type Scorer struct {
	directory directory.Provider
	training  directory.TrainingProvider

	userPolicy UserRiskPolicy
	deptPolicy DepartmentRiskPolicy
}

// NewScorer creates a scorer over the directory and training
// collaborators.
func NewScorer(dir directory.Provider, training directory.TrainingProvider) *Scorer {
	return &Scorer{directory: dir, training: training}
}

// UserRiskFor scores a single user from their interaction records across
// campaigns. A user with no records gets the neutral default: zero
// clicks, low bucket.
func (s *Scorer) UserRiskFor(ctx context.Context, userID string, records []funnel.Record) (UserRisk, error) {
	history, err := s.training.History(ctx, userID)
	if err != nil {
		return UserRisk{}, err
	}

	sent, clicked := countSentClicked(records)
	clickRate := analytics.Ratio(clicked, sent)

	avgQuiz, hasQuiz := history.AvgQuizScore()
	if !hasQuiz {
		avgQuiz = DefaultQuizScore
	}

	depts, err := s.directory.DepartmentOf(ctx)
	if err != nil {
		return UserRisk{}, err
	}

	return UserRisk{
		UserID:        userID,
		Department:    depts[userID],
		EmailsSent:    sent,
		EmailsClicked: clicked,
		ClickRate:     clickRate,
		Score:         UserScore(history.CoursesCompleted, avgQuiz, clicked),
		Bucket:        s.userPolicy.Bucket(clicked, clickRate),
	}, nil
}

// UserLeaderboard scores every user with interaction records, sorted by
// score descending (riskiest first).
func (s *Scorer) UserLeaderboard(ctx context.Context, records []funnel.Record) ([]UserRisk, error) {
	depts, err := s.directory.DepartmentOf(ctx)
	if err != nil {
		return nil, err
	}
	histories, err := s.training.Histories(ctx)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]funnel.Record)
	for _, rec := range records {
		byUser[rec.UserID] = append(byUser[rec.UserID], rec)
	}

	out := make([]UserRisk, 0, len(byUser))
	for userID, recs := range byUser {
		sent, clicked := countSentClicked(recs)
		clickRate := analytics.Ratio(clicked, sent)

		history := histories[userID]
		avgQuiz, hasQuiz := history.AvgQuizScore()
		if !hasQuiz {
			avgQuiz = DefaultQuizScore
		}

		out = append(out, UserRisk{
			UserID:        userID,
			Department:    depts[userID],
			EmailsSent:    sent,
			EmailsClicked: clicked,
			ClickRate:     clickRate,
			Score:         UserScore(history.CoursesCompleted, avgQuiz, clicked),
			Bucket:        s.userPolicy.Bucket(clicked, clickRate),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// DepartmentRisks scores every department discovered from the directory
// mapping. Departments with no recipients get the neutral default: zero
// clicks and, without quiz history, the neutral quiz score, which lands
// them in the low bucket.
func (s *Scorer) DepartmentRisks(ctx context.Context, records []funnel.Record) ([]DepartmentRisk, error) {
	depts, err := s.directory.DepartmentOf(ctx)
	if err != nil {
		return nil, err
	}
	histories, err := s.training.Histories(ctx)
	if err != nil {
		return nil, err
	}

	type deptAgg struct {
		users   map[string]bool
		clicks  int
		quizSum float64
		quizN   int
	}
	agg := make(map[string]*deptAgg)
	deptFor := func(name string) *deptAgg {
		if name == "" {
			name = "unassigned"
		}
		a, ok := agg[name]
		if !ok {
			a = &deptAgg{users: make(map[string]bool)}
			agg[name] = a
		}
		return a
	}

	for userID, dept := range depts {
		a := deptFor(dept)
		a.users[userID] = true
		if history, ok := histories[userID]; ok {
			if avg, has := history.AvgQuizScore(); has {
				a.quizSum += avg
				a.quizN++
			}
		}
	}
	for _, rec := range records {
		if rec.Clicked {
			deptFor(depts[rec.UserID]).clicks++
		}
	}

	names := make([]string, 0, len(agg))
	for name := range agg {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DepartmentRisk, 0, len(names))
	for _, name := range names {
		a := agg[name]
		avgQuiz := DefaultQuizScore
		if a.quizN > 0 {
			avgQuiz = a.quizSum / float64(a.quizN)
		}
		out = append(out, DepartmentRisk{
			Department:     name,
			Users:          len(a.users),
			PhishingClicks: a.clicks,
			AvgQuizScore:   analytics.Round1(avgQuiz),
			Bucket:         s.deptPolicy.Bucket(a.clicks, avgQuiz),
		})
	}
	return out, nil
}

// OrganizationRisk computes the org-wide headline score from the full
// record set and event log.
func (s *Scorer) OrganizationRisk(ctx context.Context, records []funnel.Record, events []tracking.Event) (OrgScore, error) {
	users, err := s.directory.Users(ctx)
	if err != nil {
		return OrgScore{}, err
	}
	histories, err := s.training.Histories(ctx)
	if err != nil {
		return OrgScore{}, err
	}

	clicked := 0
	for _, rec := range records {
		if rec.Clicked {
			clicked++
		}
	}

	var quizSum float64
	var quizN int
	trained := 0
	for _, history := range histories {
		if history.CoursesCompleted > 0 || history.LastTrainingAt != nil || len(history.QuizScores) > 0 {
			trained++
		}
		if avg, has := history.AvgQuizScore(); has {
			quizSum += avg
			quizN++
		}
	}

	in := OrgInputs{
		TotalUsers:          len(users),
		UsersWithTraining:   trained,
		EmailsClicked:       clicked,
		TotalPhishingEvents: len(events),
		HasQuizHistory:      quizN > 0,
	}
	if quizN > 0 {
		in.AvgQuizScore = quizSum / float64(quizN)
	}
	return OrganizationScore(in), nil
}

// ComplianceFor derives one user's compliance record.
func (s *Scorer) ComplianceFor(ctx context.Context, userID string, now time.Time) (ComplianceRecord, error) {
	history, err := s.training.History(ctx, userID)
	if err != nil {
		return ComplianceRecord{}, err
	}
	return Compliance(userID, history.CoursesCompleted, history.LastTrainingAt, now), nil
}

// ComplianceReport derives compliance records for every directory user,
// sorted by user ID.
func (s *Scorer) ComplianceReport(ctx context.Context, now time.Time) ([]ComplianceRecord, error) {
	users, err := s.directory.Users(ctx)
	if err != nil {
		return nil, err
	}
	histories, err := s.training.Histories(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ComplianceRecord, 0, len(users))
	for _, u := range users {
		history := histories[u.ID]
		out = append(out, Compliance(u.ID, history.CoursesCompleted, history.LastTrainingAt, now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func countSentClicked(records []funnel.Record) (sent, clicked int) {
	for _, rec := range records {
		if rec.Sent {
			sent++
		}
		if rec.Clicked {
			clicked++
		}
	}
	return sent, clicked
}
