package risk

import "math"

// Posture labels for the organization-wide headline score.
const (
	PostureExcellent = "excellent"
	PostureGood      = "good"
	PostureFair      = "fair"
	PosturePoor      = "poor"
	PostureCritical  = "critical"
	PostureNA        = "n/a"
)

// OrgInputs are the organization-wide scoring inputs. HasQuizHistory
// distinguishes "no quiz events exist" (neutral default applies) from a
// genuine average of zero.
type OrgInputs struct {
	TotalUsers          int
	UsersWithTraining   int
	EmailsClicked       int
	TotalPhishingEvents int
	AvgQuizScore        float64
	HasQuizHistory      bool
}

// OrgScore is the organization-wide security posture breakdown. Factors
// are kept separate so dashboards can show what moves the headline
// number.
type OrgScore struct {
	TrainingFactor float64 `json:"training_factor"` // 0..40
	PhishingFactor float64 `json:"phishing_factor"` // 0..30
	QuizFactor     float64 `json:"quiz_factor"`     // 0..30
	Overall        int     `json:"overall"`         // 0..100
	Posture        string  `json:"posture"`
}

// OrganizationScore computes the headline KPI. With no users to score it
// returns the neutral default rather than dividing by zero.
func OrganizationScore(in OrgInputs) OrgScore {
	if in.TotalUsers <= 0 {
		return OrgScore{Posture: PostureNA}
	}

	training := float64(in.UsersWithTraining) / float64(in.TotalUsers) * 40

	phishing := 30.0
	if in.EmailsClicked > 0 {
		total := in.TotalPhishingEvents
		if total < 1 {
			total = 1
		}
		phishing = 30 - float64(in.EmailsClicked)/float64(total)*30
		if phishing < 0 {
			phishing = 0
		}
	}

	quiz := in.AvgQuizScore
	if !in.HasQuizHistory {
		quiz = DefaultQuizScore
	}
	quizFactor := quiz / 100 * 30

	overall := training + phishing + quizFactor
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	score := OrgScore{
		TrainingFactor: training,
		PhishingFactor: phishing,
		QuizFactor:     quizFactor,
		Overall:        int(math.Round(overall)),
	}
	score.Posture = PostureLabel(score.Overall)
	return score
}

// PostureLabel maps an overall score to its security-posture label.
func PostureLabel(overall int) string {
	switch {
	case overall >= 80:
		return PostureExcellent
	case overall >= 60:
		return PostureGood
	case overall >= 40:
		return PostureFair
	case overall >= 20:
		return PosturePoor
	default:
		return PostureCritical
	}
}
