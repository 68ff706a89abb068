package risk

// Bucket is the coarse risk category used in leaderboard views.
type Bucket string

const (
	BucketLow    Bucket = "low"
	BucketMedium Bucket = "medium"
	BucketHigh   Bucket = "high"
)

// DefaultQuizScore is the neutral assumption for users with no quiz
// history. Missing history is not evidence of poor performance, so the
// default is a passing score rather than zero.
const DefaultQuizScore = 80.0

// UserScore computes the per-user numeric risk score in [0,100]:
// completed courses and quiz performance push risk down, phishing clicks
// push it up hard.
func UserScore(coursesCompleted int, avgQuizScore float64, emailsClicked int) float64 {
	score := 100 - float64(coursesCompleted)*20 - avgQuizScore*0.5 + float64(emailsClicked)*15
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// UserRiskPolicy buckets individual users by their own click behavior.
//
// This policy and DepartmentRiskPolicy use different, independently tuned
// thresholds because they back different dashboard views. Do not merge
// them without a product decision.
type UserRiskPolicy struct{}

// Bucket classifies a user from their click count and click rate (%).
func (UserRiskPolicy) Bucket(emailsClicked int, clickRate float64) Bucket {
	switch {
	case emailsClicked > 2 || clickRate > 50:
		return BucketHigh
	case emailsClicked > 0 || clickRate > 20:
		return BucketMedium
	default:
		return BucketLow
	}
}

// DepartmentRiskPolicy buckets departments by aggregate clicks and quiz
// performance.
type DepartmentRiskPolicy struct{}

// Bucket classifies a department from its total phishing clicks and
// average quiz score.
func (DepartmentRiskPolicy) Bucket(phishingClicks int, avgQuizScore float64) Bucket {
	switch {
	case phishingClicks > 2 || avgQuizScore < 60:
		return BucketHigh
	case phishingClicks > 0 || avgQuizScore < 80:
		return BucketMedium
	default:
		return BucketLow
	}
}
