package risk

import "testing"

func TestOrganizationScore(t *testing.T) {
	in := OrgInputs{
		TotalUsers:          10,
		UsersWithTraining:   4,
		EmailsClicked:       3,
		TotalPhishingEvents: 20,
		AvgQuizScore:        90,
		HasQuizHistory:      true,
	}

	score := OrganizationScore(in)

	if score.TrainingFactor != 16 {
		t.Errorf("training factor = %v, want 16", score.TrainingFactor)
	}
	if score.PhishingFactor != 25.5 {
		t.Errorf("phishing factor = %v, want 25.5", score.PhishingFactor)
	}
	if score.QuizFactor != 27 {
		t.Errorf("quiz factor = %v, want 27", score.QuizFactor)
	}
	if score.Overall != 69 {
		t.Errorf("overall = %d, want 69", score.Overall)
	}
	if score.Posture != PostureGood {
		t.Errorf("posture = %q, want good", score.Posture)
	}
}

func TestOrganizationScore_NoUsers(t *testing.T) {
	score := OrganizationScore(OrgInputs{})
	if score.Posture != PostureNA {
		t.Errorf("posture = %q, want n/a", score.Posture)
	}
	if score.Overall != 0 {
		t.Errorf("overall = %d, want 0", score.Overall)
	}
}

func TestOrganizationScore_NoQuizHistoryUsesDefault(t *testing.T) {
	score := OrganizationScore(OrgInputs{TotalUsers: 5, UsersWithTraining: 5})
	// 40 training + 30 no-clicks + 80/100*30 quiz default.
	if score.QuizFactor != 24 {
		t.Errorf("quiz factor = %v, want neutral default 24", score.QuizFactor)
	}
	if score.Overall != 94 {
		t.Errorf("overall = %d, want 94", score.Overall)
	}
}

func TestOrganizationScore_NoClicksFullPhishingFactor(t *testing.T) {
	score := OrganizationScore(OrgInputs{TotalUsers: 5, TotalPhishingEvents: 100, HasQuizHistory: true, AvgQuizScore: 50})
	if score.PhishingFactor != 30 {
		t.Errorf("phishing factor = %v, want 30 when nobody clicked", score.PhishingFactor)
	}
}

func TestPostureLabel(t *testing.T) {
	tests := []struct {
		overall int
		want    string
	}{
		{100, PostureExcellent},
		{80, PostureExcellent},
		{79, PostureGood},
		{60, PostureGood},
		{59, PostureFair},
		{40, PostureFair},
		{39, PosturePoor},
		{20, PosturePoor},
		{19, PostureCritical},
		{0, PostureCritical},
	}
	for _, tt := range tests {
		if got := PostureLabel(tt.overall); got != tt.want {
			t.Errorf("PostureLabel(%d) = %q, want %q", tt.overall, got, tt.want)
		}
	}
}
