package risk

import "testing"

func TestUserScore(t *testing.T) {
	tests := []struct {
		name    string
		courses int
		quiz    float64
		clicked int
		want    float64
	}{
		{"baseline untrained", 0, 0, 0, 100},
		{"training pays down risk", 2, 0, 0, 60},
		{"quiz pays down risk", 0, 80, 0, 60},
		{"clicks push risk up", 0, 80, 2, 90},
		{"floor at zero", 5, 100, 0, 0},
		{"ceiling at hundred", 0, 0, 10, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserScore(tt.courses, tt.quiz, tt.clicked); got != tt.want {
				t.Errorf("UserScore(%d, %v, %d) = %v, want %v", tt.courses, tt.quiz, tt.clicked, got, tt.want)
			}
		})
	}
}

func TestUserRiskPolicy_Bucket(t *testing.T) {
	var p UserRiskPolicy
	tests := []struct {
		clicked   int
		clickRate float64
		want      Bucket
	}{
		{0, 0, BucketLow},
		{0, 10, BucketLow},
		{1, 10, BucketMedium},
		{0, 30, BucketMedium},
		{3, 10, BucketHigh},
		{1, 60, BucketHigh},
	}
	for _, tt := range tests {
		if got := p.Bucket(tt.clicked, tt.clickRate); got != tt.want {
			t.Errorf("Bucket(%d, %v) = %v, want %v", tt.clicked, tt.clickRate, got, tt.want)
		}
	}
}

func TestDepartmentRiskPolicy_Bucket(t *testing.T) {
	var p DepartmentRiskPolicy
	tests := []struct {
		clicks int
		quiz   float64
		want   Bucket
	}{
		{0, 90, BucketLow},
		{0, 75, BucketMedium},
		{1, 90, BucketMedium},
		{3, 90, BucketHigh},
		{0, 50, BucketHigh},
	}
	for _, tt := range tests {
		if got := p.Bucket(tt.clicks, tt.quiz); got != tt.want {
			t.Errorf("Bucket(%d, %v) = %v, want %v", tt.clicks, tt.quiz, got, tt.want)
		}
	}
}

// The two policies deliberately disagree on the same shape of input;
// this pins that they stay separate.
func TestPoliciesDiverge(t *testing.T) {
	user := UserRiskPolicy{}.Bucket(0, 30)
	dept := DepartmentRiskPolicy{}.Bucket(0, 30)
	if user == dept {
		t.Errorf("user policy %v and department policy %v should classify differently here", user, dept)
	}
}
