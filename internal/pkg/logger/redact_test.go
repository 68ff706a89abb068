package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jordan.reyes@corp.example", "jo***@corp.example"},
		{"abc@corp.example", "ab***@corp.example"},
		{"ab@corp.example", "***@corp.example"},
		{"a@corp.example", "***@corp.example"},
		{"not-an-email", "***@***"},
		{"two@ats@here", "***@***"},
		{"", "***@***"},
	}
	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
