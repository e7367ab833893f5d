package batch

import "testing"

func TestIncorrectAnswerPattern(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"the answer is 1/89", true},
		{"so the answer is 0", true},
		{"the answer is 0.", true},
		{"the answer is 0.4167", false},
		{"you can't divide by 0", true},
		{"divide by 0, then stop", true},
		{"divide by 0.", true},
		{"divide by 0.5 to double it", false},
		{"divide by 0/1", false},
		{"divide by 05", false},
		{"the answer is 15/36", false},
	}
	for _, tc := range cases {
		if got := IncorrectAnswerPattern.MatchString(tc.text); got != tc.want {
			t.Errorf("IncorrectAnswerPattern.MatchString(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
