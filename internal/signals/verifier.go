package signals

import (
	"regexp"
	"strings"
)

// #region verifier
// AnswerVerifier decides whether checkable content contains a correct answer.
type AnswerVerifier interface {
	Verify(text string) bool
}

// LiteralVerifier accepts text containing any of a fixed set of answers.
type LiteralVerifier struct {
	patterns []*regexp.Regexp
}

// DefaultAnswers are the accepted answers for the two-dice probability
// exercise the heuristics were tuned on.
var DefaultAnswers = []string{"15/36", "5/12", "0.4167", "41.67%", "0.417"}

// NewLiteralVerifier builds a verifier over answers. Answers only match when
// not embedded in a longer number.
func NewLiteralVerifier(answers []string) *LiteralVerifier {
	v := &LiteralVerifier{}
	for _, a := range answers {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		v.patterns = append(v.patterns, regexp.MustCompile(`(?:^|[^\d./])`+regexp.QuoteMeta(a)+`(?:$|[^\d/]|\.(?:[^\d]|$))`))
	}
	return v
}

// Verify implements AnswerVerifier.
func (v *LiteralVerifier) Verify(text string) bool {
	for _, p := range v.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// #endregion verifier
