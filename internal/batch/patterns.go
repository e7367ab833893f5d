package batch

import (
	"regexp"
	"strings"
)

// #region keyword-patterns
var (
	// ErrorPattern matches error vocabulary in raw diff text.
	ErrorPattern = regexp.MustCompile(`(?i)\b(?:error|problem|issue|stuck|failed|wrong|broken)`)

	// ConfusionPattern matches confusion and help requests.
	ConfusionPattern = regexp.MustCompile(`(?i)\b(?:confused|dont understand|don't understand|don't get|lost|help|unclear)`)

	SearchPattern = regexp.MustCompile(`(?i)\b(?:search|find|looking for|query|google|stack overflow)`)

	mathKeywordPattern  = regexp.MustCompile(`(?i)\b(?:equation|solve|calculate|probability|fraction|formula|derivative|integral|algebra|sum of|product of|percent|ratio)`)
	mathFractionPattern = regexp.MustCompile(`\d+/\d+`)
	mathSymbols         = "=+-*/()^√∫∑∏"

	// IncorrectAnswerPattern matches answers known to be wrong for the
	// probability exercises the tool was tuned on.
	IncorrectAnswerPattern = regexp.MustCompile(`(?i)\b(?:1/89|1/90|1/88|2/89)\b|answer is [01](?:$|[^\d/.]|\.(?:[^\d]|$))|divide by 0(?:$|[^\d/.]|\.(?:[^\d]|$))`)

	// CompletionPattern matches completion vocabulary, including a bare "=".
	CompletionPattern = regexp.MustCompile(`(?i)\b(?:done|finished|complete|solved|got it|understand now|that works|perfect|success|correct|right answer|final answer|solution is|answer is|result is|equals)|=`)

	naturalBreakPattern = regexp.MustCompile(`(?i)\b(?:done|finished|solved|got it|understand now|that works)\b`)
)

// IsMath reports whether text looks like mathematical content.
func IsMath(text string) bool {
	if mathKeywordPattern.MatchString(text) || mathFractionPattern.MatchString(text) {
		return true
	}
	return strings.ContainsAny(text, mathSymbols)
}

// IsUrgent reports whether text carries error, help or confusion vocabulary.
func IsUrgent(text string) bool {
	return ErrorPattern.MatchString(text) || ConfusionPattern.MatchString(text)
}

// #endregion keyword-patterns

// #region markers
var (
	deletedMarker = regexp.MustCompile(`\[DELETED: (.*?)\]`)
	changedMarker = regexp.MustCompile(`\[CHANGED: "(.*?)" (?:→|->) "(.*?)"\]`)
)

var escaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;")

// normalizeMarkers rewrites capture markers into inline markup and escapes
// everything else.
func normalizeMarkers(diff string) string {
	var b strings.Builder
	rest := diff
	for rest != "" {
		dLoc := deletedMarker.FindStringSubmatchIndex(rest)
		cLoc := changedMarker.FindStringSubmatchIndex(rest)

		switch {
		case dLoc == nil && cLoc == nil:
			b.WriteString(escaper.Replace(rest))
			rest = ""
		case cLoc == nil || (dLoc != nil && dLoc[0] < cLoc[0]):
			b.WriteString(escaper.Replace(rest[:dLoc[0]]))
			b.WriteString("<deleted>")
			b.WriteString(escaper.Replace(rest[dLoc[2]:dLoc[3]]))
			b.WriteString("</deleted>")
			rest = rest[dLoc[1]:]
		default:
			b.WriteString(escaper.Replace(rest[:cLoc[0]]))
			b.WriteString(`<changed from="`)
			b.WriteString(escaper.Replace(rest[cLoc[2]:cLoc[3]]))
			b.WriteString(`" to="`)
			b.WriteString(escaper.Replace(rest[cLoc[4]:cLoc[5]]))
			b.WriteString(`" />`)
			rest = rest[cLoc[1]:]
		}
	}
	return b.String()
}

// #endregion markers
