package prompt

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/signals"
)

// Silent is the sentinel a model may answer with to decline intervening.
const Silent = "SILENT"

// #region request
// Request carries everything a prompt is built from.
type Request struct {
	Level     int
	Analysis  signals.Analysis
	BatchText string
	Forced    bool
}

// Mode names the template family a prompt was built from.
type Mode string

const (
	ModeCongratulate Mode = "congratulate"
	ModeGuide        Mode = "guide"
	ModeForced       Mode = "forced"
)

// #endregion request

// #region level-blocks
var levelBlocks = map[int]string{
	1: `INTERVENTION LEVEL 1 (gentle):
- Reply with ONE very short sentence (under 15 words).
- Point the user in a direction. Do not give any part of the solution.`,
	2: `INTERVENTION LEVEL 2 (guided):
- Reply with one or two sentences.
- Name the likely class of mistake (setup, arithmetic, misread question, wrong method) without fixing it.`,
	3: `INTERVENTION LEVEL 3 (direct):
- Reply with exactly two sentences.
- Say what is going wrong and give one concrete next action to take.
- Still do not state the final answer.`,
}

// #endregion level-blocks

// #region build
// Build returns the instruction text and the template family used.
func Build(req Request) (string, Mode) {
	if req.Forced {
		return buildForced(req), ModeForced
	}
	if req.Analysis.SuccessOnly() {
		return buildCongratulate(req), ModeCongratulate
	}
	return buildGuide(req), ModeGuide
}

func buildCongratulate(req Request) string {
	var b strings.Builder
	b.WriteString("You are a quiet study companion watching a learner's recent activity.\n")
	b.WriteString("The learner appears to have finished the task correctly.\n\n")
	writeActivity(&b, req.BatchText)
	b.WriteString("\nWrite ONE short, specific sentence acknowledging what they got right.\n")
	b.WriteString("Do not add advice, questions or next steps.\n")
	fmt.Fprintf(&b, "If nothing in the activity deserves comment, reply with exactly %s.\n", Silent)
	return b.String()
}

func buildGuide(req Request) string {
	var b strings.Builder
	b.WriteString("You are a quiet study companion watching a learner's recent activity.\n")
	b.WriteString("Only speak up when it would genuinely help them make progress.\n\n")
	writeActivity(&b, req.BatchText)
	writeSignals(&b, req.Analysis)
	b.WriteString("\n")
	b.WriteString(levelBlock(req.Level))
	b.WriteString("\n\nAvoid generic encouragement. Refer to something specific in the activity.\n")
	fmt.Fprintf(&b, "If no intervention is warranted, reply with exactly %s and nothing else.\n", Silent)
	return b.String()
}

func buildForced(req Request) string {
	level := req.Level
	if level < 1 {
		level = 1
	}
	var b strings.Builder
	b.WriteString("You are a study companion. The learner explicitly asked for a hint right now.\n\n")
	writeActivity(&b, req.BatchText)
	writeSignals(&b, req.Analysis)
	b.WriteString("\n")
	b.WriteString(levelBlock(level))
	b.WriteString("\n\nYou MUST reply with a helpful hint grounded in the activity above.\n")
	fmt.Fprintf(&b, "Never reply with %s or an empty message.\n", Silent)
	return b.String()
}

// #endregion build

// #region helpers
func writeActivity(b *strings.Builder, batchText string) {
	b.WriteString("RECENT ACTIVITY (structured):\n")
	b.WriteString(batchText)
	b.WriteString("\n")
}

func writeSignals(b *strings.Builder, a signals.Analysis) {
	names := make([]string, len(a.SignalTypes))
	for i, s := range a.SignalTypes {
		names[i] = string(s)
	}
	list := strings.Join(names, ", ")
	if list == "" {
		list = "none"
	}
	fmt.Fprintf(b, "\nDETECTED SIGNALS: %s\n", list)
	fmt.Fprintf(b, "URGENCY: %s (score %d)\n", a.Urgency, a.ConcerningSignals)
	if a.Patterns.MathematicalContent {
		b.WriteString("The activity contains mathematical work; keep feedback tight and checkable.\n")
	}
}

func levelBlock(level int) string {
	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	return levelBlocks[level]
}

// #endregion helpers
