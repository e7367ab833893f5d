package dispatch

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/prompt"
)

// #region fallbacks
const (
	// ForcedFallback replaces a silent reply to an explicit request.
	ForcedFallback = "Here's a hint: look back at your most recent step and check it against exactly what the question asks."

	// GenericFallback replaces an empty reply when there were concerns.
	GenericFallback = "It looks like you might be stuck. Re-read the question and check your last step."
)

// levelFallbacks replace replies caught by the generic-phrase filter.
var levelFallbacks = [4]string{
	"Take a second look at the last thing you changed.",
	"Take a second look at your most recent step before moving on.",
	"Something in how the problem is set up may be off. Re-check what each quantity represents.",
	"Go back to the step where the numbers first stopped making sense and redo it one piece at a time. Compare each value to what the question defines.",
}

// genericPhrases are low-content encouragements that carry no actionable signal.
var genericPhrases = []string{
	"keep up the consistent effort",
	"you're doing well",
	"you are doing well",
	"keep up the good work",
	"you've got this",
	"you got this",
	"keep going",
	"keep pushing",
	"stay focused",
	"don't give up",
	"believe in yourself",
}

// #endregion fallbacks

// #region clean
// CleanInput is what the post-processor needs besides the reply.
type CleanInput struct {
	Level      int
	Forced     bool
	HasConcern bool
}

// CleanResult is the post-processed reply.
type CleanResult struct {
	Text       string
	Suppressed bool
	Reason     string // why the text was replaced or suppressed; empty if untouched
}

// Clean applies the reply pipeline: trim and flatten, silent sentinel,
// generic-phrase filter, then empty handling.
func Clean(raw string, in CleanInput) CleanResult {
	msg := strings.TrimSpace(raw)
	if looksLikeMarkdown(msg) {
		msg = flattenMarkdown(msg)
	}

	if isSilent(msg) {
		if in.Forced {
			return CleanResult{Text: ForcedFallback, Reason: "silent reply to forced request"}
		}
		return CleanResult{Suppressed: true, Reason: "model chose silence"}
	}

	if phrase, ok := genericPhrase(msg); ok {
		return CleanResult{Text: levelFallback(in.Level), Reason: "generic phrase: " + phrase}
	}

	if msg == "" {
		switch {
		case in.Forced:
			return CleanResult{Text: ForcedFallback, Reason: "empty reply to forced request"}
		case in.HasConcern:
			return CleanResult{Text: GenericFallback, Reason: "empty reply with concerns"}
		default:
			return CleanResult{Suppressed: true, Reason: "empty reply without concerns"}
		}
	}
	return CleanResult{Text: msg}
}

// #endregion clean

// #region helpers
func isSilent(msg string) bool {
	m := strings.Trim(msg, "\"'`*_ \t\n.")
	return strings.EqualFold(m, prompt.Silent)
}

func genericPhrase(msg string) (string, bool) {
	lower := strings.ToLower(strings.ReplaceAll(msg, "’", "'"))
	for _, p := range genericPhrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

func levelFallback(level int) string {
	if level < 0 {
		level = 0
	}
	if level >= len(levelFallbacks) {
		level = len(levelFallbacks) - 1
	}
	return levelFallbacks[level]
}

var markdownHint = regexp.MustCompile("(?m)\\*\\*|__|`|^#{1,6} |^\\s*[-*] |^\\s*\\d+\\. ")

func looksLikeMarkdown(msg string) bool {
	return markdownHint.MatchString(msg)
}

var markdown = goldmark.New()

// flattenMarkdown renders markdown to a single line of plain text.
func flattenMarkdown(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(source))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(buf.String()), " ")
}

// #endregion helpers
