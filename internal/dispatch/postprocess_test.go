package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenMarkdown(t *testing.T) {
	tests := map[string]string{
		"**Check** the `denominator`.":          "Check the denominator.",
		"# Hint\nRecount the outcomes.":         "Hint Recount the outcomes.",
		"- first idea\n- second idea":           "first idea second idea",
		"Plain sentence with 2*3 in it.":        "Plain sentence with 2*3 in it.",
		"**Try** <https://example.com> first.":  "Try https://example.com first.",
	}
	for in, want := range tests {
		assert.Equal(t, want, Clean(in, CleanInput{Level: 1, HasConcern: true}).Text, in)
	}
}

func TestCleanLevelFallbackBounds(t *testing.T) {
	assert.Equal(t, levelFallbacks[0], levelFallback(-2))
	assert.Equal(t, levelFallbacks[3], levelFallback(9))
}

func TestCleanUntouchedHasNoReason(t *testing.T) {
	res := Clean("Recount how many pairs sum to 8.", CleanInput{Level: 1, HasConcern: true})
	assert.False(t, res.Suppressed)
	assert.Empty(t, res.Reason)
}
