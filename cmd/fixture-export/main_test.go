package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/prompt"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

const captureLog = `{"diff":"def f(:","fullText":"def f(:","url":"https://a.test","capturedAt":"2026-01-01T00:00:00Z"}

{"diff":"error: invalid syntax","fullText":"x","url":"https://a.test","capturedAt":"2026-01-01T00:00:04.5Z"}
{"diff":"retry","fullText":"x","url":"https://a.test"}
`

func TestReadRecords(t *testing.T) {
	recs, err := readRecords(strings.NewReader(captureLog))
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "https://a.test", recs[0].URL)
	assert.Empty(t, recs[2].CapturedAt)
}

func TestReadRecords_BadLine(t *testing.T) {
	_, err := readRecords(strings.NewReader("{\"url\":\"x\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestBuildFixture(t *testing.T) {
	recs, err := readRecords(strings.NewReader(captureLog))
	require.NoError(t, err)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prov := []state.ProvenanceRow{
		{TriggerType: logging.TriggerBatch, Decision: "nudge", LevelAfter: 1, CreatedAt: start.Add(8 * time.Second)},
		{TriggerType: logging.TriggerBatch, Decision: "failed", LevelAfter: 1, CreatedAt: start.Add(9 * time.Second)},
		{TriggerType: logging.TriggerManual, Decision: "silent", LevelAfter: 1, CreatedAt: start.Add(2 * time.Second)},
	}
	nudges := []state.Nudge{{Text: "older"}, {Text: "Check the colon."}}

	f, skipped := buildFixture(recs, prov, nudges)
	assert.Equal(t, 1, skipped)

	require.Len(t, f.Events, 4)
	assert.Equal(t, int64(0), f.Events[0].AtMs)
	assert.True(t, f.Events[1].Manual)
	assert.Equal(t, int64(2000), f.Events[1].AtMs)
	assert.Equal(t, int64(4500), f.Events[2].AtMs)
	// missing capturedAt holds the previous offset
	assert.Equal(t, int64(4500), f.Events[3].AtMs)
	assert.Equal(t, int64(4500)+settleTail.Milliseconds(), f.RunUntilMs)

	assert.Equal(t, []string{"Check the colon.", prompt.Silent}, f.Replies)
	require.Len(t, f.Expected, 2)
	assert.Equal(t, "nudge", f.Expected[0].Decision)
	assert.Equal(t, "silent", f.Expected[1].Decision)
	require.NoError(t, f.Validate())
}

func TestBuildFixture_CapturesOnly(t *testing.T) {
	recs, err := readRecords(strings.NewReader(captureLog))
	require.NoError(t, err)

	f, skipped := buildFixture(recs, nil, nil)
	assert.Zero(t, skipped)
	assert.Len(t, f.Events, 3)
	assert.Empty(t, f.Expected)
	assert.Empty(t, f.Replies)
}
