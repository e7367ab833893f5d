package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/capture"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/prompt"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/replay"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// tail added after the last event so trailing batches still seal and analyze
const settleTail = 60 * time.Second

// #region main

func main() {
	var (
		capturesPath string
		dbPath       string
		sessionID    string
		outPath      string
		last         int
	)

	rootCmd := &cobra.Command{
		Use:   "fixture-export --captures captures.jsonl --out fixture.json",
		Short: "Build a replay fixture from a capture log and a recorded session",
		Long: `fixture-export turns a JSONL capture log (the controller's --stdin format)
into replay events timed by capturedAt. With --db, the recorded session's
decisions become the expected outcomes and its nudge texts the canned replies.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(capturesPath, dbPath, sessionID, outPath, last)
		},
	}
	rootCmd.Flags().StringVar(&capturesPath, "captures", "", "path to JSONL capture log")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to nudge_state.db (optional)")
	rootCmd.Flags().StringVar(&sessionID, "session", "", "session ID (default: most recent)")
	rootCmd.Flags().StringVar(&outPath, "out", "", "output fixture JSON path")
	rootCmd.Flags().IntVar(&last, "last", 50, "number of most recent decisions to export")
	_ = rootCmd.MarkFlagRequired("captures")
	_ = rootCmd.MarkFlagRequired("out")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(capturesPath, dbPath, sessionID, outPath string, last int) error {
	f, err := os.Open(capturesPath)
	if err != nil {
		return fmt.Errorf("open captures: %w", err)
	}
	defer f.Close()

	records, err := readRecords(f)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no capture records in %s", capturesPath)
	}

	var (
		prov   []state.ProvenanceRow
		nudges []state.Nudge
	)
	if dbPath != "" {
		if prov, nudges, err = loadSession(dbPath, sessionID, last); err != nil {
			return err
		}
		fmt.Printf("Loaded %d decisions and %d nudges\n", len(prov), len(nudges))
	}

	fixture, skipped := buildFixture(records, prov, nudges)
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d failed decisions (not reproducible with canned replies)\n", skipped)
	}
	return writeFixture(fixture, outPath)
}

func readRecords(r io.Reader) ([]capture.Record, error) {
	var out []capture.Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		rec, err := capture.ParseRecord([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read captures: %w", err)
	}
	return out, nil
}

func loadSession(dbPath, sessionID string, last int) ([]state.ProvenanceRow, []state.Nudge, error) {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if sessionID == "" {
		ids, err := store.ListSessions(1)
		if err != nil {
			return nil, nil, err
		}
		if len(ids) == 0 {
			return nil, nil, fmt.Errorf("no sessions in %s", dbPath)
		}
		sessionID = ids[0]
	}

	prov, err := store.ListProvenance(sessionID, last)
	if err != nil {
		return nil, nil, err
	}
	nudges, err := store.ListNudges(sessionID, state.MaxNudgeHistory*10)
	if err != nil {
		return nil, nil, err
	}
	return prov, nudges, nil
}

// #endregion extract

// #region build

// buildFixture times records relative to the first capturedAt. Manual
// decisions become manual events at their recorded offset. Replies are
// consumed in decision order: a nudge's text, or the silence sentinel.
// Failed decisions are dropped and counted.
func buildFixture(records []capture.Record, prov []state.ProvenanceRow, nudges []state.Nudge) (replay.Fixture, int) {
	start := recordTime(records[0], time.Time{})
	fixture := replay.Fixture{
		Description: fmt.Sprintf("Session export: %d capture records, %d decisions", len(records), len(prov)),
	}

	prev := start
	for i := range records {
		at := recordTime(records[i], prev)
		prev = at
		fixture.Events = append(fixture.Events, replay.FixtureEvent{
			AtMs:   offsetMs(start, at),
			Record: &records[i],
		})
	}

	// align the most recent nudges with the exported nudge decisions
	nudgeCount := 0
	for _, p := range prov {
		if p.Decision == "nudge" {
			nudgeCount++
		}
	}
	nextNudge := len(nudges) - nudgeCount

	skipped := 0
	for _, p := range prov {
		if p.Decision == "failed" {
			skipped++
			continue
		}
		if p.TriggerType == logging.TriggerManual {
			fixture.Events = insertManual(fixture.Events, offsetMs(start, p.CreatedAt))
		}
		switch p.Decision {
		case "nudge":
			text := ""
			if nextNudge >= 0 && nextNudge < len(nudges) {
				text = nudges[nextNudge].Text
			}
			nextNudge++
			fixture.Replies = append(fixture.Replies, text)
		case "silent":
			fixture.Replies = append(fixture.Replies, prompt.Silent)
		}
		fixture.Expected = append(fixture.Expected, replay.FixtureOutcome{
			Decision: p.Decision,
			Level:    p.LevelAfter,
		})
	}

	lastAt := fixture.Events[len(fixture.Events)-1].AtMs
	fixture.RunUntilMs = lastAt + settleTail.Milliseconds()
	return fixture, skipped
}

// recordTime parses capturedAt, holding the previous time when it is missing
// or unparseable.
func recordTime(rec capture.Record, prev time.Time) time.Time {
	if rec.CapturedAt == "" {
		return prev
	}
	t, err := time.Parse(time.RFC3339Nano, rec.CapturedAt)
	if err != nil || t.Before(prev) {
		return prev
	}
	return t
}

func offsetMs(start, at time.Time) int64 {
	if start.IsZero() || at.Before(start) {
		return 0
	}
	return at.Sub(start).Milliseconds()
}

// insertManual keeps events ordered by offset; a manual request lands after
// any record at the same instant.
func insertManual(events []replay.FixtureEvent, atMs int64) []replay.FixtureEvent {
	i := len(events)
	for i > 0 && events[i-1].AtMs > atMs {
		i--
	}
	events = append(events, replay.FixtureEvent{})
	copy(events[i+1:], events[i:])
	events[i] = replay.FixtureEvent{AtMs: atMs, Manual: true}
	return events
}

// #endregion build

// #region output

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d events)\n", outPath, len(data), len(fixture.Events))
	return nil
}

// #endregion output
