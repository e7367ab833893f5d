package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/state"
)

// #region main

type options struct {
	dbPath    string
	sessionID string
	last      int
	jsonOut   bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "inspect",
		Short:        "Inspect persisted nudges, batches and decisions",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to nudge_state.db")
	rootCmd.PersistentFlags().StringVar(&opts.sessionID, "session", "", "session ID (default: most recent)")
	rootCmd.PersistentFlags().IntVar(&opts.last, "last", 20, "show N most recent rows")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of table")
	_ = rootCmd.MarkPersistentFlagRequired("db")

	rootCmd.AddCommand(
		newCommand("sessions", "List sessions, newest first", opts, runSessions),
		newCommand("nudges", "List emitted nudges", opts, runNudges),
		newCommand("batches", "List sealed batches", opts, runBatches),
		newCommand("decisions", "List analysis decisions with level transitions", opts, runDecisions),
		newCommand("state", "Show the persisted escalation state", opts, runState),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type viewFunc func(store *state.Store, sessionID string, opts *options) error

func newCommand(use, short string, opts *options, view viewFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := state.NewStore(opts.dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			sessionID := opts.sessionID
			if sessionID == "" && use != "sessions" {
				ids, err := store.ListSessions(1)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					return fmt.Errorf("no sessions in %s", opts.dbPath)
				}
				sessionID = ids[0]
			}
			return view(store, sessionID, opts)
		},
	}
}

// #endregion main

// #region views

func runSessions(store *state.Store, _ string, opts *options) error {
	ids, err := store.ListSessions(opts.last)
	if err != nil {
		return err
	}
	if opts.jsonOut {
		return printJSON(ids)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

type nudgeRow struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Level     int      `json:"level"`
	Score     int      `json:"score"`
	Urgency   string   `json:"urgency"`
	Signals   []string `json:"signals"`
	Manual    bool     `json:"manual"`
	Forced    bool     `json:"forced"`
	Text      string   `json:"text"`
}

func runNudges(store *state.Store, sessionID string, opts *options) error {
	nudges, err := store.ListNudges(sessionID, opts.last)
	if err != nil {
		return err
	}
	rows := make([]nudgeRow, len(nudges))
	for i, n := range nudges {
		rows[i] = nudgeRow{
			ID:        n.ID,
			Timestamp: n.Timestamp.Format("2006-01-02T15:04:05Z"),
			Level:     n.Level,
			Score:     n.Analysis.ConcerningSignals,
			Urgency:   string(n.Analysis.Urgency),
			Signals:   signalNames(n.Analysis.SignalTypes),
			Manual:    n.ManualTrigger,
			Forced:    n.Forced,
			Text:      n.Text,
		}
	}
	if opts.jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no nudges found")
		return nil
	}

	fmt.Printf("%-20s  %5s  %5s  %-7s  %-6s  %s\n", "Time", "Level", "Score", "Urgency", "Source", "Text")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range rows {
		source := "auto"
		if r.Manual {
			source = "manual"
		}
		fmt.Printf("%-20s  %5d  %5d  %-7s  %-6s  %s\n",
			r.Timestamp, r.Level, r.Score, r.Urgency, source, truncate(r.Text, 60))
	}
	return nil
}

type batchRow struct {
	BatchID    string `json:"batch_id"`
	SealedAt   string `json:"sealed_at"`
	Entries    int    `json:"entries"`
	TimespanMs int64  `json:"timespan_ms"`
	Reason     string `json:"seal_reason"`
	Text       string `json:"structured_text,omitempty"`
}

func runBatches(store *state.Store, sessionID string, opts *options) error {
	batches, err := store.ListBatches(sessionID, opts.last)
	if err != nil {
		return err
	}
	rows := make([]batchRow, len(batches))
	for i, b := range batches {
		rows[i] = batchRow{
			BatchID:    b.BatchID,
			SealedAt:   b.SealedAt.Format("2006-01-02T15:04:05Z"),
			Entries:    b.EntryCount,
			TimespanMs: b.Timespan.Milliseconds(),
			Reason:     b.SealReason,
		}
		if opts.jsonOut {
			rows[i].Text = b.StructuredText
		}
	}
	if opts.jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no batches found")
		return nil
	}

	fmt.Printf("%-12s  %-20s  %7s  %9s  %s\n", "Batch", "Sealed", "Entries", "Span", "Reason")
	fmt.Println(strings.Repeat("-", 70))
	for _, r := range rows {
		fmt.Printf("%-12s  %-20s  %7d  %8.1fs  %s\n",
			shortID(r.BatchID), r.SealedAt, r.Entries, float64(r.TimespanMs)/1000, r.Reason)
	}
	return nil
}

type decisionRow struct {
	BatchID     string           `json:"batch_id,omitempty"`
	Trigger     string           `json:"trigger"`
	Decision    string           `json:"decision"`
	Reason      string           `json:"reason,omitempty"`
	LevelBefore int              `json:"level_before"`
	LevelAfter  int              `json:"level_after"`
	CreatedAt   string           `json:"created_at"`
	Record      *decisionSignals `json:"record,omitempty"`
}

type decisionSignals struct {
	Score   int      `json:"score"`
	Urgency string   `json:"urgency"`
	Signals []string `json:"signals"`
}

func runDecisions(store *state.Store, sessionID string, opts *options) error {
	prov, err := store.ListProvenance(sessionID, opts.last)
	if err != nil {
		return err
	}
	rows := make([]decisionRow, len(prov))
	for i, p := range prov {
		rows[i] = decisionRow{
			BatchID:     p.BatchID,
			Trigger:     p.TriggerType,
			Decision:    p.Decision,
			Reason:      p.Reason,
			LevelBefore: p.LevelBefore,
			LevelAfter:  p.LevelAfter,
			CreatedAt:   p.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Record:      parseRecord(p.SignalsJSON),
		}
	}
	if opts.jsonOut {
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return nil
	}

	fmt.Printf("%-20s  %-7s  %-8s  %-6s  %5s  %s\n", "Time", "Trigger", "Decision", "Level", "Score", "Reason")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range rows {
		score := "-"
		if r.Record != nil {
			score = fmt.Sprintf("%d", r.Record.Score)
		}
		fmt.Printf("%-20s  %-7s  %-8s  %d->%-3d  %5s  %s\n",
			r.CreatedAt, r.Trigger, r.Decision, r.LevelBefore, r.LevelAfter, score, r.Reason)
	}
	return nil
}

type stateOutput struct {
	SessionID   string `json:"session_id"`
	Level       int    `json:"level"`
	LastNudgeAt string `json:"last_nudge_at,omitempty"`
	History     int    `json:"history"`
}

func runState(store *state.Store, sessionID string, opts *options) error {
	st, err := store.LoadEscalation(sessionID)
	if err != nil {
		return err
	}
	out := stateOutput{SessionID: sessionID, Level: st.Level, History: len(st.History)}
	if !st.LastNudgeAt.IsZero() {
		out.LastNudgeAt = st.LastNudgeAt.Format("2006-01-02T15:04:05Z")
	}
	if opts.jsonOut {
		return printJSON(out)
	}

	last := out.LastNudgeAt
	if last == "" {
		last = "never"
	}
	fmt.Printf("Session:    %s\n", out.SessionID)
	fmt.Printf("Level:      %d\n", out.Level)
	fmt.Printf("Last nudge: %s\n", last)
	fmt.Printf("History:    %d/%d\n", out.History, state.MaxNudgeHistory)
	return nil
}

// #endregion views

// #region output

func parseRecord(signalsJSON string) *decisionSignals {
	if signalsJSON == "" {
		return nil
	}
	var rec logging.DecisionRecord
	if err := json.Unmarshal([]byte(signalsJSON), &rec); err != nil {
		return nil
	}
	return &decisionSignals{
		Score:   rec.Analysis.ConcerningSignals,
		Urgency: string(rec.Analysis.Urgency),
		Signals: signalNames(rec.Analysis.SignalTypes),
	}
}

func signalNames[T ~string](sigs []T) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = string(s)
	}
	return out
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
