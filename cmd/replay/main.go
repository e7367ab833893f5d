package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-nudge/go-controller/internal/replay"
)

// #region main

func main() {
	var (
		fixturePath string
		jsonOut     bool
		verbose     bool
	)

	rootCmd := &cobra.Command{
		Use:   "replay --fixture path/to/fixture.json",
		Short: "Replay capture records through the pipeline on a virtual clock",
		Long: `replay feeds a fixture's capture records and manual requests through a
session with canned model replies, then compares each analysis decision and
resulting level against the fixture's expectations. Exit status is 1 when any
expectation diverges.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runFixture(cmd, fixturePath, jsonOut, verbose)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	rootCmd.Flags().StringVar(&fixturePath, "fixture", "", "path to fixture JSON")
	rootCmd.Flags().BoolVar(&jsonOut, "json", false, "output steps as JSON instead of a table")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline decisions")
	_ = rootCmd.MarkFlagRequired("fixture")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(2)
	}
}

// #endregion main

// #region output

func runFixture(cmd *cobra.Command, path string, jsonOut, verbose bool) (int, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return 0, err
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = logging.NewLogger("development", true); err != nil {
			return 0, err
		}
		defer logger.Sync()
	}

	res, err := replay.Replay(cmd.Context(), f, logger)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}
	mismatches := replay.Compare(res.Steps, f.Expected)

	if jsonOut {
		data, err := json.MarshalIndent(struct {
			Steps      []replay.Step     `json:"steps"`
			Summary    replay.Summary    `json:"summary"`
			Mismatches []replay.Mismatch `json:"mismatches"`
		}{res.Steps, res.Summary, mismatches}, "", "  ")
		if err != nil {
			return 0, fmt.Errorf("marshal json: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printSteps(res, f.Expected)
		for _, m := range mismatches {
			fmt.Println("  " + m.String())
		}
	}

	if len(mismatches) > 0 {
		return 1, nil
	}
	return 0, nil
}

// printSteps outputs a comparison table.
func printSteps(res replay.Result, expected []replay.FixtureOutcome) {
	fmt.Printf("%-4s| %-8s| %-7s| %-5s| %-7s| %-6s| %-14s| %s\n",
		"#", "At", "Trigger", "Score", "Urgency", "Level", "Expected", "Replayed")
	fmt.Printf("%s\n", strings.Repeat("-", 80))

	for i, s := range res.Steps {
		exp := "-"
		if i < len(expected) {
			exp = fmt.Sprintf("%s@%d", expected[i].Decision, expected[i].Level)
		}
		fmt.Printf("%-4d| %-8s| %-7s| %-5d| %-7s| %d->%-3d| %-14s| %s@%d\n",
			i+1, fmt.Sprintf("%.1fs", float64(s.AtMs)/1000), s.Trigger, s.Score, s.Urgency,
			s.LevelBefore, s.LevelAfter, exp, s.Decision, s.LevelAfter)
	}

	sum := res.Summary
	fmt.Printf("\nSummary: %d seals, %d analyses, %d nudges, %d holds, %d silent, %d failed, final level %d\n",
		sum.Seals, sum.Analyses, sum.Nudges, sum.Holds, sum.Silent, sum.Failed, sum.FinalLevel)
}

// #endregion output
