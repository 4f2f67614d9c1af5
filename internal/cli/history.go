package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marbles/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string
	Limit int
}

// RunSummary is one stored run as shown by the history command.
type RunSummary struct {
	Seq           int64                     `json:"seq"`
	ID            string                    `json:"id"`
	Pass          bool                      `json:"pass"`
	FinalFrame    int64                     `json:"final_frame"`
	Errors        []string                  `json:"errors,omitempty"`
	Recordings    map[string]string         `json:"recordings"`
	Subscriptions map[string]string         `json:"subscriptions"`
	Drift         []store.FingerprintChange `json:"drift,omitempty"`
}

// HistoryResult lists a scenario's runs, oldest first.
type HistoryResult struct {
	Scenario string       `json:"scenario"`
	Runs     []RunSummary `json:"runs"`
}

func (h HistoryResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s (%d runs)\n", h.Scenario, len(h.Runs))
	for _, r := range h.Runs {
		mark := "✓"
		if !r.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s #%d %s final_frame=%d\n", mark, r.Seq, r.ID, r.FinalFrame)
		for _, c := range r.Drift {
			fmt.Fprintf(&b, "    ! %s %q: %s -> %s\n", c.Kind, c.Name, shortFingerprint(c.Previous), shortFingerprint(c.Current))
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// shortFingerprint abbreviates a fingerprint for text output.
func shortFingerprint(fp string) string {
	switch {
	case fp == "":
		return "(none)"
	case len(fp) > 12:
		return fp[:12]
	default:
		return fp
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <scenario>",
		Short: "Show recorded runs of a scenario",
		Long: `Show the runs of a scenario stored by "marbles test --db", oldest first.

Each run after the first is compared with the one before it; recordings or
subscription logs whose fingerprint changed are listed as drift. A
deterministic scenario never drifts.

Examples:
  marbles history cold_replay --db marbles.db
  marbles history cold_replay --db marbles.db --limit 5 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the run history database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent N runs (0 = all)")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, scenario string) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.DB))
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--limit must be non-negative, got %d", opts.Limit))
	}

	s, err := store.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer s.Close()

	runs, err := s.ReadRuns(cmd.Context(), scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}
	if len(runs) == 0 {
		formatter.Error(ErrCodeNoHistory, fmt.Sprintf("no runs recorded for scenario %q", scenario), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("no runs recorded for scenario %q", scenario))
	}
	opts.logger().Debug("loaded history", "scenario", scenario, "runs", len(runs))

	summaries := make([]RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = summarizeRun(run)
		if i > 0 {
			if drift := store.CompareRuns(runs[i-1], run); len(drift) > 0 {
				summaries[i].Drift = drift
			}
		}
	}
	if opts.Limit > 0 && len(summaries) > opts.Limit {
		summaries = summaries[len(summaries)-opts.Limit:]
	}

	return formatter.Success(HistoryResult{Scenario: scenario, Runs: summaries})
}

func summarizeRun(run store.Run) RunSummary {
	s := RunSummary{
		Seq:           run.Seq,
		ID:            run.ID,
		Pass:          run.Pass,
		FinalFrame:    int64(run.FinalFrame),
		Errors:        run.Errors,
		Recordings:    make(map[string]string, len(run.Recordings)),
		Subscriptions: make(map[string]string, len(run.Subscriptions)),
	}
	for _, r := range run.Recordings {
		s.Recordings[r.Name] = r.Fingerprint
	}
	for _, l := range run.Subscriptions {
		s.Subscriptions[l.Source] = l.Fingerprint
	}
	return s
}
