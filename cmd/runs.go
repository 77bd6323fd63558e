package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/monitoring"
	"github.com/sells-group/salesops-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect batch run history",
	Long:  "Commands for listing and viewing recorded batch runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batch runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		profile, _ := cmd.Flags().GetString("profile")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:  model.RunStatus(status),
			Profile: profile,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if run == nil {
			return eris.Errorf("runs show: run %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		profile, _ := cmd.Flags().GetString("profile")

		snap, err := monitoring.NewCollector(st).Collect(ctx, profile, int(since/time.Hour))
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		formatRunStats(os.Stdout, snap)
		return nil
	},
}

func init() {
	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")
	runsStatsCmd.Flags().String("profile", "", "restrict to one profile")
	runsCmd.AddCommand(runsStatsCmd)

	runsListCmd.Flags().String("status", "", "filter by run status (accepted, rejected, failed)")
	runsListCmd.Flags().String("profile", "", "filter by profile")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROFILE\tSOURCE\tSTATUS\tROWS\tTX\tUNRESOLVED\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t------\t----\t--\t----------\t-------")

	for _, r := range runs {
		source := r.Source
		if len(source) > 30 {
			source = source[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Profile,
			source,
			r.Status,
			r.Rows,
			r.Transactions,
			formatBranches(r.Unresolved),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Accepted:\t%d\n", s.Accepted)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", s.Rejected)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Reject rate:\t%.1f%%\n", s.RejectRate*100)
	_, _ = fmt.Fprintf(w, "Transactions:\t%d\n", s.Transactions)
	for _, b := range s.Unresolved {
		_, _ = fmt.Fprintf(w, "  %s:\t%d runs\n", formatBranches([]string{b.Branch}), b.Runs)
	}
	_ = w.Flush()
}

func formatBranches(branches []string) string {
	out := make([]string, len(branches))
	for i, b := range branches {
		if b == "" {
			b = "(blank)"
		}
		out[i] = b
	}
	return strings.Join(out, ",")
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
