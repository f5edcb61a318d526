package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dwq/internal/db"
	"github.com/sells-group/dwq/internal/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent load and check runs",
	Long:  "Displays the run log, newest first.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		kind, _ := cmd.Flags().GetString("kind")

		entries, err := runlog.New(pool).ListRecent(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		entries = filterKind(entries, kind)

		if len(entries) == 0 {
			_, _ = fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, entries)
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsCmd.Flags().String("kind", "", "filter by run kind (load, check)")
	rootCmd.AddCommand(runsCmd)
}

func filterKind(entries []runlog.Entry, kind string) []runlog.Entry {
	if kind == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// formatRunsList writes a tabular list of run-log entries to w.
func formatRunsList(out io.Writer, entries []runlog.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSTARTED\tDURATION\tROWS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t--------\t----\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.Duration().Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			e.Kind,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.Rows,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}
