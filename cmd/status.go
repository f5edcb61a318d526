package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/dwq/internal/db"
	"github.com/sells-group/dwq/internal/monitoring"
	"github.com/sells-group/dwq/internal/runlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize recent load and check health",
	Long:  "Aggregates the run log over the lookback window and sends failure-rate alerts when --alert is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		hours, _ := cmd.Flags().GetInt("lookback")
		if hours <= 0 {
			hours = cfg.Monitoring.LookbackHours
		}

		snap, err := monitoring.NewCollector(runlog.New(pool)).Collect(ctx, hours)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if err := writeJSON(os.Stdout, snap); err != nil {
				return err
			}
		} else {
			formatSnapshot(os.Stdout, snap)
		}

		if alert, _ := cmd.Flags().GetBool("alert"); alert {
			a := monitoring.NewAlerter(cfg.Monitoring, logger)
			a.SendAlerts(ctx, a.Evaluate(snap))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("lookback", 0, "lookback window in hours (default from config)")
	statusCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	statusCmd.Flags().Bool("alert", false, "send failure-rate alerts to the configured webhook")
	rootCmd.AddCommand(statusCmd)
}

// formatSnapshot writes load and check summaries side by side.
func formatSnapshot(out io.Writer, snap *monitoring.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Last %dh\tLOADS\tCHECKS\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Total:\t%d\t%d\n", snap.Loads.Total, snap.Checks.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\t%d\n", snap.Loads.Complete, snap.Checks.Complete)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\t%d\n", snap.Loads.Failed, snap.Checks.Failed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\t%d\n", snap.Loads.Running, snap.Checks.Running)
	_, _ = fmt.Fprintf(w, "Fail rate:\t%.1f%%\t%.1f%%\n", snap.Loads.FailRate*100, snap.Checks.FailRate*100)
	_, _ = fmt.Fprintf(w, "Last success:\t%s\t%s\n", formatWhen(snap.Loads.LastSuccess), formatWhen(snap.Checks.LastSuccess))
	_, _ = fmt.Fprintf(w, "Last rows:\t%d\t%d\n", snap.Loads.LastRows, snap.Checks.LastRows)
	_ = w.Flush()

	if snap.Loads.LastError != "" {
		_, _ = fmt.Fprintf(out, "\nLast load error: %s\n", snap.Loads.LastError)
	}
	if snap.Checks.LastError != "" {
		_, _ = fmt.Fprintf(out, "Last check error: %s\n", snap.Checks.LastError)
	}
}

func formatWhen(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}
