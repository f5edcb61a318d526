package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/dwq/internal/quality"
)

var (
	checkRegistry string
	checkReport   string
	checkJSON     bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the data-quality battery and write the report",
	Long:  "Evaluates every registered check against the warehouse and writes the report. A report is always written; the exit code is non-zero when any check failed or could not run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "check", envOptions{
			RegistryPath: checkRegistry,
			ReportPath:   checkReport,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		rep := env.runCheck(ctx)

		if checkJSON {
			if err := writeJSON(os.Stdout, rep); err != nil {
				return err
			}
		} else {
			formatReport(os.Stdout, rep)
		}

		return gateExit(rep)
	},
}

func init() {
	addCheckFlags(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(checkCmd)
}

func addCheckFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&checkRegistry, "registry", "", "YAML check registry (default: built-in battery)")
	cmd.Flags().StringVar(&checkReport, "report", "", "report output path (default from config)")
}

// gateExit turns a failed gate into a non-zero exit.
func gateExit(rep *quality.Report) error {
	if rep.GatePassed() {
		return nil
	}
	msg := fmt.Sprintf("quality gate failed: %d of %d checks failed (%d errored, %d no data)",
		rep.FailedChecks, rep.TotalChecks, rep.ErroredChecks, rep.NoDataChecks)
	return &exitError{code: 2, msg: msg}
}

// formatReport writes a per-check table and summary to w.
func formatReport(out io.Writer, rep *quality.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHECK\tTABLE\tCOLUMN\tSTATUS\tERRORS\tTOTAL\tERROR_RATE")
	_, _ = fmt.Fprintln(w, "-----\t-----\t------\t------\t------\t-----\t----------")
	for _, d := range rep.CheckDetails {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.2f%%\n",
			d.CheckType,
			d.TableName,
			d.ColumnName,
			d.Status,
			d.ErrorCount,
			d.TotalCount,
			d.ErrorRate*100,
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nTotal: %d  Passed: %d  Failed: %d  (errored %d, no data %d)\n",
		rep.TotalChecks, rep.PassedChecks, rep.FailedChecks, rep.ErroredChecks, rep.NoDataChecks)

	for _, d := range rep.CheckDetails {
		if d.Error != "" {
			_, _ = fmt.Fprintf(out, "  %s:%s.%s: %s\n", d.CheckType, d.TableName, d.ColumnName, d.Error)
		}
	}
}
