package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load one window, then run the data-quality battery",
	Long:  "Runs load followed by check in one process. Checks still run after a partial load so the report reflects what was written; a run-aborting load failure skips them.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		w, err := parseWindowFlags(loadStart, loadEnd, time.Now())
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "run", envOptions{
			Source:       loadSource,
			RegistryPath: checkRegistry,
			ReportPath:   checkReport,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.runLoad(ctx, w)
		if err != nil {
			return eris.Wrap(err, "run: load")
		}
		formatLoadResult(os.Stdout, res)

		rep := env.runCheck(ctx)
		_, _ = os.Stdout.WriteString("\n")
		formatReport(os.Stdout, rep)

		if err := loadExit(res); err != nil {
			return err
		}
		return gateExit(rep)
	},
}

func init() {
	addLoadFlags(runCmd)
	addCheckFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
