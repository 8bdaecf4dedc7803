package report

import (
	"github.com/spf13/cobra"

	"github.com/mfareport/cli/internal/app"
	"github.com/mfareport/cli/internal/config"
	"github.com/mfareport/cli/internal/format"
	"github.com/mfareport/cli/internal/pipeline"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one report pass",
	Long: `Authenticate, fetch the tenant's users, filter them by customer domain and
email the users without MFA to the configured recipient.

A failure to send the email is reported but does not fail the command.`,
	Args: cobra.NoArgs,
	RunE: RunReport,
}

// RunReport performs one pipeline pass. It is also the root command's action.
func RunReport(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	runner := app.NewRunner(cfg, logger, pipeline.Options{
		DryRun:    dryRun,
		DryRunOut: cmd.OutOrStdout(),
	})

	res, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}

	format.PrintDebug("Run %s: %d fetched, %d matched, %d without MFA",
		res.RunID, res.Fetched, len(res.Matched), len(res.NonCompliant))
	if len(res.Unknown) > 0 {
		format.PrintWarning("%d matched users had no MFA record and were reported as non-compliant", len(res.Unknown))
	}
	return nil
}

func init() {
	RunCmd.Flags().Bool("dry-run", false, "print the report instead of sending it")
}
