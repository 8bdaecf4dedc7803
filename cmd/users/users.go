package users

import (
	"github.com/spf13/cobra"

	"github.com/mfareport/cli/internal/app"
	"github.com/mfareport/cli/internal/config"
	"github.com/mfareport/cli/internal/format"
	"github.com/mfareport/cli/internal/models"
	"github.com/mfareport/cli/internal/pipeline"
)

// UsersCmd represents the users command
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the customer's users without MFA",
	Long: `Fetch the tenant directory and print the users matching the customer domains.

By default only users without MFA are listed, which is exactly what the
emailed report contains. Nothing is sent.`,
	Args: cobra.NoArgs,
	RunE: runUsers,
}

func runUsers(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	matched, _ := cmd.Flags().GetBool("matched")

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// listing takes no lock and records no metrics
	runner := pipeline.NewRunner(cfg, app.NewClient(cfg), nil, logger, pipeline.Options{})
	res, err := runner.Collect(cmd.Context())
	if err != nil {
		return err
	}

	list := res.NonCompliant
	if matched {
		list = res.Matched
	}
	format.PrintDebug("%d entries fetched over %d pages, %d matched", res.Fetched, res.Pages, len(res.Matched))
	return format.Print(models.UserList(list))
}

func init() {
	UsersCmd.Flags().Bool("matched", false, "list every matched user, not only those without MFA")
}
