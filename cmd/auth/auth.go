package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfareport/cli/internal/app"
	"github.com/mfareport/cli/internal/config"
	"github.com/mfareport/cli/internal/format"
	"github.com/mfareport/cli/internal/utils"
)

// AuthCmd represents the auth command
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Platform authentication commands",
	Long: `Platform authentication commands for mfareport.

The platform credentials come from the configuration file or from the
MFAREPORT_PLATFORM_USERNAME and MFAREPORT_PLATFORM_PASSWORD variables.`,
}

// checkCmd represents the auth check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the platform credentials",
	Long:  "Authenticate against the platform and show the tenant the session belongs to",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	client := app.NewClient(cfg)

	format.PrintInfo("Authenticating as %s...", cfg.Platform.Username)
	session, err := client.Authenticate(cmd.Context(), cfg.Platform.Username, cfg.Platform.Password)
	if err != nil {
		if utils.IsAuthError(err) {
			return fmt.Errorf("credentials rejected by %s: %w", cfg.Platform.URL, err)
		}
		if utils.IsForbiddenError(err) {
			return fmt.Errorf("%s may not sign in to %s: %w", cfg.Platform.Username, cfg.Platform.URL, err)
		}
		return utils.NewStageError(utils.StageAuth, err)
	}

	format.PrintSuccess("Authenticated as %s", cfg.Platform.Username)
	return format.Print(map[string]interface{}{
		"platform":  cfg.Platform.Name,
		"url":       cfg.Platform.URL,
		"username":  cfg.Platform.Username,
		"tenant_id": session.TenantID,
	})
}

func init() {
	AuthCmd.AddCommand(checkCmd)
}
