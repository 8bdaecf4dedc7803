package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfareport/cli/cmd/auth"
	"github.com/mfareport/cli/cmd/config"
	"github.com/mfareport/cli/cmd/report"
	"github.com/mfareport/cli/cmd/schedule"
	"github.com/mfareport/cli/cmd/users"
	appConfig "github.com/mfareport/cli/internal/config"
	"github.com/mfareport/cli/internal/format"
)

// Annotations understood by the root pre-run hook
const (
	SkipConfig   = "skip-config"
	SkipValidate = "skip-validate"
)

var (
	cfgFile string
	debug   bool
	output  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mfareport",
	Short: "mfareport - MFA compliance report for a security platform tenant",
	Long: `mfareport signs in to the security platform, lists the tenant's users,
keeps those whose email contains one of the configured customer domains and
emails the ones without MFA to the configured recipient.

Run without a subcommand to perform one report pass.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			appConfig.SetDebug(true)
		}
		if output != "" {
			appConfig.SetOutputFormat(output)
		}

		if cmd.Annotations[SkipConfig] == "true" {
			return nil
		}

		if err := appConfig.Initialize(cfgFile); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}
		format.PrintDebug("Using config file: %s", appConfig.Path())

		if open, err := appConfig.CheckPermissions(appConfig.Path()); err == nil && open {
			format.PrintWarning("%s is readable by other users; run: chmod 600 %s", appConfig.Path(), appConfig.Path())
		}

		if cmd.Annotations[SkipValidate] == "true" {
			return nil
		}
		return appConfig.Get().Validate()
	},
	RunE: report.RunReport,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		return fmt.Errorf("interrupted")
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mfareport.yaml or $HOME/mfareport.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output format (table, json, yaml, text)")

	config.InitCmd.Annotations = map[string]string{SkipConfig: "true"}
	config.ShowCmd.Annotations = map[string]string{SkipValidate: "true"}
	config.ValidateCmd.Annotations = map[string]string{SkipValidate: "true"}
	schedule.UninstallCmd.Annotations = map[string]string{SkipValidate: "true"}
	schedule.StatusCmd.Annotations = map[string]string{SkipValidate: "true"}

	// Add subcommands
	rootCmd.AddCommand(report.RunCmd)
	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(schedule.ScheduleCmd)
	rootCmd.AddCommand(config.ConfigCmd)
}
