package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	appConfig "github.com/mfareport/cli/internal/config"
	"github.com/mfareport/cli/internal/format"
	"github.com/mfareport/cli/internal/utils"
)

// ConfigCmd represents the config command
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "CLI configuration commands",
	Long: `CLI configuration commands for mfareport.

This command group includes configuration initialization, display and
validation. Every key can be overridden with an MFAREPORT_ variable, e.g.
MFAREPORT_SMTP_PASSWORD for smtp.password.`,
}

// InitCmd represents the config init command
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

// ShowCmd represents the config show command
var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

// ValidateCmd represents the config validate command
var ValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func runInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := appConfig.Default()
	reader := bufio.NewReader(cmd.InOrStdin())
	if err := promptConfig(reader, cmd.OutOrStdout(), cfg); err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := appConfig.Write(path, cfg); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	format.PrintSuccess("Configuration written to %s", path)

	if err := cfg.Validate(); err != nil {
		format.PrintWarning("Configuration is incomplete; supply the missing values through the environment or edit the file")
		printProblems(err)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	masked := appConfig.Get().Masked()
	if appConfig.GetOutputFormat() == "table" {
		// nested sections read better as YAML than as a flattened table
		data, err := yaml.Marshal(masked)
		if err != nil {
			return fmt.Errorf("could not render configuration: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", appConfig.Path(), data)
		return nil
	}
	return format.Print(masked)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := appConfig.Get().Validate(); err != nil {
		printProblems(err)
		return fmt.Errorf("%s is invalid", appConfig.Path())
	}
	format.PrintSuccess("%s is valid", appConfig.Path())
	return nil
}

func printProblems(err error) {
	var multi *utils.MultiError
	if errors.As(err, &multi) {
		for _, e := range multi.Errors {
			format.PrintError("%v", e)
		}
		return
	}
	format.PrintError("%v", err)
}

func init() {
	InitCmd.Flags().String("path", appConfig.DefaultFileName+".yaml", "where to write the configuration file")
	InitCmd.Flags().Bool("force", false, "overwrite an existing file")

	ConfigCmd.AddCommand(InitCmd)
	ConfigCmd.AddCommand(ShowCmd)
	ConfigCmd.AddCommand(ValidateCmd)
}
