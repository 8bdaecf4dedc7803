package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfareport/cli/internal/app"
	"github.com/mfareport/cli/internal/config"
	"github.com/mfareport/cli/internal/format"
	"github.com/mfareport/cli/internal/pipeline"
	"github.com/mfareport/cli/internal/scheduler"
	"github.com/mfareport/cli/internal/utils"
)

// ScheduleCmd represents the schedule command
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Unattended run commands",
	Long: `Unattended run commands for mfareport.

The report runs from the host scheduler (cron on Unix-like systems, Task
Scheduler on Windows) or from a foreground daemon.`,
}

// InstallCmd represents the schedule install command
var InstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Register the scheduled run with the host scheduler",
	Long: `Create the state directory with owner-only permissions and register the
weekly run. Installing again replaces the existing entry.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

// UninstallCmd represents the schedule uninstall command
var UninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the scheduled run",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

// StatusCmd represents the schedule status command
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the scheduled run",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// DaemonCmd represents the schedule daemon command
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the report on schedule in the foreground",
	Long: `Keep running and perform a report pass every time schedule.cron fires.
Stop with Ctrl+C or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	entry, err := entryFor(cfg)
	if err != nil {
		return err
	}

	inst := scheduler.NewInstaller(nil)
	if err := inst.Install(cmd.Context(), entry); err != nil {
		return fmt.Errorf("failed to install schedule: %w", err)
	}

	format.PrintSuccess("Scheduled %s (%s)", cfg.Schedule.TaskName, cfg.Schedule.Cron)
	printNext(cfg.Schedule.Cron)
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	inst := scheduler.NewInstaller(nil)
	if err := inst.Uninstall(cmd.Context(), cfg.Schedule.TaskName); err != nil {
		if errors.Is(err, scheduler.ErrNotInstalled) {
			format.PrintInfo("%s is not scheduled", cfg.Schedule.TaskName)
			return nil
		}
		return fmt.Errorf("failed to remove schedule: %w", err)
	}

	format.PrintSuccess("Removed %s", cfg.Schedule.TaskName)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	inst := scheduler.NewInstaller(nil)
	entry, err := inst.Status(cmd.Context(), cfg.Schedule.TaskName)
	if err != nil {
		if errors.Is(err, scheduler.ErrNotInstalled) {
			format.PrintInfo("%s is not scheduled", cfg.Schedule.TaskName)
			return nil
		}
		return err
	}

	status := map[string]interface{}{
		"task":     cfg.Schedule.TaskName,
		"schedule": cfg.Schedule.Cron,
		"entry":    entry,
	}
	if next, err := scheduler.NextRun(cfg.Schedule.Cron, time.Now()); err == nil {
		status["next_run"] = next.Format(time.RFC1123)
	}
	return format.Print(status)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	logger, err := app.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	job := func(ctx context.Context) error {
		res, err := app.NewRunner(cfg, logger, pipeline.Options{}).Run(ctx)
		if err != nil {
			logger.Warn("report run aborted", zap.String("stage", string(utils.StageOf(err))))
			return err
		}
		if res.DeliveryErr != nil {
			logger.Warn("report not delivered", zap.String("run_id", res.RunID))
		}
		return nil
	}

	format.PrintInfo("Running %s on %q; press Ctrl+C to stop", cfg.Schedule.TaskName, cfg.Schedule.Cron)
	printNext(cfg.Schedule.Cron)
	return scheduler.NewDaemon(cfg.Schedule.Cron, job, logger).Run(cmd.Context())
}

// entryFor builds the scheduler entry for the running binary and config file
func entryFor(cfg *config.Config) (scheduler.Entry, error) {
	binary, err := os.Executable()
	if err != nil {
		return scheduler.Entry{}, fmt.Errorf("could not locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(binary); err == nil {
		binary = resolved
	}
	cfgPath, err := filepath.Abs(config.Path())
	if err != nil {
		return scheduler.Entry{}, fmt.Errorf("could not resolve config path: %w", err)
	}

	return scheduler.Entry{
		TaskName:   cfg.Schedule.TaskName,
		Cron:       cfg.Schedule.Cron,
		Binary:     binary,
		ConfigPath: cfgPath,
		StateDir:   cfg.Run.StateDir,
		LogPath:    cfg.Run.LogPath(),
	}, nil
}

func printNext(spec string) {
	if next, err := scheduler.NextRun(spec, time.Now()); err == nil {
		format.PrintInfo("Next run: %s", next.Format(time.RFC1123))
	}
}

func init() {
	ScheduleCmd.AddCommand(InstallCmd)
	ScheduleCmd.AddCommand(UninstallCmd)
	ScheduleCmd.AddCommand(StatusCmd)
	ScheduleCmd.AddCommand(DaemonCmd)
}
