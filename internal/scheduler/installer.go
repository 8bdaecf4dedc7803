package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mfareport/cli/internal/utils"
)

// markerPrefix tags the crontab lines this tool owns
const markerPrefix = "# mfareport:"

var (
	// ErrUnsupportedPlatform is returned on systems with neither cron nor Task Scheduler
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrNotInstalled is returned when no scheduled entry exists
	ErrNotInstalled = errors.New("scheduled run is not installed")
)

// CommandRunner executes host commands
type CommandRunner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run implements CommandRunner
func (ExecRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	err := cmd.Run()
	return out.String(), errOut.String(), err
}

// Entry describes the scheduled invocation
type Entry struct {
	TaskName   string
	Cron       string
	Binary     string
	ConfigPath string
	StateDir   string
	LogPath    string
}

// Installer registers the weekly run with the host scheduler
type Installer struct {
	GOOS   string
	runner CommandRunner
}

// NewInstaller creates an installer for the running OS
func NewInstaller(runner CommandRunner) *Installer {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Installer{GOOS: runtime.GOOS, runner: runner}
}

func (i *Installer) usesCron() (bool, error) {
	switch i.GOOS {
	case "linux", "darwin", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "illumos", "aix":
		return true, nil
	case "windows":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, i.GOOS)
	}
}

// Install prepares the state directory and registers e, replacing any
// previous entry with the same task name.
func (i *Installer) Install(ctx context.Context, e Entry) error {
	cronOS, err := i.usesCron()
	if err != nil {
		return err
	}
	if err := utils.ValidateCronSpec(e.Cron); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	if e.Binary == "" || e.ConfigPath == "" {
		return fmt.Errorf("binary and config paths are required")
	}
	if err := PrepareStateDir(e.StateDir); err != nil {
		return err
	}

	if cronOS {
		return i.installCron(ctx, e)
	}
	return i.installWindows(ctx, e)
}

// Uninstall removes the entry for task
func (i *Installer) Uninstall(ctx context.Context, task string) error {
	cronOS, err := i.usesCron()
	if err != nil {
		return err
	}
	if !cronOS {
		if _, stderr, err := i.runner.Run(ctx, "", "schtasks", "/Delete", "/TN", task, "/F"); err != nil {
			return fmt.Errorf("schtasks delete failed: %w: %s", err, strings.TrimSpace(stderr))
		}
		return nil
	}

	current, err := i.readCrontab(ctx)
	if err != nil {
		return err
	}
	kept, removed := withoutTask(current, task)
	if removed == 0 {
		return ErrNotInstalled
	}
	return i.writeCrontab(ctx, kept)
}

// Status returns the installed entry as the scheduler reports it
func (i *Installer) Status(ctx context.Context, task string) (string, error) {
	cronOS, err := i.usesCron()
	if err != nil {
		return "", err
	}
	if !cronOS {
		stdout, _, err := i.runner.Run(ctx, "", "schtasks", "/Query", "/TN", task, "/FO", "LIST")
		if err != nil {
			return "", ErrNotInstalled
		}
		return strings.TrimSpace(stdout), nil
	}

	current, err := i.readCrontab(ctx)
	if err != nil {
		return "", err
	}
	for _, line := range current {
		if isTaskLine(line, task) {
			return line, nil
		}
	}
	return "", ErrNotInstalled
}

func (i *Installer) installCron(ctx context.Context, e Entry) error {
	current, err := i.readCrontab(ctx)
	if err != nil {
		return err
	}
	kept, _ := withoutTask(current, e.TaskName)
	kept = append(kept, CronLine(e))
	return i.writeCrontab(ctx, kept)
}

func (i *Installer) installWindows(ctx context.Context, e Entry) error {
	day, at, err := WindowsTrigger(e.Cron)
	if err != nil {
		return err
	}
	action := fmt.Sprintf(`"%s" run --config "%s"`, e.Binary, e.ConfigPath)
	_, stderr, err := i.runner.Run(ctx, "", "schtasks",
		"/Create", "/F", "/SC", "WEEKLY", "/D", day, "/TN", e.TaskName, "/TR", action, "/ST", at)
	if err != nil {
		return fmt.Errorf("schtasks create failed: %w: %s", err, strings.TrimSpace(stderr))
	}
	return nil
}

// readCrontab returns the current crontab lines; a missing crontab is empty
func (i *Installer) readCrontab(ctx context.Context) ([]string, error) {
	stdout, stderr, err := i.runner.Run(ctx, "", "crontab", "-l")
	if err != nil {
		if strings.Contains(strings.ToLower(stderr), "no crontab") {
			return nil, nil
		}
		return nil, fmt.Errorf("crontab -l failed: %w: %s", err, strings.TrimSpace(stderr))
	}
	var lines []string
	for _, line := range strings.Split(stdout, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (i *Installer) writeCrontab(ctx context.Context, lines []string) error {
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if _, stderr, err := i.runner.Run(ctx, content, "crontab", "-"); err != nil {
		return fmt.Errorf("crontab install failed: %w: %s", err, strings.TrimSpace(stderr))
	}
	return nil
}

func isTaskLine(line, task string) bool {
	return strings.HasSuffix(strings.TrimSpace(line), markerPrefix+task)
}

func withoutTask(lines []string, task string) ([]string, int) {
	kept := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if isTaskLine(line, task) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return kept, removed
}

// CronLine renders the crontab entry for e
func CronLine(e Entry) string {
	logPath := e.LogPath
	if logPath == "" {
		logPath = e.StateDir + "/mfareport.log"
	}
	return fmt.Sprintf("%s %s run --config %s >> %s 2>&1 %s%s",
		e.Cron, cronQuote(e.Binary), cronQuote(e.ConfigPath), cronQuote(logPath), markerPrefix, e.TaskName)
}

// cronQuote shell-quotes s and escapes %, which cron turns into a newline
// even inside quotes.
func cronQuote(s string) string {
	return strings.ReplaceAll(shellQuote(s), "%", `\%`)
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"'$`\\;&|<>()*?[]#~%") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var weekdays = []string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// WindowsTrigger maps a weekly cron expression to schtasks /D and /ST values.
// Only a single minute, hour and weekday are expressible.
func WindowsTrigger(spec string) (day, at string, err error) {
	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return "", "", fmt.Errorf("schedule %q must have 5 fields", spec)
	}
	if fields[2] != "*" || fields[3] != "*" {
		return "", "", fmt.Errorf("schedule %q must be weekly (day-of-month and month must be *)", spec)
	}

	minute, err := strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return "", "", fmt.Errorf("schedule %q needs a single minute", spec)
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return "", "", fmt.Errorf("schedule %q needs a single hour", spec)
	}

	dow := strings.ToUpper(fields[4])
	if n, err := strconv.Atoi(dow); err == nil && n >= 0 && n <= 7 {
		day = weekdays[n%7]
	}
	for _, name := range weekdays {
		if dow == name {
			day = name
		}
	}
	if day == "" {
		return "", "", fmt.Errorf("schedule %q needs a single weekday", spec)
	}

	return day, fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// PrepareStateDir creates dir readable only by the owner
func PrepareStateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("could not create state directory: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(dir, 0o700); err != nil {
			return fmt.Errorf("could not restrict state directory: %w", err)
		}
	}
	return nil
}

// NextRun returns when spec next fires after from
func NextRun(spec string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}
