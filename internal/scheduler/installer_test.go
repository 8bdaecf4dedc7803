package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	stdin string
	name  string
	args  []string
}

// fakeRunner keeps an in-memory crontab and records every command
type fakeRunner struct {
	crontab   string
	noCrontab bool
	failWith  error
	calls     []call
}

func (f *fakeRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, string, error) {
	f.calls = append(f.calls, call{stdin: stdin, name: name, args: args})
	if f.failWith != nil {
		return "", "access denied", f.failWith
	}
	if name == "crontab" && len(args) == 1 && args[0] == "-l" {
		if f.noCrontab {
			return "", "no crontab for tester", errors.New("exit status 1")
		}
		return f.crontab, "", nil
	}
	if name == "crontab" && len(args) == 1 && args[0] == "-" {
		f.crontab = stdin
		f.noCrontab = false
		return "", "", nil
	}
	return "TaskName: \\MFAReport\nStatus: Ready\n", "", nil
}

func testEntry(t *testing.T) Entry {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "state")
	return Entry{
		TaskName:   "MFAReport",
		Cron:       "0 8 * * 5",
		Binary:     "/usr/local/bin/mfareport",
		ConfigPath: "/etc/mfareport/mfareport.yaml",
		StateDir:   dir,
		LogPath:    filepath.Join(dir, "mfareport.log"),
	}
}

func TestInstallCronIsIdempotent(t *testing.T) {
	fr := &fakeRunner{crontab: "MAILTO=ops@acme.com\n15 3 * * * /usr/bin/backup\n"}
	inst := &Installer{GOOS: "linux", runner: fr}
	e := testEntry(t)

	require.NoError(t, inst.Install(context.Background(), e))
	require.NoError(t, inst.Install(context.Background(), e))

	lines := strings.Split(strings.TrimSpace(fr.crontab), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "MAILTO=ops@acme.com", lines[0])
	assert.Equal(t, "15 3 * * * /usr/bin/backup", lines[1])
	assert.Equal(t, CronLine(e), lines[2])
	assert.True(t, strings.HasPrefix(lines[2], "0 8 * * 5 /usr/local/bin/mfareport run --config /etc/mfareport/mfareport.yaml >> "))
	assert.True(t, strings.HasSuffix(lines[2], "# mfareport:MFAReport"))

	info, err := os.Stat(e.StateDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}
}

func TestInstallCronWithoutExistingCrontab(t *testing.T) {
	fr := &fakeRunner{noCrontab: true}
	inst := &Installer{GOOS: "darwin", runner: fr}
	e := testEntry(t)

	require.NoError(t, inst.Install(context.Background(), e))
	assert.Equal(t, CronLine(e)+"\n", fr.crontab)
}

func TestInstallWindows(t *testing.T) {
	fr := &fakeRunner{}
	inst := &Installer{GOOS: "windows", runner: fr}
	e := testEntry(t)
	e.Binary = `C:\Program Files\mfareport\mfareport.exe`
	e.ConfigPath = `C:\Users\svc\mfareport.yaml`

	require.NoError(t, inst.Install(context.Background(), e))
	require.Len(t, fr.calls, 1)
	c := fr.calls[0]
	assert.Equal(t, "schtasks", c.name)
	assert.Equal(t, []string{
		"/Create", "/F", "/SC", "WEEKLY", "/D", "FRI", "/TN", "MFAReport",
		"/TR", `"C:\Program Files\mfareport\mfareport.exe" run --config "C:\Users\svc\mfareport.yaml"`,
		"/ST", "08:00",
	}, c.args)
}

func TestInstallWindowsFailure(t *testing.T) {
	fr := &fakeRunner{failWith: errors.New("exit status 1")}
	inst := &Installer{GOOS: "windows", runner: fr}

	err := inst.Install(context.Background(), testEntry(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestInstallUnsupportedPlatform(t *testing.T) {
	fr := &fakeRunner{}
	inst := &Installer{GOOS: "plan9", runner: fr}

	err := inst.Install(context.Background(), testEntry(t))
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.Empty(t, fr.calls)

	_, err = inst.Status(context.Background(), "MFAReport")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestInstallRejectsBadEntries(t *testing.T) {
	inst := &Installer{GOOS: "linux", runner: &fakeRunner{}}

	e := testEntry(t)
	e.Cron = "every friday"
	assert.Error(t, inst.Install(context.Background(), e))

	for _, spec := range []string{"@every 1h", "CRON_TZ=UTC 0 8 * * 5"} {
		e = testEntry(t)
		e.Cron = spec
		assert.Error(t, inst.Install(context.Background(), e), spec)
	}

	e = testEntry(t)
	e.Binary = ""
	assert.Error(t, inst.Install(context.Background(), e))
}

func TestUninstallCron(t *testing.T) {
	e := testEntry(t)
	fr := &fakeRunner{crontab: "15 3 * * * /usr/bin/backup\n" + CronLine(e) + "\n"}
	inst := &Installer{GOOS: "linux", runner: fr}

	require.NoError(t, inst.Uninstall(context.Background(), "MFAReport"))
	assert.Equal(t, "15 3 * * * /usr/bin/backup\n", fr.crontab)

	assert.ErrorIs(t, inst.Uninstall(context.Background(), "MFAReport"), ErrNotInstalled)
}

func TestUninstallLeavesOtherTasks(t *testing.T) {
	e := testEntry(t)
	other := e
	other.TaskName = "MFAReportEU"
	fr := &fakeRunner{crontab: CronLine(e) + "\n" + CronLine(other) + "\n"}
	inst := &Installer{GOOS: "linux", runner: fr}

	require.NoError(t, inst.Uninstall(context.Background(), "MFAReport"))
	assert.Equal(t, CronLine(other)+"\n", fr.crontab)
}

func TestUninstallWindows(t *testing.T) {
	fr := &fakeRunner{}
	inst := &Installer{GOOS: "windows", runner: fr}

	require.NoError(t, inst.Uninstall(context.Background(), "MFAReport"))
	require.Len(t, fr.calls, 1)
	assert.Equal(t, []string{"/Delete", "/TN", "MFAReport", "/F"}, fr.calls[0].args)
}

func TestStatus(t *testing.T) {
	e := testEntry(t)
	fr := &fakeRunner{crontab: CronLine(e) + "\n"}
	inst := &Installer{GOOS: "linux", runner: fr}

	line, err := inst.Status(context.Background(), "MFAReport")
	require.NoError(t, err)
	assert.Equal(t, CronLine(e), line)

	_, err = inst.Status(context.Background(), "Other")
	assert.ErrorIs(t, err, ErrNotInstalled)

	win := &Installer{GOOS: "windows", runner: &fakeRunner{}}
	out, err := win.Status(context.Background(), "MFAReport")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Ready")
}

func TestCronLineQuotesPaths(t *testing.T) {
	line := CronLine(Entry{
		TaskName:   "MFAReport",
		Cron:       "0 8 * * 5",
		Binary:     "/opt/mfa report/mfareport",
		ConfigPath: "/home/o'neil/mfareport.yaml",
		StateDir:   "/var/lib/mfareport",
	})

	assert.Equal(t, `0 8 * * 5 '/opt/mfa report/mfareport' run --config '/home/o'\''neil/mfareport.yaml' >> /var/lib/mfareport/mfareport.log 2>&1 # mfareport:MFAReport`, line)
}

func TestCronLineEscapesPercent(t *testing.T) {
	line := CronLine(Entry{
		TaskName:   "MFAReport",
		Cron:       "0 8 * * 5",
		Binary:     "/opt/mfareport/mfareport",
		ConfigPath: "/srv/100%/mfareport.yaml",
		LogPath:    "/var/log/mfa%d.log",
	})

	assert.Equal(t, `0 8 * * 5 /opt/mfareport/mfareport run --config '/srv/100\%/mfareport.yaml' >> '/var/log/mfa\%d.log' 2>&1 # mfareport:MFAReport`, line)
}

func TestWindowsTrigger(t *testing.T) {
	tests := []struct {
		spec    string
		day     string
		at      string
		wantErr bool
	}{
		{spec: "0 8 * * 5", day: "FRI", at: "08:00"},
		{spec: "30 17 * * 1", day: "MON", at: "17:30"},
		{spec: "5 0 * * 0", day: "SUN", at: "00:05"},
		{spec: "5 0 * * 7", day: "SUN", at: "00:05"},
		{spec: "0 9 * * wed", day: "WED", at: "09:00"},
		{spec: "0 8 1 * 5", wantErr: true},
		{spec: "0 8 * 6 5", wantErr: true},
		{spec: "*/5 8 * * 5", wantErr: true},
		{spec: "0 24 * * 5", wantErr: true},
		{spec: "0 8 * * 1-5", wantErr: true},
		{spec: "0 8 * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			day, at, err := WindowsTrigger(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.day, day)
			assert.Equal(t, tt.at, at)
		})
	}
}

func TestNextRun(t *testing.T) {
	// Wednesday
	from := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

	next, err := NextRun("0 8 * * 5", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 8, 8, 0, 0, 0, time.UTC), next)

	_, err = NextRun("bogus", from)
	assert.Error(t, err)
}

func TestPrepareStateDir(t *testing.T) {
	assert.Error(t, PrepareStateDir(""))

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, PrepareStateDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
