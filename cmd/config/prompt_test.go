package config

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appConfig "github.com/mfareport/cli/internal/config"
)

func stubTerminal(t *testing.T, terminal bool, secrets ...string) {
	t.Helper()
	prevRead, prevTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = prevRead, prevTerm })

	isTerminal = func(int) bool { return terminal }
	readPassword = func(int) ([]byte, error) {
		if len(secrets) == 0 {
			return nil, nil
		}
		s := secrets[0]
		secrets = secrets[1:]
		return []byte(s), nil
	}
}

func TestPromptConfig(t *testing.T) {
	stubTerminal(t, true, "platform-pw", "smtp-pw")

	input := strings.Join([]string{
		"",                          // platform name keeps the default
		"https://acme.plextrac.com", // url
		"svc@acme.com",              // platform username
		"",                          // tenant id
		"Acme",                      // customer
		"acme.com, acme.co.uk,",     // domains
		"security@acme.com",         // recipient
		"",                          // smtp host
		"reports@acme.com",          // smtp username
		"",                          // schedule
	}, "\n") + "\n"

	var out bytes.Buffer
	cfg := appConfig.Default()
	require.NoError(t, promptConfig(bufio.NewReader(strings.NewReader(input)), &out, cfg))

	assert.Equal(t, "Plextrac", cfg.Platform.Name)
	assert.Equal(t, "https://acme.plextrac.com", cfg.Platform.URL)
	assert.Equal(t, "platform-pw", cfg.Platform.Password)
	assert.Equal(t, "", cfg.Platform.TenantID)
	assert.Equal(t, []string{"acme.com", "acme.co.uk"}, cfg.Report.Domains)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, "smtp-pw", cfg.SMTP.Password)
	assert.Equal(t, "0 8 * * 5", cfg.Schedule.Cron)
	assert.Contains(t, out.String(), "Platform name [Plextrac]: ")
}

func TestPromptConfigRedirectedStdin(t *testing.T) {
	stubTerminal(t, false)

	input := "\nhttps://p.example.com\nsvc\nsecret\n\nAcme\nacme.com\nsec@acme.com\n\nr@acme.com\nsmtp-secret\n"
	cfg := appConfig.Default()
	require.NoError(t, promptConfig(bufio.NewReader(strings.NewReader(input)), &bytes.Buffer{}, cfg))

	assert.Equal(t, "secret", cfg.Platform.Password)
	assert.Equal(t, "smtp-secret", cfg.SMTP.Password)
	assert.Equal(t, "0 8 * * 5", cfg.Schedule.Cron, "EOF keeps the default")
	assert.NoError(t, cfg.Validate())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b ,"))
	assert.Equal(t, []string{}, splitList(""))
}
