package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	appConfig "github.com/mfareport/cli/internal/config"
)

// test seams for the terminal
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// ask prints prompt with its default and returns the answer, or def when the
// answer is blank.
func ask(reader *bufio.Reader, w io.Writer, prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(w, "%s: ", prompt)
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if answer := strings.TrimSpace(line); answer != "" {
		return answer, nil
	}
	return def, nil
}

// askSecret reads a secret without echo from a terminal, or as a plain line
// when stdin is redirected.
func askSecret(reader *bufio.Reader, w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return ask(reader, w, prompt, "")
	}
	fmt.Fprintf(w, "%s: ", prompt)
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// promptConfig fills cfg interactively. Secrets left blank stay empty so they
// can be supplied through the environment instead.
func promptConfig(reader *bufio.Reader, w io.Writer, cfg *appConfig.Config) error {
	var err error
	field := func(dst *string, prompt string) {
		if err != nil {
			return
		}
		*dst, err = ask(reader, w, prompt, *dst)
	}
	secret := func(dst *string, prompt string) {
		if err != nil {
			return
		}
		*dst, err = askSecret(reader, w, prompt)
	}

	field(&cfg.Platform.Name, "Platform name")
	field(&cfg.Platform.URL, "Platform URL")
	field(&cfg.Platform.Username, "Platform username")
	secret(&cfg.Platform.Password, "Platform password (blank to use MFAREPORT_PLATFORM_PASSWORD)")
	field(&cfg.Platform.TenantID, "Tenant ID (blank to take it from the sign-in response)")
	field(&cfg.Report.Customer, "Customer name")

	domains := strings.Join(cfg.Report.Domains, ",")
	field(&domains, "Customer email domains (comma separated)")
	field(&cfg.Report.Recipient, "Report recipient")
	field(&cfg.SMTP.Host, "SMTP host")
	field(&cfg.SMTP.Username, "SMTP username")
	secret(&cfg.SMTP.Password, "SMTP password (blank to use MFAREPORT_SMTP_PASSWORD)")
	field(&cfg.Schedule.Cron, "Schedule (cron)")
	if err != nil {
		return err
	}

	cfg.Report.Domains = splitList(domains)
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
