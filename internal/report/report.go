package report

import (
	"fmt"
	"strings"

	"github.com/mfareport/cli/internal/models"
)

// Options names the parties in the report header
type Options struct {
	Customer string
	Platform string
	Subject  string
}

// Report is a rendered plaintext compliance report
type Report struct {
	Subject string
	Body    string
	Users   int
}

// Compose renders the header and one Name/Email block per user, in the order given
func Compose(opts Options, users []models.User) Report {
	var b strings.Builder
	b.WriteString(Header(opts))
	for _, u := range users {
		fmt.Fprintf(&b, "Name: %s\nEmail: %s\n\n", u.FullName, u.Email)
	}
	return Report{
		Subject: opts.Subject,
		Body:    b.String(),
		Users:   len(users),
	}
}

// Header returns the fixed report preamble
func Header(opts Options) string {
	return fmt.Sprintf("The following users are not compliant with the %s requirement for MFA "+
		"enabled on the %s Platform:\n\n", opts.Customer, opts.Platform)
}
