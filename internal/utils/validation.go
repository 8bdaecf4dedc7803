package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidateRequired validates that a string is not empty
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateBaseURL validates a platform base URL
func ValidateBaseURL(raw string) error {
	if err := ValidateRequired(raw, "URL"); err != nil {
		return err
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid URL format")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL scheme must be http or https")
	}

	return nil
}

// ValidateDomains checks a domain substring list. Blank tokens would match every
// address, so they are rejected.
func ValidateDomains(domains []string) error {
	if len(domains) == 0 {
		return fmt.Errorf("at least one domain is required")
	}
	for i, d := range domains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("domain #%d is blank", i+1)
		}
	}
	return nil
}

// ValidateCronSpec accepts only plain 5-field cron expressions, the form a
// crontab line and a schtasks trigger can both carry. Descriptors such as
// "@every 1h" and CRON_TZ= prefixes are rejected.
func ValidateCronSpec(spec string) error {
	fields := strings.Fields(spec)
	if len(fields) != 5 {
		return fmt.Errorf("schedule %q must have exactly 5 fields", spec)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// MaskSecret hides a secret entirely, keeping only whether it is set
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
