// Package compliance selects customer users from a raw directory listing and
// reduces them to the ones lacking MFA.
//
// Matching is literal substring containment: the token "example.com" matches
// "a@notexample.com" as well as "a@example.com". Users whose MFA state cannot be
// read are treated as non-compliant.
package compliance

import (
	"strings"

	"github.com/mfareport/cli/internal/models"
)

// Match returns the entries of listing whose email contains at least one of
// domains, converted to users, in listing order. Entries that are not objects or
// have no string email are skipped. No domains means no matches.
func Match(listing *models.Listing, domains []string) []models.User {
	matched := make([]models.User, 0)
	if listing == nil {
		return matched
	}

	tokens := make([]string, 0, len(domains))
	for _, d := range domains {
		if d != "" {
			tokens = append(tokens, d)
		}
	}
	if len(tokens) == 0 {
		return matched
	}

	for _, item := range listing.Data {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		email, ok := entry["email"].(string)
		if !ok {
			continue
		}
		if containsAny(email, tokens) {
			matched = append(matched, toUser(entry, email))
		}
	}
	return matched
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func toUser(entry map[string]interface{}, email string) models.User {
	user := models.User{Email: email}
	if name, ok := entry["fullName"].(string); ok {
		user.FullName = name
	}
	if mfa, ok := entry["mfa"].(map[string]interface{}); ok {
		if enabled, ok := mfa["enabled"].(bool); ok {
			user.MFA = &models.MFAStatus{Enabled: enabled}
		}
	}
	return user
}

// NonCompliant keeps users whose MFA is disabled or unknown, in order
func NonCompliant(users []models.User) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.MFA == nil || !u.MFA.Enabled {
			out = append(out, u)
		}
	}
	return out
}

// Unknown returns the users without a readable MFA record
func Unknown(users []models.User) []models.User {
	out := make([]models.User, 0)
	for _, u := range users {
		if u.MFA == nil {
			out = append(out, u)
		}
	}
	return out
}
