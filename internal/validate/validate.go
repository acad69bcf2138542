// Package validate normalizes and checks user supplied values.
package validate

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"projecthub-service/pkg/apperr"
)

// ReservedSubdomain selects the super admin at login and can never be
// registered.
const ReservedSubdomain = "system"

const (
	minPasswordLength = 8
	maxNameLength     = 255
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Email lower-cases and checks an address
func Email(s string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(s))
	if email == "" {
		return "", apperr.Invalid("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Invalid("Invalid email address")
	}
	return email, nil
}

// Password checks the minimum length
func Password(s string) error {
	if len(s) < minPasswordLength {
		return apperr.Invalid("Password must be at least 8 characters")
	}
	return nil
}

// Name trims and checks a required display name
func Name(field, s string) (string, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", apperr.Invalid(field + " is required")
	}
	if len(name) > maxNameLength {
		return "", apperr.Invalid(field + " is too long")
	}
	return name, nil
}

// Subdomain lower-cases and checks a tenant slug. The reserved selector is
// reported as a conflict.
func Subdomain(s string) (string, error) {
	sub := strings.ToLower(strings.TrimSpace(s))
	if len(sub) < 3 || len(sub) > 63 || !subdomainPattern.MatchString(sub) {
		return "", apperr.Invalid("Subdomain must be 3-63 lowercase letters, digits or hyphens")
	}
	if sub == ReservedSubdomain {
		return "", apperr.Conflict("Subdomain is reserved")
	}
	return sub, nil
}

// Date parses a YYYY-MM-DD or RFC 3339 date and truncates it to a UTC day
func Date(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, apperr.Invalid("Invalid date, expected YYYY-MM-DD")
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
