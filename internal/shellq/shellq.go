// Package shellq builds shell-safe fragments for remote commands. Every
// externally supplied value embedded in a remote command goes through Quote;
// values used as SQL identifiers, unix names, or paths must additionally
// pass the corresponding allow-list check.
package shellq

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	unixNamePattern   = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
	pathPattern       = regexp.MustCompile(`^/[A-Za-z0-9._/-]+$`)
	domainPattern     = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)
)

// Quote wraps a value in single quotes, escaping embedded single quotes so
// the remote shell treats the whole value as one literal word.
func Quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// ValidateIdentifier checks that a value is safe to embed as a database or
// secret identifier: ASCII letters, digits and underscore only.
func ValidateIdentifier(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	if !identifierPattern.MatchString(value) {
		return fmt.Errorf("%s contains characters outside [A-Za-z0-9_]: %q", name, value)
	}
	return nil
}

// ValidateUnixName checks that a value is a plausible unix user or group name
func ValidateUnixName(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	if len(value) > 32 || !unixNamePattern.MatchString(value) {
		return fmt.Errorf("%s is not a valid unix name: %q", name, value)
	}
	return nil
}

// ValidatePath checks that a value is an absolute path without shell
// metacharacters or parent-directory traversal.
func ValidatePath(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	if !pathPattern.MatchString(value) {
		return fmt.Errorf("%s is not a safe absolute path: %q", name, value)
	}
	if strings.Contains(value, "..") {
		return fmt.Errorf("%s must not contain parent-directory traversal: %q", name, value)
	}
	return nil
}

// ValidateDomain checks that a value looks like a DNS name
func ValidateDomain(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", name)
	}
	if len(value) > 253 || !domainPattern.MatchString(strings.ToLower(value)) {
		return fmt.Errorf("%s is not a valid domain: %q", name, value)
	}
	return nil
}
