// Package validate provides shared validation functions for user input.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
)

// SessionID validates a session id taken from the command line. Ids are
// used as remote document keys, so they may not contain whitespace or '/'.
func SessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.ContainsAny(id, " \t\n/") {
		return fmt.Errorf("session id %q may not contain whitespace or '/'", id)
	}
	return nil
}

// Email validates a bare email address such as "ada@example.com".
func Email(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("email is required")
	}

	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return fmt.Errorf("invalid email %q", addr)
	}
	return nil
}
