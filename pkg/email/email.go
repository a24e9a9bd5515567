// Package email validates subject email addresses and masks them for logs.
package email

import (
	"net/mail"
	"strings"
)

// Valid reports whether s is a single bare address such as "a@b.com".
// Display-name forms ("Alice <a@b.com>") are rejected.
func Valid(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s[strings.IndexByte(s, '@')+1:], ".")
}

// Mask keeps the first character of the local part and the domain:
// "alice@example.com" becomes "a***@example.com".
func Mask(s string) string {
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		if s == "" {
			return ""
		}
		return "***"
	}
	return s[:1] + "***" + s[at:]
}
