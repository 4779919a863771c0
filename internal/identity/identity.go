// Package identity maps NT-style short usernames to the principal names
// the calendar provider expects, and back. Pure string transforms; no
// network access.
package identity

import "strings"

// Resolver performs the mapping for one directory domain.
type Resolver struct {
	// Domain is the mail domain appended to short names, e.g. "example.com".
	Domain string
}

// Principal converts an NT short username to a principal name.
// "JDOE" -> "jdoe@example.com". Names that already look like principals
// pass through unchanged.
func (r Resolver) Principal(short string) string {
	short = strings.TrimSpace(short)
	if short == "" {
		return ""
	}
	if strings.Contains(short, "@") {
		return strings.ToLower(short)
	}
	return strings.ToLower(short) + "@" + r.Domain
}

// Short converts a principal name to the NT short username.
// "jdoe@example.com" -> "JDOE".
func (r Resolver) Short(principal string) string {
	principal = strings.TrimSpace(principal)
	if i := strings.Index(principal, "@"); i >= 0 {
		principal = principal[:i]
	}
	return strings.ToUpper(principal)
}
