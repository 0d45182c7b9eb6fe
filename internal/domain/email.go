package domain

import "regexp"

// emailPattern is a pragmatic address check: local part, one '@', and a
// dotted domain. Full RFC 5322 parsing is left to the SMTP server.
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// IsValidEmail reports whether raw looks like a deliverable email address.
func IsValidEmail(raw string) bool {
	return raw != "" && len(raw) <= 254 && emailPattern.MatchString(raw)
}
