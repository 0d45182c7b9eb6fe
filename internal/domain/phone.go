package domain

import (
	"regexp"
	"strings"
)

// Recognized phone number shapes, matched after separator stripping.
// The set mirrors what the upstream SMS gateway accepts.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\+98[0-9]{10}$`),  // international, plus-prefixed
	regexp.MustCompile(`^0098[0-9]{10}$`),  // international, 00-prefixed
	regexp.MustCompile(`^98[0-9]{10}$`),    // country-code-prefixed, bare
	regexp.MustCompile(`^09[0-9]{9}$`),     // already local
	regexp.MustCompile(`^5000[0-9]{10}$`),  // long-code sender line
	regexp.MustCompile(`^\+?[1-9]\d{1,14}$`), // general E.164
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// CleanPhone strips formatting characters (spaces, dashes, parentheses)
// from a phone number. It performs no validation.
func CleanPhone(raw string) string {
	return phoneSeparators.Replace(raw)
}

// IsValidPhone reports whether raw matches one of the recognized phone
// number shapes after separator stripping.
func IsValidPhone(raw string) bool {
	clean := CleanPhone(raw)
	for _, p := range phonePatterns {
		if p.MatchString(clean) {
			return true
		}
	}
	return false
}

// NormalizePhone converts a phone number in any accepted international form
// to the local form the SMS gateway expects ("09" followed by nine digits).
// One canonical rule:
//
//	+98 9xxxxxxxxx → 09xxxxxxxxx
//	0098 9xxxxxxxxx → 09xxxxxxxxx
//	98 9xxxxxxxxx → 09xxxxxxxxx
//	09xxxxxxxxx → unchanged
//
// Unparseable input is returned unchanged — downstream validation rejects
// it. NormalizePhone never fails and is idempotent.
func NormalizePhone(raw string) string {
	clean := CleanPhone(raw)

	switch {
	case len(clean) == 13 && strings.HasPrefix(clean, "+98"):
		return "0" + clean[3:]
	case len(clean) == 14 && strings.HasPrefix(clean, "0098"):
		return "0" + clean[4:]
	case len(clean) == 12 && strings.HasPrefix(clean, "98") && clean[2] == '9':
		return "0" + clean[2:]
	case len(clean) == 11 && strings.HasPrefix(clean, "09"):
		return clean
	}
	return raw
}
