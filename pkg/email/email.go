// Package email derives human-friendly names from email addresses.
package email

import (
	"strings"
	"unicode"
)

// NameParts splits the local part of address into a first and last name,
// e.g. "jane.w.kamau+farm@example.org" gives ("Jane", "Kamau"). Either part
// is empty when it cannot be derived.
func NameParts(address string) (first, last string) {
	local, _, _ := strings.Cut(strings.TrimSpace(address), "@")
	local, _, _ = strings.Cut(local, "+")

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	parts = withLetters(parts)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return capitalize(parts[0]), ""
	default:
		return capitalize(parts[0]), capitalize(parts[len(parts)-1])
	}
}

func withLetters(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.IndexFunc(p, unicode.IsLetter) >= 0 {
			out = append(out, p)
		}
	}
	return out
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
