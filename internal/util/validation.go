package util

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SanitizeInput trims surrounding whitespace from user-supplied text.
func SanitizeInput(s string) string {
	return strings.TrimSpace(s)
}

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// MaskEmail keeps the first character of the local part and the domain:
// "usuario@teste.com" becomes "u******@teste.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return strings.Repeat("*", len(email))
	}
	local := []rune(email[:at])
	return string(local[0]) + strings.Repeat("*", len(local)-1) + email[at:]
}
