package security

import (
	"strings"
	"unicode"
)

// MaskContact keeps the first and last two digits: 9876543210 -> 98******10.
func MaskContact(contact string) string {
	digits := []rune(DigitsOnly(contact))
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return string(digits[:2]) + strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-2:])
}

// MaskEmail keeps up to two leading characters of the local part:
// alice@example.com -> al***@example.com.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := []rune(email[:at]), email[at:]
	keep := 2
	if len(local) <= 2 {
		keep = 1
	}
	return string(local[:keep]) + "***" + domain
}

func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
