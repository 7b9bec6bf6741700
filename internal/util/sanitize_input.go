package util

import (
	"strings"
	"unicode"
)

// SanitizeDeviceName trims the label and drops control characters
func SanitizeDeviceName(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// IsFourDigitPIN reports whether s is exactly four ASCII digits
func IsFourDigitPIN(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
