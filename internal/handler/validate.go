package handler

import (
	"regexp"
	"unicode"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\s-]{6,14}$`)

func validEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func validPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// validPassword enforces the registration password policy: at least 8
// characters with an uppercase letter, a lowercase letter, and a
// symbol.
func validPassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var upper, lower, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && symbol
}
