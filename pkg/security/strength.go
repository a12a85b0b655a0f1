// Package security rates wallet passwords.
//
// Ratings are advisory. A wallet accepts any password; callers show the
// warnings and let the user decide.
package security

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Strength is the rating of a password.
type Strength int

const (
	Weak Strength = iota
	Fair
	Good
	Strong
)

// String returns a human-readable representation of the strength.
func (s Strength) String() string {
	switch s {
	case Weak:
		return "Weak"
	case Fair:
		return "Fair"
	case Good:
		return "Good"
	case Strong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// RecommendedLength is the length below which a warning is emitted.
const RecommendedLength = 12

// Report is the result of CheckPassword.
type Report struct {
	Strength Strength
	Warnings []string
}

// CheckPassword rates password by length and character variety. Length is
// counted in characters of the NFC form, matching what the cipher derives
// keys from.
func CheckPassword(password string) Report {
	password = norm.NFC.String(password)
	length := utf8.RuneCountInString(password)

	var upper, lower, digit, other bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	variety := 0
	for _, ok := range []bool{upper, lower, digit, other} {
		if ok {
			variety++
		}
	}

	var r Report
	if length < 8 {
		r.Warnings = append(r.Warnings, "Password is shorter than 8 characters")
	} else if length < RecommendedLength {
		r.Warnings = append(r.Warnings, "Longer passwords (12+ characters) are more secure")
	}
	if variety < 2 {
		r.Warnings = append(r.Warnings, "Consider using a mix of uppercase, lowercase, numbers, and symbols")
	}

	switch {
	case length >= 20, variety >= 3 && length >= 16:
		r.Strength = Strong
	case variety >= 2 && length >= RecommendedLength:
		r.Strength = Good
	case length >= 8:
		r.Strength = Fair
	default:
		r.Strength = Weak
	}
	return r
}
