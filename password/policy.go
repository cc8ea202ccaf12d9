package password

import (
	"strings"
	"unicode"
)

const specialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"

// Policy is the strength rule applied to new passwords.
type Policy struct {
	MinLength int
	MaxLength int
	// MinClasses is how many of lower, upper, digit and special must appear.
	MinClasses int
}

// DefaultPolicy requires 8 to 128 characters and three of the four classes.
func DefaultPolicy() Policy {
	return Policy{MinLength: 8, MaxLength: 128, MinClasses: 3}
}

// Strength is the result of Analyze.
type Strength struct {
	Valid    bool
	Score    int
	Feedback []string
}

// Check reports whether password satisfies p.
func (p Policy) Check(password string) bool {
	return p.Analyze(password).Valid
}

// Analyze scores password against p and lists what is missing.
func (p Policy) Analyze(password string) Strength {
	var s Strength
	if password == "" {
		s.Feedback = append(s.Feedback, "password is required")
		return s
	}

	n := len([]rune(password))
	if n < p.MinLength {
		s.Feedback = append(s.Feedback, "password is too short")
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		s.Feedback = append(s.Feedback, "password is too long")
	}

	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	for _, c := range []struct {
		ok  bool
		msg string
	}{
		{lower, "include lowercase letters"},
		{upper, "include uppercase letters"},
		{digit, "include numbers"},
		{special, "include special characters"},
	} {
		if c.ok {
			s.Score++
		} else {
			s.Feedback = append(s.Feedback, c.msg)
		}
	}

	s.Valid = s.Score >= p.MinClasses && n >= p.MinLength && (p.MaxLength == 0 || n <= p.MaxLength)
	if s.Valid {
		s.Feedback = nil
	}
	return s
}
