package dto

import (
	"strings"
	"unicode"
)

const (
	MinPasswordLength = 8
	// MaxPasswordLength is the bcrypt input limit
	MaxPasswordLength = 72

	specialChars = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?"
)

var commonPatterns = []string{"123456", "password", "qwerty", "abc123"}

// PasswordIssues returns every rule password violates for the given
// environment. Development only asks for a letter and a digit, test adds
// mixed case, anything else gets the full rule set.
func PasswordIssues(password, environment string) []string {
	if len(password) < MinPasswordLength {
		return []string{"Password must be at least 8 characters long"}
	}
	if len(password) > MaxPasswordLength {
		return []string{"Password must not exceed 72 characters"}
	}

	var hasUpper, hasLower, hasLetter, hasDigit, hasSpecial bool
	for _, c := range password {
		switch {
		case c > unicode.MaxASCII:
		case unicode.IsUpper(c):
			hasUpper, hasLetter = true, true
		case unicode.IsLower(c):
			hasLower, hasLetter = true, true
		case unicode.IsDigit(c):
			hasDigit = true
		case strings.ContainsRune(specialChars, c):
			hasSpecial = true
		}
	}

	var issues []string

	if environment == "development" {
		if !hasLetter {
			issues = append(issues, "Password must contain at least one letter")
		}
		if !hasDigit {
			issues = append(issues, "Password must contain at least one number")
		}
		return issues
	}

	if !hasUpper {
		issues = append(issues, "Password must contain at least one uppercase letter")
	}
	if !hasLower {
		issues = append(issues, "Password must contain at least one lowercase letter")
	}
	if !hasDigit {
		issues = append(issues, "Password must contain at least one number")
	}
	if environment == "test" {
		return issues
	}

	if !hasSpecial {
		issues = append(issues, "Password must contain at least one special character")
	}
	if hasCommonPattern(password) {
		issues = append(issues, "Password contains a common pattern that is easily guessable")
	}
	if hasSequence(password) {
		issues = append(issues, "Password contains a sequential pattern")
	}
	if hasRepeats(password, 3) {
		issues = append(issues, "Password contains repeating characters")
	}
	return issues
}

// ValidatePassword joins PasswordIssues into a single message, empty when valid
func ValidatePassword(password, environment string) string {
	return strings.Join(PasswordIssues(password, environment), ", ")
}

func hasCommonPattern(password string) bool {
	lower := strings.ToLower(password)
	for _, p := range commonPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// hasSequence detects six ascending letters or five ascending digits
func hasSequence(password string) bool {
	lower := strings.ToLower(password)
	letters, digits := 1, 1
	for i := 1; i < len(lower); i++ {
		prev, cur := lower[i-1], lower[i]
		if cur == prev+1 && prev >= 'a' && cur <= 'z' {
			letters++
		} else {
			letters = 1
		}
		if cur == prev+1 && prev >= '1' && cur <= '9' {
			digits++
		} else {
			digits = 1
		}
		if letters >= 6 || digits >= 5 {
			return true
		}
	}
	return false
}

func hasRepeats(password string, n int) bool {
	run := 1
	runes := []rune(password)
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
