package domain

import (
	"fmt"
	"unicode"
)

const minPasswordLength = 8

// ValidatePassword enforces the local account password policy: minimum
// length plus upper-case, lower-case, and digit classes.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrWeakPassword, minPasswordLength)
	}

	var (
		hasUpper bool
		hasLower bool
		hasDigit bool
	)

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: password must include upper, lower, and digit", ErrWeakPassword)
	}

	return nil
}
