package domain

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 100
	NameMaxLength     = 100
)

const passwordSpecials = `!@#$%^&*(),.?":{}|<>`

var commonPasswords = map[string]struct{}{
	"123456": {}, "password": {}, "123456789": {}, "12345": {}, "12345678": {},
	"qwerty": {}, "abc123": {}, "111111": {}, "123123": {}, "senha": {}, "admin": {},
}

// PasswordProblems lists every complexity rule pw violates. An empty result
// means the password is acceptable.
func PasswordProblems(pw string) []string {
	if strings.TrimSpace(pw) == "" {
		return []string{"password must not be empty"}
	}

	var problems []string
	n := len([]rune(pw))
	if n < PasswordMinLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", PasswordMinLength))
	}
	if n > PasswordMaxLength {
		problems = append(problems, fmt.Sprintf("password must be at most %d characters", PasswordMaxLength))
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "password must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "password must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "password must contain a digit")
	}
	if !special {
		problems = append(problems, "password must contain a special character")
	}
	if _, ok := commonPasswords[strings.ToLower(pw)]; ok {
		problems = append(problems, "password is too common")
	}
	return problems
}

// ValidatePassword wraps PasswordProblems as an ErrMalformedRequest.
func ValidatePassword(pw string) error {
	problems := PasswordProblems(pw)
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformedRequest, strings.Join(problems, "; "))
}

// ValidateName checks the display name supplied at registration.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrMalformedRequest)
	}
	if len([]rune(name)) > NameMaxLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrMalformedRequest, NameMaxLength)
	}
	return nil
}
