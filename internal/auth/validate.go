package auth

import (
	"net/mail"
	"unicode/utf8"
)

const (
	maxNameLength     = 100
	maxEmailLength    = 254
	minPasswordLength = 6
	maxPasswordLength = 128
)

func validateName(name string) error {
	if name == "" {
		return newValidationError("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return newValidationError("name", "must be at most 100 characters")
	}
	return nil
}

// validateEmail expects an already normalized address.
func validateEmail(email string) error {
	if email == "" {
		return newValidationError("email", "is required")
	}
	if len(email) > maxEmailLength {
		return newValidationError("email", "is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return newValidationError("email", "is not a valid address")
	}
	return nil
}

func validatePassword(field, password string) error {
	if password == "" {
		return newValidationError(field, "is required")
	}
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return newValidationError(field, "must be at least 6 characters")
	}
	if n > maxPasswordLength {
		return newValidationError(field, "must be at most 128 characters")
	}
	return nil
}
