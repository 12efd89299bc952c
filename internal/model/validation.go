package model

import (
	"errors"
	"net/mail"
	"regexp"
	"unicode/utf8"
)

// Registration limits.
const (
	UsernameMinLength = 1
	UsernameMaxLength = 50
	PasswordMinLength = 8
	PasswordMaxLength = 128
	EmailMaxLength    = 254
)

// Registration validation errors.
var (
	ErrEmailInvalid     = errors.New("email is invalid")
	ErrUsernameInvalid  = errors.New("username must be 1-50 characters of letters, digits, '.', '_' or '-'")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 128 characters")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	if email == "" || len(email) > EmailMaxLength {
		return ErrEmailInvalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrEmailInvalid
	}
	return nil
}

// ValidateUsername checks length and allowed characters.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < UsernameMinLength || n > UsernameMaxLength {
		return ErrUsernameInvalid
	}
	if !usernamePattern.MatchString(username) {
		return ErrUsernameInvalid
	}
	return nil
}

// ValidatePassword checks plaintext password length.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLength {
		return ErrPasswordTooShort
	}
	if n > PasswordMaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateRegistration runs all registration field checks in order.
func ValidateRegistration(email, username, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidateUsername(username); err != nil {
		return err
	}
	return ValidatePassword(password)
}
