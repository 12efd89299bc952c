// Package model defines domain entities for the application.
package model

import "time"

// User is a registered account.
// Password holds the encoded hash and is never serialized.
type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	Password      string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Sanitize clears the password hash and returns the user for chaining.
func (u *User) Sanitize() *User {
	if u != nil {
		u.Password = ""
	}
	return u
}

// Clone returns a shallow copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
