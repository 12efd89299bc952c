// Package service provides business logic for the application.
package service

import "errors"

// Service errors.
var (
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrUserNotFound        = errors.New("user not found")
	ErrGroupAlreadyExists  = errors.New("group already exists")
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupOwner          = errors.New("user is not the group owner")
	ErrGroupNameValidation = errors.New("invalid group name")
)
