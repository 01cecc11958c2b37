package models

import "errors"

// Common errors for user store and workflow operations.
var (
	// User errors
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateUser   = errors.New("user already exists")
	ErrUserDeactivated = errors.New("user account is deactivated")
	ErrUserUnconfirmed = errors.New("user account is not confirmed")
)
