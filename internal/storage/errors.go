package storage

import "errors"

// ErrUserNotFound is returned when no user matches the given ID or email.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering an email that is already taken.
var ErrEmailExists = errors.New("email already registered")
