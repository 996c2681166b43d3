package repository

import "errors"

// Repository errors, matched with errors.Is.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("username already exists")
)
