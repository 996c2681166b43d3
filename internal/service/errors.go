package service

import "errors"

// Service errors, matched with errors.Is by the HTTP layer and the terminal UI.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrForbidden          = errors.New("forbidden")
	ErrNoActiveAttempt    = errors.New("no active attempt")
	ErrAttemptSubmitted   = errors.New("attempt already submitted")
	ErrInvalidPosition    = errors.New("question position out of range")
	ErrNoQuestionSource   = errors.New("no question source configured")
	ErrSourceFailed       = errors.New("question source failed")
)
