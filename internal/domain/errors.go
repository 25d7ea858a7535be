package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a play session has not been opened.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuestionsUnavailable indicates the question collections could not be loaded.
	ErrQuestionsUnavailable = errors.New("questions unavailable")
	// ErrUserNotFound is returned when an account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned on registration with an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials covers unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidRole rejects roles other than student and teacher.
	ErrInvalidRole = errors.New("invalid role")
	// ErrForbidden is returned when the caller's role does not allow an action.
	ErrForbidden = errors.New("forbidden")
)
