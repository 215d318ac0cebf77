package prompt

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("prompt: aborted")
	// ErrNoForm is returned when a session is created without a form.
	ErrNoForm = errors.New("prompt: form is nil")
)
