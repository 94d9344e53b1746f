package types

import "net/http"

// Error represents an HTTP error with status code and message.
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	// Details holds structured information about the error, such as the
	// objects that couldn't be created on the router.
	Details any `json:"details,omitempty"`
}

// Error returns the error message string.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new Error with the specified status code and message.
func NewError(statusCode int, message string) *Error {
	return &Error{
		StatusCode: statusCode,
		Message:    message,
	}
}

// ErrorLevel is the detail level of error messages returned to clients.
type ErrorLevel string

// Error levels.
const (
	// ErrorLevelNone replaces all error messages with the status text.
	ErrorLevelNone ErrorLevel = "none"
	// ErrorLevelMinimal keeps the messages of client errors, and replaces
	// server error messages with the status text.
	ErrorLevelMinimal ErrorLevel = "minimal"
	// ErrorLevelFull keeps all error messages intact.
	ErrorLevelFull ErrorLevel = "full"
)

// Sanitize returns a copy of the error with the message adjusted to the level.
func (e *Error) Sanitize(lvl ErrorLevel) *Error {
	if e == nil {
		return nil
	}

	out := *e
	switch {
	case lvl == ErrorLevelFull:
	case lvl == ErrorLevelMinimal && e.StatusCode < http.StatusInternalServerError:
	default:
		out.Message = http.StatusText(e.StatusCode)
		out.Details = nil
	}

	return &out
}
