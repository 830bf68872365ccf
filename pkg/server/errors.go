package server

import "fmt"

// ValidationError marks malformed client input. It is the only error class
// whose detail is returned to the client; configuration and format failures
// surface as an opaque internal error with the detail logged server-side.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
