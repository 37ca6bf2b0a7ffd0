package errors

import (
	"errors"
	"log/slog"
	"sort"
)

// RuntimeError is an error that happened while running a command. It carries
// a message for the user, the underlying cause, and an optional hint about how
// to resolve it.
type RuntimeError struct {
	msg   string
	cause error
	hint  string
}

// NewRuntimeError returns a new RuntimeError.
func NewRuntimeError(msg string, cause error, hint string) *RuntimeError {
	return &RuntimeError{msg: msg, cause: cause, hint: hint}
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// Unwrap returns the cause of the error.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

// Hint returns the hint of the error, if any.
func (e *RuntimeError) Hint() string {
	return e.hint
}

// Log logs an error using the default slog logger, extracting metadata if it's
// a StructuredError, and the hint if it's a RuntimeError.
func Log(err error) {
	var rerr *RuntimeError
	if errors.As(err, &rerr) && rerr.hint != "" {
		defer slog.Info(rerr.hint)
	}

	var serr *StructuredError
	if !errors.As(err, &serr) {
		slog.Error(err.Error())
		return
	}

	args := make([]any, 0, len(serr.metadata)*2+2)

	cause := serr.metadata["cause"]
	if serr.cause != nil {
		cause = serr.cause
	}
	if cause != nil {
		args = append(args, "cause", cause)
	}

	keys := make([]string, 0, len(serr.metadata))
	for k := range serr.metadata {
		if k != "cause" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		args = append(args, k, serr.metadata[k])
	}

	slog.Error(serr.Error(), args...)
}
