package soi

import "fmt"

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// WriterTerminated signals that a map's writer task is no longer running,
	// thus, enqueued writes will never get applied.
	WriterTerminated
	// UnsupportedOperation signals an operation the index does not implement
	// (e.g. value-based containment search).
	UnsupportedOperation
)

// SOI custom error.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Sprintf("error code: %d, user data: %v, details: %v", e.Code, e.UserData, e.Err)
}

// Unwrap exposes the wrapped error to errors.Is & errors.As.
func (e Error) Unwrap() error {
	return e.Err
}
