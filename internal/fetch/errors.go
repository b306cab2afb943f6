package fetch

import (
	"errors"
	"fmt"
)

// ErrKind classifies a fetch failure after retries are exhausted.
type ErrKind string

// Failure kinds. NotFound is terminal and never retried; the others are
// retried up to the configured bound before surfacing.
const (
	KindNotFound    ErrKind = "not_found"
	KindUnreachable ErrKind = "unreachable"
	KindTimeout     ErrKind = "timeout"
)

// Error is the typed failure returned by the fetch client.
type Error struct {
	Kind       ErrKind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): status %d", e.URL, e.Kind, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a terminal 404 fetch failure.
func IsNotFound(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindNotFound
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindTimeout
}
