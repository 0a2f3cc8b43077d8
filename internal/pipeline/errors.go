package pipeline

import (
	"errors"
	"fmt"
)

// FetchError wraps a transport or not-found failure while downloading an
// object. It is transient: the queue retries it with backoff.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("pipeline: fetch %s: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying the same input can never
// fix, e.g. an unsupported file format. The queue archives these
// immediately instead of spending the retry budget.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is marked permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
