package queue

import (
	"errors"
	"fmt"
)

// Outcome classes a handler error can be tagged with
const (
	OutcomeRetryable = "retryable"
	OutcomeFatal     = "fatal"
)

// TaggedError marks a handler error as retryable or fatal. Untagged errors
// are treated as retryable.
type TaggedError interface {
	error
	Outcome() string
	Unwrap() error
}

type taggedError struct {
	outcome string
	err     error
}

func (e *taggedError) Error() string {
	return fmt.Sprintf("%s: %v", e.outcome, e.err)
}

func (e *taggedError) Outcome() string {
	return e.outcome
}

func (e *taggedError) Unwrap() error {
	return e.err
}

// Retryable tags err so the queue redelivers the task
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &taggedError{outcome: OutcomeRetryable, err: err}
}

// Fatal tags err so the queue never redelivers the task
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &taggedError{outcome: OutcomeFatal, err: err}
}

// IsFatal reports whether the outermost tag on err is fatal
func IsFatal(err error) bool {
	var tagged TaggedError
	return errors.As(err, &tagged) && tagged.Outcome() == OutcomeFatal
}
