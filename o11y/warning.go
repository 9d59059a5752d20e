package o11y

import (
	"context"
	"errors"
	"fmt"
)

// Warning is an error that is part of normal running, such as a request that
// cannot be answered because the caller left no reply queue. Spans ending
// with a warning still count as a success.
type Warning struct {
	msg   string
	cause error
}

// NewWarning returns a new Warning. Each call yields a distinct error.
func NewWarning(msg string) error {
	return &Warning{msg: msg}
}

// Warnf formats a Warning. A single %w verb makes the wrapped error visible to
// errors.Is and errors.As.
func Warnf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &Warning{msg: err.Error(), cause: errors.Unwrap(err)}
}

func (w *Warning) Error() string {
	return w.msg
}

func (w *Warning) Unwrap() error {
	return w.cause
}

// IsWarning reports whether err or anything it wraps is a Warning.
func IsWarning(err error) bool {
	var w *Warning
	return errors.As(err, &w)
}

// IsExpected reports whether err should not be traced as a failure: it is a
// Warning or the context was cancelled or timed out.
func IsExpected(err error) bool {
	return IsWarning(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
