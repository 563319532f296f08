// Package werrors defines the sentinel error kinds used across the turn
// pipeline so callers can classify a failure with errors.Is regardless of
// which component produced it.
package werrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Wrap one of these with fmt.Errorf("%w: ...") at the point
// a failure is detected; do not define new kinds per package.
var (
	ErrValidation = errors.New("validation error")
	ErrTool       = errors.New("tool error")
	ErrTimeout    = errors.New("timeout")
	ErrCancelled  = errors.New("cancelled")
	ErrUpstream   = errors.New("upstream error")
	ErrInternal   = errors.New("internal error")
)

// Validationf wraps a message as ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Toolf wraps a message as ErrTool, identifying the offending tool.
func Toolf(tool, format string, args ...any) error {
	return fmt.Errorf("%w %s: %s", ErrTool, tool, fmt.Sprintf(format, args...))
}

// Timeoutf wraps a message as ErrTimeout.
func Timeoutf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTimeout, fmt.Sprintf(format, args...))
}

// Cancelledf wraps a message as ErrCancelled.
func Cancelledf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCancelled, fmt.Sprintf(format, args...))
}

// Upstreamf wraps a message as ErrUpstream, identifying the provider.
func Upstreamf(provider string, format string, args ...any) error {
	return fmt.Errorf("%w (%s): %s", ErrUpstream, provider, fmt.Sprintf(format, args...))
}

// Internalf wraps a message as ErrInternal.
func Internalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// Retriable reports whether err should be retried once with backoff per the
// upstream-call policy (base 500ms, single retry).
func Retriable(err error) bool {
	return errors.Is(err, ErrUpstream) && !errors.Is(err, ErrCancelled)
}
