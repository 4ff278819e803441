package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrGeneration matches every failed structured generation call.
	ErrGeneration = errors.New("generation failed")

	ErrRateLimited     = errors.New("rate limited")
	ErrResponseInvalid = errors.New("response invalid")
	ErrUpstream        = errors.New("upstream unavailable")
)

// Error is the GenerationError returned by every Client in this package.
type Error struct {
	Schema string
	Err    error
}

func (e *Error) Error() string {
	if e.Schema == "" {
		return fmt.Sprintf("generate: %v", e.Err)
	}
	return fmt.Sprintf("generate %s: %v", e.Schema, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrGeneration }

func wrapError(schema string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Schema: schema, Err: err}
}

// Retryable reports whether a failed call may succeed when repeated.
// Cancellation of the caller's context is never retryable.
func Retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch {
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUpstream), errors.Is(err, ErrResponseInvalid):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		// per-attempt timeout; the caller's context is still live
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
