package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of error categories from spec.md §7.
type ErrorKind string

const (
	KindInvalidConfig     ErrorKind = "invalid_config"
	KindNotInitialized    ErrorKind = "not_initialized"
	KindQueueFull         ErrorKind = "queue_full"
	KindPoolStopped       ErrorKind = "pool_stopped"
	KindIOFailure         ErrorKind = "io_failure"
	KindValidationFailure ErrorKind = "validation_failure"
	KindCallbackPanic     ErrorKind = "callback_panic"
)

// Sentinel errors, checked with errors.Is. CacheMiss is deliberately not
// modeled as an error (spec.md §7.4): it surfaces as a (value, false) or
// nil return instead.
var (
	ErrInvalidConfig     = errors.New("invalid config")
	ErrNotInitialized    = errors.New("component not initialized")
	ErrQueueFull         = errors.New("queue full")
	ErrPoolStopped       = errors.New("pool stopped")
	ErrIOFailure         = errors.New("io failure")
	ErrValidationFailure = errors.New("validation failure")
	ErrCallbackPanic     = errors.New("callback panic")
)

// SubstrateError wraps a sentinel error (ErrInvalidConfig etc.) with a
// short diagnostic,
// mirroring the teacher's GraphError (sentinel Kind + free-form Msg,
// Unwrap back to the sentinel).
type SubstrateError struct {
	Kind error
	Msg  string
}

func (e *SubstrateError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *SubstrateError) Unwrap() error { return e.Kind }

// Wrap builds a SubstrateError for the given kind with a formatted message.
func Wrap(kind error, format string, args ...any) error {
	return &SubstrateError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
