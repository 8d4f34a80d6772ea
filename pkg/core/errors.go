package core

import (
	"errors"
	"fmt"
)

// FailKind buckets fatal run failures. Every kind maps to a distinct process
// exit code so operators can tell a bad flag from a dead store in scripts.
type FailKind uint8

const (
	// FailUnknown is any failure that does not fit a named bucket.
	FailUnknown FailKind = iota

	// FailConfig is an invalid or contradictory run configuration, detected
	// before any network call.
	FailConfig

	// FailConnectivity means the store is unreachable or its liveness probe
	// failed.
	FailConnectivity

	// FailNotFound means one of the named collections does not exist.
	FailNotFound

	// FailTraversal is a fetch, continuation, or cross-lookup failure
	// mid-run, including lease expiry. No retry is attempted; output written
	// so far stays on disk as an explicitly incomplete result.
	FailTraversal

	// FailSink means the result destination could not be opened or written.
	FailSink
)

// String returns the lowercase bucket name.
func (k FailKind) String() string {
	switch k {
	case FailConfig:
		return "config"
	case FailConnectivity:
		return "connectivity"
	case FailNotFound:
		return "not_found"
	case FailTraversal:
		return "traversal"
	case FailSink:
		return "sink"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code for the kind.
func (k FailKind) ExitCode() int {
	switch k {
	case FailConfig:
		return 2
	case FailConnectivity:
		return 3
	case FailNotFound:
		return 4
	case FailTraversal:
		return 5
	case FailSink:
		return 6
	default:
		return 1
	}
}

// RunError is a classified fatal failure.
type RunError struct {
	Kind FailKind
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Fail wraps err with a failure kind. Returns nil if err is nil.
func Fail(kind FailKind, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{Kind: kind, Err: err}
}

// Failf wraps a formatted error with a failure kind.
func Failf(kind FailKind, format string, args ...any) error {
	return &RunError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind from an error chain, or FailUnknown.
func KindOf(err error) FailKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return FailUnknown
}
