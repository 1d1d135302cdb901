package media

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is the failure category of an extraction error.
type Kind string

const (
	// KindUnsupported means no platform or strategy covers the input.
	// It is a terminal classification, never retried.
	KindUnsupported Kind = "unsupported"
	// KindNetwork covers connection failures and local I/O failures
	// during materialization.
	KindNetwork Kind = "network"
	// KindRemoteRejected means the remote service answered with a
	// structured refusal (provider error code, 4xx other than 404).
	KindRemoteRejected Kind = "remote_rejected"
	// KindNotFound means the content does not exist or is private.
	KindNotFound Kind = "not_found"
	// KindTimeout covers deadline and socket timeouts.
	KindTimeout Kind = "timeout"
	// KindAllFailed aggregates the ordered failures of a whole chain run.
	KindAllFailed Kind = "all_failed"
)

// Error is the typed extraction failure every strategy normalizes to.
// Attempts is populated only for KindAllFailed and preserves try order.
type Error struct {
	Kind     Kind
	Strategy string
	// Code carries the provider error code for KindRemoteRejected.
	Code     string
	Attempts []*Error
	cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Strategy != "" {
		b.WriteString(" (")
		b.WriteString(e.Strategy)
		b.WriteString(")")
	}
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	if len(e.Attempts) > 0 {
		parts := make([]string, 0, len(e.Attempts))
		for _, a := range e.Attempts {
			parts = append(parts, a.Error())
		}
		b.WriteString(": [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds a typed error of the given kind wrapping cause.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// Errorf builds a typed error of the given kind from a format string.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, cause: fmt.Errorf(format, args...)}
}

// Unsupported builds the terminal "no platform/strategy covers this" error.
func Unsupported(reason string) *Error {
	return &Error{Kind: KindUnsupported, cause: errors.New(reason)}
}

// RemoteRejected builds a structured-refusal error carrying the provider code.
func RemoteRejected(code string) *Error {
	return &Error{Kind: KindRemoteRejected, Code: code}
}

// AllFailed aggregates the ordered per-strategy failures of a chain run.
func AllFailed(attempts []*Error) *Error {
	return &Error{Kind: KindAllFailed, Attempts: attempts}
}

// Normalize maps an arbitrary error onto the extraction taxonomy.
// Typed errors pass through; context deadlines and net timeouts become
// KindTimeout; everything else is treated as a network-class failure.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, cause: err}
	}
	return &Error{Kind: KindNetwork, cause: err}
}

// KindOf returns the failure category of err, or "" for nil or untyped
// errors that Normalize would not classify.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Normalize(err).Kind
}

// Transient reports whether err points at a temporary condition worth a
// user-facing retry prompt. For an aggregate it is decided by the
// dominant kind among the recorded attempts; ties lean transient.
func Transient(err error) bool {
	e := Normalize(err)
	switch e.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindAllFailed:
		transient := 0
		for _, a := range e.Attempts {
			if a.Kind == KindTimeout || a.Kind == KindNetwork {
				transient++
			}
		}
		return transient*2 >= len(e.Attempts) && len(e.Attempts) > 0
	default:
		return false
	}
}
