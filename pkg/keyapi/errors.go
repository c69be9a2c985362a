package keyapi

import (
	"errors"
	"fmt"
)

// Kind classifies why a remote call failed. Handlers pick the user-facing
// reply from the kind alone.
type Kind int

const (
	KindNone Kind = iota
	// KindConflict: the account already exists (HTTP 409 or body code 409).
	KindConflict
	// KindNotFound: no account/key for the user (HTTP 404).
	KindNotFound
	// KindUnauthorized: the presented x-api-key was rejected (401/403).
	KindUnauthorized
	// KindRemote: any other non-2xx status or an explicit success=false.
	KindRemote
	// KindMalformed: 2xx response whose body is not the expected shape.
	KindMalformed
	// KindTransport: the request never produced a response.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindRemote:
		return "remote"
	case KindMalformed:
		return "malformed"
	case KindTransport:
		return "transport"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Client method that fails.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	// Message is the remote's own error text, if it sent one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("keyapi %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind carried by err, KindNone for nil, and KindRemote
// for errors that did not come from this package.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindRemote
}
