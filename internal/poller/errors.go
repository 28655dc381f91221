package poller

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies why a fetch did not produce a payload.
type FailureKind string

const (
	// Unreachable covers connection refused, DNS failures and resets.
	Unreachable FailureKind = "unreachable"

	// Timeout means the request did not finish within its deadline.
	Timeout FailureKind = "timeout"

	// BadResponse means the server answered, but not with HTTP 200 and a
	// JSON object.
	BadResponse FailureKind = "bad_response"
)

// String returns the string representation of the kind.
func (k FailureKind) String() string {
	return string(k)
}

// FetchError is returned by [Client.Fetch] for every failed request.
//
// Use errors.As to recover the kind:
//
//	var fe *poller.FetchError
//	if errors.As(err, &fe) && fe.Kind == poller.Timeout {
//	    ...
//	}
type FetchError struct {
	Kind FailureKind

	// URL is the status URL that was requested.
	URL string

	// StatusCode is the HTTP status for BadResponse. Zero otherwise.
	StatusCode int

	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: HTTP %d", e.Kind, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Kind extracts the [FailureKind] of err, or "" if err is not a [FetchError].
func Kind(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// classify maps a transport-level error to a failure kind.
func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return Unreachable
}
