package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed backend call.
type Kind int

// Failure kinds.
const (
	NetworkError Kind = iota + 1
	ServerError
	Timeout
)

func (k Kind) String() string {
	switch k {
	case NetworkError:
		return "network error"
	case ServerError:
		return "server error"
	case Timeout:
		return "timeout"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single failure shape returned by Client.
type Error struct {
	Kind Kind
	// Status is the HTTP status for ServerError, zero otherwise.
	Status int
	// Message is the backend's own message when it sent one.
	Message   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == k
}

// IsUnauthorized reports whether the backend rejected the credentials.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == 401
}

// IsNotFound reports whether the backend has no such record.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

func transportError(err error, requestID string) *Error {
	kind := NetworkError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = Timeout
	}
	return &Error{Kind: kind, RequestID: requestID, Err: err}
}
