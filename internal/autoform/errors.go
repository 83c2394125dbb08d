package autoform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds reported in structured tool results.
const (
	KindValidation = "validation"
	KindRemote     = "remote"
	KindTransport  = "transport"
	KindInternal   = "internal"
)

// ValidationError reports input that failed presence or type checks.
// It is always returned before any request reaches the remote service.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

// RemoteError is returned when Autoform answers with a non-2xx status.
type RemoteError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// TransportError is returned when the request could not complete: dial failures,
// timeouts, cancellation, or a success body that does not decode.
type TransportError struct {
	Method string
	URL    string // sanitized
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

// ErrorInfo is the structured form of an invocation failure.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// Describe classifies err into one of the error kinds.
func Describe(err error) ErrorInfo {
	var (
		verr *ValidationError
		rerr *RemoteError
		terr *TransportError
	)
	switch {
	case errors.As(err, &verr):
		return ErrorInfo{Kind: KindValidation, Message: verr.Error()}
	case errors.As(err, &rerr):
		return ErrorInfo{Kind: KindRemote, Status: rerr.StatusCode, Message: rerr.Message}
	case errors.As(err, &terr):
		return ErrorInfo{Kind: KindTransport, Message: terr.Error()}
	default:
		return ErrorInfo{Kind: KindInternal, Message: err.Error()}
	}
}

// HTTPStatus maps an invocation failure to the status used by the JSON call endpoint.
func HTTPStatus(err error) int {
	var terr *TransportError
	switch Describe(err).Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindRemote:
		return http.StatusBadGateway
	case KindTransport:
		if errors.As(err, &terr) && terr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
