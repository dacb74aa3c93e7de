package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed remote call.
type Kind string

// Error kinds surfaced to the presentation layer.
const (
	KindNetwork    Kind = "network"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindUnknown    Kind = "unknown"
)

// Error is a failed call to the portal. Message is human-readable and comes
// from the portal's error payload when it sent one.
type Error struct {
	Op      string `json:"op"`
	Kind    Kind   `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindForStatus maps an HTTP status from the portal to an error kind.
func KindForStatus(status int) Kind {
	switch status {
	case http.StatusConflict:
		return KindConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindNetwork
	default:
		return KindUnknown
	}
}

// AsError normalises any error into an *Error. Timeouts and transport
// failures become KindNetwork; anything unrecognised becomes KindUnknown.
// A nil error returns nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Op: "call", Kind: classify(err), Message: err.Error(), Err: err}
}

// KindOf returns the kind of err, or "" for nil.
func KindOf(err error) Kind {
	if re := AsError(err); re != nil {
		return re.Kind
	}
	return ""
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}
	return KindUnknown
}
