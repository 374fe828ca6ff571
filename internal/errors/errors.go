package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide whether to retry,
// pick a different slot, or abandon the request.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindNoCapacity             Kind = "no_capacity"
	KindSlotNotAvailable       Kind = "slot_not_available"
	KindUnsupportedVehicleType Kind = "unsupported_vehicle_type"
	KindInvalidInterval        Kind = "invalid_interval"
	KindInvalidTransition      Kind = "invalid_transition"
	KindPaymentFailed          Kind = "payment_failed"
	KindConcurrentModification Kind = "concurrent_modification"
	KindInvalidRequest         Kind = "invalid_request"
)

// Error carries a machine-readable kind alongside a human message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates an Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the API layer should return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindNoCapacity, KindSlotNotAvailable, KindInvalidTransition, KindConcurrentModification:
		return http.StatusConflict
	case KindUnsupportedVehicleType, KindInvalidInterval, KindInvalidRequest:
		return http.StatusBadRequest
	case KindPaymentFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
