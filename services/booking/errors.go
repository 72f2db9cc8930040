package booking

import (
	"errors"
	"fmt"
)

// Error codes for the booking engine.
const (
	CodeInvalidRequest   = "invalidRequest"
	CodeCapacityExceeded = "capacityExceeded"
	CodeNotFound         = "notFound"
	CodeSessionExpired   = "sessionExpired"
	CodeInvalidTariff    = "invalidTariff"
)

// Error is a typed booking-engine error carrying a machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// HasCode reports whether err (or anything it wraps) is a booking Error
// with the given code.
func HasCode(err error, code string) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
