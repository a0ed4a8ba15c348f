package locator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLocatorNotFound matches every *NotFoundError via errors.Is.
var ErrLocatorNotFound = errors.New("locator not found")

// NotFoundError reports that no candidate for a field validated.
type NotFoundError struct {
	Field string
	// Tried lists the probed candidates in order.
	Tried []string
	// Cause is set when the prediction step itself failed.
	Cause error
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("element not found for %s (tried %s)", e.Field, strings.Join(e.Tried, ", "))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrLocatorNotFound
}

func (e *NotFoundError) Unwrap() error {
	return e.Cause
}
