package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel failures returned by the reservation scheduler. Every mutating
// operation either commits fully or returns one of these (or a wrapped store
// error) with zero persisted change.
var (
	// ErrUnavailable: a conflicting reservation already holds the requested
	// interval on the spot. A business rejection, not a system error.
	ErrUnavailable = errors.New("parking spot is not available for the requested time")

	// ErrInvalidRange: caller supplied end <= start for a bounded interval.
	ErrInvalidRange = errors.New("end time must be after start time")

	// ErrNotFound: the referenced reservation, spot, facility or active
	// occupancy does not exist.
	ErrNotFound = errors.New("not found")
)

// StoreError wraps an underlying persistence failure. It is propagated as a
// hard failure; the engine never guesses a fallback state.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func Store(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// HTTPError carries an HTTP status alongside a message for the API layer.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// StatusFor maps a scheduler failure onto the HTTP status the transport layer
// should answer with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
