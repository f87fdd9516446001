package exchange

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks an operation whose retry budget is exhausted. Callers
// degrade gracefully (skip the cycle) instead of crashing; only the cycle
// driver decides whether it is fatal.
var ErrUnavailable = errors.New("exchange unavailable")

// VenueRejectedError is a structural rejection by the venue: bad parameters,
// below minimum notional, insufficient funds on the venue side. Retrying
// cannot succeed, so the resilient wrapper fails these fast.
type VenueRejectedError struct {
	Status  int
	Label   string
	Message string
}

func (e *VenueRejectedError) Error() string {
	return fmt.Sprintf("venue rejected (%d %s): %s", e.Status, e.Label, e.Message)
}

// IsVenueRejected reports whether err carries a VenueRejectedError.
func IsVenueRejected(err error) bool {
	var rejected *VenueRejectedError
	return errors.As(err, &rejected)
}
