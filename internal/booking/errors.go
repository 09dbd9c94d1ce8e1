package booking

import (
	"errors"
	"fmt"

	"courtbook/internal/slots"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotOwner            = errors.New("reservation belongs to another member")
	ErrInvalidRequester    = errors.New("invalid requester")
)

// ConflictError means the slot is already taken in the local view. No request
// was sent to the service.
type ConflictError struct {
	Key           slots.Key
	ReservationID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s court on %s at %02d:00 is taken by reservation %d",
		e.Key.Court, e.Key.Date, e.Key.Hour, e.ReservationID)
}
