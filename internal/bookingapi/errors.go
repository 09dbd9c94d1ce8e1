package bookingapi

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteError is any failed call to the booking service: transport failure,
// timeout, non-2xx status or an undecodable body.
type RemoteError struct {
	Op      string
	Status  int // 0 when no response was received
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": remote error"
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a remote rejection of the session token.
// A 403 is a permission refusal for a valid token and does not count.
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

func hasStatus(err error, status int) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == status
}
