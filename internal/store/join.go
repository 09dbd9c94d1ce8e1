package store

import (
	"fmt"

	"courtbook/internal/model"
)

// JoinGapWarning flags a reservation whose requester is not in the user list.
// The reservation is kept and shown with the unknown-user label.
type JoinGapWarning struct {
	ReservationID int64
	UserID        int64
}

func (w JoinGapWarning) Error() string {
	return fmt.Sprintf("reservation %d: requester %d not found", w.ReservationID, w.UserID)
}

// Join attaches the requester to every reservation. It is a left join: no
// reservation is ever dropped.
func Join(reservations []model.Reservation, users []model.User) ([]model.JoinedReservation, []JoinGapWarning) {
	return join(reservations, indexUsers(users))
}

func join(reservations []model.Reservation, users map[int64]model.User) ([]model.JoinedReservation, []JoinGapWarning) {
	joined := make([]model.JoinedReservation, 0, len(reservations))
	var gaps []JoinGapWarning
	for _, r := range reservations {
		u, ok := users[r.RequesterID]
		if !ok {
			gaps = append(gaps, JoinGapWarning{ReservationID: r.ID, UserID: r.RequesterID})
		}
		joined = append(joined, model.JoinedReservation{Reservation: r, Requester: u, RequesterFound: ok})
	}
	return joined, gaps
}
