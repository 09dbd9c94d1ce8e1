package model

import (
	"encoding/json"
	"fmt"

	"courtbook/internal/slots"
)

// UnknownUserLabel is the fallback shown when a requester is missing from the user list.
const UnknownUserLabel = "Usuario no encontrado"

// User is a club member as returned by GET /usuarios.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Reservation is a confirmed booking as stored by the remote service.
type Reservation struct {
	ID          int64           `json:"id"`
	Court       slots.Court     `json:"cancha"`
	Start       slots.Timestamp `json:"fecha"`
	RequesterID int64           `json:"id_reservador"`
	Recurring   int             `json:"recurrente"`
	CreatedAt   slots.Timestamp `json:"fecha_ingreso_reserva"`
}

// UnmarshalJSON rejects a fecha that is not on the hour.
func (r *Reservation) UnmarshalJSON(data []byte) error {
	type wire Reservation
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Start.IsZero() && !w.Start.OnTheHour() {
		return fmt.Errorf("%w: fecha %s is not on the hour", slots.ErrMalformedTimestamp, w.Start)
	}
	*r = Reservation(w)
	return nil
}

// Key returns the slot the reservation occupies.
func (r Reservation) Key() slots.Key {
	return slots.KeyOf(r.Court, r.Start)
}

// Date returns the club calendar day of the reservation start.
func (r Reservation) Date() slots.Date {
	d, _ := slots.FromTimestamp(r.Start)
	return d
}

// Hour returns the club-zone hour of the reservation start.
func (r Reservation) Hour() int {
	_, h := slots.FromTimestamp(r.Start)
	return h
}

// NewReservation is the POST /reservas body; the service assigns the id.
type NewReservation struct {
	Court       slots.Court     `json:"cancha"`
	Start       slots.Timestamp `json:"fecha"`
	RequesterID int64           `json:"id_reservador"`
	Recurring   int             `json:"recurrente"`
	CreatedAt   slots.Timestamp `json:"fecha_ingreso_reserva"`
}

// JoinedReservation is a reservation decorated with its requester, if known.
type JoinedReservation struct {
	Reservation
	Requester      User
	RequesterFound bool
}

// DisplayName is the requester label for presentation; unknownLabel is used when
// the requester was not in the user list.
func (j JoinedReservation) DisplayName(unknownLabel string) string {
	if !j.RequesterFound {
		return unknownLabel
	}
	return j.Requester.FullName()
}
