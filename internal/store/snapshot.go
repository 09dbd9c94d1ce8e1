package store

import (
	"time"

	"courtbook/internal/model"
	"courtbook/internal/slots"
)

// Snapshot is an immutable view of the remote state. The Store replaces it
// wholesale; nothing mutates a snapshot after it is published.
type Snapshot struct {
	Reservations []model.Reservation
	Users        []model.User
	Joined       []model.JoinedReservation
	Gaps         []JoinGapWarning
	LoadedAt     time.Time
	// Stale is set after an optimistic local change that the next reload must confirm.
	Stale bool

	users  map[int64]model.User
	bySlot map[slots.Key]int // index into Joined
}

func newSnapshot(reservations []model.Reservation, users []model.User, loadedAt time.Time, stale bool) Snapshot {
	s := Snapshot{
		Reservations: reservations,
		Users:        users,
		LoadedAt:     loadedAt,
		Stale:        stale,
		users:        indexUsers(users),
	}
	s.Joined, s.Gaps = join(reservations, s.users)
	s.bySlot = make(map[slots.Key]int, len(s.Joined))
	for i, j := range s.Joined {
		// the remote store decides duplicates; keep the first one seen
		if _, dup := s.bySlot[j.Key()]; !dup {
			s.bySlot[j.Key()] = i
		}
	}
	return s
}

// LookupUser finds a member by id.
func (s Snapshot) LookupUser(id int64) (model.User, bool) {
	u, ok := s.users[id]
	return u, ok
}

// FindReservation returns the joined reservation with the given id.
func (s Snapshot) FindReservation(id int64) (model.JoinedReservation, bool) {
	for _, j := range s.Joined {
		if j.ID == id {
			return j, true
		}
	}
	return model.JoinedReservation{}, false
}

// OccupiedBy returns the reservation holding key, if any.
func (s Snapshot) OccupiedBy(key slots.Key) (model.JoinedReservation, bool) {
	i, ok := s.bySlot[key]
	if !ok {
		return model.JoinedReservation{}, false
	}
	return s.Joined[i], true
}

// OccupantOf implements slots.OccupancyChecker.
func (s Snapshot) OccupantOf(key slots.Key) (slots.Occupant, bool) {
	j, ok := s.OccupiedBy(key)
	if !ok {
		return slots.Occupant{}, false
	}
	return slots.Occupant{
		ReservationID: j.ID,
		RequesterID:   j.RequesterID,
		Label:         j.DisplayName(model.UnknownUserLabel),
	}, true
}

// ReservationsOn returns the reservations of one calendar day, in load order.
func (s Snapshot) ReservationsOn(date slots.Date) []model.JoinedReservation {
	var out []model.JoinedReservation
	for _, j := range s.Joined {
		if j.Date() == date {
			out = append(out, j)
		}
	}
	return out
}

// Active returns every reservation with a start not before now.
func (s Snapshot) Active(now time.Time) []model.JoinedReservation {
	var out []model.JoinedReservation
	for _, j := range s.Joined {
		if !j.Start.Time().Before(now) {
			out = append(out, j)
		}
	}
	return out
}

func indexUsers(users []model.User) map[int64]model.User {
	m := make(map[int64]model.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return m
}
