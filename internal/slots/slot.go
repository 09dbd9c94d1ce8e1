// Package slots defines the bookable unit (court, day, hour) and its canonical time handling.
package slots

import (
	"errors"
	"fmt"
	"time"
)

// Court is a bookable physical court, identified on the wire by a small integer.
type Court int

const (
	Covered Court = iota
	Outdoor
	SecondaryOutdoor
)

const (
	FirstHour   = 7
	LastHour    = 22
	HoursPerDay = LastHour - FirstHour + 1
)

var (
	ErrInvalidCourt = errors.New("invalid court")
	ErrInvalidHour  = errors.New("hour outside bookable range")
)

// Courts returns every court in code order.
func Courts() []Court {
	return []Court{Covered, Outdoor, SecondaryOutdoor}
}

func (c Court) Valid() bool {
	return c >= Covered && c <= SecondaryOutdoor
}

func (c Court) String() string {
	switch c {
	case Covered:
		return "covered"
	case Outdoor:
		return "outdoor"
	case SecondaryOutdoor:
		return "secondary_outdoor"
	default:
		return fmt.Sprintf("court(%d)", int(c))
	}
}

// ValidHour reports whether h is one of the bookable hours.
func ValidHour(h int) bool {
	return h >= FirstHour && h <= LastHour
}

// EnumerateDaySlots returns the bookable hours of a day, 7 through 22.
// The grid is fixed and does not depend on the date; every call returns a fresh slice.
func EnumerateDaySlots(_ Date) []int {
	hours := make([]int, 0, HoursPerDay)
	for h := FirstHour; h <= LastHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// Key is the identity of a slot: two reservations conflict iff their keys are equal.
type Key struct {
	Court Court
	Date  Date
	Hour  int
}

// NewKey validates court and hour and returns the slot key.
func NewKey(court Court, date Date, hour int) (Key, error) {
	if !court.Valid() {
		return Key{}, fmt.Errorf("%w: %d", ErrInvalidCourt, int(court))
	}
	if !ValidHour(hour) {
		return Key{}, fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	return Key{Court: court, Date: date, Hour: hour}, nil
}

// KeyOf derives the slot key of a reservation start, in the club zone.
// Minutes are dropped; decoded reservations are rejected unless OnTheHour.
func KeyOf(court Court, start Timestamp) Key {
	date, hour := FromTimestamp(start)
	return Key{Court: court, Date: date, Hour: hour}
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s %02d:00", k.Court, k.Date, k.Hour)
}

// ToCanonicalTimestamp builds the club-zone start of (date, hour).
func ToCanonicalTimestamp(date Date, hour int) (Timestamp, error) {
	if !ValidHour(hour) {
		return Timestamp{}, fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	return Timestamp{t: time.Date(date.Year, date.Month, date.Day, hour, 0, 0, 0, Zone())}, nil
}

// FromTimestamp splits a timestamp into its club calendar day and hour.
func FromTimestamp(ts Timestamp) (Date, int) {
	t := ts.Time()
	return DateOf(t), t.Hour()
}
