package history

import (
	"time"

	"courtbook/internal/model"
	"courtbook/internal/slots"
)

// Window is a contended period of the week: the listed days, FromHour through
// ToHour inclusive.
type Window struct {
	Days     []time.Weekday
	FromHour int
	ToHour   int
}

func (w Window) contains(day time.Weekday, hour int) bool {
	if hour < w.FromHour || hour > w.ToHour {
		return false
	}
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

// DefaultWindows are weekday evenings 18:00-22:59 and Saturday mornings 08:00-13:59.
func DefaultWindows() []Window {
	return []Window{
		{
			Days:     []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
			FromHour: 18,
			ToHour:   22,
		},
		{
			Days:     []time.Weekday{time.Saturday},
			FromHour: 8,
			ToHour:   13,
		},
	}
}

// IsHighlighted flags a reservation played this ISO week (up to now) in a
// contended window.
func IsHighlighted(r model.Reservation, now time.Time, windows []Window) bool {
	start := r.Start.Time()
	if start.IsZero() || start.After(now) {
		return false
	}
	date := r.Date()
	weekStart := slots.DateOf(now).StartOfISOWeek()
	if date.Before(weekStart) {
		return false
	}
	for _, w := range windows {
		if w.contains(date.Weekday(), r.Hour()) {
			return true
		}
	}
	return false
}
