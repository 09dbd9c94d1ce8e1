// Package history derives a member's past activity from the store snapshot.
// Everything here is a pure function of the snapshot, the member and "now".
package history

import (
	"sort"
	"time"

	"courtbook/internal/model"
	"courtbook/internal/slots"
)

// DefaultPageSize is the number of entries per history page.
const DefaultPageSize = 7

// PastReservationsOf returns userID's reservations dated strictly before
// now's calendar day, most recent first.
func PastReservationsOf(joined []model.JoinedReservation, userID int64, now time.Time) []model.JoinedReservation {
	today := slots.DateOf(now)
	var out []model.JoinedReservation
	for _, j := range joined {
		if j.RequesterID != userID {
			continue
		}
		if !j.Date().Before(today) {
			continue
		}
		out = append(out, j)
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[b].Start.Before(out[a].Start)
	})
	return out
}

// Page returns the page-th (0-based) window of size items. Out of range pages are empty.
func Page[T any](seq []T, page, size int) []T {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 0 {
		return nil
	}
	start := page * size
	if start >= len(seq) {
		return nil
	}
	end := start + size
	if end > len(seq) {
		end = len(seq)
	}
	return seq[start:end:end]
}

// PageCount is ceil(n/size).
func PageCount(n, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
