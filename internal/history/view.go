package history

import (
	"sync"
	"time"

	"courtbook/internal/model"
	"courtbook/internal/store"
)

// Entry is one line of a history page.
type Entry struct {
	model.JoinedReservation
	Highlighted bool
}

// Result is one rendered page.
type Result struct {
	Entries   []Entry
	Page      int
	PageCount int
	Total     int
}

// SnapshotSource yields the current store snapshot.
type SnapshotSource interface {
	Snapshot() store.Snapshot
}

// View builds history pages from the live store.
type View struct {
	source   SnapshotSource
	pageSize int

	mu      sync.RWMutex
	windows []Window
}

// NewView uses DefaultPageSize and DefaultWindows when pageSize or windows are zero.
func NewView(source SnapshotSource, pageSize int, windows []Window) *View {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if len(windows) == 0 {
		windows = DefaultWindows()
	}
	return &View{source: source, pageSize: pageSize, windows: windows}
}

// SetWindows swaps the contended windows, e.g. after a config reload.
func (v *View) SetWindows(windows []Window) {
	if len(windows) == 0 {
		windows = DefaultWindows()
	}
	v.mu.Lock()
	v.windows = windows
	v.mu.Unlock()
}

// All returns every past entry of userID, highlighted, most recent first.
func (v *View) All(userID int64, now time.Time) []Entry {
	past := PastReservationsOf(v.source.Snapshot().Joined, userID, now)
	return v.entries(past, now)
}

// Build renders page (0-based) of userID's history.
func (v *View) Build(userID int64, page int, now time.Time) Result {
	past := PastReservationsOf(v.source.Snapshot().Joined, userID, now)
	return Result{
		Entries:   v.entries(Page(past, page, v.pageSize), now),
		Page:      page,
		PageCount: PageCount(len(past), v.pageSize),
		Total:     len(past),
	}
}

func (v *View) entries(joined []model.JoinedReservation, now time.Time) []Entry {
	v.mu.RLock()
	windows := v.windows
	v.mu.RUnlock()

	out := make([]Entry, 0, len(joined))
	for _, j := range joined {
		out = append(out, Entry{JoinedReservation: j, Highlighted: IsHighlighted(j.Reservation, now, windows)})
	}
	return out
}
