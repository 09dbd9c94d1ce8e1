package history

import (
	"bytes"
	"testing"
	"time"

	"courtbook/internal/model"
	"courtbook/internal/slots"
	"courtbook/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func at(t *testing.T, id int64, date slots.Date, hour int, requester int64) model.Reservation {
	t.Helper()
	ts, err := slots.ToCanonicalTimestamp(date, hour)
	require.NoError(t, err)
	return model.Reservation{ID: id, Court: slots.Covered, Start: ts, RequesterID: requester}
}

func clubTime(y int, m time.Month, d, hour, minute int) time.Time {
	return time.Date(y, m, d, hour, minute, 0, 0, slots.Zone())
}

func TestPastReservationsOf(t *testing.T) {
	now := clubTime(2024, 6, 12, 8, 0)
	joined, _ := store.Join([]model.Reservation{
		at(t, 1, slots.NewDate(2024, 6, 10), 9, 7),
		at(t, 2, slots.NewDate(2024, 6, 11), 22, 7),
		at(t, 3, slots.NewDate(2024, 6, 12), 7, 7), // today, already played
		at(t, 4, slots.NewDate(2024, 6, 13), 9, 7),
		at(t, 5, slots.NewDate(2024, 6, 9), 9, 8),
		at(t, 6, slots.NewDate(2024, 5, 30), 18, 7),
	}, nil)

	past := PastReservationsOf(joined, 7, now)

	ids := make([]int64, 0, len(past))
	for _, p := range past {
		ids = append(ids, p.ID)
		assert.True(t, p.Date().Before(slots.DateOf(now)))
	}
	assert.Equal(t, []int64{2, 1, 6}, ids)
}

func TestPastReservationsOf_UsesClubCalendar(t *testing.T) {
	// 02:30 UTC on the 12th is still the 11th in Santiago
	now := time.Date(2024, 6, 12, 2, 30, 0, 0, time.UTC)
	joined, _ := store.Join([]model.Reservation{at(t, 1, slots.NewDate(2024, 6, 11), 9, 7)}, nil)

	assert.Empty(t, PastReservationsOf(joined, 7, now))
}

func TestPagination(t *testing.T) {
	for n := 0; n <= 30; n++ {
		seq := make([]int, n)
		for i := range seq {
			seq[i] = i
		}

		pages := PageCount(n, DefaultPageSize)
		assert.Equal(t, (n+6)/7, pages)

		var joined []int
		for p := 0; p < pages; p++ {
			page := Page(seq, p, DefaultPageSize)
			assert.LessOrEqual(t, len(page), DefaultPageSize)
			assert.NotEmpty(t, page)
			joined = append(joined, page...)
		}
		if n == 0 {
			assert.Empty(t, joined)
		} else {
			assert.Equal(t, seq, joined)
		}
		assert.Empty(t, Page(seq, pages, DefaultPageSize))
		assert.Empty(t, Page(seq, -1, DefaultPageSize))
	}
}

func TestPage_DoesNotAliasOnAppend(t *testing.T) {
	seq := []int{1, 2, 3, 4}
	page := Page(seq, 0, 2)
	_ = append(page, 99)
	assert.Equal(t, []int{1, 2, 3, 4}, seq)
}

func TestIsHighlighted(t *testing.T) {
	wednesdayEvening := clubTime(2024, 6, 12, 19, 30)
	saturdayAfternoon := clubTime(2024, 6, 15, 14, 0)

	tests := []struct {
		name string
		date slots.Date
		hour int
		now  time.Time
		want bool
	}{
		{"monday evening this week", slots.NewDate(2024, 6, 10), 18, wednesdayEvening, true},
		{"last evening slot", slots.NewDate(2024, 6, 11), 22, wednesdayEvening, true},
		{"today already started", slots.NewDate(2024, 6, 12), 19, wednesdayEvening, true},
		{"today not yet played", slots.NewDate(2024, 6, 12), 20, wednesdayEvening, false},
		{"weekday afternoon", slots.NewDate(2024, 6, 10), 17, wednesdayEvening, false},
		{"sunday of previous week", slots.NewDate(2024, 6, 9), 18, wednesdayEvening, false},
		{"saturday of previous week", slots.NewDate(2024, 6, 8), 9, wednesdayEvening, false},
		{"saturday morning", slots.NewDate(2024, 6, 15), 8, saturdayAfternoon, true},
		{"saturday late morning", slots.NewDate(2024, 6, 15), 13, saturdayAfternoon, true},
		{"saturday afternoon", slots.NewDate(2024, 6, 15), 14, saturdayAfternoon, false},
		{"friday evening", slots.NewDate(2024, 6, 14), 21, saturdayAfternoon, true},
		{"saturday evening", slots.NewDate(2024, 6, 8), 18, clubTime(2024, 6, 9, 12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := at(t, 1, tt.date, tt.hour, 7)
			assert.Equal(t, tt.want, IsHighlighted(r, tt.now, DefaultWindows()))
		})
	}
}

func TestIsHighlighted_CustomWindows(t *testing.T) {
	windows := []Window{{Days: []time.Weekday{time.Sunday}, FromHour: 7, ToHour: 9}}
	r := at(t, 1, slots.NewDate(2024, 6, 16), 8, 7)
	assert.True(t, IsHighlighted(r, clubTime(2024, 6, 16, 12, 0), windows))
	assert.False(t, IsHighlighted(r, clubTime(2024, 6, 16, 12, 0), DefaultWindows()))
}

type fixedSource struct{ snap store.Snapshot }

func (f fixedSource) Snapshot() store.Snapshot { return f.snap }

func sourceWith(t *testing.T, n int) fixedSource {
	t.Helper()
	var reservations []model.Reservation
	first := slots.NewDate(2024, 5, 1)
	for i := 0; i < n; i++ {
		reservations = append(reservations, at(t, int64(i+1), first.AddDays(i), 18, 7))
	}
	joined, gaps := store.Join(reservations, []model.User{{ID: 7, FirstName: "Ana", LastName: "Pérez"}})
	return fixedSource{snap: store.Snapshot{Reservations: reservations, Joined: joined, Gaps: gaps}}
}

func TestView_Build(t *testing.T) {
	now := clubTime(2024, 6, 12, 19, 30)
	view := NewView(sourceWith(t, 20), 0, nil)

	first := view.Build(7, 0, now)
	assert.Equal(t, 20, first.Total)
	assert.Equal(t, 3, first.PageCount)
	require.Len(t, first.Entries, 7)
	assert.Equal(t, slots.NewDate(2024, 5, 20), first.Entries[0].Date())

	last := view.Build(7, 2, now)
	assert.Len(t, last.Entries, 6)

	assert.Empty(t, view.Build(7, 3, now).Entries)
	assert.Zero(t, view.Build(8, 0, now).Total)
}

func TestView_HighlightsCurrentWeek(t *testing.T) {
	now := clubTime(2024, 6, 12, 19, 30)
	joined, _ := store.Join([]model.Reservation{
		at(t, 1, slots.NewDate(2024, 6, 10), 18, 7),
		at(t, 2, slots.NewDate(2024, 6, 3), 18, 7),
	}, nil)
	view := NewView(fixedSource{snap: store.Snapshot{Joined: joined}}, 7, nil)

	entries := view.All(7, now)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Highlighted)
	assert.False(t, entries[1].Highlighted)

	view.SetWindows([]Window{{Days: []time.Weekday{time.Tuesday}, FromHour: 7, ToHour: 8}})
	assert.False(t, view.All(7, now)[0].Highlighted)
}

func TestExportXLSX(t *testing.T) {
	now := clubTime(2024, 6, 12, 19, 30)
	view := NewView(sourceWith(t, 3), 0, nil)

	var buf bytes.Buffer
	require.NoError(t, ExportXLSX(&buf, view.All(7, now)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportColumns, rows[0])
	assert.Equal(t, []string{"3", "covered", "2024-05-03", "18:00", "Ana Pérez", "FALSE"}, rows[1])
}
