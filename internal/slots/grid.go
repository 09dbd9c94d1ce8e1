package slots

// DefaultHorizonDays is how far ahead the booking form lets a member pick a day.
const DefaultHorizonDays = 7

// Occupant describes who holds a slot.
type Occupant struct {
	ReservationID int64
	RequesterID   int64
	Label         string
}

// OccupancyChecker reports whether a slot is taken.
type OccupancyChecker interface {
	OccupantOf(key Key) (Occupant, bool)
}

// Cell is one court at one hour of the day grid.
type Cell struct {
	Court    Court
	Occupied bool
	Occupant Occupant
}

// Row is one hour of the day grid, one cell per court.
type Row struct {
	Hour  int
	Cells []Cell
}

// BuildDayGrid renders the full day, every bookable hour for every court,
// regardless of what is booked.
func BuildDayGrid(date Date, checker OccupancyChecker) []Row {
	courts := Courts()
	rows := make([]Row, 0, HoursPerDay)
	for _, hour := range EnumerateDaySlots(date) {
		row := Row{Hour: hour, Cells: make([]Cell, 0, len(courts))}
		for _, court := range courts {
			cell := Cell{Court: court}
			if checker != nil {
				cell.Occupant, cell.Occupied = checker.OccupantOf(Key{Court: court, Date: date, Hour: hour})
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

// FreeSlots returns the keys of unoccupied cells in a grid.
func FreeSlots(date Date, rows []Row) []Key {
	var free []Key
	for _, row := range rows {
		for _, cell := range row.Cells {
			if !cell.Occupied {
				free = append(free, Key{Court: cell.Court, Date: date, Hour: row.Hour})
			}
		}
	}
	return free
}

// Horizon returns today and the following days bookable from the form.
// This is a presentation constraint; the engine itself accepts any date.
func Horizon(today Date, days int) []Date {
	if days < 0 {
		days = 0
	}
	dates := make([]Date, 0, days+1)
	for i := 0; i <= days; i++ {
		dates = append(dates, today.AddDays(i))
	}
	return dates
}
