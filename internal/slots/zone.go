package slots

import (
	"fmt"
	"sync"
	"time"

	// The club zone must resolve even on hosts without a zoneinfo database.
	_ "time/tzdata"
)

// ClubZoneName is the IANA zone every slot computation runs in.
const ClubZoneName = "America/Santiago"

var (
	zoneOnce sync.Once
	zone     *time.Location
	zoneErr  error
)

// Zone returns the club time zone.
// It panics if the zone cannot be loaded, which only happens with a broken tzdata build.
func Zone() *time.Location {
	zoneOnce.Do(func() {
		zone, zoneErr = time.LoadLocation(ClubZoneName)
	})
	if zoneErr != nil {
		panic(fmt.Sprintf("load %s: %v", ClubZoneName, zoneErr))
	}
	return zone
}

// Clock returns the current instant. Components take one so tests can pin "now".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// InClub converts t to the club zone.
func InClub(t time.Time) time.Time {
	return t.In(Zone())
}
