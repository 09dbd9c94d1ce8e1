package slots

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WireLayout is the zone-naive format the booking service uses for fecha fields.
const WireLayout = "2006-01-02 15:04:05"

// Some deployments emit the ISO separator; it carries no zone either.
const wireLayoutISO = "2006-01-02T15:04:05"

var ErrMalformedTimestamp = errors.New("malformed timestamp")

// Timestamp is a wall-clock instant interpreted in the club zone.
// It is the only type allowed to cross the wire boundary for reservation times.
type Timestamp struct {
	t time.Time
}

// TimestampOf converts an instant to a club-zone timestamp truncated to the second.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{t: InClub(t).Truncate(time.Second)}
}

// ParseTimestamp parses a zone-naive wire string as club wall time.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range []string{WireLayout, wireLayoutISO} {
		t, err := time.ParseInLocation(layout, s, Zone())
		if err == nil {
			return Timestamp{t: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// OnTheHour reports whether the timestamp has zero minutes and seconds, as
// every slot start does.
func (ts Timestamp) OnTheHour() bool {
	t := ts.Time()
	return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// Time returns the instant in the club zone.
func (ts Timestamp) Time() time.Time {
	if ts.t.IsZero() {
		return time.Time{}
	}
	return ts.t.In(Zone())
}

func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

func (ts Timestamp) Before(other Timestamp) bool {
	return ts.t.Before(other.t)
}

func (ts Timestamp) Equal(other Timestamp) bool {
	return ts.t.Equal(other.t)
}

func (ts Timestamp) String() string {
	if ts.t.IsZero() {
		return ""
	}
	return ts.Time().Format(WireLayout)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedTimestamp, string(data))
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
