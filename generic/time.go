package generic

import (
	"encoding/json"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day used for period and bucket boundaries
// =============================================================================

// TimePoint is a calendar date at UTC midnight. Every constructor drops the
// clock part, so two points on the same day always compare equal.
type TimePoint struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t, keeping its calendar date.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return TimePoint{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool       { return tp.day().Before(other.day()) }
func (tp TimePoint) Equal(other TimePoint) bool        { return tp.day().Equal(other.day()) }
func (tp TimePoint) After(other TimePoint) bool        { return tp.day().After(other.day()) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool { return !tp.Before(other) }

// day guards against a TimePoint built by hand with a clock part.
func (tp TimePoint) day() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return DateOf(tp.Time.AddDate(0, 0, n)) }
func (tp TimePoint) AddMonths(n int) TimePoint { return DateOf(tp.Time.AddDate(0, n, 0)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// NextMonday returns the first Monday strictly after tp.
func (tp TimePoint) NextMonday() TimePoint {
	// Weekday: Sunday=0 ... Saturday=6. Days until the following Monday.
	delta := (8 - int(tp.Weekday())) % 7
	if delta == 0 {
		delta = 7
	}
	return tp.AddDays(delta)
}

// DateKey is the map key used for per-day counts.
func (tp TimePoint) DateKey() string { return tp.day().Format(dateLayout) }

func (tp TimePoint) String() string { return tp.DateKey() }

// MarshalJSON writes the point as "YYYY-MM-DD".
func (tp TimePoint) MarshalJSON() ([]byte, error) { return json.Marshal(tp.DateKey()) }

// UnmarshalJSON accepts "YYYY-MM-DD" only.
func (tp *TimePoint) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	d, err := ParseDate(s)
	if err != nil {
		return err
	}
	*tp = d
	return nil
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock abstracts wall-clock reads so TTL expiry and month guards can be
// tested without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int          { return int(to.day().Sub(from.day()).Hours() / 24) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
