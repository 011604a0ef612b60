package generic

// =============================================================================
// PERIOD - Half-open calendar interval
// =============================================================================

// Period is the half-open day interval [Start, End).
//
// Payroll periods are always expressed this way: a month is
// [first of month, first of next month). Half-open bounds let adjacent
// periods share an endpoint without double-counting a day.
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// NewPeriod validates that End is after Start.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects empty and inverted periods.
func (p Period) Validate() error {
	if !p.Start.Before(p.End) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.Before(p.End)
}

// Days returns every day in the period.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.Before(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len returns the number of days in the period.
func (p Period) Len() int { return DaysBetween(p.Start, p.End) }

// String renders the half-open interval.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}

// SplitAtMondays partitions the period into Monday-aligned buckets.
//
// The first bucket runs from Start to the next Monday (a partial week
// unless Start is itself a Monday); middle buckets are full Monday–Sunday
// weeks; the last bucket is clipped to End. The buckets are contiguous and
// their union is exactly [Start, End).
func (p Period) SplitAtMondays() []Period {
	if p.Validate() != nil {
		return nil
	}
	var buckets []Period
	cursor := p.Start
	for cursor.Before(p.End) {
		next := cursor.NextMonday()
		if next.After(p.End) {
			next = p.End
		}
		buckets = append(buckets, Period{Start: cursor, End: next})
		cursor = next
	}
	return buckets
}
