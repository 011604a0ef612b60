/*
Package generic provides the domain-agnostic core of the payroll engine.

PURPOSE:
  This package contains the building blocks shared by every calculation
  component: exact yen arithmetic, range-bounded brackets, calendar
  periods, the error taxonomy and the injectable clock. None of these
  types know about withholding tax, social insurance or commission; the
  domain packages (withholding, socialinsurance, commission, payslip)
  build on them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Yen helpers: constructors and the two rounding modes payroll law uses
    (truncate to whole yen, round half up to whole yen)
  - Rate: a decimal fraction such as 0.0495 or 0.1021
  - Identifiers: EmployeeID, MonthKey

DESIGN PRINCIPLES:
  1. Precision: every amount is a decimal.Decimal, never a float64
  2. Results are whole yen (int64); intermediate values keep full precision
  3. Type Safety: strong typing for IDs and month keys

USAGE:
  base := generic.Yen(300000)
  tax := generic.FloorYen(base.Mul(generic.MustRate("0.1021"))) // 30630

SEE ALSO:
  - bracket.go: range lookup used by withholding and social insurance
  - errors.go: IngestError, LookupError, ValidationWarning, ImmutabilityError
  - period.go: half-open calendar periods
*/
package generic

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// YEN - Exact money arithmetic
// =============================================================================

var half = decimal.New(5, -1)

// Yen returns a whole-yen decimal amount.
func Yen(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// FloorYen truncates toward negative infinity to whole yen.
func FloorYen(d decimal.Decimal) int64 { return d.Floor().IntPart() }

// RoundYen rounds half up (toward positive infinity on .5) to whole yen.
func RoundYen(d decimal.Decimal) int64 {
	return d.Add(half).Floor().IntPart()
}

// NonNegative clamps negative amounts to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// RATE - Fractional multiplier
// =============================================================================

// Rate is a fraction applied to a yen amount (0.0495 = 4.95%).
type Rate = decimal.Decimal

// MustRate parses a rate literal. It panics on malformed input and is meant
// for package-level defaults and tests.
func MustRate(s string) Rate {
	return decimal.RequireFromString(s)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

const monthKeyLayout = "2006-01"

// NewMonthKey builds a key from a year and month.
func NewMonthKey(year int, month time.Month) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", year, int(month)))
}

// MonthKeyOf returns the key for the month containing tp.
func MonthKeyOf(tp TimePoint) MonthKey { return NewMonthKey(tp.Year(), tp.Month()) }

// ParseMonthKey accepts "YYYY-MM" and "YYYY/MM".
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
	t, err := time.Parse(monthKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid month key %q: %w", s, err)
	}
	return NewMonthKey(t.Year(), t.Month()), nil
}

// Start returns the first day of the month.
func (m MonthKey) Start() (TimePoint, error) {
	t, err := time.Parse(monthKeyLayout, string(m))
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid month key %q: %w", m, err)
	}
	return NewTimePoint(t.Year(), t.Month(), 1), nil
}

// Period returns the half-open period [first of month, first of next month).
func (m MonthKey) Period() (Period, error) {
	start, err := m.Start()
	if err != nil {
		return Period{}, err
	}
	return Period{Start: start, End: start.AddMonths(1)}, nil
}

func (m MonthKey) String() string { return string(m) }
