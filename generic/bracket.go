package generic

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BRACKET - Closed range [Min, Max] carrying a value
// =============================================================================

// Bracket maps an inclusive range of yen amounts to a value (a tax amount,
// a standard monthly compensation, ...). When Unbounded is set the range
// has no upper limit and Max is ignored.
type Bracket struct {
	Min       decimal.Decimal
	Max       decimal.Decimal
	Unbounded bool
	Value     decimal.Decimal
}

// Contains reports whether amount lies in [Min, Max].
func (b Bracket) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(b.Min) {
		return false
	}
	return b.Unbounded || amount.LessThanOrEqual(b.Max)
}

// SameRange reports whether two brackets cover the same interval.
func (b Bracket) SameRange(o Bracket) bool {
	if !b.Min.Equal(o.Min) || b.Unbounded != o.Unbounded {
		return false
	}
	return b.Unbounded || b.Max.Equal(o.Max)
}

func (b Bracket) String() string {
	if b.Unbounded {
		return fmt.Sprintf("[%s, ∞) → %s", b.Min, b.Value)
	}
	return fmt.Sprintf("[%s, %s] → %s", b.Min, b.Max, b.Value)
}

// SortBrackets orders brackets ascending by Min (stable).
func SortBrackets(list []Bracket) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Min.LessThan(list[j].Min)
	})
}

// FindBracket returns the first bracket in list order containing amount.
// On a list that passes CheckOrdered at most one bracket matches.
func FindBracket(list []Bracket, amount decimal.Decimal) (Bracket, bool) {
	for _, b := range list {
		if b.Contains(amount) {
			return b, true
		}
	}
	return Bracket{}, false
}

// CheckOrdered verifies the bracket-list invariant: ascending by Min and, for
// consecutive entries, Max < next Min (adjacent ranges satisfy
// Max+1 == next Min). Only the last entry may be unbounded.
func CheckOrdered(list []Bracket) error {
	for i := 0; i+1 < len(list); i++ {
		cur, next := list[i], list[i+1]
		if cur.Unbounded {
			return fmt.Errorf("bracket %d is unbounded but not last", i)
		}
		if !cur.Max.LessThan(next.Min) {
			return fmt.Errorf("bracket %d %s overlaps bracket %d %s", i, cur, i+1, next)
		}
	}
	return nil
}
