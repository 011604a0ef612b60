package commission_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func day(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func countsOn(entries map[generic.TimePoint]int) commission.DailyCounts {
	c := commission.DailyCounts{}
	for d, n := range entries {
		c.Add(d, n)
	}
	return c
}

var (
	legacyEmp = employee.Record{ID: "e1", CommissionVariant: employee.CommissionLegacy}
	weeklyEmp = employee.Record{ID: "e2", CommissionVariant: employee.CommissionWeekly}
)

// =============================================================================
// LEGACY VARIANT
// =============================================================================

func TestCompute_Legacy_BelowThreshold(t *testing.T) {
	// GIVEN: 6 counts in April against a threshold of 7
	// WHEN: Computing the legacy commission
	// THEN: Not achieved, amount 0

	counts := countsOn(map[generic.TimePoint]int{
		day(2025, 4, 3):  4,
		day(2025, 4, 20): 2,
		day(2025, 5, 1):  5, // outside [start, end)
	})

	res, err := commission.Engine{}.Compute(legacyEmp, counts, commission.DefaultRules(), day(2025, 4, 1), day(2025, 5, 1))
	require.NoError(t, err)

	assert.True(t, res.Amount.IsZero())
	b, ok := res.Breakdown.(commission.MonthlyBreakdown)
	require.True(t, ok)
	assert.Equal(t, 6, b.Total)
	assert.False(t, b.Achieved)
}

func TestCompute_Legacy_AtThreshold(t *testing.T) {
	counts := countsOn(map[generic.TimePoint]int{day(2025, 4, 3): 4, day(2025, 4, 30): 3})

	res, err := commission.Engine{}.Compute(legacyEmp, counts, commission.DefaultRules(), day(2025, 4, 1), day(2025, 5, 1))
	require.NoError(t, err)

	assert.True(t, res.Amount.Equal(decimal.NewFromInt(1250)))
	b := res.Breakdown.(commission.MonthlyBreakdown)
	assert.Equal(t, 7, b.Total)
	assert.True(t, b.Achieved)
}

func TestCompute_UnsetVariantIsLegacy(t *testing.T) {
	res, err := commission.Engine{}.Compute(employee.Record{ID: "e3"}, nil, commission.DefaultRules(), day(2025, 4, 1), day(2025, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, employee.CommissionLegacy, res.Variant)
	assert.Equal(t, employee.CommissionLegacy, res.Breakdown.Variant())
}

// =============================================================================
// WEEKLY VARIANT
// =============================================================================

func TestCompute_Weekly_PerBucketAchievement(t *testing.T) {
	// GIVEN: April 2025 (starts on a Tuesday) and counts spread over the weeks
	// WHEN: Computing the weekly commission
	// THEN: Each bucket is judged on its own and three weeks pay out

	counts := countsOn(map[generic.TimePoint]int{
		day(2025, 3, 31): 50, // before start
		day(2025, 4, 2):  7,  // [Apr 1, Apr 7)  partial first week
		day(2025, 4, 8):  3,  // [Apr 7, Apr 14)
		day(2025, 4, 9):  4,
		day(2025, 4, 15): 6,  // [Apr 14, Apr 21) one short
		day(2025, 4, 30): 10, // [Apr 28, May 1) partial last week
	})

	res, err := commission.Engine{}.Compute(weeklyEmp, counts, commission.DefaultRules(), day(2025, 4, 1), day(2025, 5, 1))
	require.NoError(t, err)

	b, ok := res.Breakdown.(commission.WeeklyBreakdown)
	require.True(t, ok)
	require.Len(t, b.Buckets, 5)

	assert.Equal(t, []int{7, 7, 6, 0, 10}, []int{b.Buckets[0].Count, b.Buckets[1].Count, b.Buckets[2].Count, b.Buckets[3].Count, b.Buckets[4].Count})
	assert.Equal(t, []bool{true, true, false, false, true}, []bool{b.Buckets[0].Achieved, b.Buckets[1].Achieved, b.Buckets[2].Achieved, b.Buckets[3].Achieved, b.Buckets[4].Achieved})
	assert.Equal(t, 3, b.AchievedWeeks)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(3750)))
}

func TestWeekly_PartitionIsExact(t *testing.T) {
	// GIVEN: Full calendar months of 28, 29, 30 and 31 days
	// WHEN: Splitting into Monday-aligned buckets
	// THEN: Buckets are contiguous, cover [start, end) exactly and never overlap

	months := []struct {
		name string
		year int
		mon  time.Month
		days int
	}{
		{"28-day", 2025, time.February, 28},
		{"29-day", 2024, time.February, 29},
		{"30-day", 2025, time.April, 30},
		{"31-day", 2025, time.March, 31},
		{"31-day starting Monday", 2025, time.December, 31},
	}

	for _, m := range months {
		t.Run(m.name, func(t *testing.T) {
			start := day(m.year, m.mon, 1)
			end := start.AddMonths(1)
			period, err := generic.NewPeriod(start, end)
			require.NoError(t, err)

			b := commission.Weekly(nil, commission.DefaultRules().Weekly, period)
			require.NotEmpty(t, b.Buckets)

			assert.True(t, b.Buckets[0].Period.Start.Equal(start), "first bucket starts at period start")
			assert.True(t, b.Buckets[len(b.Buckets)-1].Period.End.Equal(end), "last bucket clipped to period end")

			total := 0
			for i, bucket := range b.Buckets {
				n := bucket.Period.Len()
				assert.Greater(t, n, 0)
				assert.LessOrEqual(t, n, 7)
				total += n
				if i > 0 {
					assert.True(t, bucket.Period.Start.Equal(b.Buckets[i-1].Period.End), "no gap or overlap at bucket %d", i)
					assert.Equal(t, time.Monday, bucket.Period.Start.Weekday())
				}
			}
			assert.Equal(t, m.days, total)
		})
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestCompute_InvalidPeriod(t *testing.T) {
	_, err := commission.Engine{}.Compute(weeklyEmp, nil, commission.DefaultRules(), day(2025, 5, 1), day(2025, 4, 1))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	_, err = commission.Engine{}.Compute(weeklyEmp, nil, commission.DefaultRules(), day(2025, 5, 1), day(2025, 5, 1))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestCompute_UnknownVariant(t *testing.T) {
	_, err := commission.Engine{}.Compute(employee.Record{CommissionVariant: "quarterly"}, nil, commission.DefaultRules(), day(2025, 4, 1), day(2025, 5, 1))
	assert.Error(t, err)
}
