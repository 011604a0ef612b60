package sqlite

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/socialinsurance"
	"github.com/warp/payroll-engine/withholding"
)

var (
	_ engine.Store               = (*Store)(nil)
	_ engine.DailyCountSource    = (*Store)(nil)
	_ withholding.RawTableSource = (*Store)(nil)
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func yen(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployee_RoundTrip(t *testing.T) {
	// GIVEN: A fully populated employee record
	// WHEN: Saving and loading it
	// THEN: Every field survives, including decimal fractions

	s := newStore(t)
	ctx := context.Background()

	in := employee.Record{
		ID:                  "emp-1",
		Name:                "Sato",
		Site:                "tokyo",
		StaffKey:            "S001",
		EmploymentForm:      employee.FormPartTime,
		BaseSalary:          yen(0),
		HourlyWage:          decimal.RequireFromString("1250.5"),
		Allowances:          employee.Allowances{Personal: yen(1), Qualification: yen(2), Vehicle: yen(3)},
		GradeName:           "G1",
		Transportation:      employee.Transportation{Policy: employee.TransportActual, Amount: yen(9_000)},
		HousingDeduction:    yen(5_000),
		MunicipalTax:        yen(8_000),
		Withholding:         employee.WithholdingRequired,
		WithholdingCategory: employee.CategorySecondary,
		PeriodType:          employee.PeriodDaily,
		Dependents:          3,
		CommissionVariant:   employee.CommissionLegacy,
	}
	require.NoError(t, s.SaveEmployee(ctx, in))

	out, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, in.EmploymentForm, out.EmploymentForm)
	assert.Equal(t, in.WithholdingCategory, out.WithholdingCategory)
	assert.Equal(t, in.PeriodType, out.PeriodType)
	assert.Equal(t, 3, out.Dependents)
	assert.True(t, out.HourlyWage.Equal(in.HourlyWage))
	assert.True(t, out.Allowances.Vehicle.Equal(yen(3)))
	assert.True(t, out.Transportation.Amount.Equal(yen(9_000)))

	// Upsert
	in.Name = "Sato Taro"
	require.NoError(t, s.SaveEmployee(ctx, in))
	out, err = s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Sato Taro", out.Name)
}

func TestEmployee_NotFoundAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.GetEmployee(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	require.NoError(t, s.SaveEmployee(ctx, employee.Record{ID: "e1", Name: "x", EmploymentForm: employee.FormEmployee}))
	require.NoError(t, s.DeleteEmployee(ctx, "e1"))
	_, err = s.GetEmployee(ctx, "e1")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
}

func TestListEmployees_Filter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, r := range []employee.Record{
		{ID: "c", Name: "c", Site: "osaka", EmploymentForm: employee.FormEmployee},
		{ID: "a", Name: "a", Site: "tokyo", EmploymentForm: employee.FormContractor},
		{ID: "b", Name: "b", Site: "tokyo", EmploymentForm: employee.FormEmployee},
	} {
		require.NoError(t, s.SaveEmployee(ctx, r))
	}

	all, err := s.ListEmployees(ctx, employee.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.EmployeeID("a"), all[0].ID)

	tokyo, err := s.ListEmployees(ctx, employee.Filter{Scope: "tokyo"})
	require.NoError(t, err)
	assert.Len(t, tokyo, 2)

	staff, err := s.ListEmployees(ctx, employee.Filter{Scope: "tokyo", Form: employee.FormEmployee})
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, generic.EmployeeID("b"), staff[0].ID)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestGradeAllowance_NormalizedKey(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGradeAllowance(ctx, employee.GradeAllowance{Name: "Ｇ　１", Amount: yen(20_000)}))

	g, err := s.GetGradeAllowance(ctx, employee.NormalizeGradeName("g 1"))
	require.NoError(t, err)
	assert.Equal(t, "Ｇ　１", g.Name)
	assert.True(t, g.Amount.Equal(yen(20_000)))

	_, err = s.GetGradeAllowance(ctx, "g2")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
}

func TestStandardBrackets_Replace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetStandardBrackets(ctx, []socialinsurance.StandardBracket{
		{Grade: "1", MonthlyAmount: yen(58_000), LowerBound: yen(0), UpperBound: yen(62_999)},
		{Grade: "2", MonthlyAmount: yen(68_000), LowerBound: yen(63_000), UpperBound: yen(72_999)},
	}))
	require.NoError(t, s.SetStandardBrackets(ctx, []socialinsurance.StandardBracket{
		{Grade: "20", MonthlyAmount: yen(260_000), LowerBound: yen(250_000), UpperBound: yen(269_999)},
	}))

	list, err := s.ListStandardBrackets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "20", list[0].Grade)
	assert.True(t, list[0].UpperBound.Equal(yen(269_999)))
}

func TestOverride_KeyedByEmployeeAndMonth(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveOverride(ctx, socialinsurance.Override{
		EmployeeID: "e1", Month: "2025-04", MonthlyAmount: yen(300_000), Grade: "22",
	}))

	o, err := s.GetOverride(ctx, "e1", "2025-04")
	require.NoError(t, err)
	assert.Equal(t, generic.EmployeeID("e1"), o.EmployeeID)
	assert.Equal(t, "22", o.Grade)
	assert.True(t, o.MonthlyAmount.Equal(yen(300_000)))

	_, err = s.GetOverride(ctx, "e1", "2025-05")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	require.NoError(t, s.DeleteOverride(ctx, "e1", "2025-04"))
	_, err = s.GetOverride(ctx, "e1", "2025-04")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
}

func TestCommissionRules(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.GetCommissionRules(ctx)
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	rules := commission.DefaultRules()
	rules.Weekly.WeeklyThreshold = 5
	require.NoError(t, s.SaveCommissionRules(ctx, rules))

	got, err := s.GetCommissionRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Weekly.WeeklyThreshold)
	assert.True(t, got.Legacy.AmountPerAchievement.Equal(yen(1_250)))
}

// =============================================================================
// DAILY COUNTS
// =============================================================================

func TestCountsFor_HalfOpenPeriod(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddCount(ctx, "S1", generic.NewTimePoint(2025, 4, 1), 2))
	require.NoError(t, s.AddCount(ctx, "S1", generic.NewTimePoint(2025, 4, 1), 3))
	require.NoError(t, s.AddCount(ctx, "S1", generic.NewTimePoint(2025, 4, 30), 1))
	require.NoError(t, s.AddCount(ctx, "S1", generic.NewTimePoint(2025, 5, 1), 9))
	require.NoError(t, s.AddCount(ctx, "S2", generic.NewTimePoint(2025, 4, 2), 4))

	p, err := generic.NewPeriod(generic.NewTimePoint(2025, 4, 1), generic.NewTimePoint(2025, 5, 1))
	require.NoError(t, err)

	counts, err := s.CountsFor(ctx, "S1", p)
	require.NoError(t, err)
	assert.Equal(t, commission.DailyCounts{"2025-04-01": 5, "2025-04-30": 1}, counts)
}

// =============================================================================
// TAX TABLE GRID
// =============================================================================

func TestGrid_RoundTripKeepsBlankRows(t *testing.T) {
	// GIVEN: A sectioned grid where a blank row separates the 乙 section
	// WHEN: Saving and fetching it
	// THEN: The blank row is restored and the ingested tables are equal

	s := newStore(t)
	ctx := context.Background()

	grid := withholding.Grid{
		{"88,000円未満", "0", "0", "0", "0", "0", "0", "0", "0"},
		{"89,000円未満", "130", "0", "0", "0", "0", "0", "0", "0"},
		{"", "", ""},
		{"乙欄"},
		{"88,000円未満", "3,200"},
		{"89,000円未満", "3,300"},
	}
	require.NoError(t, s.SaveGrid(ctx, grid))

	got, err := s.FetchGrid(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(grid))
	assert.Empty(t, got[2])
	assert.Equal(t, grid[1], got[1])

	var in withholding.Ingestor
	want, err := in.Ingest(grid)
	require.NoError(t, err)
	fromStore, err := in.Ingest(got)
	require.NoError(t, err)
	assert.Equal(t, want.Size(), fromStore.Size())
	assert.Len(t, fromStore.Secondary, len(want.Secondary))
}

func TestGrid_FeedsTableCache(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGrid(ctx, withholding.Grid{
		{"primary", "0", "0", "", "100"},
	}))

	cache := withholding.NewTableCache(s)
	table, err := cache.Get(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Size())
}

func TestGrid_EmptyStoreFailsIngest(t *testing.T) {
	s := newStore(t)
	cache := withholding.NewTableCache(s)

	_, err := cache.Get(context.Background(), false)
	assert.ErrorIs(t, err, generic.ErrIngest)
}

func TestReset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEmployee(ctx, employee.Record{ID: "e1", Name: "x", EmploymentForm: employee.FormEmployee}))
	require.NoError(t, s.SaveGrid(ctx, withholding.Grid{{"primary", "0", "0", "", "1"}}))

	require.NoError(t, s.Reset(ctx))

	all, err := s.ListEmployees(ctx, employee.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	g, err := s.FetchGrid(ctx)
	require.NoError(t, err)
	assert.Empty(t, g)
}
