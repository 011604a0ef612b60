package withholding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
)

func singleBracketTable() *Table {
	t := &Table{}
	t.ByDependents[0] = []generic.Bracket{{Min: dec(150_000), Max: dec(160_000), Value: dec(500)}}
	return t
}

// perDependentsTable gives each dependents column a distinct tax so the
// selected column is visible in the result.
func perDependentsTable() *Table {
	t := &Table{}
	for d := range t.ByDependents {
		t.ByDependents[d] = []generic.Bracket{{Min: dec(0), Unbounded: true, Value: dec(int64(1000 - d*100))}}
	}
	t.Secondary = []generic.Bracket{{Min: dec(0), Unbounded: true, Value: dec(9_999)}}
	return t
}

func TestCalculator_Contractor_FlatRate(t *testing.T) {
	emp := employee.Record{EmploymentForm: employee.FormContractor}

	tax, err := Calculator{}.Compute(emp, dec(300_000), 30, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30_630), tax)
}

func TestCalculator_WithholdingNone(t *testing.T) {
	emp := employee.Record{Withholding: employee.WithholdingNone, EmploymentForm: employee.FormContractor}

	tax, err := Calculator{}.Compute(emp, dec(300_000), 30, nil)
	require.NoError(t, err)
	assert.Zero(t, tax)
}

func TestCalculator_TableLookup(t *testing.T) {
	// GIVEN: A single bracket [150000, 160000] → 500
	// WHEN: Looking up 155000 and 161000
	// THEN: 500, then a LookupError with no substitute value

	emp := employee.Record{EmploymentForm: employee.FormEmployee}
	table := singleBracketTable()

	tax, err := Calculator{}.Compute(emp, dec(155_000), 30, table)
	require.NoError(t, err)
	assert.Equal(t, int64(500), tax)

	tax, err = Calculator{}.Compute(emp, dec(161_000), 30, table)
	assert.Zero(t, tax)
	assert.ErrorIs(t, err, generic.ErrNoMatchingBracket)

	var le *generic.LookupError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "primary/dependents=0", le.Table)
	assert.True(t, le.Amount.Equal(dec(161_000)))
}

func TestCalculator_DependentsClamp(t *testing.T) {
	table := perDependentsTable()
	calc := Calculator{}

	at7, err := calc.Compute(employee.Record{Dependents: 7}, dec(200_000), 30, table)
	require.NoError(t, err)
	at9, err := calc.Compute(employee.Record{Dependents: 9}, dec(200_000), 30, table)
	require.NoError(t, err)
	assert.Equal(t, at7, at9)

	at0, err := calc.Compute(employee.Record{Dependents: 0}, dec(200_000), 30, table)
	require.NoError(t, err)
	atNeg, err := calc.Compute(employee.Record{Dependents: -1}, dec(200_000), 30, table)
	require.NoError(t, err)
	assert.Equal(t, at0, atNeg)

	res, err := calc.ComputeDetailed(employee.Record{Dependents: 9}, dec(200_000), 30, table)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "dependents", res.Warnings[0].Field)
}

func TestCalculator_SecondaryCategory(t *testing.T) {
	emp := employee.Record{WithholdingCategory: employee.CategorySecondary, Dependents: 3}

	tax, err := Calculator{}.Compute(emp, dec(200_000), 30, perDependentsTable())
	require.NoError(t, err)
	assert.Equal(t, int64(9_999), tax)
}

func TestCalculator_DailyNormalization(t *testing.T) {
	// GIVEN: A daily-period employee paid 52,000 over 10 days
	// WHEN: Computing withholding
	// THEN: The lookup uses the 30-day equivalent 156,000

	emp := employee.Record{PeriodType: employee.PeriodDaily}

	res, err := Calculator{}.ComputeDetailed(emp, dec(52_000), 10, singleBracketTable())
	require.NoError(t, err)
	assert.True(t, res.Normalized.Equal(dec(156_000)))
	assert.Equal(t, int64(500), res.Tax)

	_, err = Calculator{}.Compute(emp, dec(52_000), 0, singleBracketTable())
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestNormalize_FloorsToYen(t *testing.T) {
	n, err := Normalize(employee.PeriodDaily, dec(10_000), 7)
	require.NoError(t, err)
	// 10000 * 30 / 7 = 42857.14...
	assert.True(t, n.Equal(dec(42_857)))

	n, err = Normalize(employee.PeriodMonthly, dec(10_000), 0)
	require.NoError(t, err)
	assert.True(t, n.Equal(dec(10_000)))
}

func TestCalculator_NoTable(t *testing.T) {
	_, err := Calculator{}.Compute(employee.Record{}, dec(100_000), 30, nil)
	assert.ErrorIs(t, err, generic.ErrSourceRequired)
}
