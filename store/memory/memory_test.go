package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/socialinsurance"
	"github.com/warp/payroll-engine/withholding"
)

func TestMemory_NotFoundErrors(t *testing.T) {
	m := New()
	ctx := context.Background()

	_, err := m.GetEmployee(ctx, "nobody")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	_, err = m.GetGradeAllowance(ctx, "g9")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	_, err = m.GetOverride(ctx, "e1", "2025-04")
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)

	_, err = m.GetCommissionRules(ctx)
	assert.ErrorIs(t, err, generic.ErrRecordNotFound)
}

func TestMemory_GradeLookupIsNormalized(t *testing.T) {
	m := New()
	m.PutGradeAllowance(employee.GradeAllowance{Name: "Ｓ　２", Amount: decimal.NewFromInt(30_000)})

	g, err := m.GetGradeAllowance(context.Background(), employee.NormalizeGradeName("s 2"))
	require.NoError(t, err)
	assert.True(t, g.Amount.Equal(decimal.NewFromInt(30_000)))
}

func TestMemory_ListEmployeesFilterAndOrder(t *testing.T) {
	m := New()
	m.PutEmployee(employee.Record{ID: "b", Site: "tokyo", EmploymentForm: employee.FormEmployee})
	m.PutEmployee(employee.Record{ID: "a", Site: "tokyo", EmploymentForm: employee.FormContractor})
	m.PutEmployee(employee.Record{ID: "c", Site: "osaka", EmploymentForm: employee.FormEmployee})

	all, err := m.ListEmployees(context.Background(), employee.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.EmployeeID("a"), all[0].ID)

	tokyo, err := m.ListEmployees(context.Background(), employee.Filter{Scope: "tokyo", Form: employee.FormEmployee})
	require.NoError(t, err)
	require.Len(t, tokyo, 1)
	assert.Equal(t, generic.EmployeeID("b"), tokyo[0].ID)
}

func TestMemory_StandardsAreCopied(t *testing.T) {
	m := New()
	list := []socialinsurance.StandardBracket{{Grade: "1"}}
	m.SetStandardBrackets(list)
	list[0].Grade = "changed"

	got, err := m.ListStandardBrackets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", got[0].Grade)

	got[0].Grade = "mutated"
	again, _ := m.ListStandardBrackets(context.Background())
	assert.Equal(t, "1", again[0].Grade)
}

func TestMemory_CountsForPeriod(t *testing.T) {
	m := New()
	m.AddCount("S1", generic.NewTimePoint(2025, 3, 31), 4)
	m.AddCount("S1", generic.NewTimePoint(2025, 4, 1), 2)
	m.AddCount("S1", generic.NewTimePoint(2025, 4, 1), 3)
	m.AddCount("S1", generic.NewTimePoint(2025, 4, 30), 1)

	p, err := generic.NewPeriod(generic.NewTimePoint(2025, 4, 1), generic.NewTimePoint(2025, 5, 1))
	require.NoError(t, err)

	counts, err := m.CountsFor(context.Background(), "S1", p)
	require.NoError(t, err)
	assert.Equal(t, 5, counts["2025-04-01"])
	assert.Equal(t, 1, counts["2025-04-30"])
	assert.NotContains(t, counts, "2025-03-31")
	assert.Equal(t, 6, counts.Sum(p))

	none, err := m.CountsFor(context.Background(), "unknown", p)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemory_FetchGridReturnsCopy(t *testing.T) {
	m := New()
	m.SetGrid(withholding.Grid{{"primary", "0", "0", "", "1"}})

	g, err := m.FetchGrid(context.Background())
	require.NoError(t, err)
	g[0][4] = "999"

	again, _ := m.FetchGrid(context.Background())
	assert.Equal(t, "1", again[0][4])
}
