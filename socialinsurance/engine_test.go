package socialinsurance_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/socialinsurance"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func yen(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func standards() []socialinsurance.StandardBracket {
	return []socialinsurance.StandardBracket{
		{Grade: "3", MonthlyAmount: yen(280_000), LowerBound: yen(270_000), UpperBound: yen(289_999)},
		{Grade: "1", MonthlyAmount: yen(260_000), LowerBound: yen(250_000), UpperBound: yen(259_999)},
		{Grade: "4", MonthlyAmount: yen(300_000), LowerBound: yen(290_000), UpperBound: yen(309_999)},
	}
}

func healthOnly() socialinsurance.Rates {
	return socialinsurance.Rates{
		"health": {Employee: generic.MustRate("0.0495"), Employer: generic.MustRate("0.0495")},
	}
}

func fullRates() socialinsurance.Rates {
	return socialinsurance.Rates{
		"health":     {Employee: generic.MustRate("0.0495"), Employer: generic.MustRate("0.0495")},
		"pension":    {Employee: generic.MustRate("0.0915"), Employer: generic.MustRate("0.0915")},
		"child_levy": {Employee: generic.MustRate("0"), Employer: generic.MustRate("0.0036")},
		"employment": {Employee: generic.MustRate("0.0055"), Employer: generic.MustRate("0.009")},
	}
}

func salaried(id string, base int64) employee.Record {
	return employee.Record{ID: generic.EmployeeID(id), BaseSalary: yen(base)}
}

// =============================================================================
// ROUNDING & CATEGORY TESTS
// =============================================================================

func TestCompute_HealthRounding(t *testing.T) {
	// GIVEN: A standard amount of 280,000 and a 4.95% employee health rate
	// WHEN: Computing the contribution
	// THEN: The health line is round(280000 * 0.0495) = 13860

	c, err := socialinsurance.Engine{}.Compute(salaried("e1", 280_000), "2025-04", standards(), nil, healthOnly())
	require.NoError(t, err)

	assert.Equal(t, "3", c.Grade)
	assert.True(t, c.StandardAmount.Equal(yen(280_000)))
	health, ok := c.Line("health")
	require.True(t, ok)
	assert.Equal(t, int64(13_860), health.Employee)
	assert.Equal(t, int64(13_860), c.EmployeeTotal)
}

func TestCompute_RoundsHalfUpPerCategory(t *testing.T) {
	rates := socialinsurance.Rates{
		"health": {Employee: generic.MustRate("0.00005"), Employer: generic.MustRate("0.00004")},
	}
	// 270000 * 0.00005 = 13.5 → 14; 270000 * 0.00004 = 10.8 → 11
	std := []socialinsurance.StandardBracket{{Grade: "1", MonthlyAmount: yen(270_000), LowerBound: yen(0)}}

	c, err := socialinsurance.Engine{}.Compute(salaried("e1", 100), "2025-04", std, nil, rates)
	require.NoError(t, err)
	health, _ := c.Line("health")
	assert.Equal(t, int64(14), health.Employee)
	assert.Equal(t, int64(11), health.Employer)
}

func TestCompute_EmploymentUsesActualEstimate(t *testing.T) {
	// GIVEN: An estimate of 275,000 that matches the 280,000 standard bracket
	// WHEN: Computing all categories
	// THEN: Employment insurance is based on 275,000, the others on 280,000

	c, err := socialinsurance.Engine{}.Compute(salaried("e1", 275_000), "2025-04", standards(), nil, fullRates())
	require.NoError(t, err)

	employment, _ := c.Line("employment")
	assert.True(t, employment.Basis.Equal(yen(275_000)))
	assert.Equal(t, int64(1_513), employment.Employee) // 1512.5 rounds up
	assert.Equal(t, int64(2_475), employment.Employer)

	pension, _ := c.Line("pension")
	assert.True(t, pension.Basis.Equal(yen(280_000)))
	assert.Equal(t, int64(25_620), pension.Employee)

	levy, _ := c.Line("child_levy")
	assert.Zero(t, levy.Employee)
	assert.Equal(t, int64(1_008), levy.Employer)

	var employeeSum, employerSum int64
	for _, l := range c.Lines {
		employeeSum += l.Employee
		employerSum += l.Employer
	}
	assert.Equal(t, employeeSum, c.EmployeeTotal)
	assert.Equal(t, employerSum, c.EmployerTotal)
}

func TestCompute_LinesInCategoryOrder(t *testing.T) {
	c, err := socialinsurance.Engine{}.Compute(salaried("e1", 280_000), "2025-04", standards(), nil, fullRates())
	require.NoError(t, err)

	var ids []string
	for _, l := range c.Lines {
		ids = append(ids, l.Category)
	}
	assert.Equal(t, []string{"health", "nursing_care", "pension", "child_levy", "employment"}, ids)
}

func TestCategories_FollowRegisteredOrder(t *testing.T) {
	cats := socialinsurance.Categories()
	require.Len(t, cats, 5)
	for i := 1; i < len(cats); i++ {
		assert.Less(t, cats[i-1].Order(), cats[i].Order())
	}
	assert.True(t, cats[len(cats)-1].WageBased())
}

// =============================================================================
// OVERRIDE TESTS
// =============================================================================

func TestCompute_OverridePrecedence(t *testing.T) {
	// GIVEN: A bracket match of grade 3 / 280,000 and an override of 300,000
	// WHEN: Computing for the same employee and month
	// THEN: 300,000 is used and the standards slice is unchanged

	std := standards()
	before := make([]socialinsurance.StandardBracket, len(std))
	copy(before, std)

	override := &socialinsurance.Override{EmployeeID: "e1", Month: "2025-04", MonthlyAmount: yen(300_000)}
	c, err := socialinsurance.Engine{}.Compute(salaried("e1", 280_000), "2025-04", std, override, healthOnly())
	require.NoError(t, err)

	assert.True(t, c.Overridden)
	assert.True(t, c.StandardAmount.Equal(yen(300_000)))
	assert.Equal(t, "3", c.Grade, "grade kept when the override has none")
	health, _ := c.Line("health")
	assert.Equal(t, int64(14_850), health.Employee)

	assert.Equal(t, before, std)
}

func TestCompute_OverrideForOtherMonthIgnored(t *testing.T) {
	override := &socialinsurance.Override{EmployeeID: "e1", Month: "2025-03", MonthlyAmount: yen(300_000), Grade: "4"}

	c, err := socialinsurance.Engine{}.Compute(salaried("e1", 280_000), "2025-04", standards(), override, healthOnly())
	require.NoError(t, err)
	assert.False(t, c.Overridden)
	assert.True(t, c.StandardAmount.Equal(yen(280_000)))
}

// =============================================================================
// BRACKET MATCH TESTS
// =============================================================================

func TestMatchStandard(t *testing.T) {
	withTop := append(standards(), socialinsurance.StandardBracket{
		Grade: "9", MonthlyAmount: yen(650_000), LowerBound: yen(635_000),
	})

	tests := []struct {
		name     string
		list     []socialinsurance.StandardBracket
		estimate int64
		grade    string
	}{
		{"inside", standards(), 255_000, "1"},
		{"inclusive upper", standards(), 289_999, "3"},
		{"gap resolves down", standards(), 262_000, "1"},
		{"above every bracket", standards(), 900_000, "4"},
		{"unbounded top", withTop, 900_000, "9"},
		{"zero estimate", standards(), 0, "1"},
		{"below lowest", standards(), 10_000, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := socialinsurance.MatchStandard(tt.list, yen(tt.estimate))
			require.NoError(t, err)
			assert.Equal(t, tt.grade, b.Grade)
		})
	}
}

func TestMatchStandard_Empty(t *testing.T) {
	_, err := socialinsurance.MatchStandard(nil, yen(280_000))
	assert.ErrorIs(t, err, generic.ErrNoMatchingBracket)
}

// =============================================================================
// ESTIMATE TESTS
// =============================================================================

func TestEstimate(t *testing.T) {
	hourly := employee.Record{
		HourlyWage: yen(1_200),
		Allowances: employee.Allowances{Personal: yen(5_000), Qualification: yen(-3_000)},
	}

	est, warnings := socialinsurance.Estimate(hourly)
	assert.True(t, est.Equal(yen(197_000)), "1200*160 + 5000, negative allowance ignored; got %s", est)
	require.Len(t, warnings, 1)
	assert.Equal(t, "allowances.qualification", warnings[0].Field)

	monthly := employee.Record{BaseSalary: yen(250_000), HourlyWage: yen(9_999)}
	est, warnings = socialinsurance.Estimate(monthly)
	assert.True(t, est.Equal(yen(250_000)))
	assert.Empty(t, warnings)
}
