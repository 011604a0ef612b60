package payslip_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/socialinsurance"
)

var fixedNow = time.Date(2025, time.April, 25, 10, 0, 0, 0, time.UTC)

func yen(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func codes(items []payslip.LineItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Code)
	}
	return out
}

// =============================================================================
// COMPOSE TESTS
// =============================================================================

func TestCompose_DropsNonPositiveLines(t *testing.T) {
	// GIVEN: Earnings and deductions that include zero and negative amounts
	// WHEN: Composing
	// THEN: Only positive lines remain and totals are their sums

	earnings := []payslip.LineItem{
		payslip.Item("base_pay", "基本給", 250_000),
		payslip.Item("allowance_vehicle", "車両手当", 0),
		payslip.Item("transportation", "交通費", 10_000),
	}
	deductions := []payslip.LineItem{
		payslip.Item("withholding_tax", "源泉所得税", 5_000),
		payslip.Item("housing", "住宅控除", -1),
		payslip.Item("municipal_tax", "住民税", 12_000),
	}

	tot := payslip.Compose(earnings, deductions, nil)

	assert.Equal(t, []string{"base_pay", "transportation"}, codes(tot.Earnings))
	assert.Equal(t, []string{"withholding_tax", "municipal_tax"}, codes(tot.DeductionItems))
	assert.True(t, tot.Gross.Equal(yen(260_000)))
	assert.True(t, tot.Deductions.Equal(yen(17_000)))
	assert.True(t, tot.Net.Equal(yen(243_000)))
	assert.False(t, tot.Overridden)
}

func TestCompose_SummaryOverride(t *testing.T) {
	earnings := []payslip.LineItem{payslip.Item("base_pay", "基本給", 250_000)}
	deductions := []payslip.LineItem{payslip.Item("withholding_tax", "源泉所得税", 5_000)}

	t.Run("all totals", func(t *testing.T) {
		tot := payslip.Compose(earnings, deductions, &payslip.SummaryOverride{
			Gross: ptr(yen(500_000)), Deductions: ptr(yen(40_000)), Net: ptr(yen(455_000)),
		})
		assert.True(t, tot.Overridden)
		assert.True(t, tot.Gross.Equal(yen(500_000)))
		assert.True(t, tot.Deductions.Equal(yen(40_000)))
		assert.True(t, tot.Net.Equal(yen(455_000)))
	})

	t.Run("gross only feeds net", func(t *testing.T) {
		tot := payslip.Compose(earnings, deductions, &payslip.SummaryOverride{Gross: ptr(yen(300_000))})
		assert.True(t, tot.Net.Equal(yen(295_000)))
	})

	t.Run("empty override", func(t *testing.T) {
		tot := payslip.Compose(earnings, deductions, &payslip.SummaryOverride{})
		assert.False(t, tot.Overridden)
		assert.True(t, tot.Net.Equal(yen(245_000)))
	})
}

// =============================================================================
// EARNINGS & TAXABLE BASE TESTS
// =============================================================================

func TestBuildEarnings(t *testing.T) {
	emp := employee.Record{
		BaseSalary: yen(250_000),
		Allowances: employee.Allowances{Personal: yen(10_000), Vehicle: yen(-5_000)},
		Transportation: employee.Transportation{
			Policy: employee.TransportFixed, Amount: yen(200_000),
		},
	}
	ctx := payslip.Context{
		Month:      "2025-04",
		Commission: &commission.Result{Amount: yen(1_250)},
	}

	e := payslip.BuildEarnings(emp, ctx, yen(20_000))

	// 250000 + 10000 + 20000 + 200000 + 1250
	assert.True(t, e.Gross.Equal(yen(481_250)), "gross = %s", e.Gross)
	assert.True(t, e.NonTaxableTransport.Equal(yen(150_000)), "capped")
	require.Len(t, e.Warnings, 1)
	assert.Equal(t, "allowances.vehicle", e.Warnings[0].Field)
	assert.Contains(t, codes(e.Items), payslip.CodeCommission)
}

func TestBuildEarnings_HourlyAndActualTransport(t *testing.T) {
	emp := employee.Record{
		HourlyWage:     yen(1_500),
		Transportation: employee.Transportation{Policy: employee.TransportActual, Amount: yen(99_999)},
	}

	e := payslip.BuildEarnings(emp, payslip.Context{WorkedHours: yen(100), TransportationActual: yen(8_000)}, decimal.Zero)
	assert.True(t, e.Gross.Equal(yen(158_000)))

	e = payslip.BuildEarnings(emp, payslip.Context{}, decimal.Zero)
	assert.True(t, e.Gross.Equal(yen(240_000)), "defaults to 160 hours, no actual transport")
}

func TestTaxableBase_SubtractionOrder(t *testing.T) {
	// gross 400000 − transport 10000 − housing 20000 − insurance 45000
	base := payslip.TaxableBase(yen(400_000), yen(10_000), yen(20_000), 45_000)
	assert.True(t, base.Equal(yen(325_000)))

	assert.True(t, payslip.TaxableBase(yen(10_000), yen(0), yen(20_000), 0).IsZero(), "never negative")
}

func TestStandardDeductions_Order(t *testing.T) {
	emp := employee.Record{HousingDeduction: yen(20_000), MunicipalTax: yen(12_000)}
	c := &socialinsurance.Contribution{Lines: []socialinsurance.Line{
		{Category: "health", Label: "健康保険", Employee: 13_860},
		{Category: "nursing_care", Label: "介護保険", Employee: 0},
		{Category: "pension", Label: "厚生年金", Employee: 25_620},
		{Category: "employment", Label: "雇用保険", Employee: 1_540},
	}}

	items := payslip.StandardDeductions(7_000, emp, c)
	tot := payslip.Compose(nil, items, nil)

	assert.Equal(t, []string{
		"withholding_tax", "housing", "municipal_tax",
		"insurance_health", "insurance_pension", "insurance_employment",
	}, codes(tot.DeductionItems))
	assert.True(t, tot.Deductions.Equal(yen(80_020)))
}

func TestNewDeductionEntry_UniqueIDs(t *testing.T) {
	emp := employee.Record{ID: "e1"}
	a := payslip.NewDeductionEntry(emp, "2025-04", fixedNow)
	b := payslip.NewDeductionEntry(emp, "2025-04", fixedNow)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, emp.ID, a.EmployeeID)
}
