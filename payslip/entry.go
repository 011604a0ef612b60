package payslip

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/socialinsurance"
	"github.com/warp/payroll-engine/withholding"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// NonTaxableTransportCap is the monthly commuting allowance exempt from
// income tax.
var NonTaxableTransportCap = decimal.NewFromInt(150_000)

// DefaultMonthlyHours is used for hourly employees when no hours are given.
var DefaultMonthlyHours = decimal.NewFromInt(160)

// Line codes.
const (
	CodeBasePay        = "base_pay"
	CodePersonal       = "allowance_personal"
	CodeQualification  = "allowance_qualification"
	CodeVehicle        = "allowance_vehicle"
	CodeGradeAllowance = "grade_allowance"
	CodeTransportation = "transportation"
	CodeCommission     = "commission"

	CodeWithholdingTax = "withholding_tax"
	CodeHousing        = "housing"
	CodeMunicipalTax   = "municipal_tax"
	CodeInsurance      = "insurance_" // + category ID
)

// =============================================================================
// CONTEXT
// =============================================================================

// Context carries the per-run inputs that are not part of the employee
// master record.
type Context struct {
	Month                generic.MonthKey   `json:"month" validate:"required"`
	PayPeriodDays        int                `json:"pay_period_days,omitempty"`
	WorkedHours          decimal.Decimal    `json:"worked_hours"`
	TransportationActual decimal.Decimal    `json:"transportation_actual"`
	Commission           *commission.Result `json:"-"`
	ExtraEarnings        []LineItem         `json:"extra_earnings,omitempty"`
	ExtraDeductions      []LineItem         `json:"extra_deductions,omitempty"`
	Override             *SummaryOverride   `json:"override,omitempty"`
	// SkipSocialInsurance omits insurance lines, e.g. for contractors.
	SkipSocialInsurance bool `json:"skip_social_insurance,omitempty"`
}

// Days returns PayPeriodDays, defaulting to 30.
func (c Context) Days() int {
	if c.PayPeriodDays <= 0 {
		return 30
	}
	return c.PayPeriodDays
}

// =============================================================================
// EARNINGS
// =============================================================================

// Earnings is the gross side of a payslip.
type Earnings struct {
	Items               []LineItem
	Gross               decimal.Decimal
	NonTaxableTransport decimal.Decimal
	Warnings            []generic.ValidationWarning
}

// BuildEarnings lists base pay, allowances, grade allowance,
// transportation and commission for emp.
func BuildEarnings(emp employee.Record, ctx Context, gradeAllowance decimal.Decimal) Earnings {
	var e Earnings

	base := emp.BaseSalary
	if !base.IsPositive() {
		hours := ctx.WorkedHours
		if !hours.IsPositive() {
			hours = DefaultMonthlyHours
		}
		base = generic.NonNegative(emp.HourlyWage).Mul(hours)
	}
	e.Items = append(e.Items, LineItem{Code: CodeBasePay, Label: "基本給", Amount: base})

	for _, a := range []struct {
		code, label, field string
		amount             decimal.Decimal
	}{
		{CodePersonal, "個人手当", "allowances.personal", emp.Allowances.Personal},
		{CodeQualification, "資格手当", "allowances.qualification", emp.Allowances.Qualification},
		{CodeVehicle, "車両手当", "allowances.vehicle", emp.Allowances.Vehicle},
	} {
		if a.amount.IsNegative() {
			e.Warnings = append(e.Warnings, generic.ValidationWarning{
				Field: a.field, Original: a.amount.String(), Applied: "0",
				Message: "negative allowance treated as zero",
			})
			continue
		}
		e.Items = append(e.Items, LineItem{Code: a.code, Label: a.label, Amount: a.amount})
	}

	e.Items = append(e.Items, LineItem{Code: CodeGradeAllowance, Label: "等級手当", Amount: gradeAllowance})

	transport := Transportation(emp, ctx)
	e.Items = append(e.Items, LineItem{Code: CodeTransportation, Label: "交通費", Amount: transport})
	e.NonTaxableTransport = decimal.Min(transport, NonTaxableTransportCap)

	if ctx.Commission != nil {
		e.Items = append(e.Items, LineItem{Code: CodeCommission, Label: "歩合手当", Amount: ctx.Commission.Amount})
	}
	e.Items = append(e.Items, ctx.ExtraEarnings...)

	e.Gross = sum(visible(e.Items))
	return e
}

// Transportation resolves the transportation allowance by policy.
func Transportation(emp employee.Record, ctx Context) decimal.Decimal {
	switch emp.Transportation.Policy {
	case employee.TransportFixed:
		return generic.NonNegative(emp.Transportation.Amount)
	case employee.TransportActual:
		return generic.NonNegative(ctx.TransportationActual)
	default:
		return decimal.Zero
	}
}

// TaxableBase is the amount looked up in the withholding table:
//
//	gross − non-taxable transportation − housing − social-insurance share
//
// Insurance must be subtracted before the lookup. The result is never
// negative.
func TaxableBase(gross, nonTaxableTransport, housing decimal.Decimal, insuranceEmployeeShare int64) decimal.Decimal {
	base := gross.
		Sub(nonTaxableTransport).
		Sub(generic.NonNegative(housing)).
		Sub(decimal.NewFromInt(insuranceEmployeeShare))
	return generic.NonNegative(base)
}

// =============================================================================
// DEDUCTIONS
// =============================================================================

// StandardDeductions lists withholding tax, housing, municipal tax and,
// when c is non-nil, the employee share of each insurance category.
func StandardDeductions(tax int64, emp employee.Record, c *socialinsurance.Contribution) []LineItem {
	items := []LineItem{
		Item(CodeWithholdingTax, "源泉所得税", tax),
		{Code: CodeHousing, Label: "住宅控除", Amount: emp.HousingDeduction},
		{Code: CodeMunicipalTax, Label: "住民税", Amount: emp.MunicipalTax},
	}
	if c != nil {
		items = append(items, lo.Map(c.Lines, func(l socialinsurance.Line, _ int) LineItem {
			return Item(CodeInsurance+l.Category, l.Label, l.Employee)
		})...)
	}
	return items
}

// =============================================================================
// DEDUCTION ENTRY
// =============================================================================

// Withholding summarizes the tax computation on an entry.
type Withholding struct {
	Tax         int64                    `json:"tax"`
	Normalized  decimal.Decimal          `json:"normalized"`
	FlatRate    bool                     `json:"flat_rate"`
	Discrepancy *withholding.Discrepancy `json:"discrepancy,omitempty"`
}

// DeductionEntry is one employee's computed payroll month. It is never
// persisted by the engine.
type DeductionEntry struct {
	ID          string                        `json:"id"`
	EmployeeID  generic.EmployeeID            `json:"employee_id"`
	Month       generic.MonthKey              `json:"month"`
	ComputedAt  time.Time                     `json:"computed_at"`
	TaxableBase decimal.Decimal               `json:"taxable_base"`
	Withholding Withholding                   `json:"withholding"`
	Insurance   *socialinsurance.Contribution `json:"insurance,omitempty"`
	Commission  *commission.Result            `json:"commission,omitempty"`
	Totals      Totals                        `json:"totals"`
	Warnings    []generic.ValidationWarning   `json:"warnings,omitempty"`
}

// NewDeductionEntry stamps a fresh entry for emp and month.
func NewDeductionEntry(emp employee.Record, month generic.MonthKey, now time.Time) *DeductionEntry {
	return &DeductionEntry{
		ID:         uuid.NewString(),
		EmployeeID: emp.ID,
		Month:      month,
		ComputedAt: now,
	}
}
