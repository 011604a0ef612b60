// Package employee defines the employee master data the engine reads.
// Records are owned by an external record store; the engine never writes them.
package employee

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

type EmploymentForm string

const (
	FormEmployee   EmploymentForm = "employee"
	FormPartTime   EmploymentForm = "part_time"
	FormContractor EmploymentForm = "contractor"
)

type TransportationPolicy string

const (
	TransportFixed  TransportationPolicy = "fixed"
	TransportActual TransportationPolicy = "actual"
	TransportNone   TransportationPolicy = "none"
)

type WithholdingFlag string

const (
	WithholdingRequired WithholdingFlag = "required"
	WithholdingNone     WithholdingFlag = "none"
)

// WithholdingCategory selects the ko (primary employer) or otsu
// (secondary employer) withholding table.
type WithholdingCategory string

const (
	CategoryPrimary   WithholdingCategory = "primary"
	CategorySecondary WithholdingCategory = "secondary"
)

type PeriodType string

const (
	PeriodMonthly PeriodType = "monthly"
	PeriodDaily   PeriodType = "daily"
)

type CommissionVariant string

const (
	CommissionLegacy CommissionVariant = "legacy"
	CommissionWeekly CommissionVariant = "weekly_threshold"
)

// MaxDependents is the widest dependents column in the withholding table.
const MaxDependents = 7

// =============================================================================
// RECORD
// =============================================================================

type Allowances struct {
	Personal      decimal.Decimal `json:"personal"`
	Qualification decimal.Decimal `json:"qualification"`
	Vehicle       decimal.Decimal `json:"vehicle"`
}

type Transportation struct {
	Policy TransportationPolicy `json:"policy"`
	Amount decimal.Decimal      `json:"amount"`
}

// Record is one employee's payroll master data.
type Record struct {
	ID                  generic.EmployeeID  `json:"id"`
	Name                string              `json:"name"`
	Site                string              `json:"site,omitempty"` // opaque access scope
	StaffKey            string              `json:"staff_key,omitempty"`
	EmploymentForm      EmploymentForm      `json:"employment_form"`
	BaseSalary          decimal.Decimal     `json:"base_salary"`
	HourlyWage          decimal.Decimal     `json:"hourly_wage"`
	Allowances          Allowances          `json:"allowances"`
	GradeName           string              `json:"grade_name,omitempty"`
	Transportation      Transportation      `json:"transportation"`
	HousingDeduction    decimal.Decimal     `json:"housing_deduction"`
	MunicipalTax        decimal.Decimal     `json:"municipal_tax"`
	Withholding         WithholdingFlag     `json:"withholding"`
	WithholdingCategory WithholdingCategory `json:"withholding_category"`
	PeriodType          PeriodType          `json:"period_type"`
	Dependents          int                 `json:"dependents"`
	CommissionVariant   CommissionVariant   `json:"commission_variant"`
}

// WithholdingRequired reports whether tax must be withheld. An unset flag
// is treated as required.
func (r Record) WithholdingRequired() bool {
	return r.Withholding != WithholdingNone
}

// IsContractor reports whether the flat-rate path applies.
func (r Record) IsContractor() bool { return r.EmploymentForm == FormContractor }

// CountsKey is the key used against the daily count source.
func (r Record) CountsKey() string {
	if r.StaffKey != "" {
		return r.StaffKey
	}
	return string(r.ID)
}

// ClampedDependents clamps the dependents count to [0, 7]. A value outside
// the range is corrected, never rejected, and reported as a warning.
func (r Record) ClampedDependents() (int, *generic.ValidationWarning) {
	clamped := lo.Clamp(r.Dependents, 0, MaxDependents)
	if clamped == r.Dependents {
		return clamped, nil
	}
	return clamped, &generic.ValidationWarning{
		Field:    "dependents",
		Original: strconv.Itoa(r.Dependents),
		Applied:  strconv.Itoa(clamped),
		Message:  "dependents count outside 0..7 clamped",
	}
}

// PositiveAllowances returns the sum of allowances, treating negative
// values as zero, plus a warning for every negative allowance.
func (r Record) PositiveAllowances() (decimal.Decimal, []generic.ValidationWarning) {
	named := []struct {
		field string
		value decimal.Decimal
	}{
		{"allowances.personal", r.Allowances.Personal},
		{"allowances.qualification", r.Allowances.Qualification},
		{"allowances.vehicle", r.Allowances.Vehicle},
	}
	total := decimal.Zero
	var warnings []generic.ValidationWarning
	for _, a := range named {
		if a.value.IsNegative() {
			warnings = append(warnings, generic.ValidationWarning{
				Field:    a.field,
				Original: a.value.String(),
				Applied:  "0",
				Message:  "negative allowance treated as zero",
			})
			continue
		}
		total = total.Add(a.value)
	}
	return total, warnings
}

// =============================================================================
// GRADE ALLOWANCE
// =============================================================================

// GradeAllowance is a fixed monthly amount attached to a grade name.
type GradeAllowance struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// NormalizeGradeName folds a grade name for lookup: full-width ASCII is
// mapped to half-width, whitespace (including the ideographic space) is
// collapsed, and the result is lower-cased.
func NormalizeGradeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '　':
			r = ' '
		case r >= '！' && r <= '～':
			r = r - 0xFEE0
		}
		b.WriteRune(r)
	}
	return strings.ToLower(strings.Join(strings.FieldsFunc(b.String(), unicode.IsSpace), " "))
}

// =============================================================================
// FILTER
// =============================================================================

// Filter narrows employee listings. Scope is an opaque access-scope value
// supplied by the caller's auth layer; empty means unscoped.
type Filter struct {
	Scope string
	Form  EmploymentForm
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	if f.Scope != "" && r.Site != f.Scope {
		return false
	}
	if f.Form != "" && r.EmploymentForm != f.Form {
		return false
	}
	return true
}
