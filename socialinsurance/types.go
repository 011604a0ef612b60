/*
Package socialinsurance computes employee and employer social-insurance
contributions.

PURPOSE:
  Matches an employee's estimated monthly compensation to a standard
  monthly compensation bracket, applies a per-employee-per-month override
  when one exists, and multiplies the result by per-category rates.

CATEGORIES:
  health, nursing_care, pension, child_levy  → basis: standard amount
  employment                                 → basis: actual estimate

  Employment insurance is wage-based, so it ignores the bracket.

ROUNDING:
  Each category and side is rounded half up to whole yen on its own; the
  totals are sums of the rounded amounts.

SEE ALSO:
  - engine.go: Compute
  - factory/payroll.go: JSON/YAML rate documents
*/
package socialinsurance

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// CATEGORIES
// =============================================================================

// Category is a social-insurance line. It implements generic.Category.
type Category struct {
	id        string
	label     string
	order     int
	wageBased bool
}

func (c Category) CategoryID() string { return c.id }
func (c Category) Label() string      { return c.label }
func (c Category) Order() int         { return c.order }

// WageBased reports whether the category uses the actual estimate instead
// of the standard amount.
func (c Category) WageBased() bool { return c.wageBased }

var (
	CategoryHealth      = Category{id: "health", label: "健康保険", order: 10}
	CategoryNursingCare = Category{id: "nursing_care", label: "介護保険", order: 20}
	CategoryPension     = Category{id: "pension", label: "厚生年金", order: 30}
	CategoryChildLevy   = Category{id: "child_levy", label: "子ども・子育て支援金", order: 40}
	CategoryEmployment  = Category{id: "employment", label: "雇用保険", order: 50, wageBased: true}
)

func init() {
	generic.RegisterCategory(CategoryHealth)
	generic.RegisterCategory(CategoryNursingCare)
	generic.RegisterCategory(CategoryPension)
	generic.RegisterCategory(CategoryChildLevy)
	generic.RegisterCategory(CategoryEmployment)
}

// Categories returns the registered insurance categories in payslip order.
func Categories() []Category {
	return lo.FilterMap(generic.ListCategories(), func(c generic.Category, _ int) (Category, bool) {
		cat, ok := c.(Category)
		return cat, ok
	})
}

// =============================================================================
// RATES
// =============================================================================

// RatePair is one category's employee and employer rates.
type RatePair struct {
	Employee generic.Rate `json:"employee"`
	Employer generic.Rate `json:"employer"`
}

// Rates maps category IDs to rate pairs. A missing category contributes 0.
type Rates map[string]RatePair

// For returns the pair for c.
func (r Rates) For(c generic.Category) RatePair {
	return r[c.CategoryID()]
}

// =============================================================================
// STANDARD BRACKETS & OVERRIDES
// =============================================================================

// StandardBracket is one grade of the standard monthly compensation table.
// A zero UpperBound means the grade has no upper limit.
type StandardBracket struct {
	Grade         string          `json:"grade"`
	MonthlyAmount decimal.Decimal `json:"monthly_amount"`
	LowerBound    decimal.Decimal `json:"lower_bound"`
	UpperBound    decimal.Decimal `json:"upper_bound"`
}

// Contains reports whether estimate lies in [LowerBound, UpperBound].
func (b StandardBracket) Contains(estimate decimal.Decimal) bool {
	if estimate.LessThan(b.LowerBound) {
		return false
	}
	return b.UpperBound.IsZero() || estimate.LessThanOrEqual(b.UpperBound)
}

// Override replaces the matched bracket's amount (and optionally grade)
// for one employee in one month.
type Override struct {
	EmployeeID    generic.EmployeeID `json:"employee_id"`
	Month         generic.MonthKey   `json:"month"`
	MonthlyAmount decimal.Decimal    `json:"monthly_amount"`
	Grade         string             `json:"grade,omitempty"`
}

// =============================================================================
// RESULT
// =============================================================================

// Line is one category's contribution.
type Line struct {
	Category string          `json:"category"`
	Label    string          `json:"label"`
	Basis    decimal.Decimal `json:"basis"`
	Employee int64           `json:"employee"`
	Employer int64           `json:"employer"`
}

// Contribution is the result of Compute.
type Contribution struct {
	EmployeeID     generic.EmployeeID          `json:"employee_id"`
	Month          generic.MonthKey            `json:"month"`
	Estimate       decimal.Decimal             `json:"estimate"`
	Grade          string                      `json:"grade"`
	StandardAmount decimal.Decimal             `json:"standard_amount"`
	Overridden     bool                        `json:"overridden"`
	Lines          []Line                      `json:"lines"`
	EmployeeTotal  int64                       `json:"employee_total"`
	EmployerTotal  int64                       `json:"employer_total"`
	Warnings       []generic.ValidationWarning `json:"warnings,omitempty"`
}

// Line returns the line for category id, or false.
func (c *Contribution) Line(id string) (Line, bool) {
	for _, l := range c.Lines {
		if l.Category == id {
			return l, true
		}
	}
	return Line{}, false
}
