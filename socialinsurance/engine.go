package socialinsurance

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
)

// HoursPerMonth converts an hourly wage into a monthly estimate.
var HoursPerMonth = decimal.NewFromInt(160)

// Engine computes contributions. The zero value is ready to use.
type Engine struct{}

// Compute returns the contribution for emp in month.
//
// standards is not modified; an override for a different employee or
// month is ignored.
func (Engine) Compute(emp employee.Record, month generic.MonthKey, standards []StandardBracket, override *Override, rates Rates) (*Contribution, error) {
	estimate, warnings := Estimate(emp)

	bracket, err := MatchStandard(standards, estimate)
	if err != nil {
		return nil, err
	}

	c := &Contribution{
		EmployeeID:     emp.ID,
		Month:          month,
		Estimate:       estimate,
		Grade:          bracket.Grade,
		StandardAmount: bracket.MonthlyAmount,
		Warnings:       warnings,
	}
	if override != nil && override.EmployeeID == emp.ID && override.Month == month {
		c.StandardAmount = override.MonthlyAmount
		if override.Grade != "" {
			c.Grade = override.Grade
		}
		c.Overridden = true
	}

	for _, cat := range Categories() {
		basis := c.StandardAmount
		if cat.WageBased() {
			basis = estimate
		}
		pair := rates.For(cat)
		line := Line{
			Category: cat.CategoryID(),
			Label:    cat.Label(),
			Basis:    basis,
			Employee: generic.RoundYen(basis.Mul(pair.Employee)),
			Employer: generic.RoundYen(basis.Mul(pair.Employer)),
		}
		c.Lines = append(c.Lines, line)
		c.EmployeeTotal += line.Employee
		c.EmployerTotal += line.Employer
	}
	return c, nil
}

// Estimate returns the monthly compensation estimate: the base salary when
// positive, otherwise hourly wage × 160, plus positive allowances.
func Estimate(emp employee.Record) (decimal.Decimal, []generic.ValidationWarning) {
	base := emp.BaseSalary
	if !base.IsPositive() {
		base = generic.NonNegative(emp.HourlyWage).Mul(HoursPerMonth)
	}
	allowances, warnings := emp.PositiveAllowances()
	return base.Add(allowances), warnings
}

// MatchStandard resolves estimate to exactly one bracket:
//
//	estimate ≤ 0                      → lowest
//	estimate in [Lower, Upper]        → that bracket
//	estimate above every bracket      → highest
//	estimate in a gap or below lowest → greatest Lower ≤ estimate, else lowest
func MatchStandard(standards []StandardBracket, estimate decimal.Decimal) (StandardBracket, error) {
	if len(standards) == 0 {
		return StandardBracket{}, &generic.LookupError{Table: "standard", Amount: estimate}
	}
	sorted := make([]StandardBracket, len(standards))
	copy(sorted, standards)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LowerBound.LessThan(sorted[j].LowerBound)
	})

	if !estimate.IsPositive() {
		return sorted[0], nil
	}
	for _, b := range sorted {
		if b.Contains(estimate) {
			return b, nil
		}
	}
	match := sorted[0]
	for _, b := range sorted {
		if b.LowerBound.LessThanOrEqual(estimate) {
			match = b
		}
	}
	return match, nil
}
