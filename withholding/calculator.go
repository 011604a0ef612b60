package withholding

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
)

// DefaultFlatRate is the contractor withholding rate (10% + 2.1% surtax).
var DefaultFlatRate = generic.MustRate("0.1021")

var thirty = decimal.NewFromInt(30)

// Calculator computes per-period withholding tax.
type Calculator struct {
	// FlatRate applies to contractors. Zero means DefaultFlatRate.
	FlatRate generic.Rate
}

// Result carries the tax and the details needed for auditing it.
type Result struct {
	Tax        int64
	Normalized decimal.Decimal // 30-day equivalent used for the lookup
	Bracket    *generic.Bracket
	FlatRate   bool
	Warnings   []generic.ValidationWarning
}

// Compute returns the withholding tax for emp.
func (c Calculator) Compute(emp employee.Record, taxableBase decimal.Decimal, payPeriodDays int, table *Table) (int64, error) {
	res, err := c.ComputeDetailed(emp, taxableBase, payPeriodDays, table)
	if err != nil {
		return 0, err
	}
	return res.Tax, nil
}

// ComputeDetailed is Compute plus the matched bracket and any clamp warning.
//
// A missing bracket is a *generic.LookupError and is returned as is; no
// estimate is ever substituted for the table value.
func (c Calculator) ComputeDetailed(emp employee.Record, taxableBase decimal.Decimal, payPeriodDays int, table *Table) (*Result, error) {
	if !emp.WithholdingRequired() {
		return &Result{Normalized: taxableBase}, nil
	}
	if emp.IsContractor() {
		rate := c.FlatRate
		if rate.IsZero() {
			rate = DefaultFlatRate
		}
		return &Result{
			Tax:        generic.FloorYen(taxableBase.Mul(rate)),
			Normalized: taxableBase,
			FlatRate:   true,
		}, nil
	}
	if table == nil {
		return nil, generic.ErrSourceRequired
	}

	normalized, err := Normalize(emp.PeriodType, taxableBase, payPeriodDays)
	if err != nil {
		return nil, err
	}

	res := &Result{Normalized: normalized}
	dependents, warn := emp.ClampedDependents()
	if warn != nil {
		res.Warnings = append(res.Warnings, *warn)
	}
	list, name := table.Brackets(emp.WithholdingCategory, dependents)
	b, ok := generic.FindBracket(list, normalized)
	if !ok {
		return nil, &generic.LookupError{Table: name, Amount: normalized}
	}
	res.Bracket = &b
	res.Tax = b.Value.IntPart()
	return res, nil
}

// Normalize converts a daily-rate base to its 30-day equivalent, floored to
// whole yen. Monthly bases pass through.
func Normalize(period employee.PeriodType, taxableBase decimal.Decimal, payPeriodDays int) (decimal.Decimal, error) {
	if period != employee.PeriodDaily {
		return taxableBase, nil
	}
	if payPeriodDays <= 0 {
		return decimal.Zero, generic.ErrInvalidPeriod
	}
	days := decimal.NewFromInt(int64(payPeriodDays))
	return taxableBase.Mul(thirty).Div(days).Floor(), nil
}
