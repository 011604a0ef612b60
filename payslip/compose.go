/*
Package payslip assembles earning and deduction line items into totals.

PURPOSE:
  The composer is the last step of a payroll calculation. It receives the
  named line items (base pay, allowances, withholding tax, insurance
  shares, ...) and produces gross, deductions and net.

RULES:
  - Items with amount ≤ 0 are dropped; zero lines are never shown.
  - gross = Σ earnings, deductions = Σ deduction items, net = gross −
    deductions, unless a SummaryOverride supplies any of the three.
  - An overridden gross or deductions still feeds net when net itself is
    not overridden.

SEE ALSO:
  - entry.go: building the standard line items and the taxable base
*/
package payslip

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItem is one named payslip line.
type LineItem struct {
	Code   string          `json:"code"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Item builds a LineItem from a whole-yen amount.
func Item(code, label string, yen int64) LineItem {
	return LineItem{Code: code, Label: label, Amount: decimal.NewFromInt(yen)}
}

// SummaryOverride substitutes pre-computed totals (bonus or year-end
// adjustment payouts). Nil fields are computed as usual.
type SummaryOverride struct {
	Gross      *decimal.Decimal `json:"gross,omitempty"`
	Deductions *decimal.Decimal `json:"deductions,omitempty"`
	Net        *decimal.Decimal `json:"net,omitempty"`
}

// Totals is the composed payslip summary.
type Totals struct {
	Gross          decimal.Decimal `json:"gross"`
	Deductions     decimal.Decimal `json:"deductions"`
	Net            decimal.Decimal `json:"net"`
	Earnings       []LineItem      `json:"earnings"`
	DeductionItems []LineItem      `json:"deduction_items"`
	Overridden     bool            `json:"overridden"`
}

// =============================================================================
// COMPOSE
// =============================================================================

// Compose builds payslip totals from line items.
func Compose(earnings, deductions []LineItem, override *SummaryOverride) Totals {
	t := Totals{
		Earnings:       visible(earnings),
		DeductionItems: visible(deductions),
	}
	t.Gross = sum(t.Earnings)
	t.Deductions = sum(t.DeductionItems)

	if override != nil {
		if override.Gross != nil {
			t.Gross = *override.Gross
			t.Overridden = true
		}
		if override.Deductions != nil {
			t.Deductions = *override.Deductions
			t.Overridden = true
		}
	}
	t.Net = t.Gross.Sub(t.Deductions)
	if override != nil && override.Net != nil {
		t.Net = *override.Net
		t.Overridden = true
	}
	return t
}

func visible(items []LineItem) []LineItem {
	return lo.Filter(items, func(it LineItem, _ int) bool { return it.Amount.IsPositive() })
}

func sum(items []LineItem) decimal.Decimal {
	return lo.Reduce(items, func(acc decimal.Decimal, it LineItem, _ int) decimal.Decimal {
		return acc.Add(it.Amount)
	}, decimal.Zero)
}
