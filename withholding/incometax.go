package withholding

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// ANNUAL INCOME TAX - Progressive bracket formula
// =============================================================================

type taxBracket struct {
	upper     decimal.Decimal // inclusive; zero on the last row means unbounded
	rate      decimal.Decimal
	deduction decimal.Decimal
}

var (
	incomeTaxBrackets = []taxBracket{
		{decimal.NewFromInt(1_950_000), generic.MustRate("0.05"), decimal.Zero},
		{decimal.NewFromInt(3_300_000), generic.MustRate("0.10"), decimal.NewFromInt(97_500)},
		{decimal.NewFromInt(6_950_000), generic.MustRate("0.20"), decimal.NewFromInt(427_500)},
		{decimal.NewFromInt(9_000_000), generic.MustRate("0.23"), decimal.NewFromInt(636_000)},
		{decimal.NewFromInt(18_000_000), generic.MustRate("0.33"), decimal.NewFromInt(1_536_000)},
		{decimal.NewFromInt(40_000_000), generic.MustRate("0.40"), decimal.NewFromInt(2_796_000)},
		{decimal.Zero, generic.MustRate("0.45"), decimal.NewFromInt(4_796_000)},
	}

	// surtaxFactor adds the 2.1% reconstruction surtax.
	surtaxFactor = generic.MustRate("1.021")
)

// AnnualTax returns national income tax plus surtax for an annualized
// taxable amount, floored to whole yen. It knows nothing about dependents
// or ko/otsu categories and is never the primary withholding path.
func AnnualTax(annualTaxable decimal.Decimal) int64 {
	br := incomeTaxBrackets[len(incomeTaxBrackets)-1]
	for _, b := range incomeTaxBrackets[:len(incomeTaxBrackets)-1] {
		if annualTaxable.LessThanOrEqual(b.upper) {
			br = b
			break
		}
	}
	base := generic.NonNegative(annualTaxable.Mul(br.rate).Sub(br.deduction))
	return generic.FloorYen(base.Mul(surtaxFactor))
}

// DeannualizedEstimate annualizes a per-period amount, applies AnnualTax,
// and spreads the result back over the periods (floored).
func DeannualizedEstimate(perPeriod decimal.Decimal, periodsPerYear int) int64 {
	if periodsPerYear <= 0 {
		return 0
	}
	n := decimal.NewFromInt(int64(periodsPerYear))
	annual := decimal.NewFromInt(AnnualTax(perPeriod.Mul(n)))
	return generic.FloorYen(annual.Div(n))
}

// =============================================================================
// CROSS-CHECK - Table vs. formula
// =============================================================================

// Discrepancy compares the authoritative table result with the formula
// estimate. The table value is always the one withheld.
type Discrepancy struct {
	TableTax    int64 `json:"table_tax"`
	FormulaTax  int64 `json:"formula_tax"`
	Difference  int64 `json:"difference"` // FormulaTax - TableTax
	Significant bool  `json:"significant"`
}

// CrossCheck computes the formula estimate for a monthly-equivalent amount
// and reports how far it lies from tableTax. Differences above tolerance
// yen are flagged Significant.
func CrossCheck(monthlyEquivalent decimal.Decimal, tableTax, tolerance int64) Discrepancy {
	formula := DeannualizedEstimate(monthlyEquivalent, 12)
	diff := formula - tableTax
	abs := diff
	if abs < 0 {
		abs = -abs
	}
	return Discrepancy{
		TableTax:    tableTax,
		FormulaTax:  formula,
		Difference:  diff,
		Significant: abs > tolerance,
	}
}
