/*
Package withholding implements Japanese withholding income tax.

PURPOSE:
  Turns the published withholding-tax table (delivered as a grid of text
  cells) into normalized bracket lists, keeps the parsed table in a TTL
  cache, and computes per-period withholding for an employee.

COMPONENTS:
  Ingestor:       grid → Table (ingest.go, rangelabel.go)
  TableCache:     TTL cache with forced refresh (cache.go)
  AnnualTax:      progressive bracket formula + surtax (incometax.go)
  Calculator:     per-period withholding (calculator.go)
  XLSXSource:     RawTableSource backed by an .xlsx workbook (xlsx.go)

KO / OTSU:
  The primary-employer (ko, 甲) table has one column per dependents count
  0..7. The secondary-employer (otsu, 乙) table has a single tax column.

SEE ALSO:
  - generic/bracket.go: range lookup
  - payslip/entry.go: computes the taxable base fed to Calculator
*/
package withholding

import (
	"context"
	"fmt"

	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// RAW GRID
// =============================================================================

// Grid is a two-dimensional block of text cells, row-major.
type Grid [][]string

// RawTableSource fetches the raw withholding table. It is called only on a
// cache miss or a forced refresh.
type RawTableSource interface {
	FetchGrid(ctx context.Context) (Grid, error)
}

// GridFunc adapts a function to RawTableSource.
type GridFunc func(ctx context.Context) (Grid, error)

func (f GridFunc) FetchGrid(ctx context.Context) (Grid, error) { return f(ctx) }

// =============================================================================
// TABLE
// =============================================================================

// Table is a normalized withholding table. Every list is sorted ascending
// by Min, non-overlapping, and only its last entry may be unbounded.
type Table struct {
	ByDependents [employee.MaxDependents + 1][]generic.Bracket
	Secondary    []generic.Bracket
}

// Brackets selects the list for a category and (already clamped)
// dependents count.
func (t *Table) Brackets(category employee.WithholdingCategory, dependents int) ([]generic.Bracket, string) {
	if category == employee.CategorySecondary {
		return t.Secondary, "secondary"
	}
	return t.ByDependents[dependents], fmt.Sprintf("primary/dependents=%d", dependents)
}

// Size returns the total number of brackets.
func (t *Table) Size() int {
	n := len(t.Secondary)
	for _, list := range t.ByDependents {
		n += len(list)
	}
	return n
}

// Validate checks the ordering invariant of every list.
func (t *Table) Validate() error {
	for d, list := range t.ByDependents {
		if err := generic.CheckOrdered(list); err != nil {
			return fmt.Errorf("primary/dependents=%d: %w", d, err)
		}
	}
	if err := generic.CheckOrdered(t.Secondary); err != nil {
		return fmt.Errorf("secondary: %w", err)
	}
	return nil
}

func (t *Table) sortAll() {
	for d := range t.ByDependents {
		generic.SortBrackets(t.ByDependents[d])
	}
	generic.SortBrackets(t.Secondary)
}
