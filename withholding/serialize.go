package withholding

import (
	"strconv"

	"github.com/warp/payroll-engine/generic"
)

// Serialize renders t in explicit-row format, one row per bracket:
//
//	category, dependents, min, max, tax
//
// An unbounded max is written as an empty cell. Ingest accepts the output,
// so Ingest(Serialize(t)) yields the same bracket set.
func Serialize(t *Table) Grid {
	grid := Grid{append([]string(nil), explicitHeader...)}
	for d, list := range t.ByDependents {
		for _, b := range list {
			grid = append(grid, explicitRow("primary", strconv.Itoa(d), b))
		}
	}
	for _, b := range t.Secondary {
		grid = append(grid, explicitRow("secondary", "", b))
	}
	return grid
}

func explicitRow(category, dependents string, b generic.Bracket) []string {
	max := ""
	if !b.Unbounded {
		max = b.Max.String()
	}
	return []string{category, dependents, b.Min.String(), max, b.Value.String()}
}
