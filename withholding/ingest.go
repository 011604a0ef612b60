/*
ingest.go - Raw withholding-table grid → normalized Table

PURPOSE:
  The withholding table arrives as text cells copied from the published
  document. Layouts vary: a header row naming the dependents columns, two
  label columns (以上 / 未満) or one combined label, an optional 乙 column
  on the same row, and sometimes a second concatenated section holding the
  乙 table. The ingestor normalizes all of these into a Table.

LAYOUT DETECTION:
  1. Scan the first rows for eight consecutive cells reading 0..7. Their
     offset locates the dependents columns; all columns before it are
     label columns. A 乙 header right after the run marks a same-row
     secondary column.
  2. No header → default layout: label col 0, dependents cols 1..8,
     secondary col 9.

SECTIONS:
  primary rows until a blank row or a section marker row (mentions 乙 /
  otsu / secondary, no digits), then secondary rows: same label columns,
  tax read from the first numeric cell after them. A secondary row that
  does not fit those label columns is read as one label cell plus one tax
  cell.

EXPLICIT ROWS:
  {category, dependents, min, max, tax} rows are accepted anywhere and
  appended. Both explicit and parsed rows are kept; consumers match by
  range.

FAILURE:
  Zero brackets, or two brackets of one list that still overlap after
  exact duplicates are dropped → *generic.IngestError. An empty or
  ambiguous table is never returned.

SEE ALSO:
  - rangelabel.go: label grammar
  - serialize.go: Table → explicit-row Grid
*/
package withholding

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// INGESTOR
// =============================================================================

// Ingestor parses raw grids into Tables.
type Ingestor struct {
	// HeaderScanRows bounds the header search (default 15).
	HeaderScanRows int
}

// IngestReport describes how a grid was read.
type IngestReport struct {
	Rows      int
	HeaderRow int // -1 when the default layout was used
	Primary   int // brackets appended to dependents lists
	Secondary int
	Explicit  int
	Skipped   []string
}

type layout struct {
	labelCols    []int
	labelMarkers []string
	depCols      [employee.MaxDependents + 1]int
	secondaryCol int // -1 when absent
}

func defaultLayout() layout {
	l := layout{labelCols: []int{0}, labelMarkers: []string{""}, secondaryCol: 9}
	for d := range l.depCols {
		l.depCols[d] = d + 1
	}
	return l
}

type section int

const (
	sectionPrimary section = iota
	sectionSecondary
)

// Ingest parses grid into a Table.
func (in *Ingestor) Ingest(grid Grid) (*Table, error) {
	t, _, err := in.IngestWithReport(grid)
	return t, err
}

// IngestWithReport parses grid and reports skipped rows and counts.
func (in *Ingestor) IngestWithReport(grid Grid) (*Table, *IngestReport, error) {
	report := &IngestReport{Rows: len(grid), HeaderRow: -1}
	if isBlankGrid(grid) {
		return nil, report, &generic.IngestError{Reason: "empty grid", Rows: len(grid)}
	}

	lay, headerRow := in.detectLayout(grid)
	report.HeaderRow = headerRow

	table := &Table{}
	state := sectionPrimary
	primarySeen := false
	var prevPrimary, prevSecondary *decimal.Decimal

	for i, row := range grid {
		if i <= headerRow {
			continue
		}
		if isBlankRow(row) {
			if state == sectionPrimary && primarySeen {
				state = sectionSecondary
			}
			continue
		}
		if isExplicitHeader(row) {
			continue
		}
		if isSectionMarker(row) {
			state = sectionSecondary
			continue
		}
		if ok, err := appendExplicit(table, row); ok {
			if err != nil {
				report.Skipped = append(report.Skipped, rowNote(i, err.Error()))
			} else {
				report.Explicit++
			}
			continue
		}

		label := lay.label(row)
		switch state {
		case sectionPrimary:
			r, err := ParseRangeLabel(label, prevPrimary)
			if err != nil {
				report.Skipped = append(report.Skipped, rowNote(i, err.Error()))
				continue
			}
			n := 0
			for d, col := range lay.depCols {
				if tax, ok := parseAmountCell(cellAt(row, col)); ok {
					table.ByDependents[d] = append(table.ByDependents[d], bracketOf(r, tax))
					n++
				}
			}
			if lay.secondaryCol >= 0 {
				if tax, ok := parseAmountCell(cellAt(row, lay.secondaryCol)); ok {
					table.Secondary = append(table.Secondary, bracketOf(r, tax))
					report.Secondary++
				}
			}
			if n == 0 {
				report.Skipped = append(report.Skipped, rowNote(i, "no tax cells"))
				continue
			}
			report.Primary += n
			primarySeen = true
			max := r.Max
			prevPrimary = &max

		case sectionSecondary:
			r, err := ParseRangeLabel(label, prevSecondary)
			tax, ok := lay.firstAmountAfterLabel(row)
			if err != nil {
				// A 乙 section printed as one label column next to one tax
				// column does not fit a multi-column primary layout.
				if r, tax, ok = lay.singleColumnSecondary(row, prevSecondary); !ok {
					report.Skipped = append(report.Skipped, rowNote(i, err.Error()))
					continue
				}
			}
			if !ok {
				report.Skipped = append(report.Skipped, rowNote(i, "no secondary tax cell"))
				continue
			}
			table.Secondary = append(table.Secondary, bracketOf(r, tax))
			report.Secondary++
			max := r.Max
			prevSecondary = &max
		}
	}

	dedupe(table)
	table.sortAll()
	if table.Size() == 0 {
		return nil, report, &generic.IngestError{
			Reason:  "no parseable brackets",
			Rows:    len(grid),
			Skipped: report.Skipped,
		}
	}
	if err := table.Validate(); err != nil {
		return nil, report, &generic.IngestError{
			Reason:  "overlapping brackets: " + err.Error(),
			Rows:    len(grid),
			Skipped: report.Skipped,
		}
	}
	return table, report, nil
}

// =============================================================================
// LAYOUT
// =============================================================================

func (in *Ingestor) detectLayout(grid Grid) (layout, int) {
	scan := in.HeaderScanRows
	if scan <= 0 {
		scan = 15
	}
	for r := 0; r < len(grid) && r < scan; r++ {
		row := grid[r]
		for o := 1; o+employee.MaxDependents < len(row); o++ {
			if !isDependentsRun(row[o : o+employee.MaxDependents+1]) {
				continue
			}
			lay := layout{secondaryCol: -1}
			for c := 0; c < o; c++ {
				lay.labelCols = append(lay.labelCols, c)
				m := rangeMarker(cellAt(row, c))
				if m == "" && r > 0 {
					m = rangeMarker(cellAt(grid[r-1], c))
				}
				lay.labelMarkers = append(lay.labelMarkers, m)
			}
			for d := range lay.depCols {
				lay.depCols[d] = o + d
			}
			next := o + employee.MaxDependents + 1
			if mentionsSecondary(cellAt(row, next)) || (r > 0 && mentionsSecondary(cellAt(grid[r-1], next))) {
				lay.secondaryCol = next
			}
			return lay, r
		}
	}
	return defaultLayout(), -1
}

func isDependentsRun(cells []string) bool {
	for k, c := range cells {
		s := strings.TrimSpace(foldWidth(c))
		s = strings.TrimSuffix(s, "人")
		n, err := strconv.Atoi(s)
		if err != nil || n != k {
			return false
		}
	}
	return true
}

// label joins the label columns, appending header markers the cells lack.
func (l layout) label(row []string) string {
	parts := make([]string, 0, len(l.labelCols))
	for i, c := range l.labelCols {
		cell := strings.TrimSpace(cellAt(row, c))
		if cell == "" {
			continue
		}
		if m := l.labelMarkers[i]; m != "" && rangeMarker(cell) == "" {
			cell += m
		}
		parts = append(parts, cell)
	}
	return strings.Join(parts, " ～ ")
}

func (l layout) firstAmountAfterLabel(row []string) (decimal.Decimal, bool) {
	start := 0
	if n := len(l.labelCols); n > 0 {
		start = l.labelCols[n-1] + 1
	}
	for c := start; c < len(row); c++ {
		if v, ok := parseAmountCell(row[c]); ok {
			return v, true
		}
	}
	return decimal.Zero, false
}

// singleColumnSecondary reads a row holding exactly one label cell and one
// tax cell, in that order.
func (l layout) singleColumnSecondary(row []string, prevMax *decimal.Decimal) (Range, decimal.Decimal, bool) {
	var cells []int
	for c, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cells = append(cells, c)
		}
	}
	if len(cells) != 2 {
		return Range{}, decimal.Zero, false
	}
	r, err := ParseRangeLabel(row[cells[0]], prevMax)
	if err != nil {
		return Range{}, decimal.Zero, false
	}
	tax, ok := parseAmountCell(row[cells[1]])
	return r, tax, ok
}

// =============================================================================
// EXPLICIT ROWS
// =============================================================================

var explicitHeader = []string{"category", "dependents", "min", "max", "tax"}

func isExplicitHeader(row []string) bool {
	return strings.EqualFold(strings.TrimSpace(cellAt(row, 0)), explicitHeader[0])
}

func explicitCategory(cell string) (employee.WithholdingCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "甲", "ko", "primary":
		return employee.CategoryPrimary, true
	case "乙", "otsu", "secondary":
		return employee.CategorySecondary, true
	}
	return "", false
}

// appendExplicit handles a {category, dependents, min, max, tax} row. The
// first result reports whether the row was explicit at all: a category
// cell alone, without min and tax cells, does not make one.
func appendExplicit(t *Table, row []string) (bool, error) {
	category, ok := explicitCategory(cellAt(row, 0))
	if !ok || len(row) < 5 {
		return false, nil
	}
	if strings.TrimSpace(cellAt(row, 2)) == "" || strings.TrimSpace(cellAt(row, 4)) == "" {
		return false, nil
	}
	min, ok := parseAmountCell(cellAt(row, 2))
	if !ok {
		return true, &LabelError{Label: strings.Join(row, ","), Err: ErrNoNumbers}
	}
	b := generic.Bracket{Min: min}
	switch maxCell := strings.TrimSpace(cellAt(row, 3)); maxCell {
	case "", "∞", "inf", "-":
		b.Unbounded = true
	default:
		max, ok := parseAmountCell(maxCell)
		if !ok {
			return true, &LabelError{Label: maxCell, Err: ErrNoNumbers}
		}
		if min.GreaterThan(max) {
			return true, &LabelError{Label: strings.Join(row, ","), Err: ErrInvertedRange}
		}
		b.Max = max
	}
	tax, ok := parseAmountCell(cellAt(row, 4))
	if !ok {
		return true, &LabelError{Label: cellAt(row, 4), Err: ErrNoNumbers}
	}
	b.Value = tax

	if category == employee.CategorySecondary {
		t.Secondary = append(t.Secondary, b)
		return true, nil
	}
	d, err := strconv.Atoi(strings.TrimSpace(cellAt(row, 1)))
	if err != nil || d < 0 || d > employee.MaxDependents {
		return true, &LabelError{Label: cellAt(row, 1), Err: ErrNoNumbers}
	}
	t.ByDependents[d] = append(t.ByDependents[d], b)
	return true, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func bracketOf(r Range, tax decimal.Decimal) generic.Bracket {
	return generic.Bracket{Min: r.Min, Max: r.Max, Unbounded: r.Unbounded, Value: tax}
}

func cellAt(row []string, c int) string {
	if c < 0 || c >= len(row) {
		return ""
	}
	return row[c]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isBlankGrid(grid Grid) bool {
	for _, row := range grid {
		if !isBlankRow(row) {
			return false
		}
	}
	return true
}

func mentionsSecondary(cell string) bool {
	s := strings.ToLower(cell)
	return strings.Contains(s, "乙") || strings.Contains(s, "otsu") || strings.Contains(s, "secondary")
}

// isSectionMarker reports a label-only row introducing the 乙 section.
func isSectionMarker(row []string) bool {
	hasMention := false
	for _, c := range row {
		if strings.ContainsAny(foldWidth(c), "0123456789") {
			return false
		}
		if mentionsSecondary(c) {
			hasMention = true
		}
	}
	return hasMention
}

func rangeMarker(cell string) string {
	for _, m := range []string{"以上", "以下", "未満", "超"} {
		if strings.Contains(cell, m) {
			return m
		}
	}
	return ""
}

func rowNote(i int, msg string) string {
	return "row " + strconv.Itoa(i+1) + ": " + msg
}

// dedupe drops brackets repeated with the same range and value, which
// happens when a grid carries both parsed and explicit copies of a row.
func dedupe(t *Table) {
	for d := range t.ByDependents {
		t.ByDependents[d] = dedupeList(t.ByDependents[d])
	}
	t.Secondary = dedupeList(t.Secondary)
}

func dedupeList(list []generic.Bracket) []generic.Bracket {
	out := list[:0]
	for _, b := range list {
		dup := false
		for _, kept := range out {
			if kept.SameRange(b) && kept.Value.Equal(b.Value) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, b)
		}
	}
	return out
}
