package withholding

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RANGE LABEL GRAMMAR
// =============================================================================
//
// A range label is the human-readable amount column of a withholding table,
// for example:
//
//   150,000円以上160,000円未満    two bounds
//   88,000円未満                  upper bound only
//   740,000円以上                 open-ended top row
//   150000 ～ 159999              two bounds, both inclusive
//
// Grammar (whitespace, 円 and other text are ignored):
//
//   label   := bound [sep] [bound]
//   bound   := NUMBER [MARKER]
//   NUMBER  := digit { digit | "," }        full-width digits accepted
//   MARKER  := 以上 | 以下 | 未満 | 超
//   sep     := "~" | "～" | "〜" | "-" | "から"
//
// Two numbers give {min, max} with max inclusive; 未満 on the upper number
// makes it exclusive (max = n-1) and 超 on the lower number makes it
// exclusive (min = n+1). One number is an upper bound whose lower bound is
// the previous row's max + 1 (0 for the first row), unless it carries 以上
// or 超, in which case it opens an unbounded top row.

// Range is a parsed label.
type Range struct {
	Min       decimal.Decimal
	Max       decimal.Decimal
	Unbounded bool
}

type marker int

const (
	markNone marker = iota
	markAtLeast       // 以上
	markAtMost        // 以下
	markBelow         // 未満
	markAbove         // 超
)

type bound struct {
	value  decimal.Decimal
	marker marker
}

var (
	ErrNoNumbers      = errors.New("no numeric bound")
	ErrTooManyNumbers = errors.New("more than two numeric bounds")
	ErrInvertedRange  = errors.New("lower bound exceeds upper bound")
)

// LabelError reports a label that could not be parsed.
type LabelError struct {
	Label string
	Err   error
}

func (e *LabelError) Error() string { return fmt.Sprintf("range label %q: %v", e.Label, e.Err) }
func (e *LabelError) Unwrap() error { return e.Err }

var one = decimal.NewFromInt(1)

// ParseRangeLabel parses label. prevMax is the previous row's upper bound in
// the same list, or nil for the first row.
func ParseRangeLabel(label string, prevMax *decimal.Decimal) (Range, error) {
	bounds, err := scanBounds(label)
	if err != nil {
		return Range{}, &LabelError{Label: label, Err: err}
	}

	var r Range
	switch len(bounds) {
	case 0:
		return Range{}, &LabelError{Label: label, Err: ErrNoNumbers}
	case 1:
		b := bounds[0]
		switch b.marker {
		case markAtLeast:
			return Range{Min: b.value, Unbounded: true}, nil
		case markAbove:
			return Range{Min: b.value.Add(one), Unbounded: true}, nil
		case markBelow:
			r.Max = b.value.Sub(one)
		default:
			r.Max = b.value
		}
		r.Min = decimal.Zero
		if prevMax != nil {
			r.Min = prevMax.Add(one)
		}
	case 2:
		lo, hi := bounds[0], bounds[1]
		r.Min = lo.value
		if lo.marker == markAbove {
			r.Min = r.Min.Add(one)
		}
		r.Max = hi.value
		if hi.marker == markBelow {
			r.Max = r.Max.Sub(one)
		}
	default:
		return Range{}, &LabelError{Label: label, Err: ErrTooManyNumbers}
	}

	if r.Min.GreaterThan(r.Max) {
		return Range{}, &LabelError{Label: label, Err: ErrInvertedRange}
	}
	return r, nil
}

// scanBounds tokenizes a label into numbers with their trailing markers.
func scanBounds(label string) ([]bound, error) {
	runes := []rune(foldWidth(label))
	var bounds []bound
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsDigit(r):
			j := i
			var digits strings.Builder
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == ',') {
				if runes[j] != ',' {
					digits.WriteRune(runes[j])
				}
				j++
			}
			v, err := decimal.NewFromString(digits.String())
			if err != nil {
				return nil, err
			}
			bounds = append(bounds, bound{value: v})
			i = j
		default:
			if m, width := markerAt(runes, i); width > 0 {
				if len(bounds) > 0 && bounds[len(bounds)-1].marker == markNone {
					bounds[len(bounds)-1].marker = m
				}
				i += width
				continue
			}
			i++
		}
	}
	return bounds, nil
}

func markerAt(runes []rune, i int) (marker, int) {
	if i+1 >= len(runes) {
		if runes[i] == '超' {
			return markAbove, 1
		}
		return markNone, 0
	}
	switch string(runes[i : i+2]) {
	case "以上":
		return markAtLeast, 2
	case "以下":
		return markAtMost, 2
	case "未満":
		return markBelow, 2
	}
	if runes[i] == '超' {
		return markAbove, 1
	}
	return markNone, 0
}

// foldWidth maps full-width digits and commas to ASCII.
func foldWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '０' && r <= '９':
			return '0' + (r - '０')
		case r == '，':
			return ','
		}
		return r
	}, s)
}

// parseAmountCell parses an integer tax cell, stripping thousands
// separators and a trailing 円. Blank, dash and text cells report false.
func parseAmountCell(cell string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(foldWidth(cell))
	s = strings.TrimSuffix(s, "円")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return decimal.Zero, false
		}
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}
