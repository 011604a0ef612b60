package withholding

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads the raw table from one sheet of an .xlsx workbook. The
// file is re-opened on every fetch so an operator can replace it between
// refreshes.
type XLSXSource struct {
	Path  string
	Sheet string // empty selects the first sheet
}

// FetchGrid implements RawTableSource.
func (s XLSXSource) FetchGrid(ctx context.Context) (Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open tax table workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, s.Sheet)
}

// ReadXLSX reads a workbook from r, for uploads that never touch disk.
func ReadXLSX(r io.Reader, sheet string) (Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open tax table workbook: %w", err)
	}
	defer f.Close()
	return readSheet(f, sheet)
}

func readSheet(f *excelize.File, sheet string) (Grid, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return Grid(rows), nil
}
