package withholding

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, grid Grid) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range grid {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &cells))
	}
	path := filepath.Join(t.TempDir(), "withholding.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestXLSXSource_FetchAndIngest(t *testing.T) {
	// GIVEN: The header layout saved as a workbook
	// WHEN: Fetching through XLSXSource and ingesting
	// THEN: The result matches ingesting the grid directly

	path := writeWorkbook(t, headerGrid())

	grid, err := XLSXSource{Path: path}.FetchGrid(context.Background())
	require.NoError(t, err)

	fromFile, err := (&Ingestor{}).Ingest(grid)
	require.NoError(t, err)
	direct, err := (&Ingestor{}).Ingest(headerGrid())
	require.NoError(t, err)

	assert.Equal(t, bracketSet(direct), bracketSet(fromFile))
}

func TestReadXLSX_FromReader(t *testing.T) {
	path := writeWorkbook(t, sectionGrid())
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	grid, err := ReadXLSX(fh, "Sheet1")
	require.NoError(t, err)

	table, err := (&Ingestor{}).Ingest(grid)
	require.NoError(t, err)
	assert.Len(t, table.Secondary, 2)
}

func TestXLSXSource_MissingFile(t *testing.T) {
	_, err := XLSXSource{Path: filepath.Join(t.TempDir(), "nope.xlsx")}.FetchGrid(context.Background())
	assert.Error(t, err)
}
