/*
main.go - payrollctl command-line tool

PURPOSE:
  Operator tooling around the withholding table, usable without a running
  server:

    payrollctl ingest 月額表.xlsx [--sheet S] [--save payroll.db]
        Parse a workbook, print the ingest summary as JSON and optionally
        store the raw grid in the SQLite store the server reads.

    payrollctl withholding 236650 --table 月額表.xlsx [--dependents 2]
        Compute the tax for one amount and show the formula cross-check.

SEE ALSO:
  - withholding/ingest.go: Table normalization
  - store/sqlite/sqlite.go: SaveGrid
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
