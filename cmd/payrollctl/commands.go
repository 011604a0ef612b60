package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/withholding"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "payrollctl",
		Short:         "Withholding table and payroll calculation tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "warn", "Log level (trace..panic)")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newWithholdingCmd())
	return root
}

func cmdLogger(cmd *cobra.Command, module string) (*logrus.Entry, error) {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := config.NewLogger(level, "text")
	if err != nil {
		return nil, err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	return config.Module(logger, module), nil
}

// ─── ingest ─────────────────────────────────────────────────────────────────

// IngestSummary is printed by `payrollctl ingest`.
type IngestSummary struct {
	File         string   `json:"file"`
	Rows         int      `json:"rows"`
	HeaderRow    int      `json:"header_row"`
	Brackets     int      `json:"brackets"`
	ByDependents []int    `json:"by_dependents"`
	Secondary    int      `json:"secondary"`
	Skipped      []string `json:"skipped,omitempty"`
	SavedTo      string   `json:"saved_to,omitempty"`
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILE.xlsx",
		Short: "Parse a withholding table workbook and print a summary",
		Long: `Parse a withholding table workbook with the same ingestion the server
uses and print what was understood. With --save, the raw grid is stored in
the SQLite database so a server running with tax_table.source=store picks
it up on its next refresh.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}
	cmd.Flags().String("sheet", "", "Sheet name (default: first sheet)")
	cmd.Flags().String("save", "", "SQLite database to store the raw grid in")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	sheet, _ := cmd.Flags().GetString("sheet")
	savePath, _ := cmd.Flags().GetString("save")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log, err := cmdLogger(cmd, "ingest")
	if err != nil {
		return err
	}

	grid, err := withholding.XLSXSource{Path: args[0], Sheet: sheet}.FetchGrid(ctx)
	if err != nil {
		return err
	}
	table, report, err := (&withholding.Ingestor{}).IngestWithReport(grid)
	if err != nil {
		return err
	}
	for _, note := range report.Skipped {
		log.WithField("file", args[0]).Debug(note)
	}

	summary := IngestSummary{
		File:      args[0],
		Rows:      report.Rows,
		HeaderRow: report.HeaderRow,
		Brackets:  table.Size(),
		Secondary: len(table.Secondary),
		Skipped:   report.Skipped,
	}
	for _, list := range table.ByDependents {
		summary.ByDependents = append(summary.ByDependents, len(list))
	}

	if savePath != "" {
		store, err := sqlite.New(savePath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.SaveGrid(ctx, grid); err != nil {
			return fmt.Errorf("save grid: %w", err)
		}
		summary.SavedTo = savePath
		log.WithField("db", savePath).Info("raw grid saved")
	}

	return printJSON(cmd.OutOrStdout(), summary)
}

// ─── withholding ────────────────────────────────────────────────────────────

// WithholdingOutput is printed by `payrollctl withholding`.
type WithholdingOutput struct {
	TaxableBase decimal.Decimal          `json:"taxable_base"`
	Normalized  decimal.Decimal          `json:"normalized"`
	Tax         int64                    `json:"tax"`
	FlatRate    bool                     `json:"flat_rate"`
	Discrepancy *withholding.Discrepancy `json:"discrepancy,omitempty"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

func newWithholdingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withholding AMOUNT",
		Short: "Compute withholding tax for a taxable amount",
		Args:  cobra.ExactArgs(1),
		RunE:  runWithholding,
	}
	f := cmd.Flags()
	f.String("table", "", "Withholding table workbook (not needed for contractors)")
	f.String("sheet", "", "Sheet name (default: first sheet)")
	f.Int("dependents", 0, "Dependents count (clamped to 0..7)")
	f.String("category", string(employee.CategoryPrimary), "primary or secondary")
	f.String("form", string(employee.FormEmployee), "employee, part_time or contractor")
	f.String("period", string(employee.PeriodMonthly), "monthly or daily")
	f.Int("days", 30, "Days in the pay period")
	f.String("flat-rate", withholding.DefaultFlatRate.String(), "Contractor flat rate")
	f.Int64("tolerance", 1000, "Cross-check tolerance in yen")
	return cmd
}

func runWithholding(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	base, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[0], err)
	}
	tablePath, _ := f.GetString("table")
	sheet, _ := f.GetString("sheet")
	dependents, _ := f.GetInt("dependents")
	category, _ := f.GetString("category")
	form, _ := f.GetString("form")
	period, _ := f.GetString("period")
	days, _ := f.GetInt("days")
	flat, _ := f.GetString("flat-rate")
	tolerance, _ := f.GetInt64("tolerance")

	rate, err := decimal.NewFromString(flat)
	if err != nil {
		return fmt.Errorf("invalid flat rate %q: %w", flat, err)
	}

	emp := employee.Record{
		ID:                  "cli",
		EmploymentForm:      employee.EmploymentForm(form),
		Withholding:         employee.WithholdingRequired,
		WithholdingCategory: employee.WithholdingCategory(category),
		PeriodType:          employee.PeriodType(period),
		Dependents:          dependents,
	}

	var table *withholding.Table
	if !emp.IsContractor() {
		if tablePath == "" {
			return fmt.Errorf("--table is required unless --form=contractor")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		grid, err := withholding.XLSXSource{Path: tablePath, Sheet: sheet}.FetchGrid(ctx)
		if err != nil {
			return err
		}
		if table, err = (&withholding.Ingestor{}).Ingest(grid); err != nil {
			return err
		}
	}

	res, err := withholding.Calculator{FlatRate: rate}.ComputeDetailed(emp, base, days, table)
	if err != nil {
		return err
	}

	out := WithholdingOutput{
		TaxableBase: base,
		Normalized:  res.Normalized,
		Tax:         res.Tax,
		FlatRate:    res.FlatRate,
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	if res.Bracket != nil {
		d := withholding.CrossCheck(res.Normalized, res.Tax, tolerance)
		out.Discrepancy = &d
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
