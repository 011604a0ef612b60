/*
Package sqlite provides a SQLite-backed record store for the payroll engine.

PURPOSE:
  Persists the master data the engine reads (employees, grade allowances,
  standard brackets, insurance overrides, commission rules), the daily
  treatment counts, and the raw withholding-table grid. The engine only
  reads; the Save/Set methods are used by the API seed path and the CLI.

INTERFACES IMPLEMENTED:
  engine.Store:               master data reads
  engine.DailyCountSource:    per-day counts by staff key
  withholding.RawTableSource: the stored grid, fed to the TableCache

KEY TABLES:
  employees:           one row per employee record
  grade_allowances:    keyed by normalized grade name
  standard_brackets:   replaced wholesale by SetStandardBrackets
  insurance_overrides: (employee_id, month) → monthly amount
  commission_rules:    single JSON document (like the policy config)
  daily_counts:        (staff_key, day) → count
  tax_table_cells:     sparse (row, col) → text; blank cells are not stored

MONEY:
  Amounts are TEXT columns holding decimal strings. decimal.Decimal
  implements sql.Scanner and driver.Valuer, so values round-trip exactly.

CONCURRENCY:
  sync.RWMutex around every call. ":memory:" databases are pinned to one
  connection, since each pooled connection would otherwise open its own
  empty database.

SEE ALSO:
  - engine/store.go: interface definitions
  - store/memory: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/socialinsurance"
	"github.com/warp/payroll-engine/withholding"
)

// Store implements the engine's storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		site TEXT NOT NULL DEFAULT '',
		staff_key TEXT NOT NULL DEFAULT '',
		employment_form TEXT NOT NULL,
		base_salary TEXT NOT NULL DEFAULT '0',
		hourly_wage TEXT NOT NULL DEFAULT '0',
		allowance_personal TEXT NOT NULL DEFAULT '0',
		allowance_qualification TEXT NOT NULL DEFAULT '0',
		allowance_vehicle TEXT NOT NULL DEFAULT '0',
		grade_name TEXT NOT NULL DEFAULT '',
		transport_policy TEXT NOT NULL DEFAULT '',
		transport_amount TEXT NOT NULL DEFAULT '0',
		housing_deduction TEXT NOT NULL DEFAULT '0',
		municipal_tax TEXT NOT NULL DEFAULT '0',
		withholding TEXT NOT NULL DEFAULT '',
		withholding_category TEXT NOT NULL DEFAULT '',
		period_type TEXT NOT NULL DEFAULT '',
		dependents INTEGER NOT NULL DEFAULT 0,
		commission_variant TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_site
		ON employees(site);

	CREATE TABLE IF NOT EXISTS grade_allowances (
		normalized_name TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS standard_brackets (
		position INTEGER PRIMARY KEY,
		grade TEXT NOT NULL,
		monthly_amount TEXT NOT NULL,
		lower_bound TEXT NOT NULL,
		upper_bound TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS insurance_overrides (
		employee_id TEXT NOT NULL,
		month TEXT NOT NULL,
		monthly_amount TEXT NOT NULL,
		grade TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (employee_id, month)
	);

	CREATE TABLE IF NOT EXISTS commission_rules (
		id TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Day keys are YYYY-MM-DD, so string comparison is date order
	CREATE TABLE IF NOT EXISTS daily_counts (
		staff_key TEXT NOT NULL,
		day TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (staff_key, day)
	);

	CREATE TABLE IF NOT EXISTS tax_table_cells (
		row_idx INTEGER NOT NULL,
		col_idx INTEGER NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (row_idx, col_idx)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `id, name, site, staff_key, employment_form, base_salary, hourly_wage,
	allowance_personal, allowance_qualification, allowance_vehicle, grade_name,
	transport_policy, transport_amount, housing_deduction, municipal_tax,
	withholding, withholding_category, period_type, dependents, commission_variant`

// SaveEmployee inserts or replaces an employee record.
func (s *Store) SaveEmployee(ctx context.Context, r employee.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (` + employeeColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			site = excluded.site,
			staff_key = excluded.staff_key,
			employment_form = excluded.employment_form,
			base_salary = excluded.base_salary,
			hourly_wage = excluded.hourly_wage,
			allowance_personal = excluded.allowance_personal,
			allowance_qualification = excluded.allowance_qualification,
			allowance_vehicle = excluded.allowance_vehicle,
			grade_name = excluded.grade_name,
			transport_policy = excluded.transport_policy,
			transport_amount = excluded.transport_amount,
			housing_deduction = excluded.housing_deduction,
			municipal_tax = excluded.municipal_tax,
			withholding = excluded.withholding,
			withholding_category = excluded.withholding_category,
			period_type = excluded.period_type,
			dependents = excluded.dependents,
			commission_variant = excluded.commission_variant,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Name, r.Site, r.StaffKey, r.EmploymentForm,
		r.BaseSalary, r.HourlyWage,
		r.Allowances.Personal, r.Allowances.Qualification, r.Allowances.Vehicle,
		r.GradeName,
		r.Transportation.Policy, r.Transportation.Amount,
		r.HousingDeduction, r.MunicipalTax,
		r.Withholding, r.WithholdingCategory, r.PeriodType,
		r.Dependents, r.CommissionVariant,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee %s: %w", r.ID, err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id generic.EmployeeID) (employee.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	r, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return employee.Record{}, &generic.NotFoundError{Entity: "employee", Key: string(id)}
	}
	if err != nil {
		return employee.Record{}, fmt.Errorf("failed to load employee %s: %w", id, err)
	}
	return r, nil
}

// ListEmployees returns the employees passing filter, ordered by ID.
func (s *Store) ListEmployees(ctx context.Context, filter employee.Filter) ([]employee.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ` + employeeColumns + `
		FROM employees
		WHERE (? = '' OR site = ?) AND (? = '' OR employment_form = ?)
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, filter.Scope, filter.Scope, filter.Form, filter.Form)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []employee.Record
	for rows.Next() {
		r, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteEmployee removes an employee.
func (s *Store) DeleteEmployee(ctx context.Context, id generic.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (employee.Record, error) {
	var r employee.Record
	err := row.Scan(
		&r.ID, &r.Name, &r.Site, &r.StaffKey, &r.EmploymentForm,
		&r.BaseSalary, &r.HourlyWage,
		&r.Allowances.Personal, &r.Allowances.Qualification, &r.Allowances.Vehicle,
		&r.GradeName,
		&r.Transportation.Policy, &r.Transportation.Amount,
		&r.HousingDeduction, &r.MunicipalTax,
		&r.Withholding, &r.WithholdingCategory, &r.PeriodType,
		&r.Dependents, &r.CommissionVariant,
	)
	return r, err
}

// =============================================================================
// GRADE ALLOWANCES
// =============================================================================

// SaveGradeAllowance stores g under its normalized name.
func (s *Store) SaveGradeAllowance(ctx context.Context, g employee.GradeAllowance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grade_allowances (normalized_name, name, amount)
		VALUES (?, ?, ?)
		ON CONFLICT(normalized_name) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount
	`, employee.NormalizeGradeName(g.Name), g.Name, g.Amount)
	return err
}

func (s *Store) GetGradeAllowance(ctx context.Context, normalizedName string) (employee.GradeAllowance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var g employee.GradeAllowance
	err := s.db.QueryRowContext(ctx,
		"SELECT name, amount FROM grade_allowances WHERE normalized_name = ?",
		normalizedName,
	).Scan(&g.Name, &g.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return g, &generic.NotFoundError{Entity: "grade allowance", Key: normalizedName}
	}
	return g, err
}

// =============================================================================
// STANDARD BRACKETS
// =============================================================================

// SetStandardBrackets replaces the whole standard table atomically.
func (s *Store) SetStandardBrackets(ctx context.Context, list []socialinsurance.StandardBracket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM standard_brackets"); err != nil {
		return err
	}
	for i, b := range list {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO standard_brackets (position, grade, monthly_amount, lower_bound, upper_bound)
			VALUES (?, ?, ?, ?, ?)
		`, i, b.Grade, b.MonthlyAmount, b.LowerBound, b.UpperBound)
		if err != nil {
			return fmt.Errorf("failed to insert standard bracket %s: %w", b.Grade, err)
		}
	}
	return tx.Commit()
}

// ListStandardBrackets returns the table in the order it was stored.
func (s *Store) ListStandardBrackets(ctx context.Context) ([]socialinsurance.StandardBracket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT grade, monthly_amount, lower_bound, upper_bound
		FROM standard_brackets
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query standard brackets: %w", err)
	}
	defer rows.Close()

	var out []socialinsurance.StandardBracket
	for rows.Next() {
		var b socialinsurance.StandardBracket
		if err := rows.Scan(&b.Grade, &b.MonthlyAmount, &b.LowerBound, &b.UpperBound); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// =============================================================================
// INSURANCE OVERRIDES
// =============================================================================

func (s *Store) SaveOverride(ctx context.Context, o socialinsurance.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insurance_overrides (employee_id, month, monthly_amount, grade)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, month) DO UPDATE SET
			monthly_amount = excluded.monthly_amount,
			grade = excluded.grade
	`, o.EmployeeID, o.Month, o.MonthlyAmount, o.Grade)
	return err
}

func (s *Store) GetOverride(ctx context.Context, id generic.EmployeeID, month generic.MonthKey) (*socialinsurance.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o := socialinsurance.Override{EmployeeID: id, Month: month}
	err := s.db.QueryRowContext(ctx,
		"SELECT monthly_amount, grade FROM insurance_overrides WHERE employee_id = ? AND month = ?",
		id, month,
	).Scan(&o.MonthlyAmount, &o.Grade)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Entity: "insurance override", Key: string(id) + "/" + string(month)}
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) DeleteOverride(ctx context.Context, id generic.EmployeeID, month generic.MonthKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM insurance_overrides WHERE employee_id = ? AND month = ?", id, month)
	return err
}

// =============================================================================
// COMMISSION RULES
// =============================================================================

const rulesID = "default"

// SaveCommissionRules stores the rule set as one JSON document.
func (s *Store) SaveCommissionRules(ctx context.Context, rules commission.RuleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commission_rules (id, config_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`, rulesID, string(configJSON), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetCommissionRules(ctx context.Context) (commission.RuleConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rules commission.RuleConfig
	var configJSON string
	err := s.db.QueryRowContext(ctx,
		"SELECT config_json FROM commission_rules WHERE id = ?", rulesID,
	).Scan(&configJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return rules, &generic.NotFoundError{Entity: "commission rules", Key: rulesID}
	}
	if err != nil {
		return rules, err
	}
	if err := json.Unmarshal([]byte(configJSON), &rules); err != nil {
		return rules, fmt.Errorf("failed to decode commission rules: %w", err)
	}
	return rules, nil
}

// =============================================================================
// DAILY COUNTS (engine.DailyCountSource)
// =============================================================================

// AddCount adds n to the count for staffKey on day.
func (s *Store) AddCount(ctx context.Context, staffKey string, day generic.TimePoint, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_counts (staff_key, day, count)
		VALUES (?, ?, ?)
		ON CONFLICT(staff_key, day) DO UPDATE SET
			count = count + excluded.count
	`, staffKey, day.DateKey(), n)
	return err
}

// CountsFor returns the counts for staffKey on days in [period.Start, period.End).
func (s *Store) CountsFor(ctx context.Context, staffKey string, period generic.Period) (commission.DailyCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, count FROM daily_counts
		WHERE staff_key = ? AND day >= ? AND day < ?
	`, staffKey, period.Start.DateKey(), period.End.DateKey())
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer rows.Close()

	counts := commission.DailyCounts{}
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		counts[day] = n
	}
	return counts, rows.Err()
}

// =============================================================================
// TAX TABLE GRID (withholding.RawTableSource)
// =============================================================================

// SaveGrid replaces the stored withholding grid. Blank cells are dropped;
// FetchGrid restores interior blanks, trailing blank rows are lost.
func (s *Store) SaveGrid(ctx context.Context, grid withholding.Grid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tax_table_cells"); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO tax_table_cells (row_idx, col_idx, value) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for r, row := range grid {
		for c, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, r, c, cell); err != nil {
				return fmt.Errorf("failed to insert cell (%d,%d): %w", r, c, err)
			}
		}
	}
	return tx.Commit()
}

// FetchGrid rebuilds the stored grid. Rows between stored cells that held
// nothing come back as empty rows.
func (s *Store) FetchGrid(ctx context.Context) (withholding.Grid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT row_idx, col_idx, value FROM tax_table_cells")
	if err != nil {
		return nil, fmt.Errorf("failed to query tax table: %w", err)
	}
	defer rows.Close()

	type cell struct {
		r, c  int
		value string
	}
	var cells []cell
	maxRow := -1
	for rows.Next() {
		var x cell
		if err := rows.Scan(&x.r, &x.c, &x.value); err != nil {
			return nil, err
		}
		cells = append(cells, x)
		if x.r > maxRow {
			maxRow = x.r
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].r != cells[j].r {
			return cells[i].r < cells[j].r
		}
		return cells[i].c < cells[j].c
	})
	grid := make(withholding.Grid, maxRow+1)
	for _, x := range cells {
		row := grid[x.r]
		for len(row) <= x.c {
			row = append(row, "")
		}
		row[x.c] = x.value
		grid[x.r] = row
	}
	return grid, nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"employees", "grade_allowances", "standard_brackets", "insurance_overrides",
		"commission_rules", "daily_counts", "tax_table_cells",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
