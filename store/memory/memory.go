// Package memory provides an in-memory record store (for tests and dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/socialinsurance"
	"github.com/warp/payroll-engine/withholding"
)

// =============================================================================
// MEMORY STORE - Implements engine.Store, engine.DailyCountSource and
// withholding.RawTableSource
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees map[generic.EmployeeID]employee.Record
	grades    map[string]employee.GradeAllowance // keyed by normalized name
	standards []socialinsurance.StandardBracket
	overrides map[overrideKey]socialinsurance.Override
	rules     *commission.RuleConfig
	counts    map[string]commission.DailyCounts // staff key → counts
	grid      withholding.Grid
}

type overrideKey struct {
	EmployeeID generic.EmployeeID
	Month      generic.MonthKey
}

func New() *Memory {
	return &Memory{
		employees: make(map[generic.EmployeeID]employee.Record),
		grades:    make(map[string]employee.GradeAllowance),
		overrides: make(map[overrideKey]socialinsurance.Override),
		counts:    make(map[string]commission.DailyCounts),
	}
}

// =============================================================================
// WRITES
// =============================================================================

func (m *Memory) PutEmployee(r employee.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[r.ID] = r
}

func (m *Memory) PutGradeAllowance(g employee.GradeAllowance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grades[employee.NormalizeGradeName(g.Name)] = g
}

// SetStandardBrackets replaces the standard table. The slice is copied.
func (m *Memory) SetStandardBrackets(list []socialinsurance.StandardBracket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.standards = append([]socialinsurance.StandardBracket(nil), list...)
}

func (m *Memory) PutOverride(o socialinsurance.Override) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[overrideKey{o.EmployeeID, o.Month}] = o
}

func (m *Memory) SetCommissionRules(r commission.RuleConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = &r
}

// AddCount records n treatments for staffKey on day.
func (m *Memory) AddCount(staffKey string, day generic.TimePoint, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counts[staffKey]
	if !ok {
		c = commission.DailyCounts{}
		m.counts[staffKey] = c
	}
	c.Add(day, n)
}

// SetGrid sets the raw withholding table served by FetchGrid.
func (m *Memory) SetGrid(g withholding.Grid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grid = g
}

// =============================================================================
// READS
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id generic.EmployeeID) (employee.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.employees[id]
	if !ok {
		return employee.Record{}, &generic.NotFoundError{Entity: "employee", Key: string(id)}
	}
	return r, nil
}

func (m *Memory) ListEmployees(_ context.Context, filter employee.Filter) ([]employee.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := lo.Filter(lo.Values(m.employees), func(r employee.Record, _ int) bool { return filter.Match(r) })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetGradeAllowance(_ context.Context, normalizedName string) (employee.GradeAllowance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grades[normalizedName]
	if !ok {
		return employee.GradeAllowance{}, &generic.NotFoundError{Entity: "grade allowance", Key: normalizedName}
	}
	return g, nil
}

func (m *Memory) ListStandardBrackets(_ context.Context) ([]socialinsurance.StandardBracket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]socialinsurance.StandardBracket(nil), m.standards...), nil
}

func (m *Memory) GetOverride(_ context.Context, id generic.EmployeeID, month generic.MonthKey) (*socialinsurance.Override, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overrides[overrideKey{id, month}]
	if !ok {
		return nil, &generic.NotFoundError{Entity: "insurance override", Key: string(id) + "/" + string(month)}
	}
	return &o, nil
}

func (m *Memory) GetCommissionRules(_ context.Context) (commission.RuleConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rules == nil {
		return commission.RuleConfig{}, &generic.NotFoundError{Entity: "commission rules", Key: "default"}
	}
	return *m.rules, nil
}

// CountsFor returns the counts for staffKey inside period.
func (m *Memory) CountsFor(_ context.Context, staffKey string, period generic.Period) (commission.DailyCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := commission.DailyCounts{}
	all := m.counts[staffKey]
	for _, day := range period.Days() {
		if n, ok := all[day.DateKey()]; ok {
			out[day.DateKey()] = n
		}
	}
	return out, nil
}

// FetchGrid returns a copy of the stored grid.
func (m *Memory) FetchGrid(_ context.Context) (withholding.Grid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(withholding.Grid, len(m.grid))
	for i, row := range m.grid {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}
