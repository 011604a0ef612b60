/*
Package engine is the public surface of the payroll calculation engine.

PURPOSE:
  Wires the record store, the daily count source and the withholding
  table cache to the pure calculators, and exposes one method per
  operation:

    ComputeWithholding      per-period withholding tax
    ComputeSocialInsurance  employee/employer contributions for a month
    ComputeCommission       monthly or weekly performance commission
    ComposeDeductionEntry   the full deduction breakdown for a month
    RefreshTaxTable         cached or forced re-parse of the tax table

ERRORS:
  Fatal calculation errors (IngestError, LookupError) and store errors are
  returned unchanged. The engine never substitutes an estimate and never
  retries a failed read.

STATE:
  The withholding table cache is the only state. Everything else is read
  per call.

SEE ALSO:
  - store.go: consumed interfaces
  - api/handlers.go: HTTP surface
*/
package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/socialinsurance"
	"github.com/warp/payroll-engine/withholding"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds calculation constants not stored per record.
type Config struct {
	Rates    socialinsurance.Rates
	FlatRate generic.Rate
	// DiscrepancyTolerance is the yen gap between the table and the bracket
	// formula above which an entry is flagged.
	DiscrepancyTolerance int64
	// DefaultRules apply when the store holds no commission rules.
	DefaultRules commission.RuleConfig
}

// DefaultConfig returns zero insurance rates, the 10.21% flat rate and the
// default commission rules.
func DefaultConfig() Config {
	return Config{
		Rates:                socialinsurance.Rates{},
		FlatRate:             withholding.DefaultFlatRate,
		DiscrepancyTolerance: 1000,
		DefaultRules:         commission.DefaultRules(),
	}
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs payroll calculations against a record store.
type Engine struct {
	store  Store
	counts DailyCountSource
	cache  *withholding.TableCache
	cfg    Config
	clock  generic.Clock
	log    *logrus.Entry

	calc withholding.Calculator
	si   socialinsurance.Engine
	comm commission.Engine
}

// Option configures an Engine.
type Option func(*Engine)

// WithDailyCounts sets the source used by ComputeCommissionFromSource.
func WithDailyCounts(src DailyCountSource) Option {
	return func(e *Engine) { e.counts = src }
}

func WithClock(clock generic.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New creates an engine.
func New(store Store, cache *withholding.TableCache, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cache: cache,
		cfg:   cfg,
		clock: generic.SystemClock{},
		log:   generic.NopLogger(),
		calc:  withholding.Calculator{FlatRate: cfg.FlatRate},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's calculation constants.
func (e *Engine) Config() Config { return e.cfg }

// =============================================================================
// WITHHOLDING
// =============================================================================

// ComputeWithholding returns the withholding tax for taxableBase. The tax
// table is only loaded when the table path applies.
func (e *Engine) ComputeWithholding(ctx context.Context, emp employee.Record, taxableBase decimal.Decimal, payPeriodDays int) (int64, error) {
	res, err := e.ComputeWithholdingDetailed(ctx, emp, taxableBase, payPeriodDays)
	if err != nil {
		return 0, err
	}
	return res.Tax, nil
}

// ComputeWithholdingDetailed is ComputeWithholding plus the normalized
// amount, the matched bracket and any clamp warnings.
func (e *Engine) ComputeWithholdingDetailed(ctx context.Context, emp employee.Record, taxableBase decimal.Decimal, payPeriodDays int) (*withholding.Result, error) {
	var table *withholding.Table
	if emp.WithholdingRequired() && !emp.IsContractor() {
		var err error
		if table, err = e.RefreshTaxTable(ctx, false); err != nil {
			return nil, err
		}
	}
	res, err := e.calc.ComputeDetailed(emp, taxableBase, payPeriodDays, table)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"employee": emp.ID,
			"base":     taxableBase.String(),
		}).Error("withholding lookup failed")
		return nil, err
	}
	return res, nil
}

// RefreshTaxTable returns the cached table, re-parsing when forced or
// expired.
func (e *Engine) RefreshTaxTable(ctx context.Context, forced bool) (*withholding.Table, error) {
	if e.cache == nil {
		return nil, generic.ErrSourceRequired
	}
	return e.cache.Get(ctx, forced)
}

// TaxTableStatus reports the cache entry without loading it.
func (e *Engine) TaxTableStatus() withholding.CacheStatus {
	if e.cache == nil {
		return withholding.CacheStatus{}
	}
	return e.cache.Status()
}

// =============================================================================
// SOCIAL INSURANCE
// =============================================================================

// ComputeSocialInsurance returns contributions for emp in month using the
// stored standard brackets and any override for that month.
func (e *Engine) ComputeSocialInsurance(ctx context.Context, emp employee.Record, month generic.MonthKey) (*socialinsurance.Contribution, error) {
	standards, err := e.store.ListStandardBrackets(ctx)
	if err != nil {
		return nil, err
	}
	override, err := e.store.GetOverride(ctx, emp.ID, month)
	if err != nil && !errors.Is(err, generic.ErrRecordNotFound) {
		return nil, err
	}
	return e.si.Compute(emp, month, standards, override, e.cfg.Rates)
}

// =============================================================================
// COMMISSION
// =============================================================================

// ComputeCommission evaluates emp's commission variant over [start, end).
func (e *Engine) ComputeCommission(ctx context.Context, emp employee.Record, counts commission.DailyCounts, start, end generic.TimePoint) (*commission.Result, error) {
	rules, err := e.rules(ctx)
	if err != nil {
		return nil, err
	}
	return e.comm.Compute(emp, counts, rules, start, end)
}

// ComputeCommissionFromSource is ComputeCommission with counts read from
// the configured DailyCountSource.
func (e *Engine) ComputeCommissionFromSource(ctx context.Context, emp employee.Record, start, end generic.TimePoint) (*commission.Result, error) {
	if e.counts == nil {
		return nil, generic.ErrSourceRequired
	}
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	counts, err := e.counts.CountsFor(ctx, emp.CountsKey(), period)
	if err != nil {
		return nil, err
	}
	return e.ComputeCommission(ctx, emp, counts, start, end)
}

func (e *Engine) rules(ctx context.Context) (commission.RuleConfig, error) {
	rules, err := e.store.GetCommissionRules(ctx)
	if errors.Is(err, generic.ErrRecordNotFound) {
		return e.cfg.DefaultRules, nil
	}
	return rules, err
}

// =============================================================================
// DEDUCTION ENTRY
// =============================================================================

// ComposeDeductionEntry computes the full payroll breakdown for emp:
//
//  1. earnings (base, allowances, grade allowance, transportation, commission)
//  2. social insurance, unless skipped or the employee is a contractor
//  3. taxable base, with insurance subtracted before the lookup
//  4. withholding tax, cross-checked against the bracket formula
//  5. deduction lines and totals
//
// Callers must apply generic.CheckRecomputable for historical months.
func (e *Engine) ComposeDeductionEntry(ctx context.Context, emp employee.Record, pc payslip.Context) (*payslip.DeductionEntry, error) {
	entry := payslip.NewDeductionEntry(emp, pc.Month, e.clock.Now())

	grade, err := e.gradeAllowance(ctx, emp)
	if err != nil {
		return nil, err
	}
	earnings := payslip.BuildEarnings(emp, pc, grade)
	entry.Warnings = append(entry.Warnings, earnings.Warnings...)

	var insuranceShare int64
	if !pc.SkipSocialInsurance && !emp.IsContractor() {
		c, err := e.ComputeSocialInsurance(ctx, emp, pc.Month)
		if err != nil {
			return nil, err
		}
		entry.Insurance = c
		insuranceShare = c.EmployeeTotal
	}

	entry.TaxableBase = payslip.TaxableBase(earnings.Gross, earnings.NonTaxableTransport, emp.HousingDeduction, insuranceShare)

	wh, err := e.ComputeWithholdingDetailed(ctx, emp, entry.TaxableBase, pc.Days())
	if err != nil {
		return nil, err
	}
	entry.Withholding = payslip.Withholding{Tax: wh.Tax, Normalized: wh.Normalized, FlatRate: wh.FlatRate}
	entry.Warnings = append(entry.Warnings, wh.Warnings...)
	if wh.Bracket != nil {
		d := withholding.CrossCheck(wh.Normalized, wh.Tax, e.cfg.DiscrepancyTolerance)
		entry.Withholding.Discrepancy = &d
		if d.Significant {
			e.log.WithFields(logrus.Fields{
				"employee":    emp.ID,
				"month":       pc.Month,
				"table_tax":   d.TableTax,
				"formula_tax": d.FormulaTax,
			}).Warn("withholding table and bracket formula disagree")
		}
	}

	deductions := payslip.StandardDeductions(wh.Tax, emp, entry.Insurance)
	deductions = append(deductions, pc.ExtraDeductions...)
	entry.Totals = payslip.Compose(earnings.Items, deductions, pc.Override)
	entry.Commission = pc.Commission
	return entry, nil
}

func (e *Engine) gradeAllowance(ctx context.Context, emp employee.Record) (decimal.Decimal, error) {
	if emp.GradeName == "" {
		return decimal.Zero, nil
	}
	g, err := e.store.GetGradeAllowance(ctx, employee.NormalizeGradeName(emp.GradeName))
	if err != nil {
		return decimal.Zero, err
	}
	return generic.NonNegative(g.Amount), nil
}
