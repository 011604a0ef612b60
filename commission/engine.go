package commission

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
)

// Engine computes commissions. The zero value is ready to use.
type Engine struct{}

// Compute evaluates emp's variant over [start, end). An unset variant is
// treated as legacy.
func (Engine) Compute(emp employee.Record, counts DailyCounts, rules RuleConfig, start, end generic.TimePoint) (*Result, error) {
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}

	variant := emp.CommissionVariant
	if variant == "" {
		variant = employee.CommissionLegacy
	}

	res := &Result{EmployeeID: emp.ID, Variant: variant}
	switch variant {
	case employee.CommissionLegacy:
		b := Monthly(counts, rules.Legacy, period)
		res.Breakdown = b
		res.Amount = decimal.Zero
		if b.Achieved {
			res.Amount = rules.Legacy.AmountPerAchievement
		}
	case employee.CommissionWeekly:
		b := Weekly(counts, rules.Weekly, period)
		res.Breakdown = b
		res.Amount = rules.Weekly.AmountPerWeek.Mul(decimal.NewFromInt(int64(b.AchievedWeeks)))
	default:
		return nil, fmt.Errorf("unknown commission variant %q", variant)
	}
	return res, nil
}

// Monthly sums all counts in period against the monthly threshold.
func Monthly(counts DailyCounts, rule LegacyRule, period generic.Period) MonthlyBreakdown {
	total := counts.Sum(period)
	return MonthlyBreakdown{
		Period:    period,
		Total:     total,
		Threshold: rule.MonthlyThreshold,
		Achieved:  total >= rule.MonthlyThreshold,
	}
}

// Weekly evaluates every Monday-aligned bucket of period.
func Weekly(counts DailyCounts, rule WeeklyRule, period generic.Period) WeeklyBreakdown {
	buckets := lo.Map(period.SplitAtMondays(), func(p generic.Period, _ int) WeekBucket {
		n := counts.Sum(p)
		return WeekBucket{Period: p, Count: n, Achieved: n >= rule.WeeklyThreshold}
	})
	return WeeklyBreakdown{
		Period:        period,
		Threshold:     rule.WeeklyThreshold,
		Buckets:       buckets,
		AchievedWeeks: lo.CountBy(buckets, func(b WeekBucket) bool { return b.Achieved }),
	}
}
