/*
Package commission evaluates performance thresholds against daily counts.

VARIANTS:
  legacy            one monthly threshold; a fixed amount when reached
  weekly_threshold  Monday-aligned weekly buckets; a fixed amount per
                    week that reaches the weekly threshold

  Each variant produces its own breakdown type. Breakdown is a sealed
  interface so a type switch over the two variants is exhaustive.

SEE ALSO:
  - generic/period.go: SplitAtMondays
  - engine/engine.go: pulls counts from a DailyCountSource
*/
package commission

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// RULES
// =============================================================================

type LegacyRule struct {
	MonthlyThreshold     int             `json:"monthly_threshold" yaml:"monthly_threshold"`
	AmountPerAchievement decimal.Decimal `json:"amount_per_achievement" yaml:"amount_per_achievement"`
}

type WeeklyRule struct {
	WeeklyThreshold int             `json:"weekly_threshold" yaml:"weekly_threshold"`
	AmountPerWeek   decimal.Decimal `json:"amount_per_week" yaml:"amount_per_week"`
}

// RuleConfig holds the constants for both variants.
type RuleConfig struct {
	Legacy LegacyRule `json:"legacy" yaml:"legacy"`
	Weekly WeeklyRule `json:"weekly" yaml:"weekly"`
}

// DefaultRules returns the rule set used when none is configured.
func DefaultRules() RuleConfig {
	return RuleConfig{
		Legacy: LegacyRule{MonthlyThreshold: 7, AmountPerAchievement: decimal.NewFromInt(1250)},
		Weekly: WeeklyRule{WeeklyThreshold: 7, AmountPerWeek: decimal.NewFromInt(1250)},
	}
}

// =============================================================================
// DAILY COUNTS
// =============================================================================

// DailyCounts maps a day (TimePoint.DateKey, "YYYY-MM-DD") to a count.
type DailyCounts map[string]int

// Add increments the count for day.
func (c DailyCounts) Add(day generic.TimePoint, n int) {
	c[day.DateKey()] += n
}

// Sum totals the counts for days in p.
func (c DailyCounts) Sum(p generic.Period) int {
	total := 0
	for _, day := range p.Days() {
		total += c[day.DateKey()]
	}
	return total
}

// =============================================================================
// BREAKDOWNS
// =============================================================================

// Breakdown is MonthlyBreakdown or WeeklyBreakdown.
type Breakdown interface {
	Variant() employee.CommissionVariant
	sealed()
}

// MonthlyBreakdown audits a legacy evaluation.
type MonthlyBreakdown struct {
	Period    generic.Period `json:"period"`
	Total     int            `json:"total"`
	Threshold int            `json:"threshold"`
	Achieved  bool           `json:"achieved"`
}

func (MonthlyBreakdown) Variant() employee.CommissionVariant { return employee.CommissionLegacy }
func (MonthlyBreakdown) sealed()                             {}

// WeekBucket is one Monday-aligned bucket.
type WeekBucket struct {
	Period   generic.Period `json:"period"`
	Count    int            `json:"count"`
	Achieved bool           `json:"achieved"`
}

// WeeklyBreakdown audits a weekly_threshold evaluation.
type WeeklyBreakdown struct {
	Period        generic.Period `json:"period"`
	Threshold     int            `json:"threshold"`
	Buckets       []WeekBucket   `json:"buckets"`
	AchievedWeeks int            `json:"achieved_weeks"`
}

func (WeeklyBreakdown) Variant() employee.CommissionVariant { return employee.CommissionWeekly }
func (WeeklyBreakdown) sealed()                             {}

// Result is the commission for one employee and period.
type Result struct {
	EmployeeID generic.EmployeeID         `json:"employee_id"`
	Variant    employee.CommissionVariant `json:"variant"`
	Amount     decimal.Decimal            `json:"amount"`
	Breakdown  Breakdown                  `json:"breakdown"`
}
