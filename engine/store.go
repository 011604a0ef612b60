package engine

import (
	"context"

	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/socialinsurance"
)

// Store is the record store the engine reads from. Implementations return
// an error wrapping generic.ErrRecordNotFound for a missing keyed record.
// The engine never writes through this interface.
type Store interface {
	GetEmployee(ctx context.Context, id generic.EmployeeID) (employee.Record, error)
	ListEmployees(ctx context.Context, filter employee.Filter) ([]employee.Record, error)

	// GetGradeAllowance looks up by employee.NormalizeGradeName(name).
	GetGradeAllowance(ctx context.Context, normalizedName string) (employee.GradeAllowance, error)

	ListStandardBrackets(ctx context.Context) ([]socialinsurance.StandardBracket, error)

	// GetOverride returns ErrRecordNotFound when no override exists.
	GetOverride(ctx context.Context, id generic.EmployeeID, month generic.MonthKey) (*socialinsurance.Override, error)

	// GetCommissionRules returns ErrRecordNotFound when none are stored.
	GetCommissionRules(ctx context.Context) (commission.RuleConfig, error)
}

// DailyCountSource supplies daily treatment counts per staff key.
type DailyCountSource interface {
	CountsFor(ctx context.Context, staffKey string, period generic.Period) (commission.DailyCounts, error)
}
