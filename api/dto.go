/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain results
  (socialinsurance.Contribution, commission.Result, payslip.DeductionEntry)
  already carry JSON tags and are returned as they are; the types here
  cover request bodies and the responses that need reshaping.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers
  - *DTO:      Flattened views of internal state

VALIDATION:
  Request types carry `validate` tags checked by validator/v10 before a
  handler touches the engine. Decimal amounts are checked in the handler
  because the validator cannot compare decimal.Decimal values.

SEE ALSO:
  - handlers.go: Uses these types
  - payslip/entry.go: payslip.Context, embedded in DeductionRequest
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/withholding"
)

// =============================================================================
// REQUESTS
// =============================================================================

// WithholdingRequest asks for the withholding tax on an already computed
// taxable base.
type WithholdingRequest struct {
	EmployeeID    string          `json:"employee_id" validate:"required"`
	TaxableBase   decimal.Decimal `json:"taxable_base"`
	PayPeriodDays int             `json:"pay_period_days,omitempty" validate:"gte=0,lte=31"`
}

// CommissionRequest evaluates commission over [start, end). Counts keyed by
// YYYY-MM-DD replace the configured daily-count source when present.
type CommissionRequest struct {
	Start  string         `json:"start" validate:"required,datetime=2006-01-02"`
	End    string         `json:"end" validate:"required,datetime=2006-01-02"`
	Counts map[string]int `json:"counts,omitempty" validate:"omitempty,dive,keys,datetime=2006-01-02,endkeys,gte=0"`
}

// DeductionRequest is a payslip.Context plus an optional commission window.
// When the window is set, commission is computed from the daily-count
// source and added to earnings.
type DeductionRequest struct {
	payslip.Context
	CommissionPeriod *PeriodDTO `json:"commission_period,omitempty"`
}

// PeriodDTO is a half-open date range.
type PeriodDTO struct {
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// WithholdingResponse is the result of POST /api/withholding.
type WithholdingResponse struct {
	EmployeeID  string                   `json:"employee_id"`
	TaxableBase decimal.Decimal          `json:"taxable_base"`
	Normalized  decimal.Decimal          `json:"normalized"`
	Tax         int64                    `json:"tax"`
	FlatRate    bool                     `json:"flat_rate"`
	Bracket     *BracketDTO              `json:"bracket,omitempty"`
	Discrepancy *withholding.Discrepancy `json:"discrepancy,omitempty"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

// BracketDTO shows the matched table row. Max is omitted when unbounded.
type BracketDTO struct {
	Min decimal.Decimal  `json:"min"`
	Max *decimal.Decimal `json:"max,omitempty"`
	Tax decimal.Decimal  `json:"tax"`
}

// TaxTableDTO reports the tax-table cache.
type TaxTableDTO struct {
	Populated bool       `json:"populated"`
	LoadedAt  *time.Time `json:"loaded_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Brackets  int        `json:"brackets"`
	Skipped   int        `json:"skipped_rows"`
}

func toTaxTableDTO(s withholding.CacheStatus) TaxTableDTO {
	dto := TaxTableDTO{Populated: s.Populated, Brackets: s.Brackets, Skipped: s.Skipped}
	if s.Populated {
		loaded, expires := s.LoadedAt, s.ExpiresAt
		dto.LoadedAt = &loaded
		dto.ExpiresAt = &expires
	}
	return dto
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
