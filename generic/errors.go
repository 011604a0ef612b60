/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these (or wrap them) so callers can classify
  failures with errors.Is / errors.As without importing every package.

ERROR CATEGORIES:
  1. Fatal calculation errors - IngestError, LookupError
  2. Non-fatal warnings       - ValidationWarning (clamp-and-continue)
  3. Caller-layer guards      - ImmutabilityError
  4. Store errors             - NotFoundError

PROPAGATION:
  Fatal errors are never replaced by an estimate. A silently-wrong
  withholding number is worse than a visible failure, so every fatal error
  travels unchanged to the top-level caller.

USAGE:
  tax, err := calc.Compute(emp, base, 30, table)
  if errors.Is(err, generic.ErrNoMatchingBracket) {
      // present to operator, do not substitute
  }

SEE ALSO:
  - withholding/ingest.go: returns IngestError
  - withholding/calculator.go: returns LookupError
  - api/handlers.go: maps these to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIngest is the sentinel behind every IngestError.
	ErrIngest = errors.New("tax table ingest failed")

	// ErrNoMatchingBracket is the sentinel behind every LookupError.
	ErrNoMatchingBracket = errors.New("no matching bracket")

	// ErrImmutableMonth is returned when a payroll month is too old to recompute.
	ErrImmutableMonth = errors.New("payroll month is immutable")

	// ErrRecordNotFound is returned by stores when a keyed record is missing.
	// A missing record is never retried.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidPeriod is returned when a period is empty or inverted.
	ErrInvalidPeriod = errors.New("invalid period: end not after start")

	// ErrSourceRequired is returned when the tax-table cache has no raw source.
	ErrSourceRequired = errors.New("raw table source required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// IngestError reports that a raw tax-table source yielded zero brackets.
// The source document is assumed broken and needs human correction.
type IngestError struct {
	Reason  string
	Rows    int      // rows in the raw grid
	Skipped []string // per-row parse failures, for the operator
}

func (e *IngestError) Error() string {
	msg := fmt.Sprintf("tax table ingest failed: %s (%d rows)", e.Reason, e.Rows)
	if len(e.Skipped) > 0 {
		shown := e.Skipped
		if len(shown) > 3 {
			shown = shown[:3]
		}
		msg += "; first skipped: " + strings.Join(shown, "; ")
	}
	return msg
}

func (e *IngestError) Unwrap() error { return ErrIngest }

// LookupError reports that an amount matched no bracket.
type LookupError struct {
	Table  string // e.g. "primary/dependents=2", "secondary", "standard"
	Amount decimal.Decimal
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no matching bracket: %s in %s", e.Amount.String(), e.Table)
}

func (e *LookupError) Unwrap() error { return ErrNoMatchingBracket }

// ImmutabilityError reports an attempt to recompute a closed payroll month.
type ImmutabilityError struct {
	Month    MonthKey
	Earliest MonthKey
}

func (e *ImmutabilityError) Error() string {
	return fmt.Sprintf("payroll month %s is immutable (earliest recomputable: %s)", e.Month, e.Earliest)
}

func (e *ImmutabilityError) Unwrap() error { return ErrImmutableMonth }

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrRecordNotFound }

// =============================================================================
// WARNINGS - Non-fatal, clamp-and-continue
// =============================================================================

// ValidationWarning records an input that was corrected instead of rejected.
type ValidationWarning struct {
	Field    string
	Original string
	Applied  string
	Message  string
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("%s: %s (got %s, used %s)", w.Field, w.Message, w.Original, w.Applied)
}

// =============================================================================
// IMMUTABILITY GUARD - Enforced by callers, not by the engine
// =============================================================================

// CheckRecomputable rejects months older than the previous calendar month
// relative to now. The engine is stateless per call and never calls this;
// callers check it before composing results for historical months.
func CheckRecomputable(month MonthKey, now time.Time) error {
	start, err := month.Start()
	if err != nil {
		return err
	}
	earliest := StartOfMonth(now.Year(), now.Month()).AddMonths(-1)
	if start.Before(earliest) {
		return &ImmutabilityError{Month: month, Earliest: MonthKeyOf(earliest)}
	}
	return nil
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal returns true for calculation errors that must reach an operator.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIngest) || errors.Is(err, ErrNoMatchingBracket)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) || errors.Is(err, ErrImmutableMonth)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
