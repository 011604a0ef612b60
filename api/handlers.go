/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to engine.Engine.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List employees (?site=, ?form=)
    GET    /api/employees/{id}                     Get employee record

  Calculations:
    POST   /api/withholding                        Withholding tax for a taxable base
    GET    /api/employees/{id}/social-insurance    Contributions (?month=YYYY-MM)
    POST   /api/employees/{id}/commission          Commission over a date range
    POST   /api/employees/{id}/deductions          Full deduction entry for a month

  Tax table:
    GET    /api/tax-table                          Cache status
    POST   /api/tax-table/refresh                  Reload (?force=true bypasses TTL)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Engine:  Calculations (reads through Store and the tax-table cache)
  - Store:   Employee lookups
  - Metrics: Per-operation result counters (optional)

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator/v10 struct tags)
  3. Load the employee record
  4. Call the engine
  5. Serialize response, or map the error to a status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, empty periods
  - 404: Employee or grade allowance not found
  - 409: Month is outside the recomputable window
  - 422: No withholding bracket matches the amount
  - 503: Tax table unreadable or no source configured
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - generic/errors.go: Error taxonomy
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/warp/payroll-engine/commission"
	"github.com/warp/payroll-engine/employee"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/observability"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/withholding"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *engine.Engine
	Store   engine.Store
	Metrics *observability.Metrics // nil disables metrics

	// Gatherer backs /metrics; nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Clock    generic.Clock
	Log      *logrus.Entry

	validate *validator.Validate
}

// NewHandler creates a new handler over eng and store.
func NewHandler(eng *engine.Engine, store engine.Store, metrics *observability.Metrics, log *logrus.Entry) *Handler {
	return &Handler{
		Engine:   eng,
		Store:    store,
		Metrics:  metrics,
		Clock:    generic.SystemClock{},
		Log:      log,
		validate: validator.New(),
	}
}

func (h *Handler) logger() *logrus.Entry {
	if h.Log == nil {
		return generic.NopLogger()
	}
	return h.Log
}

func (h *Handler) observe(operation string, err error) {
	if h.Metrics != nil {
		h.Metrics.ObserveCalculation(operation, err)
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns employees, optionally filtered by site and form.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	filter := employee.Filter{
		Scope: r.URL.Query().Get("site"),
		Form:  employee.EmploymentForm(r.URL.Query().Get("form")),
	}
	list, err := h.Store.ListEmployees(r.Context(), filter)
	if err != nil {
		h.writeEngineError(w, "Failed to list employees", err)
		return
	}
	if list == nil {
		list = []employee.Record{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Store.GetEmployee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

// ComputeWithholding returns the withholding tax for a taxable base. The
// bracket formula cross-check is included whenever the table was used.
func (h *Handler) ComputeWithholding(w http.ResponseWriter, r *http.Request) {
	var req WithholdingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TaxableBase.IsNegative() {
		writeError(w, http.StatusBadRequest, "taxable_base must not be negative", nil)
		return
	}

	emp, err := h.Store.GetEmployee(r.Context(), generic.EmployeeID(req.EmployeeID))
	if err != nil {
		h.writeEngineError(w, "Failed to get employee", err)
		return
	}

	days := payslip.Context{PayPeriodDays: req.PayPeriodDays}.Days()
	res, err := h.Engine.ComputeWithholdingDetailed(r.Context(), emp, req.TaxableBase, days)
	h.observe("withholding", err)
	if err != nil {
		h.writeEngineError(w, "Failed to compute withholding", err)
		return
	}

	resp := WithholdingResponse{
		EmployeeID:  req.EmployeeID,
		TaxableBase: req.TaxableBase,
		Normalized:  res.Normalized,
		Tax:         res.Tax,
		FlatRate:    res.FlatRate,
		Warnings: lo.Map(res.Warnings, func(w generic.ValidationWarning, _ int) string {
			return w.String()
		}),
	}
	if b := res.Bracket; b != nil {
		resp.Bracket = &BracketDTO{Min: b.Min, Tax: b.Value}
		if !b.Unbounded {
			upper := b.Max
			resp.Bracket.Max = &upper
		}
		d := withholding.CrossCheck(res.Normalized, res.Tax, h.Engine.Config().DiscrepancyTolerance)
		resp.Discrepancy = &d
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSocialInsurance returns contributions for ?month= (default: the
// current month).
func (h *Handler) GetSocialInsurance(w http.ResponseWriter, r *http.Request) {
	month := generic.MonthKeyOf(generic.DateOf(h.Clock.Now()))
	if q := r.URL.Query().Get("month"); q != "" {
		m, err := generic.ParseMonthKey(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
			return
		}
		month = m
	}

	emp, err := h.Store.GetEmployee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to get employee", err)
		return
	}

	c, err := h.Engine.ComputeSocialInsurance(r.Context(), emp, month)
	h.observe("social_insurance", err)
	if err != nil {
		h.writeEngineError(w, "Failed to compute social insurance", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ComputeCommission evaluates commission over [start, end). Counts in the
// body take precedence over the daily-count source.
func (h *Handler) ComputeCommission(w http.ResponseWriter, r *http.Request) {
	var req CommissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	emp, err := h.Store.GetEmployee(r.Context(), generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to get employee", err)
		return
	}

	var res *commission.Result
	if req.Counts != nil {
		res, err = h.Engine.ComputeCommission(r.Context(), emp, commission.DailyCounts(req.Counts), start, end)
	} else {
		res, err = h.Engine.ComputeCommissionFromSource(r.Context(), emp, start, end)
	}
	h.observe("commission", err)
	if err != nil {
		h.writeEngineError(w, "Failed to compute commission", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ComposeDeductions builds the deduction entry for one month. Months
// before the previous calendar month are rejected.
func (h *Handler) ComposeDeductions(w http.ResponseWriter, r *http.Request) {
	var req DeductionRequest
	if !h.decode(w, r, &req) {
		return
	}
	month, err := generic.ParseMonthKey(string(req.Month))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month (use YYYY-MM)", err)
		return
	}
	req.Month = month
	if err := generic.CheckRecomputable(month, h.Clock.Now()); err != nil {
		h.writeEngineError(w, "Month cannot be recomputed", err)
		return
	}

	ctx := r.Context()
	emp, err := h.Store.GetEmployee(ctx, generic.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, "Failed to get employee", err)
		return
	}

	pc := req.Context
	if p := req.CommissionPeriod; p != nil {
		start, end, err := parseRange(p.Start, p.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid commission period", err)
			return
		}
		res, err := h.Engine.ComputeCommissionFromSource(ctx, emp, start, end)
		h.observe("commission", err)
		if err != nil {
			h.writeEngineError(w, "Failed to compute commission", err)
			return
		}
		pc.Commission = res
	}

	entry, err := h.Engine.ComposeDeductionEntry(ctx, emp, pc)
	h.observe("deduction_entry", err)
	if err != nil {
		h.writeEngineError(w, "Failed to compose deduction entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// =============================================================================
// TAX TABLE HANDLERS
// =============================================================================

// GetTaxTable reports the cache without loading the table.
func (h *Handler) GetTaxTable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toTaxTableDTO(h.Engine.TaxTableStatus()))
}

// RefreshTaxTable loads the table, re-parsing when ?force=true or expired.
func (h *Handler) RefreshTaxTable(w http.ResponseWriter, r *http.Request) {
	force := false
	if q := r.URL.Query().Get("force"); q != "" {
		v, err := strconv.ParseBool(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid force flag", err)
			return
		}
		force = v
	}

	_, err := h.Engine.RefreshTaxTable(r.Context(), force)
	h.observe("tax_table_refresh", err)
	if err != nil {
		h.writeEngineError(w, "Failed to load tax table", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaxTableDTO(h.Engine.TaxTableStatus()))
}

// =============================================================================
// HELPERS
// =============================================================================

func parseRange(from, to string) (generic.TimePoint, generic.TimePoint, error) {
	start, err := generic.ParseDate(from)
	if err != nil {
		return start, start, err
	}
	end, err := generic.ParseDate(to)
	return start, end, err
}

// decode reads a JSON body into dst and validates it. On failure the 400
// response has already been written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	v := h.validate
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "Validation failed",
				Fields: validationFields(verrs),
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// validationFields maps each failing field to the tag it failed.
func validationFields(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// statusFor maps the generic error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrImmutableMonth):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrNoMatchingBracket):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generic.ErrIngest), errors.Is(err, generic.ErrSourceRequired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	entry := h.logger().WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
