/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave services via REST API. Handles HTTP request/response,
  JSON serialization and input validation, and delegates to the leave
  package for every decision.

ENDPOINTS:
  Employees:
    POST   /api/employees                    Create employee
    GET    /api/employees/lookup?username=   Directory lookup
    GET    /api/employees/{id}/balance       Reconciled balance (?year=)
    GET    /api/employees/{id}/requests      Request ledger
    POST   /api/employees/{id}/requests      File a leave request

  Requests:
    PUT    /api/requests/{id}                Edit a pending request
    DELETE /api/requests/{id}                Withdraw a pending request
    POST   /api/requests/{id}/approve        Approve (station admin)
    POST   /api/requests/{id}/reject         Reject (station admin)

  Tools:
    GET    /api/entitlement?hire_date=&as_of= Entitlement calculator

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, validation failure, invalid range or type
  - 404: Employee or request not found
  - 409: Request not pending, concurrent modification, operation in flight
  - 422: Insufficient balance
  - 503: Store unavailable
  The error field always holds leave.UserMessage(err).

SECURITY NOTE:
  No authentication. Reviewer identity is taken from the request body.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/firestation/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Directory is the employee lookup the API needs, plus registration.
type Directory interface {
	leave.Directory
	SaveEmployee(ctx context.Context, emp leave.Employee) error
}

// Services bundles the handler's dependencies.
type Services struct {
	Directory Directory
	Requests  *leave.RequestService
	Reviews   *leave.ReviewService
	Clock     leave.Clock
	Logger    *zap.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	directory Directory
	requests  *leave.RequestService
	reviews   *leave.ReviewService
	clock     leave.Clock
	logger    *zap.Logger
	validate  *validator.Validate
}

func NewHandler(s Services) *Handler {
	if s.Clock == nil {
		s.Clock = leave.SystemClock
	}
	if s.Logger == nil {
		s.Logger = zap.L()
	}
	return &Handler{
		directory: s.Directory,
		requests:  s.Requests,
		reviews:   s.Reviews,
		clock:     s.Clock,
		logger:    s.Logger.Named("leave.api"),
		validate:  newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// CreateEmployee registers a firefighter in the directory.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	hire, _ := leave.ParseDate(req.HireDate)

	emp := leave.Employee{
		ID:       uuid.NewString(),
		Username: req.Username,
		Name:     req.Name,
		HireDate: hire,
	}
	if err := h.directory.SaveEmployee(r.Context(), emp); err != nil {
		if !errors.Is(err, leave.ErrDuplicate) {
			err = &leave.PersistenceError{Op: "save employee", Err: err}
		}
		h.fail(w, r, err)
		return
	}

	h.logger.Info("employee created", zap.String("employee_id", emp.ID), zap.String("username", emp.Username))
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// LookupEmployee finds an employee by username.
// GET /api/employees/lookup?username=
func (h *Handler) LookupEmployee(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required", nil)
		return
	}
	emp, err := h.directory.EmployeeByUsername(r.Context(), username)
	if err != nil {
		h.fail(w, r, &leave.PersistenceError{Op: "lookup employee", Err: err})
		return
	}
	if emp == nil {
		h.fail(w, r, &leave.NotFoundError{Kind: "employee", ID: username})
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// GetBalance returns the reconciled balance for one year.
// GET /api/employees/{id}/balance?year=2026
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	year := h.clock.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			writeError(w, http.StatusBadRequest, "year must be a four-digit year", err)
			return
		}
		year = y
	}

	emp, ok := h.employee(w, r)
	if !ok {
		return
	}
	view, err := h.requests.Balances().BalanceView(r.Context(), *emp, year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceViewDTO(view))
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// ListRequests returns the employee's request ledger.
// GET /api/employees/{id}/requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.requests.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]LeaveRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toLeaveRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitRequest files a new leave request.
// POST /api/employees/{id}/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, _ := leave.ParseDate(req.StartDate)
	end, _ := leave.ParseDate(req.EndDate)

	res, err := h.requests.Create(r.Context(), leave.CreateInput{
		EmployeeID:  chi.URLParam(r, "id"),
		Type:        leave.LeaveType(req.Type),
		StartDate:   start,
		EndDate:     end,
		Reason:      req.Reason,
		Location:    req.Location,
		IllnessType: req.IllnessType,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateLeaveResponse{
		Request: toLeaveRequestDTO(res.Request),
		Balance: BalanceRecordDTO{
			ID:      res.Balance.ID,
			Year:    res.Balance.Year,
			Version: res.Balance.Version,
			Stored:  toBalancesDTO(res.Balance.Balances),
		},
		BalanceSynced: res.BalanceSynced,
	})
}

// EditRequest changes a pending request.
// PUT /api/requests/{id}
func (h *Handler) EditRequest(w http.ResponseWriter, r *http.Request) {
	var req EditLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := leave.EditInput{
		RequestID:   chi.URLParam(r, "id"),
		Reason:      req.Reason,
		Location:    req.Location,
		IllnessType: req.IllnessType,
	}
	if req.Type != nil {
		t := leave.LeaveType(*req.Type)
		in.Type = &t
	}
	if req.StartDate != nil {
		d, _ := leave.ParseDate(*req.StartDate)
		in.StartDate = &d
	}
	if req.EndDate != nil {
		d, _ := leave.ParseDate(*req.EndDate)
		in.EndDate = &d
	}

	updated, err := h.requests.Edit(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// DeleteRequest withdraws a pending request and restores its days.
// DELETE /api/requests/{id}
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.requests.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest marks a pending request approved.
// POST /api/requests/{id}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.reviews.Approve)
}

// RejectRequest marks a pending request rejected.
// POST /api/requests/{id}/reject
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.reviews.Reject)
}

type decideFunc func(ctx context.Context, requestID, reviewerID, note string) (*leave.LeaveRequest, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, decide decideFunc) {
	var req ReviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := decide(r.Context(), chi.URLParam(r, "id"), req.ReviewerID, req.Note)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*updated))
}

// =============================================================================
// TOOLS
// =============================================================================

// GetEntitlement runs the entitlement calculator. as_of defaults to today.
// GET /api/entitlement?hire_date=2025-06-16&as_of=2025-06-20
func (h *Handler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hire, err := leave.ParseDate(q.Get("hire_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "hire_date must be YYYY-MM-DD", err)
		return
	}
	asOf := leave.DateOnly(h.clock.Now())
	if v := q.Get("as_of"); v != "" {
		if asOf, err = leave.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD", err)
			return
		}
	}

	writeJSON(w, http.StatusOK, EntitlementDTO{
		HireDate:    hire.Format(leave.DateLayout),
		AsOf:        asOf.Format(leave.DateLayout),
		Entitlement: leave.ComputeEntitlement(hire, asOf),
		Capped:      toBalancesDTO(leave.CappedEntitlement(hire, asOf)),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) employee(w http.ResponseWriter, r *http.Request) (*leave.Employee, bool) {
	id := chi.URLParam(r, "id")
	emp, err := h.directory.EmployeeByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, &leave.PersistenceError{Op: "lookup employee", Err: err})
		return nil, false
	}
	if emp == nil {
		h.fail(w, r, &leave.NotFoundError{Kind: "employee", ID: id})
		return nil, false
	}
	return emp, true
}

// decode reads and validates a JSON body into dst. On failure it writes
// the 400 response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err), err)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "Invalid input"
	}
	e := errs[0]
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", e.Field())
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", e.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, leave.ErrInvalidRange), errors.Is(err, leave.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, leave.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, leave.ErrInvalidState),
		errors.Is(err, leave.ErrConcurrentModification),
		errors.Is(err, leave.ErrOperationInFlight),
		errors.Is(err, leave.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, leave.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, leave.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := leave.UserMessage(err)
	if errors.Is(err, leave.ErrDuplicate) {
		message = "That username is already registered."
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(w, status, message, nil)
		return
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
