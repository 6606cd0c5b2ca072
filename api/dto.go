/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  leave package's domain types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry validator/v10 struct tags; handlers run them through
  Handler.validate before touching the services. Field names in validation
  messages come from the json tags.

DECIMALS:
  Balances are serialized by shopspring/decimal, i.e. as JSON strings
  ("12.5"), so clients never see float rounding.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/firestation/leave-engine/leave"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	HireDate string `json:"hire_date"`
}

type CreateEmployeeRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Name     string `json:"name" validate:"required,max=120"`
	HireDate string `json:"hire_date" validate:"required,datetime=2006-01-02"`
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:       e.ID,
		Username: e.Username,
		Name:     e.Name,
		HireDate: e.HireDate.Format(leave.DateLayout),
	}
}

// =============================================================================
// BALANCES
// =============================================================================

type BalancesDTO struct {
	Vacation  decimal.Decimal `json:"vacation"`
	Sick      decimal.Decimal `json:"sick"`
	Emergency decimal.Decimal `json:"emergency"`
}

// BalanceViewDTO is the dashboard payload. Estimated is true when the store
// was unavailable and the figures are a provisional estimate.
type BalanceViewDTO struct {
	EmployeeID string      `json:"employee_id"`
	Year       int         `json:"year"`
	RecordID   string      `json:"record_id,omitempty"`
	Stored     BalancesDTO `json:"stored"`
	Available  BalancesDTO `json:"available"`
	Estimated  bool        `json:"estimated"`
}

type BalanceRecordDTO struct {
	ID      string      `json:"id"`
	Year    int         `json:"year"`
	Version int         `json:"version"`
	Stored  BalancesDTO `json:"stored"`
}

type EntitlementDTO struct {
	HireDate    string          `json:"hire_date"`
	AsOf        string          `json:"as_of"`
	Entitlement decimal.Decimal `json:"entitlement"`
	Capped      BalancesDTO     `json:"capped"`
}

func toBalancesDTO(b leave.Balances) BalancesDTO {
	return BalancesDTO{Vacation: b.Vacation, Sick: b.Sick, Emergency: b.Emergency}
}

func toBalanceViewDTO(v leave.View) BalanceViewDTO {
	return BalanceViewDTO{
		EmployeeID: v.EmployeeID,
		Year:       v.Year,
		RecordID:   v.RecordID,
		Stored:     toBalancesDTO(v.Stored),
		Available:  toBalancesDTO(v.Available),
		Estimated:  v.Estimated,
	}
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type LeaveRequestDTO struct {
	ID            string           `json:"id"`
	EmployeeID    string           `json:"employee_id"`
	Type          string           `json:"type"`
	StartDate     string           `json:"start_date"`
	EndDate       string           `json:"end_date"`
	Days          int              `json:"days"`
	Status        string           `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	Location      string           `json:"location,omitempty"`
	IllnessType   string           `json:"illness_type,omitempty"`
	BalanceBefore *decimal.Decimal `json:"balance_before,omitempty"`
	BalanceAfter  *decimal.Decimal `json:"balance_after,omitempty"`
	ReviewedBy    string           `json:"reviewed_by,omitempty"`
	ReviewNote    string           `json:"review_note,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// SubmitLeaveRequest is the body of POST /api/employees/{id}/requests.
type SubmitLeaveRequest struct {
	Type        string `json:"type" validate:"required,oneof=Vacation Sick Emergency Maternity Paternity"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason      string `json:"reason" validate:"max=500"`
	Location    string `json:"location" validate:"max=200"`
	IllnessType string `json:"illness_type" validate:"required_if=Type Sick,max=200"`
}

// EditLeaveRequest is the body of PUT /api/requests/{id}. Absent fields are
// left unchanged.
type EditLeaveRequest struct {
	Type        *string `json:"type" validate:"omitempty,oneof=Vacation Sick Emergency Maternity Paternity"`
	StartDate   *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Reason      *string `json:"reason" validate:"omitempty,max=500"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
	IllnessType *string `json:"illness_type" validate:"omitempty,max=200"`
}

type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id" validate:"required"`
	Note       string `json:"note" validate:"max=500"`
}

type CreateLeaveResponse struct {
	Request       LeaveRequestDTO  `json:"request"`
	Balance       BalanceRecordDTO `json:"balance"`
	BalanceSynced bool             `json:"balance_synced"`
}

func toLeaveRequestDTO(r leave.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:            r.ID,
		EmployeeID:    r.EmployeeID,
		Type:          string(r.Type),
		StartDate:     r.StartDate.Format(leave.DateLayout),
		EndDate:       r.EndDate.Format(leave.DateLayout),
		Days:          r.Days,
		Status:        string(r.Status),
		Reason:        r.Reason,
		Location:      r.Location,
		IllnessType:   r.IllnessType,
		BalanceBefore: r.BalanceBefore,
		BalanceAfter:  r.BalanceAfter,
		ReviewedBy:    r.ReviewedBy,
		ReviewNote:    r.ReviewNote,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse carries the user-facing message in Error. Details is only
// set for client errors; store failures are never echoed back.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
