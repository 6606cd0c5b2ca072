/*
Package leave implements the leave-balance engine for station personnel.

PURPOSE:
  Computes leave entitlement from a hire date, keeps one balance record per
  employee and calendar year, validates self-service requests against the
  minimum-residual rule and keeps the stored balance in step with the
  request lifecycle (create, edit, delete).

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType: Vacation, Sick, Emergency (tracked) and Maternity, Paternity
  - Status: Pending (mutable), Approved and Rejected (terminal)
  - BalanceRecord: stored per (employee, year), mutated only by RequestService
  - Balances: an immutable triple of vacation/sick/emergency amounts
  - LeaveRequest: a request row with its balance-before/after audit snapshot

SEE ALSO:
  - entitlement.go: accrual formula
  - balance.go: get-or-create and reconciliation
  - validator.go: minimum-residual rule
  - request.go: lifecycle manager
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	TypeVacation  LeaveType = "Vacation"
	TypeSick      LeaveType = "Sick"
	TypeEmergency LeaveType = "Emergency"
	TypeMaternity LeaveType = "Maternity"
	TypePaternity LeaveType = "Paternity"
)

// AllTypes lists every leave type in display order.
var AllTypes = []LeaveType{TypeVacation, TypeSick, TypeEmergency, TypeMaternity, TypePaternity}

// Valid reports whether t is a known leave type.
func (t LeaveType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Tracked reports whether the type draws from a balance record.
// Maternity and paternity leave are statutory and carry no balance.
func (t LeaveType) Tracked() bool {
	return t == TypeVacation || t == TypeSick || t == TypeEmergency
}

// Cap returns the maximum balance a record may hold for t.
func (t LeaveType) Cap() decimal.Decimal {
	switch t {
	case TypeVacation:
		return MaxVacation
	case TypeSick:
		return MaxSick
	case TypeEmergency:
		return MaxEmergency
	default:
		return decimal.Zero
	}
}

var (
	MaxVacation  = decimal.NewFromInt(15)
	MaxSick      = decimal.NewFromInt(15)
	MaxEmergency = decimal.NewFromInt(5)
)

// =============================================================================
// REQUEST STATUS
// =============================================================================

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Mutable reports whether requests in this status may be edited or deleted.
func (s Status) Mutable() bool { return s == StatusPending }

// Consuming reports whether requests in this status count against a balance.
func (s Status) Consuming() bool { return s == StatusPending || s == StatusApproved }

// =============================================================================
// EMPLOYEE (consumed, not owned)
// =============================================================================

type Employee struct {
	ID       string
	Username string
	Name     string
	HireDate time.Time
}

// =============================================================================
// BALANCES
// =============================================================================

// Balances is a value snapshot of the three tracked balances.
type Balances struct {
	Vacation  decimal.Decimal
	Sick      decimal.Decimal
	Emergency decimal.Decimal
}

// For returns the balance for a tracked type, zero otherwise.
func (b Balances) For(t LeaveType) decimal.Decimal {
	switch t {
	case TypeVacation:
		return b.Vacation
	case TypeSick:
		return b.Sick
	case TypeEmergency:
		return b.Emergency
	default:
		return decimal.Zero
	}
}

// With returns a copy of b with the balance for t replaced by v.
// Untracked types return b unchanged.
func (b Balances) With(t LeaveType, v decimal.Decimal) Balances {
	switch t {
	case TypeVacation:
		b.Vacation = v
	case TypeSick:
		b.Sick = v
	case TypeEmergency:
		b.Emergency = v
	}
	return b
}

// BalanceRecord is the stored balance for one employee and calendar year.
type BalanceRecord struct {
	ID         string
	EmployeeID string
	Year       int
	Balances
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Deduct returns a copy of the record with days removed from the field for t,
// floored at zero.
func (r BalanceRecord) Deduct(t LeaveType, days int) BalanceRecord {
	next := r.For(t).Sub(decimal.NewFromInt(int64(days)))
	if next.IsNegative() {
		next = decimal.Zero
	}
	r.Balances = r.Balances.With(t, next)
	return r
}

// Restore returns a copy of the record with days credited back to the field
// for t, capped at the type maximum.
func (r BalanceRecord) Restore(t LeaveType, days int) BalanceRecord {
	next := decimal.Min(r.For(t).Add(decimal.NewFromInt(int64(days))), t.Cap())
	r.Balances = r.Balances.With(t, next)
	return r
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

type LeaveRequest struct {
	ID          string
	EmployeeID  string
	Type        LeaveType
	StartDate   time.Time
	EndDate     time.Time
	Days        int
	Status      Status
	Reason      string
	Location    string // vacation destination
	IllnessType string // sick leave classification

	// Audit snapshot taken at submission. Nil for untracked types.
	BalanceRecordID string
	BalanceBefore   *decimal.Decimal
	BalanceAfter    *decimal.Decimal

	// What the balance record actually gave up. Edits under EditKeepBalance
	// leave it alone, so Delete puts back this and not Type/Days.
	DeductedType LeaveType
	DeductedDays int

	ReviewedBy string
	ReviewNote string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Deducted reports whether the request still holds days on a balance record.
func (r LeaveRequest) Deducted() bool {
	return r.BalanceRecordID != "" && r.DeductedType.Tracked() && r.DeductedDays > 0
}
