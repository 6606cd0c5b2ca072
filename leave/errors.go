/*
errors.go - Error taxonomy for the leave engine

ERROR CATEGORIES:
  1. Validation - InvalidRangeError, InsufficientBalanceError, InvalidStateError.
     Determined before any mutation, so they never leave partial state.
  2. Lookup     - NotFoundError (employee, request or balance record).
  3. Store      - PersistenceError, ConcurrentModificationError.

Every structured error unwraps to a sentinel, so callers can branch with
errors.Is and still read the details with errors.As:

    var ib *leave.InsufficientBalanceError
    if errors.As(err, &ib) {
        fmt.Println(ib.Required)
    }

UserMessage renders the text shown to station staff. Raw store errors are
never shown.
*/
package leave

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidRange           = errors.New("invalid date range")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidState           = errors.New("request is not pending")
	ErrNotFound               = errors.New("not found")
	ErrPersistence            = errors.New("persistence failure")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidType            = errors.New("invalid leave type")

	// ErrOperationInFlight is returned when another mutation for the same
	// employee has not finished yet.
	ErrOperationInFlight = errors.New("another leave operation is in progress")

	// ErrDuplicate is returned by stores when a unique key already exists.
	ErrDuplicate = errors.New("duplicate key")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidRangeError reports a request spanning fewer than one day.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
	Days  int
}

func (e *InvalidRangeError) Error() string {
	if e.Start.IsZero() && e.End.IsZero() {
		return fmt.Sprintf("invalid date range: %d day(s) requested", e.Days)
	}
	return fmt.Sprintf("invalid date range: %s to %s spans %d day(s)",
		e.Start.Format(DateLayout), e.End.Format(DateLayout), e.Days)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// InsufficientBalanceError reports a minimum-residual violation.
type InsufficientBalanceError struct {
	Type            LeaveType
	Current         decimal.Decimal
	Requested       int
	MinimumResidual decimal.Decimal
	Required        decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: current %s, requested %d, minimum residual %s, required %s",
		e.Type, e.Current.StringFixed(2), e.Requested, e.MinimumResidual.StringFixed(2), e.Required.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidStateError reports an edit or delete on a non-Pending request.
type InvalidStateError struct {
	RequestID string
	Status    Status
	Op        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s request %s: status is %s", e.Op, e.RequestID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NotFoundError reports a missing employee, request or balance record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a store failure. It matches both ErrPersistence and
// the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// ConcurrentModificationError reports a balance version mismatch.
type ConcurrentModificationError struct {
	RecordID        string
	ExpectedVersion int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("balance record %s changed since version %d", e.RecordID, e.ExpectedVersion)
}

func (e *ConcurrentModificationError) Unwrap() error { return ErrConcurrentModification }

// persistErr wraps a raw store error, leaving typed errors alone.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) || errors.Is(err, ErrConcurrentModification) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidType)
}

// IsRetryable returns true if resubmitting might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrOperationInFlight) ||
		errors.Is(err, ErrPersistence)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// UserMessage renders err for display.
func UserMessage(err error) string {
	var (
		ib *InsufficientBalanceError
		ir *InvalidRangeError
		is *InvalidStateError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ib):
		return fmt.Sprintf("Insufficient %s leave balance. You have %s day(s) and requested %d. "+
			"At least %s day(s) must remain, so you need a balance of %s day(s).",
			ib.Type, ib.Current.StringFixed(2), ib.Requested,
			ib.MinimumResidual.StringFixed(2), ib.Required.StringFixed(2))
	case errors.As(err, &ir):
		return "The end date must be on or after the start date."
	case errors.As(err, &is):
		return fmt.Sprintf("This request is already %s and can no longer be changed.", is.Status)
	case errors.Is(err, ErrInvalidType):
		return "Unknown leave type."
	case errors.Is(err, ErrNotFound):
		return "Record not found. Please contact the administrator."
	case errors.Is(err, ErrOperationInFlight):
		return "Your previous submission is still being processed."
	case errors.Is(err, ErrConcurrentModification):
		return "Your leave balance changed while saving. Please reload and try again."
	default:
		return "Something went wrong while saving. Please try again."
	}
}
