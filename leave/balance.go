/*
balance.go - Balance Store Accessor

PURPOSE:
  Guarantees exactly one balance record per (employee, year) and derives
  the balance an employee can actually draw on.

STORED vs RECONCILED:
  The stored record is the durable mutation target. It is seeded once from
  the capped entitlement and afterwards only moved by RequestService
  (deduct on create, restore on delete). Once created it is authoritative
  and never recomputed, so manual adjustments are not double-credited.

  The reconciled view subtracts every Pending and Approved request of the
  record's year from the stored values, floored at zero. It is recomputed
  from the full ledger on every read and never written back.

FALLBACK:
  BalanceView degrades to an in-memory estimate when the store is down.
  The estimate is flagged so the UI can show it as provisional.
*/
package leave

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BalanceService struct {
	store  Store
	clock  Clock
	logger *zap.Logger
	newID  func() string
}

func NewBalanceService(store Store, opts ...Option) *BalanceService {
	o := buildOptions("leave.balance", opts)
	return &BalanceService{store: store, clock: o.clock, logger: o.logger, newID: o.newID}
}

// GetOrCreateBalance returns the record for (employeeID, year), creating it
// from the capped entitlement as of now if it does not exist yet.
func (s *BalanceService) GetOrCreateBalance(ctx context.Context, employeeID string, hireDate time.Time, year int) (BalanceRecord, error) {
	return s.getOrCreate(ctx, s.store, employeeID, hireDate, year)
}

func (s *BalanceService) getOrCreate(ctx context.Context, st BalanceStore, employeeID string, hireDate time.Time, year int) (BalanceRecord, error) {
	existing, err := st.GetBalance(ctx, employeeID, year)
	if err != nil {
		return BalanceRecord{}, persistErr("get balance", err)
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.clock.Now()
	rec := BalanceRecord{
		ID:         s.newID(),
		EmployeeID: employeeID,
		Year:       year,
		Balances:   CappedEntitlement(hireDate, now),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.InsertBalance(ctx, rec); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return BalanceRecord{}, persistErr("insert balance", err)
		}
		// Lost a creation race; the other writer's row wins.
		winner, gerr := st.GetBalance(ctx, employeeID, year)
		if gerr != nil {
			return BalanceRecord{}, persistErr("get balance", gerr)
		}
		if winner == nil {
			return BalanceRecord{}, persistErr("insert balance", err)
		}
		return *winner, nil
	}

	s.logger.Info("balance record created",
		zap.String("employee_id", employeeID),
		zap.Int("year", year),
		zap.String("vacation", rec.Vacation.String()),
		zap.String("sick", rec.Sick.String()),
		zap.String("emergency", rec.Emergency.String()),
	)
	return rec, nil
}

// Reconcile subtracts the consumed days of requests from the stored record.
// Only Pending and Approved requests starting in the record's year count.
// The result is a view; nothing is written.
func Reconcile(rec BalanceRecord, requests []LeaveRequest) Balances {
	consumed := map[LeaveType]int64{}
	for _, r := range requests {
		if !r.Status.Consuming() || !r.Type.Tracked() || r.StartDate.Year() != rec.Year {
			continue
		}
		consumed[r.Type] += int64(r.Days)
	}

	view := rec.Balances
	for t, days := range consumed {
		left := view.For(t).Sub(decimal.NewFromInt(days))
		if left.IsNegative() {
			left = decimal.Zero
		}
		view = view.With(t, left)
	}
	return view
}

// Estimate is the ephemeral balance used when the store is unreachable.
func (s *BalanceService) Estimate(hireDate time.Time) Balances {
	return CappedEntitlement(hireDate, s.clock.Now())
}

// View is what a dashboard shows for one employee and year.
type View struct {
	EmployeeID string
	Year       int
	RecordID   string
	Stored     Balances
	Available  Balances
	Estimated  bool
}

// BalanceView returns the reconciled balance for emp in year. Store
// failures degrade to an estimate instead of an error.
func (s *BalanceService) BalanceView(ctx context.Context, emp Employee, year int) (View, error) {
	rec, available, err := s.reconciled(ctx, s.store, emp, year)
	if err == nil {
		return View{
			EmployeeID: emp.ID,
			Year:       year,
			RecordID:   rec.ID,
			Stored:     rec.Balances,
			Available:  available,
		}, nil
	}
	if !errors.Is(err, ErrPersistence) {
		return View{}, err
	}

	s.logger.Warn("balance store unavailable, serving estimate",
		zap.String("employee_id", emp.ID),
		zap.Int("year", year),
		zap.Error(err),
	)
	if rec.ID != "" {
		// The record loaded but the ledger did not.
		return View{EmployeeID: emp.ID, Year: year, RecordID: rec.ID, Stored: rec.Balances, Available: rec.Balances, Estimated: true}, nil
	}
	est := s.Estimate(emp.HireDate)
	return View{EmployeeID: emp.ID, Year: year, Stored: est, Available: est, Estimated: true}, nil
}

// reconciled loads (or creates) the record and reconciles it against the
// employee's ledger, reading through st.
func (s *BalanceService) reconciled(ctx context.Context, st Store, emp Employee, year int) (BalanceRecord, Balances, error) {
	rec, err := s.getOrCreate(ctx, st, emp.ID, emp.HireDate, year)
	if err != nil {
		return BalanceRecord{}, Balances{}, err
	}
	requests, err := st.ListRequestsByEmployee(ctx, emp.ID)
	if err != nil {
		return rec, Balances{}, persistErr("list requests", err)
	}
	return rec, Reconcile(rec, requests), nil
}
