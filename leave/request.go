/*
request.go - Request Lifecycle Manager

PURPOSE:
  Applies create, edit and delete on a leave request to both the request
  table and the stored balance record, keeping them in step.

STATES:
  Pending --approve--> Approved   (external reviewer, terminal)
  Pending --reject---> Rejected   (external reviewer, terminal)
  Pending --edit-----> Pending
  Pending --delete---> removed

  Edit and delete on anything but Pending fail with *InvalidStateError.

WRITE ORDER:
  With a TxStore, the request row and the balance update commit together.
  Without one, the request row is written first and the balance update is
  best-effort: a failure is logged as a balance discrepancy and reported
  through CreateResult.BalanceSynced. An under-deducted balance is safer
  than a stuck request.

SERIALIZATION:
  One mutation per employee at a time. A second concurrent call for the
  same employee gets ErrOperationInFlight instead of racing on the
  read-modify-write of the balance row. Across processes the version
  column on the balance record catches the race.
*/
package leave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RequestService struct {
	store      Store
	balances   *BalanceService
	clock      Clock
	logger     *zap.Logger
	newID      func() string
	editPolicy EditPolicy
	guard      *inflight
}

func NewRequestService(store Store, opts ...Option) *RequestService {
	o := buildOptions("leave.service", opts)
	return &RequestService{
		store:      store,
		balances:   NewBalanceService(store, opts...),
		clock:      o.clock,
		logger:     o.logger,
		newID:      o.newID,
		editPolicy: o.editPolicy,
		guard:      &inflight{busy: map[string]struct{}{}},
	}
}

// Balances exposes the accessor the service reads through.
func (rs *RequestService) Balances() *BalanceService { return rs.balances }

// =============================================================================
// CREATE
// =============================================================================

type CreateInput struct {
	EmployeeID  string
	Type        LeaveType
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	Location    string
	IllnessType string
}

type CreateResult struct {
	Request LeaveRequest
	// Balance is the stored record after the deduction.
	Balance BalanceRecord
	// BalanceSynced is false when the request was committed but the
	// deduction could not be written.
	BalanceSynced bool
}

// Create validates and persists a Pending request, then deducts its days
// from the stored balance of the request's year.
func (rs *RequestService) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	log := rs.logger.With(
		zap.String("employee_id", in.EmployeeID),
		zap.String("leave_type", string(in.Type)),
	)
	log.Debug("create leave requested",
		zap.String("start_date", in.StartDate.Format(DateLayout)),
		zap.String("end_date", in.EndDate.Format(DateLayout)),
	)

	if !in.Type.Valid() {
		return nil, ErrInvalidType
	}
	days := InclusiveDays(in.StartDate, in.EndDate)
	if days < 1 {
		return nil, &InvalidRangeError{Start: in.StartDate, End: in.EndDate, Days: days}
	}

	release, err := rs.guard.acquire(in.EmployeeID)
	if err != nil {
		log.Warn("create leave rejected: operation in flight")
		return nil, err
	}
	defer release()

	emp, err := rs.employee(ctx, rs.store, in.EmployeeID)
	if err != nil {
		return nil, err
	}

	now := rs.clock.Now()
	req := LeaveRequest{
		ID:          rs.newID(),
		EmployeeID:  emp.ID,
		Type:        in.Type,
		StartDate:   DateOnly(in.StartDate),
		EndDate:     DateOnly(in.EndDate),
		Days:        days,
		Status:      StatusPending,
		Reason:      in.Reason,
		Location:    in.Location,
		IllnessType: in.IllnessType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result := &CreateResult{BalanceSynced: true}
	atomic, err := rs.atomically(ctx, func(st Store) error {
		rec, view, err := rs.balances.reconciled(ctx, st, *emp, req.StartDate.Year())
		if err != nil {
			return err
		}
		if err := ValidateRequest(req.Type, days, view); err != nil {
			return err
		}
		if req.Type.Tracked() {
			before := view.For(req.Type)
			after := before.Sub(decimal.NewFromInt(int64(days)))
			req.BalanceRecordID = rec.ID
			req.BalanceBefore = &before
			req.BalanceAfter = &after
			req.DeductedType = req.Type
			req.DeductedDays = days
		}

		if err := st.InsertRequest(ctx, req); err != nil {
			return persistErr("insert request", err)
		}
		result.Request = req
		result.Balance = rec
		if !req.Type.Tracked() {
			return nil
		}

		next, err := rs.writeBalance(ctx, st, rec, rec.Deduct(req.Type, days), now)
		if err != nil {
			if rs.isTx() {
				return err
			}
			rs.discrepancy(log, "deduct", req, err)
			req.DeductedType, req.DeductedDays = "", 0
			if uerr := st.UpdateRequest(ctx, req); uerr != nil {
				log.Error("clear deduction failed", zap.String("request_id", req.ID), zap.Error(uerr))
			}
			result.Request = req
			result.BalanceSynced = false
			return nil
		}
		result.Balance = next
		return nil
	})
	if err != nil {
		rs.logFailure(log, "create leave", err)
		return nil, err
	}

	log.Info("create leave success",
		zap.String("request_id", req.ID),
		zap.Int("days", days),
		zap.Bool("atomic", atomic),
		zap.Bool("balance_synced", result.BalanceSynced),
	)
	return result, nil
}

// =============================================================================
// EDIT
// =============================================================================

// EditInput carries the fields to change; nil leaves a field as it is.
type EditInput struct {
	RequestID   string
	Type        *LeaveType
	StartDate   *time.Time
	EndDate     *time.Time
	Reason      *string
	Location    *string
	IllnessType *string
}

// Edit updates a Pending request. Under EditKeepBalance the stored balance is
// left alone; under EditRebalance the balance follows the new day count.
func (rs *RequestService) Edit(ctx context.Context, in EditInput) (*LeaveRequest, error) {
	log := rs.logger.With(zap.String("request_id", in.RequestID))
	log.Debug("edit leave requested", zap.Stringer("policy", rs.editPolicy))

	current, err := rs.pending(ctx, rs.store, in.RequestID, "edit", false)
	if err != nil {
		return nil, err
	}

	release, err := rs.guard.acquire(current.EmployeeID)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated LeaveRequest
	_, err = rs.atomically(ctx, func(st Store) error {
		old, err := rs.pending(ctx, st, in.RequestID, "edit", false)
		if err != nil {
			return err
		}
		updated, err = applyEdit(*old, in)
		if err != nil {
			return err
		}
		updated.UpdatedAt = rs.clock.Now()

		if rs.editPolicy == EditRebalance {
			return rs.rebalance(ctx, st, *old, &updated)
		}
		if err := st.UpdateRequest(ctx, updated); err != nil {
			return persistErr("update request", err)
		}
		return nil
	})
	if err != nil {
		rs.logFailure(log, "edit leave", err)
		return nil, err
	}

	log.Info("edit leave success", zap.Int("days", updated.Days), zap.String("leave_type", string(updated.Type)))
	return &updated, nil
}

func applyEdit(r LeaveRequest, in EditInput) (LeaveRequest, error) {
	if in.Type != nil {
		r.Type = *in.Type
	}
	if in.StartDate != nil {
		r.StartDate = DateOnly(*in.StartDate)
	}
	if in.EndDate != nil {
		r.EndDate = DateOnly(*in.EndDate)
	}
	if in.Reason != nil {
		r.Reason = *in.Reason
	}
	if in.Location != nil {
		r.Location = *in.Location
	}
	if in.IllnessType != nil {
		r.IllnessType = *in.IllnessType
	}
	if !r.Type.Valid() {
		return r, ErrInvalidType
	}
	r.Days = InclusiveDays(r.StartDate, r.EndDate)
	if r.Days < 1 {
		return r, &InvalidRangeError{Start: r.StartDate, End: r.EndDate, Days: r.Days}
	}
	return r, nil
}

// rebalance moves the deduction of old onto updated. All reads and the
// validation happen before the first write.
func (rs *RequestService) rebalance(ctx context.Context, st Store, old LeaveRequest, updated *LeaveRequest) error {
	emp, err := rs.employee(ctx, st, old.EmployeeID)
	if err != nil {
		return err
	}

	var restoredFrom *BalanceRecord
	if old.Deducted() {
		restoredFrom, err = st.GetBalanceByID(ctx, old.BalanceRecordID)
		if err != nil {
			return persistErr("get balance", err)
		}
	}

	target, err := rs.balances.getOrCreate(ctx, st, emp.ID, emp.HireDate, updated.StartDate.Year())
	if err != nil {
		return err
	}
	base := target
	if restoredFrom != nil && restoredFrom.ID == target.ID {
		target = target.Restore(old.DeductedType, old.DeductedDays)
	}

	all, err := st.ListRequestsByEmployee(ctx, emp.ID)
	if err != nil {
		return persistErr("list requests", err)
	}
	others := make([]LeaveRequest, 0, len(all))
	for _, r := range all {
		if r.ID != old.ID {
			others = append(others, r)
		}
	}
	view := Reconcile(target, others)
	if err := ValidateRequest(updated.Type, updated.Days, view); err != nil {
		return err
	}

	now := updated.UpdatedAt
	if restoredFrom != nil && restoredFrom.ID != target.ID {
		if _, err := rs.writeBalance(ctx, st, *restoredFrom, restoredFrom.Restore(old.DeductedType, old.DeductedDays), now); err != nil {
			return err
		}
	}

	updated.BalanceRecordID, updated.BalanceBefore, updated.BalanceAfter = "", nil, nil
	updated.DeductedType, updated.DeductedDays = "", 0
	if updated.Type.Tracked() {
		before := view.For(updated.Type)
		after := before.Sub(decimal.NewFromInt(int64(updated.Days)))
		updated.BalanceRecordID = target.ID
		updated.BalanceBefore = &before
		updated.BalanceAfter = &after
		updated.DeductedType = updated.Type
		updated.DeductedDays = updated.Days
		target = target.Deduct(updated.Type, updated.Days)
	}
	if !target.Balances.equal(base.Balances) {
		if _, err := rs.writeBalance(ctx, st, base, target, now); err != nil {
			return err
		}
	}

	if err := st.UpdateRequest(ctx, *updated); err != nil {
		return persistErr("update request", err)
	}
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a Pending request and credits back what its creation deducted. Deleting an
// id that no longer exists succeeds without doing anything.
func (rs *RequestService) Delete(ctx context.Context, requestID string) error {
	log := rs.logger.With(zap.String("request_id", requestID))
	log.Debug("delete leave requested")

	current, err := rs.pending(ctx, rs.store, requestID, "delete", true)
	if err != nil {
		return err
	}
	if current == nil {
		log.Debug("delete leave skipped: already gone")
		return nil
	}

	release, err := rs.guard.acquire(current.EmployeeID)
	if err != nil {
		return err
	}
	defer release()

	_, err = rs.atomically(ctx, func(st Store) error {
		req, err := rs.pending(ctx, st, requestID, "delete", true)
		if err != nil || req == nil {
			return err
		}
		if err := st.DeleteRequest(ctx, req.ID); err != nil {
			return persistErr("delete request", err)
		}
		if !req.Deducted() {
			return nil
		}

		rec, err := st.GetBalanceByID(ctx, req.BalanceRecordID)
		if err == nil && rec == nil {
			err = &NotFoundError{Kind: "balance record", ID: req.BalanceRecordID}
		} else if err != nil {
			err = persistErr("get balance", err)
		}
		if err == nil {
			_, err = rs.writeBalance(ctx, st, *rec, rec.Restore(req.DeductedType, req.DeductedDays), rs.clock.Now())
		}
		if err != nil {
			if rs.isTx() && !IsNotFound(err) {
				return err
			}
			rs.discrepancy(log, "restore", *req, err)
		}
		return nil
	})
	if err != nil {
		rs.logFailure(log, "delete leave", err)
		return err
	}

	log.Info("delete leave success")
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// List returns the employee's requests as stored.
func (rs *RequestService) List(ctx context.Context, employeeID string) ([]LeaveRequest, error) {
	if _, err := rs.employee(ctx, rs.store, employeeID); err != nil {
		return nil, err
	}
	requests, err := rs.store.ListRequestsByEmployee(ctx, employeeID)
	if err != nil {
		return nil, persistErr("list requests", err)
	}
	return requests, nil
}

// Get returns a single request.
func (rs *RequestService) Get(ctx context.Context, requestID string) (*LeaveRequest, error) {
	req, err := rs.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, persistErr("get request", err)
	}
	if req == nil {
		return nil, &NotFoundError{Kind: "request", ID: requestID}
	}
	return req, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (rs *RequestService) employee(ctx context.Context, d Directory, id string) (*Employee, error) {
	emp, err := d.EmployeeByID(ctx, id)
	if err != nil {
		return nil, persistErr("lookup employee", err)
	}
	if emp == nil {
		return nil, &NotFoundError{Kind: "employee", ID: id}
	}
	return emp, nil
}

// pending loads a request and checks it is still mutable. With allowMissing
// a missing row yields (nil, nil) instead of a NotFoundError.
func (rs *RequestService) pending(ctx context.Context, st RequestStore, id, op string, allowMissing bool) (*LeaveRequest, error) {
	req, err := st.GetRequest(ctx, id)
	if err != nil {
		return nil, persistErr("get request", err)
	}
	if req == nil {
		if allowMissing {
			return nil, nil
		}
		return nil, &NotFoundError{Kind: "request", ID: id}
	}
	if !req.Status.Mutable() {
		return nil, &InvalidStateError{RequestID: id, Status: req.Status, Op: op}
	}
	return req, nil
}

func (rs *RequestService) isTx() bool {
	_, ok := rs.store.(TxStore)
	return ok
}

// atomically runs fn inside a transaction when the store has one.
func (rs *RequestService) atomically(ctx context.Context, fn func(Store) error) (bool, error) {
	if tx, ok := rs.store.(TxStore); ok {
		return true, tx.WithTx(ctx, fn)
	}
	return false, fn(rs.store)
}

// writeBalance persists next over prev using prev's version.
func (rs *RequestService) writeBalance(ctx context.Context, st BalanceStore, prev, next BalanceRecord, now time.Time) (BalanceRecord, error) {
	next.UpdatedAt = now
	if err := st.UpdateBalance(ctx, next, prev.Version); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return prev, &ConcurrentModificationError{RecordID: prev.ID, ExpectedVersion: prev.Version}
		}
		return prev, persistErr("update balance", err)
	}
	next.Version = prev.Version + 1
	return next, nil
}

func (rs *RequestService) discrepancy(log *zap.Logger, op string, req LeaveRequest, err error) {
	log.Error("balance discrepancy",
		zap.String("op", op),
		zap.String("request_id", req.ID),
		zap.String("balance_record_id", req.BalanceRecordID),
		zap.String("leave_type", string(req.Type)),
		zap.Int("days", req.Days),
		zap.Error(err),
	)
}

func (rs *RequestService) logFailure(log *zap.Logger, what string, err error) {
	if IsClientError(err) || IsNotFound(err) || errors.Is(err, ErrOperationInFlight) {
		log.Warn(what+" rejected", zap.Error(err))
		return
	}
	log.Error(what+" failed", zap.Error(err))
}

func (b Balances) equal(o Balances) bool {
	return b.Vacation.Equal(o.Vacation) && b.Sick.Equal(o.Sick) && b.Emergency.Equal(o.Emergency)
}

// inflight rejects a second mutation for a key while one is running.
type inflight struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func (g *inflight) acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[key]; ok {
		return nil, ErrOperationInFlight
	}
	g.busy[key] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.busy, key)
		g.mu.Unlock()
	}, nil
}
