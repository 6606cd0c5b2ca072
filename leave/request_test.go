package leave_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firestation/leave-engine/leave"
	"github.com/firestation/leave-engine/store/memory"
)

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_DeductsStoredBalanceAndSnapshots(t *testing.T) {
	svc, store := newTxFixture(t, leave.WithIDGenerator(sequentialIDs("id")))
	ctx := t.Context()

	// WHEN: a three-day vacation is filed
	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	// THEN: the request is pending with its snapshot
	assert.Equal(t, 3, res.Request.Days)
	assert.Equal(t, leave.StatusPending, res.Request.Status)
	assert.True(t, res.BalanceSynced)
	require.NotNil(t, res.Request.BalanceBefore)
	require.NotNil(t, res.Request.BalanceAfter)
	assertDecimal(t, "15", *res.Request.BalanceBefore)
	assertDecimal(t, "12", *res.Request.BalanceAfter)
	assert.Equal(t, res.Balance.ID, res.Request.BalanceRecordID)
	assert.Equal(t, leave.TypeVacation, res.Request.DeductedType)
	assert.Equal(t, 3, res.Request.DeductedDays)

	// AND: the stored record lost exactly three vacation days
	rec := storedBalance(t, store, 2026)
	assertDecimal(t, "12", rec.Vacation)
	assertDecimal(t, "15", rec.Sick)
	assertDecimal(t, "5", rec.Emergency)
	assert.Equal(t, 2, rec.Version)

	stored, err := store.GetRequest(ctx, res.Request.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Baguio", stored.Location)
}

func TestCreate_RejectsWhenResidualTooSmall(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	// GIVEN: emergency balance of 5, so four days would leave 1.00
	in := leave.CreateInput{
		EmployeeID: firefighter.ID,
		Type:       leave.TypeEmergency,
		StartDate:  date(2026, time.October, 20),
		EndDate:    date(2026, time.October, 23),
	}
	_, err := svc.Create(ctx, in)

	var ib *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assertDecimal(t, "5", ib.Current)
	assertDecimal(t, "5.25", ib.Required)

	// THEN: nothing was written
	requests, err := store.ListRequestsByEmployee(ctx, firefighter.ID)
	require.NoError(t, err)
	assert.Empty(t, requests)

	// AND: three days still fit
	in.EndDate = date(2026, time.October, 22)
	_, err = svc.Create(ctx, in)
	require.NoError(t, err)
	assertDecimal(t, "2", storedBalance(t, store, 2026).Emergency)
}

func TestCreate_InvalidRangeCheckedFirst(t *testing.T) {
	svc, store := newTxFixture(t)

	_, err := svc.Create(t.Context(), vacation(date(2026, time.November, 5), date(2026, time.November, 4)))

	var ir *leave.InvalidRangeError
	require.ErrorAs(t, err, &ir)
	assert.Equal(t, 0, ir.Days)
	assert.True(t, leave.IsClientError(err))

	// No balance record gets created for a malformed request.
	rec, err := store.GetBalance(t.Context(), firefighter.ID, 2026)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCreate_UnknownEmployee(t *testing.T) {
	svc, _ := newTxFixture(t)

	in := vacation(date(2026, time.November, 2), date(2026, time.November, 2))
	in.EmployeeID = "ghost"
	_, err := svc.Create(t.Context(), in)

	assert.True(t, leave.IsNotFound(err))
	assert.Equal(t, "Record not found. Please contact the administrator.", leave.UserMessage(err))
}

func TestCreate_InvalidType(t *testing.T) {
	svc, _ := newTxFixture(t)

	in := vacation(date(2026, time.November, 2), date(2026, time.November, 2))
	in.Type = "Study"
	_, err := svc.Create(t.Context(), in)

	assert.ErrorIs(t, err, leave.ErrInvalidType)
}

func TestCreate_UntrackedTypeLeavesBalanceAlone(t *testing.T) {
	svc, store := newTxFixture(t)

	res, err := svc.Create(t.Context(), leave.CreateInput{
		EmployeeID: firefighter.ID,
		Type:       leave.TypePaternity,
		StartDate:  date(2026, time.December, 1),
		EndDate:    date(2026, time.December, 7),
	})
	require.NoError(t, err)

	assert.Equal(t, 7, res.Request.Days)
	assert.Nil(t, res.Request.BalanceBefore)
	assert.Nil(t, res.Request.BalanceAfter)
	assert.Empty(t, res.Request.BalanceRecordID)

	rec := storedBalance(t, store, 2026)
	assertDecimal(t, "15", rec.Vacation)
	assert.Equal(t, 1, rec.Version)
}

func TestCreate_UsesRecordOfStartYear(t *testing.T) {
	svc, store := newTxFixture(t)

	_, err := svc.Create(t.Context(), vacation(date(2027, time.January, 4), date(2027, time.January, 5)))
	require.NoError(t, err)

	assertDecimal(t, "13", storedBalance(t, store, 2027).Vacation)
	rec, err := store.GetBalance(t.Context(), firefighter.ID, 2026)
	require.NoError(t, err)
	assert.Nil(t, rec, "the current year is untouched")
}

func TestCreate_ReconciledViewCountsPendingRequests(t *testing.T) {
	svc, _ := newTxFixture(t)
	ctx := t.Context()

	// GIVEN: a pending 3-day emergency leave (stored 5 -> 2, reconciled 2 - 3 -> 0)
	_, err := svc.Create(ctx, leave.CreateInput{
		EmployeeID: firefighter.ID,
		Type:       leave.TypeEmergency,
		StartDate:  date(2026, time.October, 20),
		EndDate:    date(2026, time.October, 22),
	})
	require.NoError(t, err)

	// WHEN: another single emergency day is filed
	_, err = svc.Create(ctx, leave.CreateInput{
		EmployeeID: firefighter.ID,
		Type:       leave.TypeEmergency,
		StartDate:  date(2026, time.November, 9),
		EndDate:    date(2026, time.November, 9),
	})

	// THEN: it is judged against the reconciled zero
	var ib *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.True(t, ib.Current.IsZero())
}

// =============================================================================
// WRITE FAILURES
// =============================================================================

func TestCreate_BalanceWriteFailureWithoutTxIsReported(t *testing.T) {
	// GIVEN: a store without transactions whose balance writes fail
	store := memory.NewMemory()
	require.NoError(t, store.SaveEmployee(t.Context(), firefighter))
	svc := leave.NewRequestService(store, leave.WithClock(leave.FixedClock(today)))
	ctx := t.Context()

	_, err := svc.Balances().GetOrCreateBalance(ctx, firefighter.ID, firefighter.HireDate, 2026)
	require.NoError(t, err)
	store.FailOn(memory.OpUpdateBalance, errors.New("disk full"))

	// WHEN
	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))

	// THEN: the request is kept and the discrepancy surfaced
	require.NoError(t, err)
	assert.False(t, res.BalanceSynced)
	got, err := store.GetRequest(ctx, res.Request.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Deducted())
	assertDecimal(t, "15", storedBalance(t, store, 2026).Vacation)
}

func TestCreate_BalanceWriteFailureInTxRollsBack(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()
	store.FailOn(memory.OpUpdateBalance, errors.New("disk full"))

	_, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))

	assert.ErrorIs(t, err, leave.ErrPersistence)
	assert.True(t, leave.IsRetryable(err))
	assert.Equal(t, "Something went wrong while saving. Please try again.", leave.UserMessage(err))

	requests, lerr := store.ListRequestsByEmployee(ctx, firefighter.ID)
	require.NoError(t, lerr)
	assert.Empty(t, requests)
}

func TestCreate_VersionConflictSurfacesAsConcurrentModification(t *testing.T) {
	svc, store := newTxFixture(t)
	store.FailOn(memory.OpUpdateBalance, leave.ErrConcurrentModification)

	_, err := svc.Create(t.Context(), vacation(date(2026, time.November, 2), date(2026, time.November, 2)))

	var cm *leave.ConcurrentModificationError
	require.ErrorAs(t, err, &cm)
	assert.Equal(t, 1, cm.ExpectedVersion)
	assert.True(t, leave.IsRetryable(err))
}

// blockingStore parks the first employee lookup until released.
type blockingStore struct {
	*memory.TxMemory
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) EmployeeByID(ctx context.Context, id string) (*leave.Employee, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.TxMemory.EmployeeByID(ctx, id)
}

func TestCreate_SecondConcurrentCallIsRejected(t *testing.T) {
	store := &blockingStore{
		TxMemory: memory.NewTxMemory(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	require.NoError(t, store.SaveEmployee(t.Context(), firefighter))
	svc := leave.NewRequestService(store, leave.WithClock(leave.FixedClock(today)))
	in := vacation(date(2026, time.November, 2), date(2026, time.November, 2))

	// GIVEN: one create is in progress
	done := make(chan error, 1)
	go func() {
		_, err := svc.Create(context.Background(), in)
		done <- err
	}()
	<-store.entered

	// WHEN: a second one arrives for the same employee
	_, err := svc.Create(t.Context(), in)

	// THEN: it is turned away, and the first one completes
	assert.ErrorIs(t, err, leave.ErrOperationInFlight)
	close(store.release)
	require.NoError(t, <-done)
	assertDecimal(t, "14", storedBalance(t, store, 2026).Vacation)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete_RestoresBalance(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, res.Request.ID))

	assertDecimal(t, "15", storedBalance(t, store, 2026).Vacation)
	got, err := store.GetRequest(ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDelete_AfterKeepBalanceEditRestoresOriginalDays(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	// GIVEN: a stored vacation balance of 10
	rec, err := svc.Balances().GetOrCreateBalance(ctx, firefighter.ID, firefighter.HireDate, 2026)
	require.NoError(t, err)
	lowered := rec
	lowered.Vacation = dec("10")
	require.NoError(t, store.UpdateBalance(ctx, lowered, rec.Version))

	// AND: a one-day request stretched to four days without rebalancing
	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 2)))
	require.NoError(t, err)
	assertDecimal(t, "9", storedBalance(t, store, 2026).Vacation)
	end := date(2026, time.November, 5)
	edited, err := svc.Edit(ctx, leave.EditInput{RequestID: res.Request.ID, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, 4, edited.Days)
	assert.Equal(t, 1, edited.DeductedDays)

	// WHEN
	require.NoError(t, svc.Delete(ctx, res.Request.ID))

	// THEN: only the one day that was taken comes back
	assertDecimal(t, "10", storedBalance(t, store, 2026).Vacation)
}

func TestDelete_AfterKeepBalanceTypeChangeRestoresOriginalType(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 2)))
	require.NoError(t, err)

	// GIVEN: the vacation day was re-filed as sick leave
	sick := leave.TypeSick
	_, err = svc.Edit(ctx, leave.EditInput{RequestID: res.Request.ID, Type: &sick})
	require.NoError(t, err)

	// WHEN
	require.NoError(t, svc.Delete(ctx, res.Request.ID))

	// THEN: the vacation deduction is returned and sick is untouched
	rec := storedBalance(t, store, 2026)
	assertDecimal(t, "15", rec.Vacation)
	assertDecimal(t, "15", rec.Sick)
}

func TestDelete_IsIdempotent(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, res.Request.ID))

	// WHEN: deleted again
	err = svc.Delete(ctx, res.Request.ID)

	// THEN: no error and no double credit
	require.NoError(t, err)
	rec := storedBalance(t, store, 2026)
	assertDecimal(t, "15", rec.Vacation)
	assert.Equal(t, 3, rec.Version)
}

func TestDelete_RestoreNeverExceedsCap(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	// GIVEN: the record was topped up to the cap after the request was filed
	rec := storedBalance(t, store, 2026)
	topped := rec
	topped.Vacation = leave.MaxVacation
	require.NoError(t, store.UpdateBalance(ctx, topped, rec.Version))

	require.NoError(t, svc.Delete(ctx, res.Request.ID))

	assertDecimal(t, "15", storedBalance(t, store, 2026).Vacation)
}

func TestDelete_MissingBalanceRecordIsLoggedNotFatal(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	// GIVEN: the request points at a record that no longer resolves
	req := res.Request
	req.BalanceRecordID = "vanished"
	require.NoError(t, store.UpdateRequest(ctx, req))

	require.NoError(t, svc.Delete(ctx, req.ID))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestTerminalRequestsAreImmutable(t *testing.T) {
	for _, status := range []leave.Status{leave.StatusApproved, leave.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			svc, store := newTxFixture(t)
			ctx := t.Context()
			review := leave.NewReviewService(store, leave.WithClock(leave.FixedClock(today)))

			res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
			require.NoError(t, err)
			if status == leave.StatusApproved {
				_, err = review.Approve(ctx, res.Request.ID, "chief", "")
			} else {
				_, err = review.Reject(ctx, res.Request.ID, "chief", "short staffed")
			}
			require.NoError(t, err)
			before := storedBalance(t, store, 2026)

			// WHEN
			end := date(2026, time.November, 6)
			_, editErr := svc.Edit(ctx, leave.EditInput{RequestID: res.Request.ID, EndDate: &end})
			deleteErr := svc.Delete(ctx, res.Request.ID)

			// THEN
			var is *leave.InvalidStateError
			require.ErrorAs(t, editErr, &is)
			assert.Equal(t, status, is.Status)
			assert.ErrorIs(t, deleteErr, leave.ErrInvalidState)

			after := storedBalance(t, store, 2026)
			assert.Equal(t, before.Version, after.Version)
			got, err := store.GetRequest(ctx, res.Request.ID)
			require.NoError(t, err)
			assert.Equal(t, status, got.Status)
			assert.Equal(t, 3, got.Days)
		})
	}
}

// =============================================================================
// EDIT
// =============================================================================

func TestEdit_KeepBalanceLeavesDeduction(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	end := date(2026, time.November, 6)
	reason := "extended trip"
	got, err := svc.Edit(ctx, leave.EditInput{RequestID: res.Request.ID, EndDate: &end, Reason: &reason})
	require.NoError(t, err)

	assert.Equal(t, 5, got.Days)
	assert.Equal(t, "extended trip", got.Reason)
	assert.Equal(t, leave.StatusPending, got.Status)
	assertDecimal(t, "12", storedBalance(t, store, 2026).Vacation)
}

func TestEdit_RejectsInvalidRange(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	end := date(2026, time.October, 30)
	_, err = svc.Edit(ctx, leave.EditInput{RequestID: res.Request.ID, EndDate: &end})

	assert.ErrorIs(t, err, leave.ErrInvalidRange)
	got, gerr := store.GetRequest(ctx, res.Request.ID)
	require.NoError(t, gerr)
	assert.Equal(t, 3, got.Days)
}

func TestEdit_UnknownRequest(t *testing.T) {
	svc, _ := newTxFixture(t)

	_, err := svc.Edit(t.Context(), leave.EditInput{RequestID: "missing"})

	assert.True(t, leave.IsNotFound(err))
}

func TestEdit_RebalanceMovesDeduction(t *testing.T) {
	svc, store := newTxFixture(t, leave.WithEditPolicy(leave.EditRebalance))
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	// WHEN: stretched from three to five days
	end := date(2026, time.November, 6)
	got, err := svc.Edit(ctx, leave.EditInput{RequestID: res.Request.ID, EndDate: &end})
	require.NoError(t, err)

	// THEN: the balance follows the new day count
	assertDecimal(t, "10", storedBalance(t, store, 2026).Vacation)
	require.NotNil(t, got.BalanceBefore)
	assertDecimal(t, "15", *got.BalanceBefore)
	assertDecimal(t, "10", *got.BalanceAfter)
}

func TestEdit_RebalanceRejectionChangesNothing(t *testing.T) {
	svc, store := newTxFixture(t, leave.WithEditPolicy(leave.EditRebalance))
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	// 14 days would leave 1.00 of the restored 15
	end := date(2026, time.November, 15)
	_, err = svc.Edit(ctx, leave.EditInput{RequestID: res.Request.ID, EndDate: &end})

	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
	assertDecimal(t, "12", storedBalance(t, store, 2026).Vacation)
	got, gerr := store.GetRequest(ctx, res.Request.ID)
	require.NoError(t, gerr)
	assert.Equal(t, 3, got.Days)
}

func TestEdit_RebalanceAcrossTypes(t *testing.T) {
	svc, store := newTxFixture(t, leave.WithEditPolicy(leave.EditRebalance))
	ctx := t.Context()

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	sick := leave.TypeSick
	illness := "flu"
	_, err = svc.Edit(ctx, leave.EditInput{RequestID: res.Request.ID, Type: &sick, IllnessType: &illness})
	require.NoError(t, err)

	rec := storedBalance(t, store, 2026)
	assertDecimal(t, "15", rec.Vacation)
	assertDecimal(t, "12", rec.Sick)

	// Deleting now returns the sick days, not the original vacation
	require.NoError(t, svc.Delete(ctx, res.Request.ID))
	rec = storedBalance(t, store, 2026)
	assertDecimal(t, "15", rec.Vacation)
	assertDecimal(t, "15", rec.Sick)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestList_ReturnsRequestsInStartOrder(t *testing.T) {
	svc, _ := newTxFixture(t)
	ctx := t.Context()

	_, err := svc.Create(ctx, vacation(date(2026, time.December, 7), date(2026, time.December, 7)))
	require.NoError(t, err)
	_, err = svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 2)))
	require.NoError(t, err)

	list, err := svc.List(ctx, firefighter.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, time.November, list[0].StartDate.Month())

	_, err = svc.List(ctx, "ghost")
	assert.True(t, leave.IsNotFound(err))
}
