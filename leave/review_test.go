package leave_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firestation/leave-engine/leave"
)

func TestReview_ApproveKeepsDeduction(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()
	review := leave.NewReviewService(store, leave.WithClock(leave.FixedClock(today)))

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	got, err := review.Approve(ctx, res.Request.ID, "chief", "enjoy")
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, "chief", got.ReviewedBy)
	assert.Equal(t, "enjoy", got.ReviewNote)
	assertDecimal(t, "12", storedBalance(t, store, 2026).Vacation)
}

func TestReview_RejectKeepsCreationDeduction(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()
	review := leave.NewReviewService(store, leave.WithClock(leave.FixedClock(today)))

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 4)))
	require.NoError(t, err)

	_, err = review.Reject(ctx, res.Request.ID, "chief", "short staffed")
	require.NoError(t, err)

	view, err := svc.Balances().BalanceView(ctx, firefighter, 2026)
	require.NoError(t, err)
	// THEN: the three days stay lost; only the second subtraction goes away
	assertDecimal(t, "12", view.Stored.Vacation, "rejection never credits the stored record")
	assertDecimal(t, "12", view.Available.Vacation, "available rises from 9 to 12, not back to 15")
}

func TestReview_OnlyPendingCanBeDecided(t *testing.T) {
	svc, store := newTxFixture(t)
	ctx := t.Context()
	review := leave.NewReviewService(store)

	res, err := svc.Create(ctx, vacation(date(2026, time.November, 2), date(2026, time.November, 2)))
	require.NoError(t, err)
	_, err = review.Approve(ctx, res.Request.ID, "chief", "")
	require.NoError(t, err)

	_, err = review.Reject(ctx, res.Request.ID, "chief", "")
	assert.ErrorIs(t, err, leave.ErrInvalidState)

	_, err = review.Approve(ctx, "missing", "chief", "")
	assert.True(t, leave.IsNotFound(err))
}
