package leave_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/firestation/leave-engine/leave"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{
			"insufficient balance",
			leave.Validate(leave.TypeVacation, 1, dec("2")),
			"Insufficient Vacation leave balance. You have 2.00 day(s) and requested 1. " +
				"At least 1.25 day(s) must remain, so you need a balance of 2.25 day(s).",
		},
		{"not found", &leave.NotFoundError{Kind: "employee", ID: "x"}, "Record not found. Please contact the administrator."},
		{"in flight", leave.ErrOperationInFlight, "Your previous submission is still being processed."},
		{"raw failure", errors.New("disk I/O error"), "Something went wrong while saving. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, leave.UserMessage(tt.err))
		})
	}
}

func TestUserMessage_NeverLeaksStoreErrors(t *testing.T) {
	err := &leave.PersistenceError{Op: "insert request", Err: errors.New("UNIQUE constraint failed: leave_requests.id")}
	assert.NotContains(t, leave.UserMessage(err), "UNIQUE")
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", &leave.InvalidStateError{RequestID: "r1", Status: leave.StatusApproved, Op: "delete"})
	assert.True(t, leave.IsClientError(wrapped))
	assert.False(t, leave.IsRetryable(wrapped))

	cause := errors.New("database is locked")
	pe := &leave.PersistenceError{Op: "update balance", Err: cause}
	assert.ErrorIs(t, pe, leave.ErrPersistence)
	assert.ErrorIs(t, pe, cause)
	assert.True(t, leave.IsRetryable(pe))
	assert.False(t, leave.IsClientError(pe))
}
