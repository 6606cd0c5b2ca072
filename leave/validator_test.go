package leave_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firestation/leave-engine/leave"
)

func TestValidate_MinimumResidual(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		days    int
		admit   bool
	}{
		{"residual 1.00 rejected", "2.00", 1, false},
		{"residual 2.00 admitted", "3.00", 1, true},
		{"residual exactly 1.25 admitted", "4.25", 3, true},
		{"residual 1.24 rejected", "4.24", 3, false},
		{"empty balance rejected", "0", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := leave.Validate(leave.TypeVacation, tt.days, dec(tt.balance))
			if tt.admit {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
			}
		})
	}
}

func TestValidate_RejectionCarriesNumbers(t *testing.T) {
	err := leave.Validate(leave.TypeSick, 1, dec("2"))

	var ib *leave.InsufficientBalanceError
	require.True(t, errors.As(err, &ib))
	assert.Equal(t, leave.TypeSick, ib.Type)
	assertDecimal(t, "2", ib.Current)
	assert.Equal(t, 1, ib.Requested)
	assertDecimal(t, "1.25", ib.MinimumResidual)
	assertDecimal(t, "2.25", ib.Required)
	assert.Contains(t, leave.UserMessage(err), "2.25")
}

func TestValidate_RangeCheckedBeforeBalance(t *testing.T) {
	for _, days := range []int{0, -2} {
		err := leave.Validate(leave.TypeVacation, days, dec("0"))
		assert.ErrorIs(t, err, leave.ErrInvalidRange)
		assert.NotErrorIs(t, err, leave.ErrInsufficientBalance)
	}
}

func TestValidateRequest_UntrackedTypesSkipBalanceRule(t *testing.T) {
	empty := leave.Balances{}
	assert.NoError(t, leave.ValidateRequest(leave.TypeMaternity, 105, empty))
	assert.NoError(t, leave.ValidateRequest(leave.TypePaternity, 7, empty))
	assert.ErrorIs(t, leave.ValidateRequest(leave.TypePaternity, 0, empty), leave.ErrInvalidRange)
	assert.ErrorIs(t, leave.ValidateRequest("Study", 1, empty), leave.ErrInvalidType)
	assert.ErrorIs(t, leave.ValidateRequest(leave.TypeEmergency, 1, empty), leave.ErrInsufficientBalance)
}
