package leave_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firestation/leave-engine/leave"
	"github.com/firestation/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var today = date(2026, time.October, 15)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// firefighter was hired long enough ago to hold full caps:
// vacation 15, sick 15, emergency 5.
var firefighter = leave.Employee{
	ID:       "emp-1",
	Username: "jdelacruz",
	Name:     "Juan Dela Cruz",
	HireDate: date(2024, time.January, 10),
}

func newTxFixture(t *testing.T, opts ...leave.Option) (*leave.RequestService, *memory.TxMemory) {
	t.Helper()
	store := memory.NewTxMemory()
	require.NoError(t, store.SaveEmployee(t.Context(), firefighter))
	opts = append([]leave.Option{leave.WithClock(leave.FixedClock(today))}, opts...)
	return leave.NewRequestService(store, opts...), store
}

func storedBalance(t *testing.T, store leave.BalanceStore, year int) leave.BalanceRecord {
	t.Helper()
	rec, err := store.GetBalance(t.Context(), firefighter.ID, year)
	require.NoError(t, err)
	require.NotNil(t, rec, "balance record should exist")
	return *rec
}

func vacation(start, end time.Time) leave.CreateInput {
	return leave.CreateInput{
		EmployeeID: firefighter.ID,
		Type:       leave.TypeVacation,
		StartDate:  start,
		EndDate:    end,
		Reason:     "family trip",
		Location:   "Baguio",
	}
}
