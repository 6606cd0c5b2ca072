/*
entitlement.go - Leave accrual from tenure

PURPOSE:
  Computes how much leave an employee has earned as of a target date.
  Credit accrues at 1.25 days per full month employed, pro-rated for a
  partial first month, capped at one 12-month cycle (15 days).

FORMULA:
  hire after target          -> 0
  hire in the target month   -> round(daysWorked / daysInMonth * 1.25, 3)
                                daysWorked = daysInMonth - (hireDay - 1)
  otherwise                  -> round(clamp(months, 0, 12) * 1.25, 3)
                                months = (ty - hy) * 12 + (tm - hm)

EXAMPLE:
  Hired on the 16th of a 30-day month, target in the same month:
  daysWorked = 15, entitlement = 15/30 * 1.25 = 0.625

SEE ALSO:
  - balance.go: seeds new balance records from the capped entitlement
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	// MonthlyAccrual is the credit earned per full month employed.
	MonthlyAccrual = decimal.RequireFromString("1.25")

	// MinimumResidual is the balance a self-service request must leave behind.
	MinimumResidual = MonthlyAccrual
)

const (
	maxAccrualMonths  = 12
	entitlementPlaces = 3
)

// ComputeEntitlement returns the leave credit accrued between hire and target.
// It never returns a negative value.
func ComputeEntitlement(hire, target time.Time) decimal.Decimal {
	hire, target = DateOnly(hire), DateOnly(target)
	if hire.After(target) {
		return decimal.Zero
	}

	if hire.Year() == target.Year() && hire.Month() == target.Month() {
		daysInMonth := DaysInMonth(hire.Year(), hire.Month())
		daysWorked := daysInMonth - (hire.Day() - 1)
		return decimal.NewFromInt(int64(daysWorked)).
			Mul(MonthlyAccrual).
			Div(decimal.NewFromInt(int64(daysInMonth))).
			Round(entitlementPlaces)
	}

	months := (target.Year()-hire.Year())*12 + int(target.Month()-hire.Month())
	months = max(0, min(months, maxAccrualMonths))
	return decimal.NewFromInt(int64(months)).Mul(MonthlyAccrual).Round(entitlementPlaces)
}

// CappedEntitlement seeds the three tracked balances from the entitlement
// as of now, capped at each type's maximum.
func CappedEntitlement(hire, now time.Time) Balances {
	e := ComputeEntitlement(hire, now)
	return Balances{
		Vacation:  decimal.Min(e, MaxVacation),
		Sick:      decimal.Min(e, MaxSick),
		Emergency: decimal.Min(e, MaxEmergency),
	}
}
