package leave

import "github.com/shopspring/decimal"

// Validate decides whether a request of requestedDays against current may be
// admitted. It returns nil to admit.
//
// A span of fewer than one day is an *InvalidRangeError, checked before the
// balance. Otherwise the request is admitted only if at least MinimumResidual
// remains afterwards, for every tracked type.
func Validate(t LeaveType, requestedDays int, current decimal.Decimal) error {
	if requestedDays < 1 {
		return &InvalidRangeError{Days: requestedDays}
	}
	requested := decimal.NewFromInt(int64(requestedDays))
	if current.Sub(requested).LessThan(MinimumResidual) {
		return &InsufficientBalanceError{
			Type:            t,
			Current:         current,
			Requested:       requestedDays,
			MinimumResidual: MinimumResidual,
			Required:        requested.Add(MinimumResidual),
		}
	}
	return nil
}

// ValidateRequest checks a span against the reconciled balances. Untracked
// types only need a valid range.
func ValidateRequest(t LeaveType, days int, view Balances) error {
	if !t.Valid() {
		return ErrInvalidType
	}
	if !t.Tracked() {
		if days < 1 {
			return &InvalidRangeError{Days: days}
		}
		return nil
	}
	return Validate(t, days, view.For(t))
}
