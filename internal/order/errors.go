package order

import "errors"

// Error kinds returned by order operations. Callers match them with
// errors.Is; the wrapped text carries the offending field or amount.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrOverpaymentRejected     = errors.New("payment exceeds remaining balance")
	ErrExceedsPaidAmount       = errors.New("refund exceeds paid amount")
	ErrMissingField            = errors.New("missing required field")
	ErrNotFound                = errors.New("order not found")
	ErrMissingWorkOrder        = errors.New("invoice has no linked work order")
	ErrAlreadyPickedUp         = errors.New("order already picked up")
	ErrAlreadyArchived         = errors.New("order already archived")
	ErrPersistenceFailure      = errors.New("persistence failure")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrInvalidStatusTransition = errors.New("invalid work order status transition")
	ErrInvariantViolation      = errors.New("order invariant violated")
)

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrMissingWorkOrder) ||
		errors.Is(err, ErrInvalidPaymentMethod)
}

// IsConflict reports whether err rejects an operation because of the
// order's current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverpaymentRejected) ||
		errors.Is(err, ErrExceedsPaidAmount) ||
		errors.Is(err, ErrAlreadyPickedUp) ||
		errors.Is(err, ErrAlreadyArchived) ||
		errors.Is(err, ErrInvalidStatusTransition)
}
