package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/optik-pos/api/internal/money"
)

// RefundRequest is the input of a refund.
type RefundRequest struct {
	Amount      money.Amount
	Method      string
	Reason      string
	Notes       string
	ProcessedBy string
	Automatic   bool
}

// Refundable is collected money not yet refunded.
func (o *Order) Refundable() money.Amount {
	return o.Invoice.PaidToDate.Sub(o.Invoice.RefundAmount).ClampZero()
}

// ApplyRefund validates a refund and records it. Checks run in a fixed
// order: amount, bound, then required fields and the method. The ledger,
// remaining and is_paid are left as they were at the time of sale.
func (o *Order) ApplyRefund(req RefundRequest, methods MethodSet, refundID string, now time.Time) (Refund, error) {
	if !req.Amount.IsPositive() {
		return Refund{}, fmt.Errorf("%w: refund amount must be > 0", ErrInvalidAmount)
	}
	if req.Amount.GreaterThan(o.Refundable()) {
		return Refund{}, fmt.Errorf("%w: refunding %s, refundable %s of %s paid",
			ErrExceedsPaidAmount, req.Amount, o.Refundable(), o.Invoice.PaidToDate)
	}
	if strings.TrimSpace(req.Method) == "" {
		return Refund{}, fmt.Errorf("%w: method", ErrMissingField)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return Refund{}, fmt.Errorf("%w: reason", ErrMissingField)
	}
	method, err := methods.normalize(req.Method)
	if err != nil {
		return Refund{}, err
	}

	r := Refund{
		ID:          refundID,
		InvoiceID:   o.Invoice.ID,
		Amount:      req.Amount,
		Method:      method,
		Reason:      req.Reason,
		StaffNotes:  req.Notes,
		Automatic:   req.Automatic,
		ProcessedBy: req.ProcessedBy,
		RefundedAt:  now,
	}
	o.Refunds = append(o.Refunds, r)
	o.recompute()
	return r, nil
}
