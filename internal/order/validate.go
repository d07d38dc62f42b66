package order

import (
	"fmt"

	"github.com/optik-pos/api/internal/money"
)

// Assemble rebuilds an order from its stored facts and recomputes every
// derived field. Stored derived columns are compared by Validate, not
// trusted.
func Assemble(inv Invoice, wo WorkOrder, refunds []Refund) *Order {
	o := &Order{Invoice: inv, WorkOrder: wo, Refunds: refunds}
	o.recompute()
	return o
}

// Validate checks the order's cross-field invariants.
func (o *Order) Validate() error {
	inv := &o.Invoice
	if err := o.checkLinkage(); err != nil {
		return err
	}
	if want := inv.Items.Total(); !inv.LineItemTotal.Equal(want) {
		return fmt.Errorf("%w: line item total %s, items sum to %s", ErrInvariantViolation, inv.LineItemTotal, want)
	}
	if want := inv.LineItemTotal.Sub(inv.Discount); !inv.Total.Equal(want) {
		return fmt.Errorf("%w: total %s, want %s", ErrInvariantViolation, inv.Total, want)
	}
	if err := o.CheckPaid(inv.PaidToDate); err != nil {
		return err
	}
	if want := inv.Total.Sub(inv.PaidToDate).ClampZero(); !inv.Remaining.Equal(want) {
		return fmt.Errorf("%w: remaining %s, want %s", ErrInvariantViolation, inv.Remaining, want)
	}
	if inv.IsPaid != inv.Remaining.IsZero() {
		return fmt.Errorf("%w: is_paid %t with remaining %s", ErrInvariantViolation, inv.IsPaid, inv.Remaining)
	}
	if inv.RefundAmount.GreaterThan(inv.PaidToDate) {
		return fmt.Errorf("%w: refunded %s of %s paid", ErrInvariantViolation, inv.RefundAmount, inv.PaidToDate)
	}
	if inv.IsRefunded != (len(o.Refunds) > 0) {
		return fmt.Errorf("%w: is_refunded %t with %d refunds", ErrInvariantViolation, inv.IsRefunded, len(o.Refunds))
	}
	if inv.IsArchived && inv.PaidToDate.IsPositive() && !inv.IsRefunded {
		return fmt.Errorf("%w: archived with %s collected and not refunded", ErrInvariantViolation, inv.PaidToDate)
	}
	return nil
}

// CheckPaid compares a stored paid-to-date figure with the ledger fold.
func (o *Order) CheckPaid(stored money.Amount) error {
	if fold := TotalPaid(o.Invoice.Payments); !stored.Equal(fold) {
		return fmt.Errorf("%w: paid to date %s, ledger sums to %s", ErrInvariantViolation, stored, fold)
	}
	return nil
}
