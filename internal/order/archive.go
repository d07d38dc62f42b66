package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/optik-pos/api/internal/enum"
)

// Archive soft-deletes the order. Collected money that was never refunded
// is refunded in full first; the returned refund is nil when nothing was
// owed back. Archiving twice fails without issuing a second refund.
func (o *Order) Archive(reason, actor, refundID string, now time.Time) (*Refund, error) {
	if o.WorkOrder.IsArchived || o.Invoice.IsArchived {
		return nil, ErrAlreadyArchived
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: archive reason", ErrMissingField)
	}

	var refund *Refund
	if o.Invoice.PaidToDate.IsPositive() && !o.Invoice.IsRefunded {
		// The method was accepted when it was paid; it is not re-checked.
		r, err := o.ApplyRefund(RefundRequest{
			Amount:      o.Invoice.PaidToDate,
			Method:      o.lastPaymentMethod(),
			Reason:      enum.ArchiveRefundReason,
			Notes:       "Archived: " + reason,
			ProcessedBy: actor,
			Automatic:   true,
		}, nil, refundID, now)
		if err != nil {
			return nil, fmt.Errorf("auto refund: %w", err)
		}
		refund = &r
	}

	o.Invoice.IsArchived = true
	o.Invoice.ArchivedAt = timePtr(now)
	o.Invoice.ArchiveReason = reason
	archiveWorkOrder(&o.WorkOrder, reason, now)
	o.recompute()
	return refund, nil
}

// ArchiveWorkOrder archives a work order that has no invoice, as found in
// data created before the pair was enforced.
func ArchiveWorkOrder(wo *WorkOrder, reason string, now time.Time) error {
	if wo.IsArchived {
		return ErrAlreadyArchived
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: archive reason", ErrMissingField)
	}
	archiveWorkOrder(wo, reason, now)
	return nil
}

func archiveWorkOrder(wo *WorkOrder, reason string, now time.Time) {
	wo.IsArchived = true
	wo.ArchivedAt = timePtr(now)
	wo.ArchiveReason = reason
	wo.UpdatedAt = now
}

func (o *Order) lastPaymentMethod() string {
	if n := len(o.Invoice.Payments); n > 0 {
		return o.Invoice.Payments[n-1].Method
	}
	return enum.PaymentMethodCash
}
