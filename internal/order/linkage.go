package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/optik-pos/api/internal/enum"
)

// setItems writes priced items to both sides of the pair so the invoice
// and work order never disagree on what was ordered.
func (o *Order) setItems(items PricedItems) {
	o.Invoice.Items = items.clone()
	o.WorkOrder.Items = items.clone()
}

// allowedTransitions defines valid work order status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[string][]string{
	enum.WorkOrderStatusPending:    {enum.WorkOrderStatusInProgress, enum.WorkOrderStatusComplete},
	enum.WorkOrderStatusInProgress: {enum.WorkOrderStatusPending, enum.WorkOrderStatusComplete},
	enum.WorkOrderStatusComplete:   {},
}

// SetWorkOrderStatus moves the fulfilment status. It is independent of the
// invoice's payment state.
func (o *Order) SetWorkOrderStatus(next string, now time.Time) error {
	return o.WorkOrder.SetStatus(next, now)
}

// SetStatus applies a fulfilment transition. Work orders without an
// invoice use it directly.
func (wo *WorkOrder) SetStatus(next string, now time.Time) error {
	if wo.IsArchived {
		return ErrAlreadyArchived
	}
	allowed, ok := allowedTransitions[wo.Status]
	if !ok {
		return fmt.Errorf("%w: unknown current status %q", ErrInvalidStatusTransition, wo.Status)
	}
	valid := false
	for _, s := range allowed {
		if s == next {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, wo.Status, next)
	}

	wo.Status = next
	wo.UpdatedAt = now
	if next == enum.WorkOrderStatusComplete {
		wo.IsComplete = true
		wo.CompletedAt = timePtr(now)
	}
	return nil
}

// SetDetails replaces the opaque descriptive data (frame brand, lens type,
// prescription). It carries no price, so it leaves no edit history.
func (wo *WorkOrder) SetDetails(details json.RawMessage, now time.Time) error {
	if wo.IsArchived {
		return ErrAlreadyArchived
	}
	wo.Details = append(json.RawMessage(nil), details...)
	wo.UpdatedAt = now
	return nil
}

func (o *Order) checkLinkage() error {
	inv, wo := &o.Invoice, &o.WorkOrder
	if inv.WorkOrderID == "" || wo.ID == "" {
		return ErrMissingWorkOrder
	}
	if inv.WorkOrderID != wo.ID || wo.InvoiceID != inv.ID {
		return fmt.Errorf("%w: invoice %s and work order %s are not linked to each other",
			ErrInvariantViolation, inv.ID, wo.ID)
	}
	if !inv.Items.equal(wo.Items) {
		return fmt.Errorf("%w: work order %s items differ from invoice", ErrInvariantViolation, wo.ID)
	}
	if inv.IsArchived != wo.IsArchived || inv.ArchiveReason != wo.ArchiveReason {
		return fmt.Errorf("%w: archive state differs between invoice and work order", ErrInvariantViolation)
	}
	return nil
}
