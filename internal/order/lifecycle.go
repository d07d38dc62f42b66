package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/enum"
	"github.com/optik-pos/api/internal/money"
)

// Draft is an order collected at the counter but not yet saved.
type Draft struct {
	ShopID    uuid.UUID
	PatientID string
	Items     PricedItems
	Discount  money.Amount
	Details   json.RawMessage
	CreatedBy string
}

// Identity carries the identifiers assigned when a draft is saved.
type Identity struct {
	InvoiceID     string
	InvoiceNumber string
	WorkOrderID   string
}

// Save turns a draft into a SAVED invoice and materializes its work order.
func Save(d Draft, ids Identity, now time.Time) (*Order, error) {
	if ids.InvoiceID == "" {
		return nil, fmt.Errorf("%w: invoice_id", ErrMissingField)
	}
	if ids.WorkOrderID == "" {
		return nil, ErrMissingWorkOrder
	}
	if err := d.Items.validate(); err != nil {
		return nil, err
	}
	if d.Items.IsEmpty() {
		return nil, fmt.Errorf("%w: at least one priced line item", ErrMissingField)
	}
	if err := validateDiscount(d.Discount, d.Items.Total()); err != nil {
		return nil, err
	}

	o := &Order{
		Invoice: Invoice{
			ID:           ids.InvoiceID,
			Number:       ids.InvoiceNumber,
			ShopID:       d.ShopID,
			WorkOrderID:  ids.WorkOrderID,
			PatientID:    d.PatientID,
			Discount:     d.Discount,
			CreatedBy:    d.CreatedBy,
			CreatedAt:    now,
			LastEditedAt: now,
		},
		WorkOrder: WorkOrder{
			ID:        ids.WorkOrderID,
			InvoiceID: ids.InvoiceID,
			ShopID:    d.ShopID,
			PatientID: d.PatientID,
			Status:    enum.WorkOrderStatusPending,
			Details:   append(json.RawMessage(nil), d.Details...),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	o.setItems(d.Items)
	o.recompute()
	return o, nil
}

// MarkPickedUp records that the customer collected the order. Money may
// still be owed.
func (o *Order) MarkPickedUp(now time.Time) error {
	if o.Invoice.IsArchived {
		return ErrAlreadyArchived
	}
	if o.Invoice.IsPickedUp {
		return ErrAlreadyPickedUp
	}
	o.Invoice.IsPickedUp = true
	o.Invoice.PickedUpAt = timePtr(now)
	o.recompute()
	return nil
}

// PriceChange is an edit of priced fields. Nil fields are left unchanged.
type PriceChange struct {
	Items    *PricedItems
	Discount *money.Amount
	Source   string
	EditedBy string
	Note     string
}

// Reprice applies a price edit from either side of the pair. Payments are
// untouched; only total and remaining move.
func (o *Order) Reprice(c PriceChange, editID string, now time.Time) (EditRecord, error) {
	if o.Invoice.IsArchived {
		return EditRecord{}, ErrAlreadyArchived
	}
	if c.Items == nil && c.Discount == nil {
		return EditRecord{}, fmt.Errorf("%w: items or discount", ErrMissingField)
	}

	items := o.Invoice.Items
	if c.Items != nil {
		if err := c.Items.validate(); err != nil {
			return EditRecord{}, err
		}
		if c.Items.IsEmpty() {
			return EditRecord{}, fmt.Errorf("%w: at least one priced line item", ErrMissingField)
		}
		items = *c.Items
	}
	discount := o.Invoice.Discount
	if c.Discount != nil {
		discount = *c.Discount
	}
	if err := validateDiscount(discount, items.Total()); err != nil {
		return EditRecord{}, err
	}

	source := c.Source
	if source == "" {
		source = enum.EditSourceInvoice
	}
	rec := EditRecord{
		ID:               editID,
		InvoiceID:        o.Invoice.ID,
		Source:           source,
		EditedBy:         c.EditedBy,
		OldLineItemTotal: o.Invoice.LineItemTotal,
		NewLineItemTotal: items.Total(),
		OldDiscount:      o.Invoice.Discount,
		NewDiscount:      discount,
		Note:             c.Note,
		EditedAt:         now,
	}

	o.setItems(items)
	o.Invoice.Discount = discount
	o.Invoice.EditHistory = append(o.Invoice.EditHistory, rec)
	o.Invoice.LastEditedAt = now
	o.WorkOrder.UpdatedAt = now
	o.recompute()
	return rec, nil
}

func validateDiscount(discount, lineItemTotal money.Amount) error {
	if discount.IsNegative() {
		return fmt.Errorf("%w: discount %s is negative", ErrInvalidAmount, discount)
	}
	if discount.ExceedsMax() {
		return fmt.Errorf("%w: discount %s exceeds %s", ErrInvalidAmount, discount, money.Max)
	}
	if discount.GreaterThan(lineItemTotal) {
		return fmt.Errorf("%w: discount %s exceeds line item total %s", ErrInvalidAmount, discount, lineItemTotal)
	}
	return nil
}

// recompute is the single place derived invoice fields are written.
func (o *Order) recompute() {
	inv := &o.Invoice
	inv.LineItemTotal = inv.Items.Total()
	inv.Total = inv.LineItemTotal.Sub(inv.Discount)
	inv.PaidToDate = TotalPaid(inv.Payments)
	inv.Remaining = inv.Total.Sub(inv.PaidToDate).ClampZero()
	inv.IsPaid = inv.Remaining.IsZero()

	inv.IsRefunded = len(o.Refunds) > 0
	inv.RefundAmount = TotalRefunded(o.Refunds)
	if inv.IsRefunded {
		last := o.Refunds[len(o.Refunds)-1]
		inv.RefundedAt = timePtr(last.RefundedAt)
		inv.RefundMethod = last.Method
		inv.RefundReason = last.Reason
	} else {
		inv.RefundedAt = nil
		inv.RefundMethod = ""
		inv.RefundReason = ""
	}

	inv.Status = deriveStatus(inv)
}

// deriveStatus maps the invoice's facts onto the lifecycle. Archived and
// refunded can both hold; archived wins for display.
func deriveStatus(inv *Invoice) string {
	switch {
	case inv.ID == "":
		return enum.InvoiceStatusDraft
	case inv.IsArchived:
		return enum.InvoiceStatusArchived
	case inv.IsRefunded:
		return enum.InvoiceStatusRefunded
	case inv.IsPickedUp:
		return enum.InvoiceStatusPickedUp
	case inv.IsPaid:
		return enum.InvoiceStatusPaid
	case inv.PaidToDate.IsPositive():
		return enum.InvoiceStatusPartiallyPaid
	default:
		return enum.InvoiceStatusSaved
	}
}
