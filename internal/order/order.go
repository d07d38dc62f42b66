// Package order holds the invoice and work-order lifecycle rules.
//
// An Order is the pair of an Invoice (money) and its WorkOrder (fulfilment),
// plus the refund records issued against the invoice. Every operation here
// is pure: it validates first, then mutates the receiver, and never performs
// I/O. Derived money fields are written only by recompute.
package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/money"
)

// ContactLensItem is one boxed contact-lens line on an order.
type ContactLensItem struct {
	Description string       `json:"description"`
	Quantity    int32        `json:"quantity"`
	UnitPrice   money.Amount `json:"unit_price"`
}

// PricedItems are the priced components of an order. Each is optional.
type PricedItems struct {
	Frame         money.Amount      `json:"frame"`
	Lens          money.Amount      `json:"lens"`
	Coating       money.Amount      `json:"coating"`
	ContactLenses []ContactLensItem `json:"contact_lenses"`
	Service       money.Amount      `json:"service"`
}

// Payment is one ledger entry. Entries recorded by the same operation share
// a BatchID.
type Payment struct {
	ID         string       `json:"id"`
	InvoiceID  string       `json:"invoice_id"`
	BatchID    string       `json:"batch_id"`
	Amount     money.Amount `json:"amount"`
	Method     string       `json:"method"`
	AuthNumber string       `json:"auth_number,omitempty"`
	ReceivedBy string       `json:"received_by"`
	PaidAt     time.Time    `json:"paid_at"`
}

// Refund is an immutable compensating record against collected money.
type Refund struct {
	ID          string       `json:"id"`
	InvoiceID   string       `json:"invoice_id"`
	Amount      money.Amount `json:"amount"`
	Method      string       `json:"method"`
	Reason      string       `json:"reason"`
	StaffNotes  string       `json:"staff_notes,omitempty"`
	Automatic   bool         `json:"automatic"`
	ProcessedBy string       `json:"processed_by"`
	RefundedAt  time.Time    `json:"refunded_at"`
}

// EditRecord is one entry of an invoice's append-only edit history.
type EditRecord struct {
	ID               string       `json:"id"`
	InvoiceID        string       `json:"invoice_id"`
	Source           string       `json:"source"`
	EditedBy         string       `json:"edited_by"`
	OldLineItemTotal money.Amount `json:"old_line_item_total"`
	NewLineItemTotal money.Amount `json:"new_line_item_total"`
	OldDiscount      money.Amount `json:"old_discount"`
	NewDiscount      money.Amount `json:"new_discount"`
	Note             string       `json:"note,omitempty"`
	EditedAt         time.Time    `json:"edited_at"`
}

// Invoice is the financial side of an order.
type Invoice struct {
	ID          string      `json:"id"`
	Number      string      `json:"number"`
	ShopID      uuid.UUID   `json:"shop_id"`
	WorkOrderID string      `json:"work_order_id"`
	PatientID   string      `json:"patient_id"`
	Items       PricedItems `json:"items"`

	Discount      money.Amount `json:"discount"`
	LineItemTotal money.Amount `json:"line_item_total"`
	Total         money.Amount `json:"total"`
	PaidToDate    money.Amount `json:"paid_to_date"`
	Remaining     money.Amount `json:"remaining"`
	IsPaid        bool         `json:"is_paid"`
	Status        string       `json:"status"`

	IsPickedUp bool       `json:"is_picked_up"`
	PickedUpAt *time.Time `json:"picked_up_at"`

	IsRefunded   bool         `json:"is_refunded"`
	RefundAmount money.Amount `json:"refund_amount"`
	RefundedAt   *time.Time   `json:"refunded_at"`
	RefundMethod string       `json:"refund_method,omitempty"`
	RefundReason string       `json:"refund_reason,omitempty"`

	IsArchived    bool       `json:"is_archived"`
	ArchivedAt    *time.Time `json:"archived_at"`
	ArchiveReason string     `json:"archive_reason,omitempty"`

	Payments    []Payment    `json:"payments"`
	EditHistory []EditRecord `json:"edit_history"`

	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	LastEditedAt time.Time `json:"last_edited_at"`
}

// WorkOrder is the fulfilment side of an order.
type WorkOrder struct {
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	ShopID      uuid.UUID       `json:"shop_id"`
	PatientID   string          `json:"patient_id"`
	Status      string          `json:"status"`
	IsComplete  bool            `json:"is_complete"`
	CompletedAt *time.Time      `json:"completed_at"`
	Items       PricedItems     `json:"items"`
	Details     json.RawMessage `json:"details,omitempty"`

	IsArchived    bool       `json:"is_archived"`
	ArchivedAt    *time.Time `json:"archived_at"`
	ArchiveReason string     `json:"archive_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order is an invoice, its linked work order and its refunds.
type Order struct {
	Invoice   Invoice   `json:"invoice"`
	WorkOrder WorkOrder `json:"work_order"`
	Refunds   []Refund  `json:"refunds"`
}

// Clone returns a deep copy that shares no slices or pointers with o.
func (o *Order) Clone() *Order {
	c := *o
	c.Invoice.Items = o.Invoice.Items.clone()
	c.Invoice.Payments = append([]Payment(nil), o.Invoice.Payments...)
	c.Invoice.EditHistory = append([]EditRecord(nil), o.Invoice.EditHistory...)
	c.Invoice.PickedUpAt = cloneTime(o.Invoice.PickedUpAt)
	c.Invoice.RefundedAt = cloneTime(o.Invoice.RefundedAt)
	c.Invoice.ArchivedAt = cloneTime(o.Invoice.ArchivedAt)
	c.WorkOrder.Items = o.WorkOrder.Items.clone()
	c.WorkOrder.Details = append(json.RawMessage(nil), o.WorkOrder.Details...)
	c.WorkOrder.CompletedAt = cloneTime(o.WorkOrder.CompletedAt)
	c.WorkOrder.ArchivedAt = cloneTime(o.WorkOrder.ArchivedAt)
	c.Refunds = append([]Refund(nil), o.Refunds...)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// Summary is the list view of an order, read from stored columns.
type Summary struct {
	InvoiceID       string       `json:"invoice_id"`
	Number          string       `json:"number"`
	WorkOrderID     string       `json:"work_order_id"`
	PatientID       string       `json:"patient_id"`
	Status          string       `json:"status"`
	WorkOrderStatus string       `json:"work_order_status"`
	Total           money.Amount `json:"total"`
	PaidToDate      money.Amount `json:"paid_to_date"`
	Remaining       money.Amount `json:"remaining"`
	IsPaid          bool         `json:"is_paid"`
	IsPickedUp      bool         `json:"is_picked_up"`
	IsRefunded      bool         `json:"is_refunded"`
	IsArchived      bool         `json:"is_archived"`
	CreatedAt       time.Time    `json:"created_at"`
}
