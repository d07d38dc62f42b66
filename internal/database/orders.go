package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/optik-pos/api/internal/enum"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
)

// InvoiceNumberConstraint is the unique constraint hit when two
// transactions draw the same invoice sequence number.
const InvoiceNumberConstraint = "invoices_shop_id_seq_key"

const nextInvoiceSeq = `
SELECT COALESCE(MAX(seq), 0) + 1 FROM invoices WHERE shop_id = $1
`

// NextInvoiceSeq returns the next per-shop invoice sequence number.
func (q *Queries) NextInvoiceSeq(ctx context.Context, shopID uuid.UUID) (int32, error) {
	var seq int32
	err := q.db.QueryRow(ctx, nextInvoiceSeq, shopID).Scan(&seq)
	return seq, err
}

const insertInvoice = `
INSERT INTO invoices (
    id, shop_id, seq, number, work_order_id, patient_id, items,
    discount, line_item_total, total, deposit, remaining, is_paid, status,
    created_by, created_at, last_edited_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`

const insertWorkOrder = `
INSERT INTO work_orders (
    id, invoice_id, shop_id, patient_id, status, is_complete, completed_at,
    items, details, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// InsertOrder writes a newly saved invoice and its work order.
func (q *Queries) InsertOrder(ctx context.Context, o *order.Order, seq int32) error {
	inv, wo := &o.Invoice, &o.WorkOrder
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	if _, err := q.db.Exec(ctx, insertInvoice,
		inv.ID, inv.ShopID, seq, inv.Number, inv.WorkOrderID, inv.PatientID, items,
		inv.Discount, inv.LineItemTotal, inv.Total, inv.PaidToDate, inv.Remaining, inv.IsPaid, inv.Status,
		inv.CreatedBy, inv.CreatedAt, inv.LastEditedAt,
	); err != nil {
		return err
	}
	woItems, err := json.Marshal(wo.Items)
	if err != nil {
		return fmt.Errorf("marshal work order items: %w", err)
	}
	_, err = q.db.Exec(ctx, insertWorkOrder,
		wo.ID, nullText(wo.InvoiceID), wo.ShopID, wo.PatientID, wo.Status, wo.IsComplete, wo.CompletedAt,
		woItems, nullJSON(wo.Details), wo.CreatedAt, wo.UpdatedAt,
	)
	return err
}

const invoiceColumns = `
    id, shop_id, number, work_order_id, patient_id, items, discount, deposit,
    is_picked_up, picked_up_at, is_archived, archived_at, archive_reason,
    created_by, created_at, last_edited_at
`

const workOrderColumns = `
    id, COALESCE(invoice_id, ''), shop_id, patient_id, status, is_complete, completed_at,
    items, details, is_archived, archived_at, archive_reason, created_at, updated_at
`

// LoadOrder reads the full order aggregate. With forUpdate the invoice and
// work order rows stay locked until the transaction ends, which serializes
// ledger appends on the same invoice. The stored deposit is checked against
// the ledger fold.
func (q *Queries) LoadOrder(ctx context.Context, shopID uuid.UUID, invoiceID string, forUpdate bool) (*order.Order, error) {
	query := `SELECT` + invoiceColumns + `FROM invoices WHERE id = $1 AND shop_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		inv     order.Invoice
		items   []byte
		deposit money.Amount
	)
	err := q.db.QueryRow(ctx, query, invoiceID, shopID).Scan(
		&inv.ID, &inv.ShopID, &inv.Number, &inv.WorkOrderID, &inv.PatientID, &items, &inv.Discount, &deposit,
		&inv.IsPickedUp, &inv.PickedUpAt, &inv.IsArchived, &inv.ArchivedAt, &inv.ArchiveReason,
		&inv.CreatedBy, &inv.CreatedAt, &inv.LastEditedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, fmt.Errorf("invoice %s items: %w", inv.ID, err)
	}

	wo, err := q.LoadWorkOrder(ctx, shopID, inv.WorkOrderID, forUpdate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", inv.ID, order.ErrMissingWorkOrder)
		}
		return nil, fmt.Errorf("load work order: %w", err)
	}
	if inv.Payments, err = q.ListPayments(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if inv.EditHistory, err = q.ListEdits(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	refunds, err := q.ListRefunds(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}

	o := order.Assemble(inv, *wo, refunds)
	if err := o.CheckPaid(deposit); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
	}
	return o, nil
}

// LoadWorkOrder reads one work order.
func (q *Queries) LoadWorkOrder(ctx context.Context, shopID uuid.UUID, workOrderID string, forUpdate bool) (*order.WorkOrder, error) {
	query := `SELECT` + workOrderColumns + `FROM work_orders WHERE id = $1 AND shop_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		wo      order.WorkOrder
		items   []byte
		details []byte
	)
	err := q.db.QueryRow(ctx, query, workOrderID, shopID).Scan(
		&wo.ID, &wo.InvoiceID, &wo.ShopID, &wo.PatientID, &wo.Status, &wo.IsComplete, &wo.CompletedAt,
		&items, &details, &wo.IsArchived, &wo.ArchivedAt, &wo.ArchiveReason, &wo.CreatedAt, &wo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &wo.Items); err != nil {
		return nil, fmt.Errorf("work order %s items: %w", wo.ID, err)
	}
	if len(details) > 0 {
		wo.Details = json.RawMessage(details)
	}
	return &wo, nil
}

const updateInvoice = `
UPDATE invoices SET
    items = $2, discount = $3, line_item_total = $4, total = $5, deposit = $6,
    remaining = $7, is_paid = $8, status = $9,
    is_picked_up = $10, picked_up_at = $11,
    is_refunded = $12, refund_amount = $13, refunded_at = $14, refund_method = $15, refund_reason = $16,
    is_archived = $17, archived_at = $18, archive_reason = $19,
    last_edited_at = $20
WHERE id = $1
`

// SaveOrder writes the invoice's current state and its work order.
// Ledger rows, refunds and edit records are appended separately.
func (q *Queries) SaveOrder(ctx context.Context, o *order.Order) error {
	inv := &o.Invoice
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	tag, err := q.db.Exec(ctx, updateInvoice, inv.ID,
		items, inv.Discount, inv.LineItemTotal, inv.Total, inv.PaidToDate,
		inv.Remaining, inv.IsPaid, inv.Status,
		inv.IsPickedUp, inv.PickedUpAt,
		inv.IsRefunded, inv.RefundAmount, inv.RefundedAt, inv.RefundMethod, inv.RefundReason,
		inv.IsArchived, inv.ArchivedAt, inv.ArchiveReason,
		inv.LastEditedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return q.SaveWorkOrder(ctx, &o.WorkOrder)
}

const updateWorkOrder = `
UPDATE work_orders SET
    status = $2, is_complete = $3, completed_at = $4, items = $5, details = $6,
    is_archived = $7, archived_at = $8, archive_reason = $9, updated_at = $10
WHERE id = $1
`

// SaveWorkOrder writes a work order's current state.
func (q *Queries) SaveWorkOrder(ctx context.Context, wo *order.WorkOrder) error {
	items, err := json.Marshal(wo.Items)
	if err != nil {
		return fmt.Errorf("marshal work order items: %w", err)
	}
	tag, err := q.db.Exec(ctx, updateWorkOrder, wo.ID,
		wo.Status, wo.IsComplete, wo.CompletedAt, items, nullJSON(wo.Details),
		wo.IsArchived, wo.ArchivedAt, wo.ArchiveReason, wo.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const summaryColumns = `
    i.id, i.number, i.work_order_id, i.patient_id, i.status, w.status,
    i.total, i.deposit, i.remaining, i.is_paid, i.is_picked_up, i.is_refunded, i.is_archived,
    i.created_at
`

// ListOrders lists one view of a shop's orders, newest first.
func (q *Queries) ListOrders(ctx context.Context, shopID uuid.UUID, view string, limit, offset int32) ([]order.Summary, error) {
	var filter string
	switch view {
	case enum.OrderViewActive:
		filter = `AND NOT i.is_archived AND NOT i.is_picked_up`
	case enum.OrderViewCompleted:
		filter = `AND NOT i.is_archived AND i.is_picked_up`
	case enum.OrderViewArchived:
		return q.listArchived(ctx, shopID, limit, offset)
	default:
		return nil, fmt.Errorf("unknown order view %q", view)
	}
	query := `SELECT` + summaryColumns + `
FROM invoices i JOIN work_orders w ON w.id = i.work_order_id
WHERE i.shop_id = $1 ` + filter + `
ORDER BY i.created_at DESC, i.seq DESC
LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, query, shopID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// Archived work orders drive this listing so those without an invoice are
// included; their invoice columns read as empty.
const listArchived = `
SELECT
    COALESCE(i.id, ''), COALESCE(i.number, ''), w.id, w.patient_id, COALESCE(i.status, ''), w.status,
    COALESCE(i.total, 0), COALESCE(i.deposit, 0), COALESCE(i.remaining, 0),
    COALESCE(i.is_paid, false), COALESCE(i.is_picked_up, false), COALESCE(i.is_refunded, false),
    w.is_archived, COALESCE(i.created_at, w.created_at)
FROM work_orders w LEFT JOIN invoices i ON i.id = w.invoice_id
WHERE w.shop_id = $1 AND w.is_archived
ORDER BY COALESCE(i.created_at, w.created_at) DESC, i.seq DESC NULLS LAST, w.id
LIMIT $2 OFFSET $3
`

func (q *Queries) listArchived(ctx context.Context, shopID uuid.UUID, limit, offset int32) ([]order.Summary, error) {
	rows, err := q.db.Query(ctx, listArchived, shopID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// ListByPatient lists every order of one patient, archived included.
func (q *Queries) ListByPatient(ctx context.Context, shopID uuid.UUID, patientID string) ([]order.Summary, error) {
	query := `SELECT` + summaryColumns + `
FROM invoices i JOIN work_orders w ON w.id = i.work_order_id
WHERE i.shop_id = $1 AND i.patient_id = $2
ORDER BY i.created_at DESC, i.seq DESC`
	rows, err := q.db.Query(ctx, query, shopID, patientID)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

func scanSummaries(rows pgx.Rows) ([]order.Summary, error) {
	defer rows.Close()
	items := []order.Summary{}
	for rows.Next() {
		var s order.Summary
		if err := rows.Scan(
			&s.InvoiceID, &s.Number, &s.WorkOrderID, &s.PatientID, &s.Status, &s.WorkOrderStatus,
			&s.Total, &s.PaidToDate, &s.Remaining, &s.IsPaid, &s.IsPickedUp, &s.IsRefunded, &s.IsArchived,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func nullText(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
