package database

import (
	"context"

	"github.com/optik-pos/api/internal/order"
)

const insertPayment = `
INSERT INTO payments (id, invoice_id, batch_id, amount, method, auth_number, received_by, paid_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// AppendPayments inserts ledger entries in order. Run inside the
// transaction that saves the invoice so the batch lands as one unit.
func (q *Queries) AppendPayments(ctx context.Context, payments []order.Payment) error {
	for _, p := range payments {
		if _, err := q.db.Exec(ctx, insertPayment,
			p.ID, p.InvoiceID, p.BatchID, p.Amount, p.Method, p.AuthNumber, p.ReceivedBy, p.PaidAt,
		); err != nil {
			return err
		}
	}
	return nil
}

const listPayments = `
SELECT id, invoice_id, batch_id, amount, method, auth_number, received_by, paid_at
FROM payments WHERE invoice_id = $1 ORDER BY seq
`

// ListPayments returns an invoice's ledger in insertion order.
func (q *Queries) ListPayments(ctx context.Context, invoiceID string) ([]order.Payment, error) {
	rows, err := q.db.Query(ctx, listPayments, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []order.Payment{}
	for rows.Next() {
		var p order.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.BatchID, &p.Amount, &p.Method, &p.AuthNumber, &p.ReceivedBy, &p.PaidAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertRefund = `
INSERT INTO refunds (id, invoice_id, amount, method, reason, staff_notes, automatic, processed_by, refunded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (q *Queries) InsertRefund(ctx context.Context, r order.Refund) error {
	_, err := q.db.Exec(ctx, insertRefund,
		r.ID, r.InvoiceID, r.Amount, r.Method, r.Reason, r.StaffNotes, r.Automatic, r.ProcessedBy, r.RefundedAt,
	)
	return err
}

const listRefunds = `
SELECT id, invoice_id, amount, method, reason, staff_notes, automatic, processed_by, refunded_at
FROM refunds WHERE invoice_id = $1 ORDER BY seq
`

func (q *Queries) ListRefunds(ctx context.Context, invoiceID string) ([]order.Refund, error) {
	rows, err := q.db.Query(ctx, listRefunds, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []order.Refund{}
	for rows.Next() {
		var r order.Refund
		if err := rows.Scan(&r.ID, &r.InvoiceID, &r.Amount, &r.Method, &r.Reason, &r.StaffNotes, &r.Automatic, &r.ProcessedBy, &r.RefundedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertEdit = `
INSERT INTO invoice_edits (
    id, invoice_id, source, edited_by, old_line_item_total, new_line_item_total,
    old_discount, new_discount, note, edited_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func (q *Queries) AppendEdit(ctx context.Context, e order.EditRecord) error {
	_, err := q.db.Exec(ctx, insertEdit,
		e.ID, e.InvoiceID, e.Source, e.EditedBy, e.OldLineItemTotal, e.NewLineItemTotal,
		e.OldDiscount, e.NewDiscount, e.Note, e.EditedAt,
	)
	return err
}

const listEdits = `
SELECT id, invoice_id, source, edited_by, old_line_item_total, new_line_item_total,
       old_discount, new_discount, note, edited_at
FROM invoice_edits WHERE invoice_id = $1 ORDER BY seq
`

func (q *Queries) ListEdits(ctx context.Context, invoiceID string) ([]order.EditRecord, error) {
	rows, err := q.db.Query(ctx, listEdits, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []order.EditRecord{}
	for rows.Next() {
		var e order.EditRecord
		if err := rows.Scan(
			&e.ID, &e.InvoiceID, &e.Source, &e.EditedBy, &e.OldLineItemTotal, &e.NewLineItemTotal,
			&e.OldDiscount, &e.NewDiscount, &e.Note, &e.EditedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
