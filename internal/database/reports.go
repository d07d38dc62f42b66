package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/money"
)

// SalesTotalsRow aggregates one set of invoices. Paid is the stored
// paid-to-date column; LedgerPaid folds the payment rows of the same set.
type SalesTotalsRow struct {
	OrderCount  int64
	Gross       money.Amount
	Discounts   money.Amount
	Net         money.Amount
	Outstanding money.Amount
	Paid        money.Amount
	LedgerPaid  money.Amount
}

const salesTotals = `
WITH scope AS (
    SELECT id, line_item_total, discount, total, remaining, deposit
    FROM invoices
    WHERE shop_id = $1 AND created_at >= $2 AND created_at < $3 AND NOT is_archived
)
SELECT
    COUNT(*)::bigint,
    COALESCE(SUM(line_item_total), 0),
    COALESCE(SUM(discount), 0),
    COALESCE(SUM(total), 0),
    COALESCE(SUM(remaining), 0),
    COALESCE(SUM(deposit), 0),
    COALESCE((SELECT SUM(p.amount) FROM payments p JOIN scope s ON s.id = p.invoice_id), 0)
FROM scope
`

// SalesTotals sums non-archived orders created in [from, to).
func (q *Queries) SalesTotals(ctx context.Context, shopID uuid.UUID, from, to time.Time) (SalesTotalsRow, error) {
	var row SalesTotalsRow
	err := q.db.QueryRow(ctx, salesTotals, shopID, from, to).Scan(
		&row.OrderCount, &row.Gross, &row.Discounts, &row.Net, &row.Outstanding,
		&row.Paid, &row.LedgerPaid,
	)
	return row, err
}

type MethodTotalRow struct {
	Method string
	Count  int64
	Amount money.Amount
}

const paymentsByMethod = `
SELECT p.method, COUNT(*)::bigint, COALESCE(SUM(p.amount), 0)
FROM payments p JOIN invoices i ON i.id = p.invoice_id
WHERE i.shop_id = $1 AND p.paid_at >= $2 AND p.paid_at < $3
GROUP BY p.method
ORDER BY p.method
`

// PaymentsByMethod sums ledger entries received in [from, to).
func (q *Queries) PaymentsByMethod(ctx context.Context, shopID uuid.UUID, from, to time.Time) ([]MethodTotalRow, error) {
	return q.methodTotals(ctx, paymentsByMethod, shopID, from, to)
}

const refundsByMethod = `
SELECT r.method, COUNT(*)::bigint, COALESCE(SUM(r.amount), 0)
FROM refunds r JOIN invoices i ON i.id = r.invoice_id
WHERE i.shop_id = $1 AND r.refunded_at >= $2 AND r.refunded_at < $3
GROUP BY r.method
ORDER BY r.method
`

// RefundsByMethod sums refunds issued in [from, to).
func (q *Queries) RefundsByMethod(ctx context.Context, shopID uuid.UUID, from, to time.Time) ([]MethodTotalRow, error) {
	return q.methodTotals(ctx, refundsByMethod, shopID, from, to)
}

func (q *Queries) methodTotals(ctx context.Context, query string, shopID uuid.UUID, from, to time.Time) ([]MethodTotalRow, error) {
	rows, err := q.db.Query(ctx, query, shopID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MethodTotalRow{}
	for rows.Next() {
		var i MethodTotalRow
		if err := rows.Scan(&i.Method, &i.Count, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
