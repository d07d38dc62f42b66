package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/database"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
)

// ErrInvalidRange is returned when a report's start is not before its end.
var ErrInvalidRange = errors.New("start must be before end")

// ReportStore defines the aggregate queries behind reports.
// Satisfied by *database.Queries.
type ReportStore interface {
	SalesTotals(ctx context.Context, shopID uuid.UUID, from, to time.Time) (database.SalesTotalsRow, error)
	PaymentsByMethod(ctx context.Context, shopID uuid.UUID, from, to time.Time) ([]database.MethodTotalRow, error)
	RefundsByMethod(ctx context.Context, shopID uuid.UUID, from, to time.Time) ([]database.MethodTotalRow, error)
}

// NewReportStore creates a ReportStore from a DBTX (pool or tx).
type NewReportStore func(db database.DBTX) ReportStore

// MethodTotal is money moved through one payment method.
type MethodTotal struct {
	Method string       `json:"method"`
	Count  int64        `json:"count"`
	Amount money.Amount `json:"amount"`
}

// SalesSummary covers orders created, payments received and refunds
// issued in [From, To).
type SalesSummary struct {
	From         time.Time     `json:"from"`
	To           time.Time     `json:"to"`
	OrderCount   int64         `json:"order_count"`
	Gross        money.Amount  `json:"gross"`
	Discounts    money.Amount  `json:"discounts"`
	Net          money.Amount  `json:"net"`
	Collected    money.Amount  `json:"collected"`
	Refunded     money.Amount  `json:"refunded"`
	NetCollected money.Amount  `json:"net_collected"`
	Outstanding  money.Amount  `json:"outstanding"`
	Payments     []MethodTotal `json:"payments"`
	Refunds      []MethodTotal `json:"refunds"`
}

// ReportService builds sales reports from one consistent snapshot.
type ReportService struct {
	pool     TxBeginner
	newStore NewReportStore
}

// NewReportService creates a new ReportService.
func NewReportService(pool TxBeginner, newStore NewReportStore) *ReportService {
	return &ReportService{pool: pool, newStore: newStore}
}

// SalesSummary reports one shop's sales and refunds for a period.
func (s *ReportService) SalesSummary(ctx context.Context, shopID uuid.UUID, from, to time.Time) (*SalesSummary, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	totals, err := store.SalesTotals(ctx, shopID, from, to)
	if err != nil {
		return nil, persistenceErr("sales totals", err)
	}
	payments, err := store.PaymentsByMethod(ctx, shopID, from, to)
	if err != nil {
		return nil, persistenceErr("payments by method", err)
	}
	refunds, err := store.RefundsByMethod(ctx, shopID, from, to)
	if err != nil {
		return nil, persistenceErr("refunds by method", err)
	}

	sum := &SalesSummary{
		From:        from,
		To:          to,
		OrderCount:  totals.OrderCount,
		Gross:       totals.Gross,
		Discounts:   totals.Discounts,
		Net:         totals.Net,
		Outstanding: totals.Outstanding,
	}
	sum.Payments, sum.Collected = methodTotals(payments)
	sum.Refunds, sum.Refunded = methodTotals(refunds)
	sum.NetCollected = sum.Collected.Sub(sum.Refunded)
	// The stored paid-to-date of the counted orders must match their ledger.
	if !totals.Paid.Equal(totals.LedgerPaid) {
		return nil, fmt.Errorf("%w: %w: stored paid %s, ledger %s",
			errReportMismatch, order.ErrInvariantViolation, totals.Paid, totals.LedgerPaid)
	}
	return sum, nil
}

var errReportMismatch = errors.New("report totals do not reconcile")

func methodTotals(rows []database.MethodTotalRow) ([]MethodTotal, money.Amount) {
	out := make([]MethodTotal, len(rows))
	total := money.Zero
	for i, r := range rows {
		out[i] = MethodTotal{Method: r.Method, Count: r.Count, Amount: r.Amount}
		total = total.Add(r.Amount)
	}
	return out, total
}
