package order

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/optik-pos/api/internal/enum"
	"github.com/optik-pos/api/internal/money"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

var testMethods = NewMethodSet(enum.DefaultPaymentMethods)

func amt(s string) money.Amount { return money.MustParse(s) }

func newTestOrder(t *testing.T, frame, discount string) *Order {
	t.Helper()
	o, err := Save(Draft{
		ShopID:    uuid.New(),
		PatientID: "patient-1",
		Items:     PricedItems{Frame: amt(frame)},
		Discount:  amt(discount),
		CreatedBy: "cashier-1",
	}, Identity{InvoiceID: "inv-1", InvoiceNumber: "INV-00001", WorkOrderID: "wo-1"}, testNow)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return o
}

func pay(t *testing.T, o *Order, amounts ...string) {
	t.Helper()
	batch := make([]Payment, len(amounts))
	for i, a := range amounts {
		batch[i] = Payment{ID: fmt.Sprintf("p-%d-%d", len(o.Invoice.Payments), i), Amount: amt(a), Method: "cash"}
	}
	if err := o.RecordPayments(batch, testMethods); err != nil {
		t.Fatalf("RecordPayments(%v): %v", amounts, err)
	}
}

func assertValid(t *testing.T, o *Order) {
	t.Helper()
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSave(t *testing.T) {
	o := newTestOrder(t, "50", "0")

	if o.Invoice.Status != enum.InvoiceStatusSaved {
		t.Errorf("status: got %s, want %s", o.Invoice.Status, enum.InvoiceStatusSaved)
	}
	if o.WorkOrder.Status != enum.WorkOrderStatusPending {
		t.Errorf("work order status: got %s, want %s", o.WorkOrder.Status, enum.WorkOrderStatusPending)
	}
	if o.Invoice.WorkOrderID != o.WorkOrder.ID || o.WorkOrder.InvoiceID != o.Invoice.ID {
		t.Error("invoice and work order are not cross-linked")
	}
	if !o.Invoice.Remaining.Equal(amt("50")) {
		t.Errorf("remaining: got %s, want 50.000", o.Invoice.Remaining)
	}
	assertValid(t, o)
}

func TestSave_Validation(t *testing.T) {
	ids := Identity{InvoiceID: "inv-1", WorkOrderID: "wo-1"}
	tests := []struct {
		name    string
		draft   Draft
		ids     Identity
		wantErr error
	}{
		{"no work order", Draft{Items: PricedItems{Frame: amt("1")}}, Identity{InvoiceID: "inv-1"}, ErrMissingWorkOrder},
		{"no items", Draft{}, ids, ErrMissingField},
		{"negative lens", Draft{Items: PricedItems{Frame: amt("5"), Lens: amt("-1")}}, ids, ErrInvalidAmount},
		{"zero quantity", Draft{Items: PricedItems{ContactLenses: []ContactLensItem{{UnitPrice: amt("3")}}}}, ids, ErrInvalidAmount},
		{"discount above total", Draft{Items: PricedItems{Frame: amt("5")}, Discount: amt("5.001")}, ids, ErrInvalidAmount},
		{"negative discount", Draft{Items: PricedItems{Frame: amt("5")}, Discount: amt("-1")}, ids, ErrInvalidAmount},
		{"price above column limit", Draft{Items: PricedItems{Frame: money.FromInt(1_000_000_000_000)}}, ids, ErrInvalidAmount},
		{"lines sum above column limit", Draft{Items: PricedItems{Frame: amt("999999999.999"), Lens: amt("0.001")}}, ids, ErrInvalidAmount},
		{"contact lens line overflows", Draft{Items: PricedItems{ContactLenses: []ContactLensItem{
			{Description: "daily", Quantity: 2_000_000_000, UnitPrice: amt("999")},
		}}}, ids, ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Save(tt.draft, tt.ids, testNow)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error: got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestContactLensQuantity(t *testing.T) {
	o, err := Save(Draft{Items: PricedItems{
		Frame:         amt("10"),
		ContactLenses: []ContactLensItem{{Description: "monthly", Quantity: 4, UnitPrice: amt("7.250")}},
	}}, Identity{InvoiceID: "inv-1", WorkOrderID: "wo-1"}, testNow)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !o.Invoice.Total.Equal(amt("39")) {
		t.Errorf("total: got %s, want 39.000", o.Invoice.Total)
	}
}

func TestScenarioA_TwoPaymentsSettle(t *testing.T) {
	o := newTestOrder(t, "50", "0")

	pay(t, o, "20")
	if o.Invoice.Status != enum.InvoiceStatusPartiallyPaid {
		t.Errorf("status after first payment: got %s, want %s", o.Invoice.Status, enum.InvoiceStatusPartiallyPaid)
	}
	pay(t, o, "30")

	if !o.Invoice.Remaining.IsZero() {
		t.Errorf("remaining: got %s, want 0.000", o.Invoice.Remaining)
	}
	if !o.Invoice.IsPaid {
		t.Error("expected is_paid")
	}
	if o.Invoice.Status != enum.InvoiceStatusPaid {
		t.Errorf("status: got %s, want %s", o.Invoice.Status, enum.InvoiceStatusPaid)
	}
	if len(o.Invoice.Payments) != 2 {
		t.Errorf("ledger entries: got %d, want 2", len(o.Invoice.Payments))
	}
	assertValid(t, o)
}

func TestScenarioB_Discount(t *testing.T) {
	o := newTestOrder(t, "100", "10")
	if !o.Invoice.Total.Equal(amt("90")) {
		t.Fatalf("total: got %s, want 90.000", o.Invoice.Total)
	}
	pay(t, o, "90")
	if !o.Invoice.IsPaid {
		t.Error("expected is_paid")
	}
	assertValid(t, o)
}

func TestScenarioC_FullRefundLeavesLedger(t *testing.T) {
	o := newTestOrder(t, "100", "10")
	pay(t, o, "90")

	r, err := o.ApplyRefund(RefundRequest{Amount: amt("90"), Method: "cash", Reason: "lens defect"}, testMethods, "r-1", testNow)
	if err != nil {
		t.Fatalf("ApplyRefund: %v", err)
	}
	if r.Method != enum.PaymentMethodCash {
		t.Errorf("method: got %s, want %s", r.Method, enum.PaymentMethodCash)
	}
	if !o.Invoice.IsRefunded || !o.Invoice.RefundAmount.Equal(amt("90")) {
		t.Errorf("refund: got is_refunded=%t amount=%s", o.Invoice.IsRefunded, o.Invoice.RefundAmount)
	}
	if got := TotalPaid(o.Invoice.Payments); !got.Equal(amt("90")) {
		t.Errorf("ledger sum: got %s, want 90.000", got)
	}
	if !o.Invoice.IsPaid {
		t.Error("refund must not clear is_paid")
	}
	if o.Invoice.Status != enum.InvoiceStatusRefunded {
		t.Errorf("status: got %s, want %s", o.Invoice.Status, enum.InvoiceStatusRefunded)
	}
	assertValid(t, o)
}

func TestScenarioD_ArchiveAutoRefunds(t *testing.T) {
	o := newTestOrder(t, "60", "0")
	pay(t, o, "25")

	refund, err := o.Archive("customer cancelled", "manager-1", "r-1", testNow)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if refund == nil {
		t.Fatal("expected automatic refund")
	}
	if !refund.Amount.Equal(amt("25")) || !refund.Automatic {
		t.Errorf("refund: got amount=%s automatic=%t", refund.Amount, refund.Automatic)
	}
	if refund.Reason != enum.ArchiveRefundReason {
		t.Errorf("reason: got %q", refund.Reason)
	}
	if !o.Invoice.IsArchived || !o.WorkOrder.IsArchived {
		t.Error("both sides must be archived")
	}
	if o.Invoice.ArchiveReason != o.WorkOrder.ArchiveReason {
		t.Error("archive reason differs between sides")
	}
	if o.Invoice.Status != enum.InvoiceStatusArchived {
		t.Errorf("status: got %s, want %s", o.Invoice.Status, enum.InvoiceStatusArchived)
	}
	assertValid(t, o)
}

func TestScenarioE_OverpaymentLeavesStateUnchanged(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	pay(t, o, "45")
	before := o.Clone()

	err := o.RecordPayments([]Payment{{Amount: amt("10"), Method: "cash"}}, testMethods)
	if !errors.Is(err, ErrOverpaymentRejected) {
		t.Fatalf("error: got %v, want ErrOverpaymentRejected", err)
	}
	if len(o.Invoice.Payments) != len(before.Invoice.Payments) || !o.Invoice.Remaining.Equal(amt("5")) {
		t.Errorf("state changed: payments=%d remaining=%s", len(o.Invoice.Payments), o.Invoice.Remaining)
	}
}

func TestRecordPayments_Boundaries(t *testing.T) {
	t.Run("exact remaining settles", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		pay(t, o, "49.999")
		pay(t, o, "0.001")
		if !o.Invoice.IsPaid {
			t.Error("expected is_paid")
		}
	})
	t.Run("one fils over is rejected", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		err := o.RecordPayments([]Payment{{Amount: amt("50.001"), Method: "cash"}}, testMethods)
		if !errors.Is(err, ErrOverpaymentRejected) {
			t.Errorf("error: got %v, want ErrOverpaymentRejected", err)
		}
	})
	t.Run("batch is all or nothing", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		err := o.RecordPayments([]Payment{
			{Amount: amt("10"), Method: "cash"},
			{Amount: amt("0"), Method: "knet"},
		}, testMethods)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("error: got %v, want ErrInvalidAmount", err)
		}
		if len(o.Invoice.Payments) != 0 {
			t.Errorf("payments: got %d, want 0", len(o.Invoice.Payments))
		}
	})
	t.Run("unknown method", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		err := o.RecordPayments([]Payment{{Amount: amt("10"), Method: "bitcoin"}}, testMethods)
		if !errors.Is(err, ErrInvalidPaymentMethod) {
			t.Errorf("error: got %v, want ErrInvalidPaymentMethod", err)
		}
	})
	t.Run("missing method", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		err := o.RecordPayments([]Payment{{Amount: amt("10")}}, testMethods)
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("error: got %v, want ErrMissingField", err)
		}
	})
	t.Run("method is trimmed before it is checked and stored", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		if err := o.RecordPayments([]Payment{{Amount: amt("10"), Method: " card "}}, testMethods); err != nil {
			t.Fatalf("RecordPayments: %v", err)
		}
		if got := o.Invoice.Payments[0].Method; got != enum.PaymentMethodCard {
			t.Errorf("method: got %q, want %q", got, enum.PaymentMethodCard)
		}
	})
	t.Run("blank method with open set", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		err := o.RecordPayments([]Payment{{Amount: amt("10"), Method: "  "}}, nil)
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("error: got %v, want ErrMissingField", err)
		}
	})
	t.Run("amount above column limit", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		err := o.RecordPayments([]Payment{{Amount: money.FromInt(1_000_000_000), Method: "cash"}}, testMethods)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("error: got %v, want ErrInvalidAmount", err)
		}
	})
	t.Run("split tender", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		err := o.RecordPayments([]Payment{
			{Amount: amt("20"), Method: "cash"},
			{Amount: amt("30"), Method: "knet", AuthNumber: "A1"},
		}, testMethods)
		if err != nil {
			t.Fatalf("RecordPayments: %v", err)
		}
		if !o.Invoice.IsPaid || o.Invoice.Payments[1].Method != enum.PaymentMethodKnet {
			t.Errorf("got is_paid=%t method=%s", o.Invoice.IsPaid, o.Invoice.Payments[1].Method)
		}
	})
}

func TestApplyRefund_Boundaries(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	pay(t, o, "30")

	_, err := o.ApplyRefund(RefundRequest{Amount: amt("30.001"), Method: "cash", Reason: "x"}, testMethods, "r-1", testNow)
	if !errors.Is(err, ErrExceedsPaidAmount) {
		t.Fatalf("over paid: got %v, want ErrExceedsPaidAmount", err)
	}
	_, err = o.ApplyRefund(RefundRequest{Amount: amt("0"), Method: "cash", Reason: "x"}, testMethods, "r-1", testNow)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero: got %v, want ErrInvalidAmount", err)
	}
	_, err = o.ApplyRefund(RefundRequest{Amount: amt("1"), Method: "cash"}, testMethods, "r-1", testNow)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("no reason: got %v, want ErrMissingField", err)
	}

	if _, err := o.ApplyRefund(RefundRequest{Amount: amt("10"), Method: "cash", Reason: "partial"}, testMethods, "r-1", testNow); err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if !o.Refundable().Equal(amt("20")) {
		t.Errorf("refundable: got %s, want 20.000", o.Refundable())
	}
	_, err = o.ApplyRefund(RefundRequest{Amount: amt("20.001"), Method: "cash", Reason: "again"}, testMethods, "r-2", testNow)
	if !errors.Is(err, ErrExceedsPaidAmount) {
		t.Errorf("second refund over remainder: got %v, want ErrExceedsPaidAmount", err)
	}
	if _, err := o.ApplyRefund(RefundRequest{Amount: amt("20"), Method: "card", Reason: "rest"}, testMethods, "r-2", testNow); err != nil {
		t.Fatalf("refund of remainder: %v", err)
	}
	if !o.Invoice.RefundAmount.Equal(amt("30")) || o.Invoice.RefundMethod != enum.PaymentMethodCard {
		t.Errorf("refund fields: amount=%s method=%s", o.Invoice.RefundAmount, o.Invoice.RefundMethod)
	}
	assertValid(t, o)
}

func TestApplyRefund_Method(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	pay(t, o, "30")

	_, err := o.ApplyRefund(RefundRequest{Amount: amt("5"), Method: "bitcoin", Reason: "x"}, testMethods, "r-1", testNow)
	if !errors.Is(err, ErrInvalidPaymentMethod) {
		t.Fatalf("unknown method: got %v, want ErrInvalidPaymentMethod", err)
	}
	if len(o.Refunds) != 0 {
		t.Fatalf("refunds: got %d, want 0", len(o.Refunds))
	}

	r, err := o.ApplyRefund(RefundRequest{Amount: amt("5"), Method: " knet", Reason: "x"}, testMethods, "r-1", testNow)
	if err != nil {
		t.Fatalf("ApplyRefund: %v", err)
	}
	if r.Method != enum.PaymentMethodKnet {
		t.Errorf("method: got %q, want %q", r.Method, enum.PaymentMethodKnet)
	}
}

func TestRefundUnpaidOrder(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	_, err := o.ApplyRefund(RefundRequest{Amount: amt("1"), Method: "cash", Reason: "x"}, testMethods, "r-1", testNow)
	if !errors.Is(err, ErrExceedsPaidAmount) {
		t.Errorf("error: got %v, want ErrExceedsPaidAmount", err)
	}
}

func TestArchive(t *testing.T) {
	t.Run("unpaid order issues no refund", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		refund, err := o.Archive("duplicate", "manager-1", "r-1", testNow)
		if err != nil {
			t.Fatalf("Archive: %v", err)
		}
		if refund != nil || len(o.Refunds) != 0 {
			t.Errorf("expected no refund, got %+v", refund)
		}
	})
	t.Run("already refunded order is not refunded again", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		pay(t, o, "50")
		if _, err := o.ApplyRefund(RefundRequest{Amount: amt("50"), Method: "cash", Reason: "defect"}, testMethods, "r-1", testNow); err != nil {
			t.Fatalf("ApplyRefund: %v", err)
		}
		refund, err := o.Archive("defect", "manager-1", "r-2", testNow)
		if err != nil {
			t.Fatalf("Archive: %v", err)
		}
		if refund != nil || len(o.Refunds) != 1 {
			t.Errorf("refunds: got %d, want 1", len(o.Refunds))
		}
	})
	t.Run("second archive fails without refunding", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		pay(t, o, "25")
		if _, err := o.Archive("cancel", "manager-1", "r-1", testNow); err != nil {
			t.Fatalf("Archive: %v", err)
		}
		_, err := o.Archive("cancel", "manager-1", "r-2", testNow)
		if !errors.Is(err, ErrAlreadyArchived) {
			t.Fatalf("error: got %v, want ErrAlreadyArchived", err)
		}
		if len(o.Refunds) != 1 {
			t.Errorf("refunds: got %d, want 1", len(o.Refunds))
		}
	})
	t.Run("reason is required", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		_, err := o.Archive("  ", "manager-1", "r-1", testNow)
		if !errors.Is(err, ErrMissingField) {
			t.Errorf("error: got %v, want ErrMissingField", err)
		}
	})
	t.Run("archived order rejects payments", func(t *testing.T) {
		o := newTestOrder(t, "50", "0")
		if _, err := o.Archive("cancel", "manager-1", "r-1", testNow); err != nil {
			t.Fatalf("Archive: %v", err)
		}
		err := o.RecordPayments([]Payment{{Amount: amt("1"), Method: "cash"}}, testMethods)
		if !errors.Is(err, ErrAlreadyArchived) {
			t.Errorf("error: got %v, want ErrAlreadyArchived", err)
		}
	})
}

func TestArchiveWorkOrder_Orphan(t *testing.T) {
	wo := &WorkOrder{ID: "wo-9", Status: enum.WorkOrderStatusPending}
	if err := ArchiveWorkOrder(wo, "legacy", testNow); err != nil {
		t.Fatalf("ArchiveWorkOrder: %v", err)
	}
	if !wo.IsArchived || wo.ArchiveReason != "legacy" {
		t.Errorf("got archived=%t reason=%q", wo.IsArchived, wo.ArchiveReason)
	}
	if err := ArchiveWorkOrder(wo, "legacy", testNow); !errors.Is(err, ErrAlreadyArchived) {
		t.Errorf("second archive: got %v, want ErrAlreadyArchived", err)
	}
}

func TestMarkPickedUp(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	pay(t, o, "10")

	if err := o.MarkPickedUp(testNow); err != nil {
		t.Fatalf("MarkPickedUp with balance owed: %v", err)
	}
	if o.Invoice.Status != enum.InvoiceStatusPickedUp {
		t.Errorf("status: got %s, want %s", o.Invoice.Status, enum.InvoiceStatusPickedUp)
	}
	if err := o.MarkPickedUp(testNow); !errors.Is(err, ErrAlreadyPickedUp) {
		t.Errorf("second pickup: got %v, want ErrAlreadyPickedUp", err)
	}
}

func TestReprice(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	pay(t, o, "20")

	items := PricedItems{Frame: amt("50"), Coating: amt("15")}
	rec, err := o.Reprice(PriceChange{Items: &items, Source: enum.EditSourceWorkOrder, EditedBy: "optician-1"}, "e-1", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("Reprice: %v", err)
	}
	if !rec.OldLineItemTotal.Equal(amt("50")) || !rec.NewLineItemTotal.Equal(amt("65")) {
		t.Errorf("edit record: old=%s new=%s", rec.OldLineItemTotal, rec.NewLineItemTotal)
	}
	if !o.Invoice.Remaining.Equal(amt("45")) {
		t.Errorf("remaining: got %s, want 45.000", o.Invoice.Remaining)
	}
	if !o.Invoice.Items.equal(o.WorkOrder.Items) {
		t.Error("items not mirrored to work order")
	}
	if len(o.Invoice.EditHistory) != 1 || !o.Invoice.LastEditedAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("history=%d last_edited_at=%v", len(o.Invoice.EditHistory), o.Invoice.LastEditedAt)
	}
	assertValid(t, o)

	t.Run("price drop below paid clamps remaining", func(t *testing.T) {
		d := amt("40")
		if _, err := o.Reprice(PriceChange{Discount: &d}, "e-2", testNow); err != nil {
			t.Fatalf("Reprice: %v", err)
		}
		if !o.Invoice.Remaining.IsZero() || !o.Invoice.IsPaid {
			t.Errorf("remaining=%s is_paid=%t", o.Invoice.Remaining, o.Invoice.IsPaid)
		}
		assertValid(t, o)
	})

	t.Run("empty change", func(t *testing.T) {
		if _, err := o.Reprice(PriceChange{}, "e-3", testNow); !errors.Is(err, ErrMissingField) {
			t.Errorf("error: got %v, want ErrMissingField", err)
		}
	})
}

func TestWorkOrderStatus(t *testing.T) {
	o := newTestOrder(t, "50", "0")

	if err := o.SetWorkOrderStatus(enum.WorkOrderStatusInProgress, testNow); err != nil {
		t.Fatalf("to in progress: %v", err)
	}
	if err := o.SetWorkOrderStatus(enum.WorkOrderStatusComplete, testNow); err != nil {
		t.Fatalf("to complete: %v", err)
	}
	if !o.WorkOrder.IsComplete || o.WorkOrder.CompletedAt == nil {
		t.Error("expected completion stamp")
	}
	if o.Invoice.Status != enum.InvoiceStatusSaved {
		t.Errorf("invoice status moved with work order: %s", o.Invoice.Status)
	}
	err := o.SetWorkOrderStatus(enum.WorkOrderStatusPending, testNow)
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Errorf("reopen: got %v, want ErrInvalidStatusTransition", err)
	}
}

func TestValidate_DetectsDrift(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	pay(t, o, "20")

	if err := o.CheckPaid(amt("25")); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("stored deposit drift: got %v, want ErrInvariantViolation", err)
	}

	broken := o.Clone()
	broken.WorkOrder.Items.Lens = amt("1")
	if err := broken.Validate(); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("item drift: got %v, want ErrInvariantViolation", err)
	}

	broken = o.Clone()
	broken.WorkOrder.InvoiceID = "other"
	if err := broken.Validate(); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("link drift: got %v, want ErrInvariantViolation", err)
	}
}

func TestAssembleRecomputes(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	pay(t, o, "20")

	inv := o.Invoice
	inv.Remaining = money.Zero
	inv.Status = ""
	got := Assemble(inv, o.WorkOrder, nil)
	if !got.Invoice.Remaining.Equal(amt("30")) || got.Invoice.Status != enum.InvoiceStatusPartiallyPaid {
		t.Errorf("remaining=%s status=%s", got.Invoice.Remaining, got.Invoice.Status)
	}
}

// Random sequences of operations never break the order's invariants, and a
// rejected operation never changes state.
func TestOperationSequenceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	type step struct {
		Kind int
		Fils int64
	}
	genStep := gopter.CombineGens(gen.IntRange(0, 4), gen.Int64Range(-1000, 60000)).Map(func(v []interface{}) step {
		return step{Kind: v[0].(int), Fils: v[1].(int64)}
	})

	properties.Property("invariants hold after any operation sequence", prop.ForAll(
		func(frameFils int64, steps []step) bool {
			o, err := Save(Draft{Items: PricedItems{Frame: money.FromMinor(frameFils)}},
				Identity{InvoiceID: "inv", WorkOrderID: "wo"}, testNow)
			if err != nil {
				return false
			}
			for i, s := range steps {
				before := o.Clone()
				a := money.FromMinor(s.Fils)
				id := fmt.Sprint(i)
				switch s.Kind {
				case 0:
					err = o.RecordPayments([]Payment{{ID: id, Amount: a, Method: "cash"}}, testMethods)
				case 1:
					_, err = o.ApplyRefund(RefundRequest{Amount: a, Method: "cash", Reason: "r"}, testMethods, id, testNow)
				case 2:
					_, err = o.Reprice(PriceChange{Discount: &a}, id, testNow)
				case 3:
					err = o.MarkPickedUp(testNow)
				case 4:
					_, err = o.Archive("r", "", id, testNow)
				}
				if err != nil && !sameState(before, o) {
					return false
				}
				if o.Validate() != nil {
					return false
				}
				if o.Invoice.PaidToDate.GreaterThan(o.Invoice.Total) && s.Kind == 0 && err == nil {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 50000),
		gen.SliceOf(genStep),
	))

	properties.TestingRun(t)
}

func sameState(a, b *Order) bool {
	return len(a.Invoice.Payments) == len(b.Invoice.Payments) &&
		len(a.Refunds) == len(b.Refunds) &&
		len(a.Invoice.EditHistory) == len(b.Invoice.EditHistory) &&
		a.Invoice.Status == b.Invoice.Status &&
		a.Invoice.Remaining.Equal(b.Invoice.Remaining) &&
		a.Invoice.IsArchived == b.Invoice.IsArchived &&
		a.Invoice.IsPickedUp == b.Invoice.IsPickedUp
}

func TestSetDetails(t *testing.T) {
	o := newTestOrder(t, "50", "0")
	if err := o.WorkOrder.SetDetails([]byte(`{"frame_brand":"Ray-Ban"}`), testNow); err != nil {
		t.Fatalf("SetDetails: %v", err)
	}
	if string(o.WorkOrder.Details) != `{"frame_brand":"Ray-Ban"}` {
		t.Errorf("details: got %s", o.WorkOrder.Details)
	}
	if len(o.Invoice.EditHistory) != 0 {
		t.Error("details edit must not add price history")
	}
}
