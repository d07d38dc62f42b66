package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
	"github.com/optik-pos/api/internal/service"
)

func TestPaymentAdd_SingleTender(t *testing.T) {
	shopID := uuid.New()
	var got service.RecordPaymentRequest
	svc := &mockOrderService{
		recordPaymentFn: func(ctx context.Context, req service.RecordPaymentRequest) (*order.Order, error) {
			got = req
			return testOrder(req.ShopID), nil
		},
	}
	router := setupOrderRouter(svc)

	body := map[string]interface{}{"amount": 12.75, "method": "KNET", "auth_number": "A1"}
	rr := doAuthRequest(t, router, "POST", "/shops/"+shopID.String()+"/orders/inv-1/payments", body, cashier(shopID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if got.InvoiceID != "inv-1" || got.ReceivedBy != "cashier-1" {
		t.Errorf("request: invoice=%s received_by=%s", got.InvoiceID, got.ReceivedBy)
	}
	if len(got.Payments) != 1 {
		t.Fatalf("expected 1 tender, got %d", len(got.Payments))
	}
	p := got.Payments[0]
	if !p.Amount.Equal(money.MustParse("12.750")) || p.Method != "KNET" || p.AuthNumber != "A1" {
		t.Errorf("tender: %+v", p)
	}
}

func TestPaymentAdd_SplitTender(t *testing.T) {
	shopID := uuid.New()
	var got service.RecordPaymentRequest
	svc := &mockOrderService{
		recordPaymentFn: func(ctx context.Context, req service.RecordPaymentRequest) (*order.Order, error) {
			got = req
			return testOrder(req.ShopID), nil
		},
	}
	router := setupOrderRouter(svc)

	body := map[string]interface{}{
		"payments": []map[string]string{
			{"amount": "20.000", "method": "CASH"},
			{"amount": "30.000", "method": "CARD", "auth_number": "778"},
		},
	}
	rr := doAuthRequest(t, router, "POST", "/shops/"+shopID.String()+"/orders/inv-1/payments", body, cashier(shopID))

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if len(got.Payments) != 2 || got.Payments[1].Method != "CARD" {
		t.Errorf("tenders: %+v", got.Payments)
	}
}

func TestPaymentAdd_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"overpayment", fmt.Errorf("%w: remaining 10.000", order.ErrOverpaymentRejected), http.StatusConflict},
		{"invalid method", fmt.Errorf("%w: \"BITCOIN\"", order.ErrInvalidPaymentMethod), http.StatusBadRequest},
		{"non-positive amount", order.ErrInvalidAmount, http.StatusBadRequest},
		{"archived", order.ErrAlreadyArchived, http.StatusConflict},
		{"not found", order.ErrNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shopID := uuid.New()
			svc := &mockOrderService{
				recordPaymentFn: func(ctx context.Context, req service.RecordPaymentRequest) (*order.Order, error) {
					return nil, tt.err
				},
			}
			router := setupOrderRouter(svc)

			body := map[string]interface{}{"amount": "60", "method": "CASH"}
			rr := doAuthRequest(t, router, "POST", "/shops/"+shopID.String()+"/orders/inv-1/payments", body, cashier(shopID))
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestPaymentAdd_MalformedAmount(t *testing.T) {
	shopID := uuid.New()
	router := setupOrderRouter(&mockOrderService{})

	body := map[string]interface{}{"amount": "ten", "method": "CASH"}
	rr := doAuthRequest(t, router, "POST", "/shops/"+shopID.String()+"/orders/inv-1/payments", body, cashier(shopID))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPaymentList(t *testing.T) {
	shopID := uuid.New()
	svc := &mockOrderService{
		getOrderFn: func(ctx context.Context, sid uuid.UUID, invoiceID string) (*order.Order, error) {
			return testOrder(sid), nil
		},
	}
	router := setupOrderRouter(svc)

	rr := doAuthRequest(t, router, "GET", "/shops/"+shopID.String()+"/orders/inv-1/payments", nil, cashier(shopID))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rr)
	if payments, ok := resp["payments"].([]interface{}); !ok || len(payments) != 0 {
		t.Errorf("payments: %v", resp["payments"])
	}
	if resp["paid_to_date"] != "0.000" || resp["remaining"] != "50.000" {
		t.Errorf("paid=%v remaining=%v", resp["paid_to_date"], resp["remaining"])
	}
}
