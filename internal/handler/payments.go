package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/middleware"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
	"github.com/optik-pos/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
type PaymentServicer interface {
	RecordPayment(ctx context.Context, req service.RecordPaymentRequest) (*order.Order, error)
	GetOrder(ctx context.Context, shopID uuid.UUID, invoiceID string) (*order.Order, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /shops/{sid}/orders/{id}/payments
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Add)
	r.Get("/", h.List)
}

// --- Request / Response types ---

// addPaymentRequest is one payment event. A single tender may be sent
// flat; split tender uses payments.
type addPaymentRequest struct {
	Amount     money.Amount   `json:"amount"`
	Method     string         `json:"method"`
	AuthNumber string         `json:"auth_number"`
	Payments   []paymentInput `json:"payments"`
}

type paymentListResponse struct {
	Payments   []order.Payment `json:"payments"`
	PaidToDate money.Amount    `json:"paid_to_date"`
	Remaining  money.Amount    `json:"remaining"`
}

// --- Handlers ---

// Add handles POST /shops/{sid}/orders/{id}/payments.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req addPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tenders := req.Payments
	if len(tenders) == 0 {
		tenders = []paymentInput{{Amount: req.Amount, Method: req.Method, AuthNumber: req.AuthNumber}}
	}

	o, err := h.svc.RecordPayment(r.Context(), service.RecordPaymentRequest{
		ShopID:     shopID,
		InvoiceID:  chi.URLParam(r, "id"),
		Payments:   toPaymentInputs(tenders),
		ReceivedBy: claims.StaffID,
	})
	if err != nil {
		writeServiceError(w, "record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

// List handles GET /shops/{sid}/orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.svc.GetOrder(r.Context(), shopID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "list payments", err)
		return
	}

	payments := o.Invoice.Payments
	if payments == nil {
		payments = []order.Payment{}
	}
	writeJSON(w, http.StatusOK, paymentListResponse{
		Payments:   payments,
		PaidToDate: o.Invoice.PaidToDate,
		Remaining:  o.Invoice.Remaining,
	})
}
