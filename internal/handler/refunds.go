package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/enum"
	"github.com/optik-pos/api/internal/middleware"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
	"github.com/optik-pos/api/internal/service"
)

// RefundServicer defines the service methods needed by refund handlers.
type RefundServicer interface {
	ProcessRefund(ctx context.Context, req service.RefundRequest) (*order.Order, order.Refund, error)
	GetOrder(ctx context.Context, shopID uuid.UUID, invoiceID string) (*order.Order, error)
}

// RefundHandler handles refund endpoints. Refunds are limited to owners
// and managers.
type RefundHandler struct {
	svc RefundServicer
}

// NewRefundHandler creates a new RefundHandler.
func NewRefundHandler(svc RefundServicer) *RefundHandler {
	return &RefundHandler{svc: svc}
}

// RegisterRoutes registers refund endpoints on the given Chi router.
// Expected to be mounted at /shops/{sid}/orders/{id}/refunds
func (h *RefundHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
	r.Post("/", h.Process)
	r.Get("/", h.List)
}

type processRefundRequest struct {
	Amount money.Amount `json:"amount"`
	Method string       `json:"method"`
	Reason string       `json:"reason"`
	Notes  string       `json:"notes"`
}

type refundResponse struct {
	Refund order.Refund `json:"refund"`
	Order  *order.Order `json:"order"`
}

type refundListResponse struct {
	Refunds      []order.Refund `json:"refunds"`
	RefundAmount money.Amount   `json:"refund_amount"`
	Refundable   money.Amount   `json:"refundable"`
}

// Process handles POST /shops/{sid}/orders/{id}/refunds.
func (h *RefundHandler) Process(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req processRefundRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, refund, err := h.svc.ProcessRefund(r.Context(), service.RefundRequest{
		ShopID:      shopID,
		InvoiceID:   chi.URLParam(r, "id"),
		Amount:      req.Amount,
		Method:      req.Method,
		Reason:      req.Reason,
		Notes:       req.Notes,
		ProcessedBy: claims.StaffID,
	})
	if err != nil {
		writeServiceError(w, "process refund", err)
		return
	}

	writeJSON(w, http.StatusCreated, refundResponse{Refund: refund, Order: o})
}

// List handles GET /shops/{sid}/orders/{id}/refunds.
func (h *RefundHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.svc.GetOrder(r.Context(), shopID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "list refunds", err)
		return
	}

	refunds := o.Refunds
	if refunds == nil {
		refunds = []order.Refund{}
	}
	writeJSON(w, http.StatusOK, refundListResponse{
		Refunds:      refunds,
		RefundAmount: o.Invoice.RefundAmount,
		Refundable:   o.Refundable(),
	})
}
