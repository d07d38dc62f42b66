package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/enum"
	"github.com/optik-pos/api/internal/middleware"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
	"github.com/optik-pos/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*order.Order, error)
	GetOrder(ctx context.Context, shopID uuid.UUID, invoiceID string) (*order.Order, error)
	ListOrders(ctx context.Context, shopID uuid.UUID, view string, limit, offset int32) ([]order.Summary, error)
	ListByPatient(ctx context.Context, shopID uuid.UUID, patientID string) ([]order.Summary, error)
	MarkPickedUp(ctx context.Context, shopID uuid.UUID, invoiceID string) (*order.Order, error)
	Reprice(ctx context.Context, req service.RepriceRequest) (*order.Order, error)
	EditWorkOrder(ctx context.Context, req service.EditWorkOrderRequest) (*order.Order, error)
	UpdateWorkOrderStatus(ctx context.Context, shopID uuid.UUID, workOrderID, status string) (*order.WorkOrder, error)
	ArchiveOrder(ctx context.Context, req service.ArchiveRequest) (*service.ArchiveResult, error)
}

// OrderHandler handles order, work order and patient endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/pricing", h.Reprice)
	r.Post("/{id}/pickup", h.PickUp)
}

// RegisterWorkOrderRoutes registers work order endpoints.
// Expected to be mounted at /shops/{sid}/work-orders
func (h *OrderHandler) RegisterWorkOrderRoutes(r chi.Router) {
	r.Patch("/{wid}", h.EditWorkOrder)
	r.Patch("/{wid}/status", h.UpdateWorkOrderStatus)
	r.With(middleware.RequireRole(enum.UserRoleOwner, enum.UserRoleManager)).
		Post("/{wid}/archive", h.Archive)
}

// RegisterPatientRoutes registers patient history endpoints.
// Expected to be mounted at /shops/{sid}/patients
func (h *OrderHandler) RegisterPatientRoutes(r chi.Router) {
	r.Get("/{pid}/orders", h.ListByPatient)
}

// --- Request / Response types ---

type paymentInput struct {
	Amount     money.Amount `json:"amount"`
	Method     string       `json:"method"`
	AuthNumber string       `json:"auth_number"`
}

type createOrderRequest struct {
	PatientID string            `json:"patient_id"`
	Items     order.PricedItems `json:"items"`
	Discount  money.Amount      `json:"discount"`
	Details   json.RawMessage   `json:"details"`
	Deposit   []paymentInput    `json:"deposit"`
}

type repriceRequest struct {
	Items    *order.PricedItems `json:"items"`
	Discount *money.Amount      `json:"discount"`
	Note     string             `json:"note"`
}

type editWorkOrderRequest struct {
	Items    *order.PricedItems `json:"items"`
	Discount *money.Amount      `json:"discount"`
	Details  json.RawMessage    `json:"details"`
	Note     string             `json:"note"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type archiveRequest struct {
	Reason string `json:"reason"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []order.Summary `json:"orders"`
	View   string          `json:"view,omitempty"`
	Limit  int32           `json:"limit"`
	Offset int32           `json:"offset"`
}

func toPaymentInputs(in []paymentInput) []service.PaymentInput {
	out := make([]service.PaymentInput, len(in))
	for i, p := range in {
		out[i] = service.PaymentInput{Amount: p.Amount, Method: p.Method, AuthNumber: p.AuthNumber}
	}
	return out
}

// --- Handlers ---

// Create handles POST /shops/{sid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		ShopID:    shopID,
		PatientID: req.PatientID,
		Items:     req.Items,
		Discount:  req.Discount,
		Details:   req.Details,
		CreatedBy: claims.StaffID,
		Deposit:   toPaymentInputs(req.Deposit),
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

// List handles GET /shops/{sid}/orders?view=active|completed|archived.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	view := r.URL.Query().Get("view")
	if view == "" {
		view = enum.OrderViewActive
	}
	limit, offset := parsePagination(r)

	orders, err := h.svc.ListOrders(r.Context(), shopID, view, limit, offset)
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: orders,
		View:   view,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /shops/{sid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.svc.GetOrder(r.Context(), shopID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// Reprice handles PATCH /shops/{sid}/orders/{id}/pricing.
func (h *OrderHandler) Reprice(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req repriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.svc.Reprice(r.Context(), service.RepriceRequest{
		ShopID:    shopID,
		InvoiceID: chi.URLParam(r, "id"),
		Items:     req.Items,
		Discount:  req.Discount,
		EditedBy:  claims.StaffID,
		Note:      req.Note,
	})
	if err != nil {
		writeServiceError(w, "reprice order", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// PickUp handles POST /shops/{sid}/orders/{id}/pickup.
func (h *OrderHandler) PickUp(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	o, err := h.svc.MarkPickedUp(r.Context(), shopID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "mark picked up", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// EditWorkOrder handles PATCH /shops/{sid}/work-orders/{wid}.
func (h *OrderHandler) EditWorkOrder(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req editWorkOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.svc.EditWorkOrder(r.Context(), service.EditWorkOrderRequest{
		ShopID:      shopID,
		WorkOrderID: chi.URLParam(r, "wid"),
		Items:       req.Items,
		Discount:    req.Discount,
		Details:     req.Details,
		EditedBy:    claims.StaffID,
		Note:        req.Note,
	})
	if err != nil {
		writeServiceError(w, "edit work order", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// UpdateWorkOrderStatus handles PATCH /shops/{sid}/work-orders/{wid}/status.
func (h *OrderHandler) UpdateWorkOrderStatus(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	wo, err := h.svc.UpdateWorkOrderStatus(r.Context(), shopID, chi.URLParam(r, "wid"), req.Status)
	if err != nil {
		writeServiceError(w, "update work order status", err)
		return
	}

	writeJSON(w, http.StatusOK, wo)
}

// Archive handles POST /shops/{sid}/work-orders/{wid}/archive.
func (h *OrderHandler) Archive(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req archiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.ArchiveOrder(r.Context(), service.ArchiveRequest{
		ShopID:      shopID,
		WorkOrderID: chi.URLParam(r, "wid"),
		Reason:      req.Reason,
		Actor:       claims.StaffID,
	})
	if err != nil {
		writeServiceError(w, "archive order", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// ListByPatient handles GET /shops/{sid}/patients/{pid}/orders.
func (h *OrderHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	shopID, ok := shopIDParam(w, r)
	if !ok {
		return
	}

	orders, err := h.svc.ListByPatient(r.Context(), shopID, chi.URLParam(r, "pid"))
	if err != nil {
		writeServiceError(w, "list patient orders", err)
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{Orders: orders, Limit: int32(len(orders))})
}
