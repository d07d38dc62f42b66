package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/optik-pos/api/internal/database"
	"github.com/optik-pos/api/internal/enum"
	"github.com/optik-pos/api/internal/lock"
	"github.com/optik-pos/api/internal/logger"
	"github.com/optik-pos/api/internal/money"
	"github.com/optik-pos/api/internal/order"
	"github.com/rs/zerolog"
)

const maxInvoiceNumberRetries = 3

// Events published to the shop's live feed after commit.
const (
	EventOrderCreated     = "order.created"
	EventPaymentRecorded  = "payment.recorded"
	EventOrderPaid        = "order.paid"
	EventOrderPickedUp    = "order.picked_up"
	EventOrderRepriced    = "order.repriced"
	EventRefundProcessed  = "refund.processed"
	EventOrderArchived    = "order.archived"
	EventWorkOrderStatus  = "work_order.status_changed"
	EventWorkOrderUpdated = "work_order.updated"
)

// ErrInvalidView is returned for an unknown order list view.
var ErrInvalidView = errors.New("invalid view")

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	NextInvoiceSeq(ctx context.Context, shopID uuid.UUID) (int32, error)
	InsertOrder(ctx context.Context, o *order.Order, seq int32) error
	LoadOrder(ctx context.Context, shopID uuid.UUID, invoiceID string, forUpdate bool) (*order.Order, error)
	LoadWorkOrder(ctx context.Context, shopID uuid.UUID, workOrderID string, forUpdate bool) (*order.WorkOrder, error)
	SaveOrder(ctx context.Context, o *order.Order) error
	SaveWorkOrder(ctx context.Context, wo *order.WorkOrder) error
	AppendPayments(ctx context.Context, payments []order.Payment) error
	InsertRefund(ctx context.Context, r order.Refund) error
	AppendEdit(ctx context.Context, e order.EditRecord) error
	ListOrders(ctx context.Context, shopID uuid.UUID, view string, limit, offset int32) ([]order.Summary, error)
	ListByPatient(ctx context.Context, shopID uuid.UUID, patientID string) ([]order.Summary, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// Publisher delivers events to live subscribers of a shop.
type Publisher interface {
	Publish(shopID uuid.UUID, eventType string, payload any)
}

// Options configures an OrderService. Zero values get working defaults.
type Options struct {
	Locker         lock.Locker
	Publisher      Publisher
	PaymentMethods []string
	InvoicePrefix  string
	Now            func() time.Time
	NewID          func() string
}

// OrderService runs the order lifecycle against the database. Each
// operation holds the order's lock, runs in one transaction and loads the
// order row FOR UPDATE, so concurrent writes to one order serialize while
// different orders proceed in parallel.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	locker    lock.Locker
	publisher Publisher
	methods   order.MethodSet
	prefix    string
	now       func() time.Time
	newID     func() string
	log       zerolog.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, opts Options) *OrderService {
	s := &OrderService{
		pool:      pool,
		newStore:  newStore,
		locker:    opts.Locker,
		publisher: opts.Publisher,
		prefix:    opts.InvoicePrefix,
		now:       opts.Now,
		newID:     opts.NewID,
		log:       logger.WithComponent("order_service"),
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	methods := opts.PaymentMethods
	if len(methods) == 0 {
		methods = enum.DefaultPaymentMethods
	}
	s.methods = order.NewMethodSet(methods)
	if s.prefix == "" {
		s.prefix = "INV"
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// PaymentInput is one tender of a payment event.
type PaymentInput struct {
	Amount     money.Amount
	Method     string
	AuthNumber string
}

// CreateOrderRequest is the validated input for saving a new order.
// Deposit, when given, is recorded as the first payment event.
type CreateOrderRequest struct {
	ShopID    uuid.UUID
	PatientID string
	Items     order.PricedItems
	Discount  money.Amount
	Details   json.RawMessage
	CreatedBy string
	Deposit   []PaymentInput
}

// CreateOrder saves an invoice with its work order atomically.
// Retries up to maxInvoiceNumberRetries times on invoice number unique
// constraint violations (concurrent transactions drawing the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxInvoiceNumberRetries; attempt++ {
		o, err := s.createOrderTx(ctx, req)
		if err == nil {
			s.log.Info().Str("invoice_id", o.Invoice.ID).Str("number", o.Invoice.Number).
				Str("total", o.Invoice.Total.String()).Msg("order created")
			s.publish(o.Invoice.ShopID, EventOrderCreated, o)
			if o.Invoice.IsPaid {
				s.publish(o.Invoice.ShopID, EventOrderPaid, o)
			}
			return o, nil
		}
		if isInvoiceNumberConflict(err) {
			s.log.Warn().Int("attempt", attempt+1).Msg("invoice number conflict, retrying")
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isInvoiceNumberConflict checks if the error is a unique constraint
// violation on the invoice sequence (pgconn error code 23505).
func isInvoiceNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == database.InvoiceNumberConstraint
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	seq, err := store.NextInvoiceSeq(ctx, req.ShopID)
	if err != nil {
		return nil, storeErr("next invoice number", err)
	}

	now := s.now()
	o, err := order.Save(order.Draft{
		ShopID:    req.ShopID,
		PatientID: req.PatientID,
		Items:     req.Items,
		Discount:  req.Discount,
		Details:   req.Details,
		CreatedBy: req.CreatedBy,
	}, order.Identity{
		InvoiceID:     s.newID(),
		InvoiceNumber: fmt.Sprintf("%s-%05d", s.prefix, seq),
		WorkOrderID:   s.newID(),
	}, now)
	if err != nil {
		return nil, err
	}

	if len(req.Deposit) > 0 {
		if err := o.RecordPayments(s.paymentBatch(req.Deposit, req.CreatedBy, now), s.methods); err != nil {
			return nil, fmt.Errorf("deposit: %w", err)
		}
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	if err := store.InsertOrder(ctx, o, seq); err != nil {
		return nil, storeErr("insert order", err)
	}
	if len(o.Invoice.Payments) > 0 {
		if err := store.AppendPayments(ctx, o.Invoice.Payments); err != nil {
			return nil, storeErr("append payments", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit tx", err)
	}
	return o, nil
}

// RecordPaymentRequest is a payment event of one or more tenders.
type RecordPaymentRequest struct {
	ShopID     uuid.UUID
	InvoiceID  string
	Payments   []PaymentInput
	ReceivedBy string
}

// RecordPayment appends a payment event to the invoice's ledger.
func (s *OrderService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*order.Order, error) {
	var wasPaid bool
	o, err := s.mutate(ctx, req.ShopID, req.InvoiceID, func(o *order.Order, store OrderStore) error {
		wasPaid = o.Invoice.IsPaid
		before := len(o.Invoice.Payments)
		if err := o.RecordPayments(s.paymentBatch(req.Payments, req.ReceivedBy, s.now()), s.methods); err != nil {
			return err
		}
		return storeErr("append payments", store.AppendPayments(ctx, o.Invoice.Payments[before:]))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("invoice_id", o.Invoice.ID).Str("paid_to_date", o.Invoice.PaidToDate.String()).
		Str("remaining", o.Invoice.Remaining.String()).Msg("payment recorded")
	s.publish(req.ShopID, EventPaymentRecorded, o)
	if o.Invoice.IsPaid && !wasPaid {
		s.publish(req.ShopID, EventOrderPaid, o)
	}
	return o, nil
}

func (s *OrderService) paymentBatch(inputs []PaymentInput, receivedBy string, now time.Time) []order.Payment {
	batchID := s.newID()
	batch := make([]order.Payment, len(inputs))
	for i, in := range inputs {
		batch[i] = order.Payment{
			ID:         s.newID(),
			BatchID:    batchID,
			Amount:     in.Amount,
			Method:     in.Method,
			AuthNumber: in.AuthNumber,
			ReceivedBy: receivedBy,
			PaidAt:     now,
		}
	}
	return batch
}

// MarkPickedUp records customer collection.
func (s *OrderService) MarkPickedUp(ctx context.Context, shopID uuid.UUID, invoiceID string) (*order.Order, error) {
	o, err := s.mutate(ctx, shopID, invoiceID, func(o *order.Order, _ OrderStore) error {
		return o.MarkPickedUp(s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publish(shopID, EventOrderPickedUp, o)
	return o, nil
}

// RepriceRequest edits priced fields from the invoice side.
type RepriceRequest struct {
	ShopID    uuid.UUID
	InvoiceID string
	Items     *order.PricedItems
	Discount  *money.Amount
	EditedBy  string
	Note      string
}

// Reprice changes items or discount and appends an edit record.
func (s *OrderService) Reprice(ctx context.Context, req RepriceRequest) (*order.Order, error) {
	o, err := s.mutate(ctx, req.ShopID, req.InvoiceID, func(o *order.Order, store OrderStore) error {
		rec, err := o.Reprice(order.PriceChange{
			Items:    req.Items,
			Discount: req.Discount,
			Source:   enum.EditSourceInvoice,
			EditedBy: req.EditedBy,
			Note:     req.Note,
		}, s.newID(), s.now())
		if err != nil {
			return err
		}
		return storeErr("append edit", store.AppendEdit(ctx, rec))
	})
	if err != nil {
		return nil, err
	}
	s.publish(req.ShopID, EventOrderRepriced, o)
	return o, nil
}

// EditWorkOrderRequest edits a work order. Price changes flow through to
// the linked invoice; details are stored as given.
type EditWorkOrderRequest struct {
	ShopID      uuid.UUID
	WorkOrderID string
	Items       *order.PricedItems
	Discount    *money.Amount
	Details     json.RawMessage
	EditedBy    string
	Note        string
}

// EditWorkOrder applies an edit made on the work order.
func (s *OrderService) EditWorkOrder(ctx context.Context, req EditWorkOrderRequest) (*order.Order, error) {
	if req.Items == nil && req.Discount == nil && req.Details == nil {
		return nil, fmt.Errorf("%w: items, discount or details", order.ErrMissingField)
	}
	wo, err := s.resolveWorkOrder(ctx, req.ShopID, req.WorkOrderID)
	if err != nil {
		return nil, err
	}
	if wo.InvoiceID == "" {
		return nil, fmt.Errorf("work order %s has no invoice: %w", wo.ID, order.ErrNotFound)
	}

	repriced := req.Items != nil || req.Discount != nil
	o, err := s.mutate(ctx, req.ShopID, wo.InvoiceID, func(o *order.Order, store OrderStore) error {
		now := s.now()
		if req.Details != nil {
			if err := o.WorkOrder.SetDetails(req.Details, now); err != nil {
				return err
			}
		}
		if !repriced {
			return nil
		}
		rec, err := o.Reprice(order.PriceChange{
			Items:    req.Items,
			Discount: req.Discount,
			Source:   enum.EditSourceWorkOrder,
			EditedBy: req.EditedBy,
			Note:     req.Note,
		}, s.newID(), now)
		if err != nil {
			return err
		}
		return storeErr("append edit", store.AppendEdit(ctx, rec))
	})
	if err != nil {
		return nil, err
	}
	if repriced {
		s.publish(req.ShopID, EventOrderRepriced, o)
	} else {
		s.publish(req.ShopID, EventWorkOrderUpdated, o)
	}
	return o, nil
}

// UpdateWorkOrderStatus moves a work order through fulfilment. Work
// orders without an invoice are updated on their own.
func (s *OrderService) UpdateWorkOrderStatus(ctx context.Context, shopID uuid.UUID, workOrderID, status string) (*order.WorkOrder, error) {
	wo, err := s.resolveWorkOrder(ctx, shopID, workOrderID)
	if err != nil {
		return nil, err
	}

	if wo.InvoiceID == "" {
		wo, err = s.mutateWorkOrder(ctx, shopID, workOrderID, func(wo *order.WorkOrder) error {
			return wo.SetStatus(status, s.now())
		})
		if err != nil {
			return nil, err
		}
		s.publish(shopID, EventWorkOrderStatus, wo)
		return wo, nil
	}

	o, err := s.mutate(ctx, shopID, wo.InvoiceID, func(o *order.Order, _ OrderStore) error {
		return o.SetWorkOrderStatus(status, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publish(shopID, EventWorkOrderStatus, o)
	return &o.WorkOrder, nil
}

// RefundRequest is a staff-initiated refund.
type RefundRequest struct {
	ShopID      uuid.UUID
	InvoiceID   string
	Amount      money.Amount
	Method      string
	Reason      string
	Notes       string
	ProcessedBy string
}

// ProcessRefund records a refund against collected money. The payment
// ledger is not touched.
func (s *OrderService) ProcessRefund(ctx context.Context, req RefundRequest) (*order.Order, order.Refund, error) {
	var refund order.Refund
	o, err := s.mutate(ctx, req.ShopID, req.InvoiceID, func(o *order.Order, store OrderStore) error {
		r, err := o.ApplyRefund(order.RefundRequest{
			Amount:      req.Amount,
			Method:      req.Method,
			Reason:      req.Reason,
			Notes:       req.Notes,
			ProcessedBy: req.ProcessedBy,
		}, s.methods, s.newID(), s.now())
		if err != nil {
			return err
		}
		refund = r
		return storeErr("insert refund", store.InsertRefund(ctx, r))
	})
	if err != nil {
		return nil, order.Refund{}, err
	}

	s.log.Info().Str("invoice_id", o.Invoice.ID).Str("amount", refund.Amount.String()).
		Str("method", refund.Method).Msg("refund processed")
	s.publish(req.ShopID, EventRefundProcessed, refund)
	return o, refund, nil
}

// ArchiveRequest soft-deletes an order through its work order.
type ArchiveRequest struct {
	ShopID      uuid.UUID
	WorkOrderID string
	Reason      string
	Actor       string
}

// ArchiveResult describes an archive. Order is nil when the work order had
// no invoice; Refund is nil when no money was owed back.
type ArchiveResult struct {
	Order     *order.Order     `json:"order,omitempty"`
	WorkOrder *order.WorkOrder `json:"work_order"`
	Refund    *order.Refund    `json:"refund,omitempty"`
}

// ArchiveOrder archives the work order and its invoice together, issuing
// an automatic refund of any collected money not yet refunded.
func (s *OrderService) ArchiveOrder(ctx context.Context, req ArchiveRequest) (*ArchiveResult, error) {
	actor := req.Actor
	if actor == "" {
		actor = enum.SystemActor
	}
	wo, err := s.resolveWorkOrder(ctx, req.ShopID, req.WorkOrderID)
	if err != nil {
		return nil, err
	}

	if wo.InvoiceID == "" {
		wo, err = s.mutateWorkOrder(ctx, req.ShopID, req.WorkOrderID, func(wo *order.WorkOrder) error {
			return order.ArchiveWorkOrder(wo, req.Reason, s.now())
		})
		if err != nil {
			return nil, err
		}
		s.log.Info().Str("work_order_id", wo.ID).Msg("orphan work order archived")
		s.publish(req.ShopID, EventOrderArchived, wo)
		return &ArchiveResult{WorkOrder: wo}, nil
	}

	var refund *order.Refund
	o, err := s.mutate(ctx, req.ShopID, wo.InvoiceID, func(o *order.Order, store OrderStore) error {
		r, err := o.Archive(req.Reason, actor, s.newID(), s.now())
		if err != nil {
			return err
		}
		refund = r
		if r == nil {
			return nil
		}
		return storeErr("insert refund", store.InsertRefund(ctx, *r))
	})
	if err != nil {
		return nil, err
	}

	ev := s.log.Info().Str("invoice_id", o.Invoice.ID).Str("work_order_id", o.WorkOrder.ID)
	if refund != nil {
		ev = ev.Str("auto_refund", refund.Amount.String())
		s.publish(req.ShopID, EventRefundProcessed, refund)
	}
	ev.Msg("order archived")
	s.publish(req.ShopID, EventOrderArchived, o)
	return &ArchiveResult{Order: o, WorkOrder: &o.WorkOrder, Refund: refund}, nil
}

// GetOrder returns the full order snapshot.
func (s *OrderService) GetOrder(ctx context.Context, shopID uuid.UUID, invoiceID string) (*order.Order, error) {
	var o *order.Order
	err := s.read(ctx, func(store OrderStore) error {
		var err error
		o, err = store.LoadOrder(ctx, shopID, invoiceID, false)
		if err != nil {
			return storeErr("load order", err)
		}
		return o.Validate()
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns one view of a shop's orders.
func (s *OrderService) ListOrders(ctx context.Context, shopID uuid.UUID, view string, limit, offset int32) ([]order.Summary, error) {
	switch view {
	case enum.OrderViewActive, enum.OrderViewCompleted, enum.OrderViewArchived:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidView, view)
	}
	var items []order.Summary
	err := s.read(ctx, func(store OrderStore) error {
		var err error
		items, err = store.ListOrders(ctx, shopID, view, limit, offset)
		return storeErr("list orders", err)
	})
	return items, err
}

// ListArchived returns archived orders.
func (s *OrderService) ListArchived(ctx context.Context, shopID uuid.UUID, limit, offset int32) ([]order.Summary, error) {
	return s.ListOrders(ctx, shopID, enum.OrderViewArchived, limit, offset)
}

// ListByPatient returns every order of a patient.
func (s *OrderService) ListByPatient(ctx context.Context, shopID uuid.UUID, patientID string) ([]order.Summary, error) {
	if patientID == "" {
		return nil, fmt.Errorf("%w: patient_id", order.ErrMissingField)
	}
	var items []order.Summary
	err := s.read(ctx, func(store OrderStore) error {
		var err error
		items, err = store.ListByPatient(ctx, shopID, patientID)
		return storeErr("list by patient", err)
	})
	return items, err
}

// --- Helpers ---

// mutate runs fn on a freshly loaded, locked order inside one transaction
// and saves the result. Nothing is written when fn or validation fails.
func (s *OrderService) mutate(ctx context.Context, shopID uuid.UUID, invoiceID string, fn func(o *order.Order, store OrderStore) error) (*order.Order, error) {
	if invoiceID == "" {
		return nil, fmt.Errorf("%w: invoice_id", order.ErrMissingField)
	}
	unlock, err := s.locker.Lock(ctx, invoiceID)
	if err != nil {
		return nil, persistenceErr("lock order "+invoiceID, err)
	}
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	o, err := store.LoadOrder(ctx, shopID, invoiceID, true)
	if err != nil {
		return nil, storeErr("load order", err)
	}
	if err := fn(o, store); err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		s.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("order failed validation after update")
		return nil, err
	}
	if err := store.SaveOrder(ctx, o); err != nil {
		return nil, storeErr("save order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit tx", err)
	}
	return o, nil
}

func (s *OrderService) mutateWorkOrder(ctx context.Context, shopID uuid.UUID, workOrderID string, fn func(wo *order.WorkOrder) error) (*order.WorkOrder, error) {
	unlock, err := s.locker.Lock(ctx, workOrderID)
	if err != nil {
		return nil, persistenceErr("lock work order "+workOrderID, err)
	}
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	wo, err := store.LoadWorkOrder(ctx, shopID, workOrderID, true)
	if err != nil {
		return nil, storeErr("load work order", err)
	}
	if err := fn(wo); err != nil {
		return nil, err
	}
	if err := store.SaveWorkOrder(ctx, wo); err != nil {
		return nil, storeErr("save work order", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, persistenceErr("commit tx", err)
	}
	return wo, nil
}

// resolveWorkOrder reads a work order to find its invoice. The link never
// changes once written, so it is safe to lock by invoice afterwards.
func (s *OrderService) resolveWorkOrder(ctx context.Context, shopID uuid.UUID, workOrderID string) (*order.WorkOrder, error) {
	if workOrderID == "" {
		return nil, fmt.Errorf("%w: work_order_id", order.ErrMissingField)
	}
	var wo *order.WorkOrder
	err := s.read(ctx, func(store OrderStore) error {
		var err error
		wo, err = store.LoadWorkOrder(ctx, shopID, workOrderID, false)
		return storeErr("load work order", err)
	})
	return wo, err
}

func (s *OrderService) read(ctx context.Context, fn func(store OrderStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistenceErr("begin tx", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	return fn(s.newStore(tx))
}

func (s *OrderService) publish(shopID uuid.UUID, eventType string, payload any) {
	if s.publisher != nil {
		s.publisher.Publish(shopID, eventType, payload)
	}
}

// storeErr classifies a store error. Not-found maps to ErrNotFound; domain
// errors raised while loading pass through; everything else is a
// persistence failure. A nil err stays nil.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, order.ErrNotFound)
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrInvariantViolation),
		errors.Is(err, order.ErrMissingWorkOrder),
		errors.Is(err, order.ErrPersistenceFailure):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return persistenceErr(op, err)
	}
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, order.ErrPersistenceFailure, err)
}
