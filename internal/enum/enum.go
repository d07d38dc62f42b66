package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	InvoiceStatusDraft         = "DRAFT"
	InvoiceStatusSaved         = "SAVED"
	InvoiceStatusPartiallyPaid = "PARTIALLY_PAID"
	InvoiceStatusPaid          = "PAID"
	InvoiceStatusPickedUp      = "PICKED_UP"
	InvoiceStatusRefunded      = "REFUNDED"
	InvoiceStatusArchived      = "ARCHIVED"
)

const (
	WorkOrderStatusPending    = "PENDING"
	WorkOrderStatusInProgress = "IN_PROGRESS"
	WorkOrderStatusComplete   = "COMPLETE"
)

const (
	EditSourceInvoice   = "INVOICE"
	EditSourceWorkOrder = "WORK_ORDER"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner    = "OWNER"
	UserRoleManager  = "MANAGER"
	UserRoleCashier  = "CASHIER"
	UserRoleOptician = "OPTICIAN"
)

const (
	OrderViewActive    = "active"
	OrderViewCompleted = "completed"
	OrderViewArchived  = "archived"
)

// ── Group B: Configurable labels (no DB constraint) ──

// Default payment methods. The accepted list is injected through
// PAYMENT_METHODS; these only seed it.
const (
	PaymentMethodCash      = "CASH"
	PaymentMethodKnet      = "KNET"
	PaymentMethodCard      = "CARD"
	PaymentMethodTransfer  = "TRANSFER"
	PaymentMethodInsurance = "INSURANCE"
)

// DefaultPaymentMethods is used when no list is configured.
var DefaultPaymentMethods = []string{
	PaymentMethodCash,
	PaymentMethodKnet,
	PaymentMethodCard,
	PaymentMethodTransfer,
	PaymentMethodInsurance,
}

const (
	ArchiveRefundReason = "Automatic refund on order archive"
	SystemActor         = "system"
)
