package services

import (
	"context"
	"time"

	domain "github.com/orderhub/api/internal/domain"
	"github.com/orderhub/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination      = domain.Pagination
	SortOrder       = domain.SortOrder
	Order           = domain.Order
	OrderTotals     = domain.OrderTotals
	OrderAudit      = domain.OrderAudit
	OrderStatus     = domain.OrderStatus
	LineItem        = domain.LineItem
	ProductSnapshot = domain.ProductSnapshot
	AddressSnapshot = domain.AddressSnapshot
	Payment         = domain.Payment
	PaymentStatus   = domain.PaymentStatus
	PaymentState    = domain.PaymentState
	PaymentMethod   = domain.PaymentMethod
	HistoryEntry    = domain.HistoryEntry
)

// OrderService owns the order aggregate: creation, line-item mutations with
// synchronous recalculation, the status state machine, and draft deletion.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	AddItem(ctx context.Context, cmd AddItemCommand) (Order, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateItemQuantityCommand) (Order, error)
	RemoveItem(ctx context.Context, cmd RemoveItemCommand) (Order, error)
	SetDiscount(ctx context.Context, cmd SetDiscountCommand) (Order, error)
	TransitionStatus(ctx context.Context, cmd TransitionStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	DeleteDraft(ctx context.Context, cmd DeleteDraftCommand) error
}

// PaymentService maintains the payment ledger beneath an order and keeps the
// order's paid amount and payment status in step with it.
type PaymentService interface {
	ApplyPayment(ctx context.Context, cmd ApplyPaymentCommand) (Payment, error)
	CompletePayment(ctx context.Context, cmd CompletePaymentCommand) (Payment, error)
	FailPayment(ctx context.Context, cmd FailPaymentCommand) (Payment, error)
	RefundPayment(ctx context.Context, cmd RefundPaymentCommand) (Payment, error)
	ListPayments(ctx context.Context, orderID string) ([]Payment, error)
}

// HistoryService centralises immutable order history persistence and retrieval.
type HistoryService interface {
	HistoryRecorder
	ListByOrder(ctx context.Context, orderID string, pager Pagination) (domain.CursorPage[HistoryEntry], error)
}

// HistoryRecorder accepts history entries for best-effort appending. Failures
// are logged by the implementation, never returned; audit writing must not
// abort the mutation it documents.
type HistoryRecorder interface {
	Record(ctx context.Context, record HistoryRecord)
}

// NumberGenerator produces candidate order and payment numbers. Uniqueness is
// enforced at persistence time; callers retry with a fresh number on conflict.
type NumberGenerator interface {
	NextOrderNumber(now time.Time) string
	NextPaymentNumber(now time.Time) string
}

// ProductCatalog is the read-only catalog collaborator. The ledger never
// mutates catalog state, only snapshots it.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (CatalogProduct, error)
}

// CatalogProduct carries the catalog fields the ledger snapshots and prices from.
type CatalogProduct struct {
	ID        string
	Name      string
	SKU       string
	Category  string
	Supplier  string
	Price     int64
	Orderable bool
}

// Directory resolves store addresses and actors from the account system.
type Directory interface {
	GetAddress(ctx context.Context, addressID string) (DirectoryAddress, error)
	GetActor(ctx context.Context, actorID string) (Actor, error)
}

// DirectoryAddress is the mutable source record an address snapshot is built from.
type DirectoryAddress struct {
	ID         string
	Label      string
	Line1      string
	Line2      string
	City       string
	Region     string
	PostalCode string
	Country    string
	Phone      string
}

// Actor identifies the user performing a mutation. Every mutating operation
// takes the actor explicitly; nothing is read from ambient request state.
type Actor struct {
	ID          string
	DisplayName string
	Role        string
}

// ApprovalPolicy decides whether a submitted order needs managerial approval.
// Consulted by callers before driving the pending → approved transition.
type ApprovalPolicy interface {
	RequiresApproval(ctx context.Context, order Order) (bool, error)
	Threshold() int64
}

// Command and DTO definitions ------------------------------------------------

type OrderListFilter = repositories.OrderListFilter

type OrderReadOptions struct {
	IncludePayments bool
	IncludeHistory  bool
}

// OrderItemSpec names a product and quantity for order creation.
type OrderItemSpec struct {
	ProductID string
	Quantity  int
}

type CreateOrderCommand struct {
	StoreID           string
	NetworkID         string
	ActorID           string
	Currency          string
	DeliveryAddressID string
	DeliveryDate      *time.Time
	Notes             string
	// Submit places the order directly in pending, the checkout conversion
	// path. Without it the order starts as an editable draft.
	Submit bool
	Items  []OrderItemSpec
}

type AddItemCommand struct {
	OrderID   string
	ActorID   string
	ProductID string
	Quantity  int
}

type UpdateItemQuantityCommand struct {
	OrderID  string
	ItemID   string
	ActorID  string
	Quantity int
}

type RemoveItemCommand struct {
	OrderID string
	ItemID  string
	ActorID string
}

type SetDiscountCommand struct {
	OrderID  string
	ActorID  string
	Discount int64
}

type TransitionStatusCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	ActorID        string
	Reason         string
	ExpectedStatus *OrderStatus
}

type CancelOrderCommand struct {
	OrderID        string
	ActorID        string
	Reason         string
	ExpectedStatus *OrderStatus
}

type DeleteDraftCommand struct {
	OrderID string
	ActorID string
}

type ApplyPaymentCommand struct {
	OrderID       string
	ActorID       string
	Amount        int64
	Method        PaymentMethod
	TransactionID *string
}

type CompletePaymentCommand struct {
	OrderID       string
	PaymentID     string
	ActorID       string
	TransactionID *string
}

type FailPaymentCommand struct {
	OrderID   string
	PaymentID string
	ActorID   string
	Reason    string
}

type RefundPaymentCommand struct {
	OrderID   string
	PaymentID string
	ActorID   string
	// Amount defaults to the payment's full amount when nil.
	Amount *int64
	Reason string
}

// HistoryRecord defines the payload accepted by the history writer service.
type HistoryRecord struct {
	OrderID     string
	ActorID     *string
	Action      string
	Field       string
	OldValue    string
	NewValue    string
	Description string
}
