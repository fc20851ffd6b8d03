package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusDraft indicates the order is still being assembled and has not been submitted.
	OrderStatusDraft OrderStatus = "draft"
	// OrderStatusPending indicates the order awaits approval.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusApproved indicates the order has been approved and may enter fulfilment.
	OrderStatusApproved OrderStatus = "approved"
	// OrderStatusProcessing indicates the order is being prepared by the supplier.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order has left the supplier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the store. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before fulfilment. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRejected indicates the order was rejected during approval. Terminal.
	OrderStatusRejected OrderStatus = "rejected"
)

// PaymentStatus classifies how much of an order's total has been paid.
// It is always derived from the paid/total amounts (see DerivePaymentStatus),
// except for the explicit failed/refunded markers written by the payment ledger.
type PaymentStatus string

const (
	// PaymentStatusPending indicates nothing has been paid yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPartiallyPaid indicates a positive paid amount below the total.
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	// PaymentStatusPaid indicates the paid amount covers the total.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed indicates the most recent payment attempt failed with nothing paid.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates completed payments were refunded back to zero.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentState enumerates lifecycle states of an individual payment row.
type PaymentState string

const (
	// PaymentStatePending indicates the payment has been recorded but not settled.
	PaymentStatePending PaymentState = "pending"
	// PaymentStateProcessing indicates the payment is being settled externally.
	PaymentStateProcessing PaymentState = "processing"
	// PaymentStateCompleted indicates the payment settled and counts towards the order's paid amount.
	PaymentStateCompleted PaymentState = "completed"
	// PaymentStateFailed indicates the payment did not settle.
	PaymentStateFailed PaymentState = "failed"
	// PaymentStateRefunded indicates a completed payment was returned.
	PaymentStateRefunded PaymentState = "refunded"
)

// PaymentMethod enumerates supported settlement channels.
type PaymentMethod string

const (
	// PaymentMethodBankTransfer settles via invoice and bank transfer.
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	// PaymentMethodCard settles via a card terminal.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodCash settles in cash on delivery.
	PaymentMethodCash PaymentMethod = "cash"
	// PaymentMethodOnline settles through the online payment page.
	PaymentMethodOnline PaymentMethod = "online"
)

// SnapshotSchemaVersion tags snapshot value objects so later catalog-field
// additions can be distinguished from "field was absent at order time".
const SnapshotSchemaVersion = 1

// ProductSnapshot freezes the catalog attributes of a product at the moment
// a line item was created. Never refreshed afterwards.
type ProductSnapshot struct {
	SchemaVersion int
	Name          string
	SKU           string
	Category      string
	Supplier      string
}

// AddressSnapshot freezes the delivery address valid at order-creation time.
type AddressSnapshot struct {
	SchemaVersion int
	Label         string
	Line1         string
	Line2         string
	City          string
	Region        string
	PostalCode    string
	Country       string
	Phone         string
}

// OrderTotals holds the order's rolled-up monetary fields in minor currency units.
// Total is always Subtotal − Discount; the remaining amount is derived, never stored.
type OrderTotals struct {
	Subtotal int64
	Discount int64
	Total    int64
	Paid     int64
}

// Remaining reports the unpaid balance.
func (t OrderTotals) Remaining() int64 {
	return t.Total - t.Paid
}

// LineItem is a single product/quantity entry owned exclusively by one order.
type LineItem struct {
	ID        string
	ProductID string
	Quantity  int
	UnitPrice int64
	Total     int64
	Product   ProductSnapshot
	AddedAt   time.Time
	UpdatedAt time.Time
}

// OrderAudit records the actors responsible for creating/updating the order.
type OrderAudit struct {
	CreatedBy string
	UpdatedBy string
}

// Order is the aggregate root owning line items, totals, payment application,
// and the status lifecycle.
type Order struct {
	ID            string
	OrderNumber   string
	StoreID       string
	NetworkID     string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Currency      string
	Totals        OrderTotals
	Items         []LineItem
	DeliverTo     *AddressSnapshot
	DeliveryDate  *time.Time
	Notes         string
	Audit         OrderAudit
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ApprovedAt    *time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
	CancelledAt   *time.Time
	RejectedAt    *time.Time
	CancelReason  *string
	Payments      []Payment
	History       []HistoryEntry
}

// RemainingAmount reports the order's unpaid balance.
func (o Order) RemainingAmount() int64 {
	return o.Totals.Remaining()
}

// Item returns the line item with the given ID, if present.
func (o Order) Item(itemID string) (LineItem, bool) {
	for _, item := range o.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return LineItem{}, false
}

// Payment records money applied against an order. Rows are append-mostly:
// a refund mutates the state, not the history of what was paid.
type Payment struct {
	ID             string
	OrderID        string
	PaymentNumber  string
	Amount         int64
	Method         PaymentMethod
	State          PaymentState
	TransactionID  *string
	PaymentDate    *time.Time
	RefundedAmount int64
	RefundedAt     *time.Time
	FailureReason  string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HistoryEntry is an immutable audit record of a single change to an order.
// ActorID is nil when the acting user has since been deleted.
type HistoryEntry struct {
	ID          string
	OrderID     string
	ActorID     *string
	Action      string
	Field       string
	OldValue    string
	NewValue    string
	Description string
	CreatedAt   time.Time
}
