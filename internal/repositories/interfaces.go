package repositories

import (
	"context"
	"time"

	domain "github.com/orderhub/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Payments() PaymentRepository
	History() HistoryRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository operations in a transactional boundary. Every
// read-modify-write over an order's derived fields must run inside RunInTx so
// a concurrent mutation aborts instead of silently losing an update.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers together with their embedded line items.
// Insert reserves the order number; a duplicate number surfaces as a conflict.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// Delete removes the order header, its number reservation, and its line
	// items. Callers gate deletion on draft status with no payments.
	Delete(ctx context.Context, order domain.Order) error
}

// PaymentRepository stores payment rows underneath an order.
// Insert reserves the payment number; a duplicate number surfaces as a conflict.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	Update(ctx context.Context, payment domain.Payment) error
	FindByID(ctx context.Context, orderID, paymentID string) (domain.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
}

// HistoryRepository persists immutable order history entries. There is
// deliberately no update or delete method.
type HistoryRepository interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
	ListByOrder(ctx context.Context, orderID string, pager domain.Pagination) (domain.CursorPage[domain.HistoryEntry], error)
}

// OrderListFilter narrows order listings for stores, networks, and reporting consumers.
type OrderListFilter struct {
	StoreID    string
	NetworkID  string
	CreatedBy  string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}
