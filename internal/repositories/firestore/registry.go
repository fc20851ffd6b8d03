package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/orderhub/api/internal/platform/firestore"
	"github.com/orderhub/api/internal/platform/observability"
	"github.com/orderhub/api/internal/repositories"
)

// Registry wires the Firestore-backed repositories behind the repository
// contracts and implements the unit of work over Firestore transactions.
type Registry struct {
	provider *pfirestore.Provider
	orders   *OrderRepository
	payments *PaymentRepository
	history  *HistoryRepository
}

// NewRegistry constructs the repository registry over a shared provider.
// The page limits apply to every cursor-paginated list query.
func NewRegistry(provider *pfirestore.Provider, limits PageLimits) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider, limits)
	if err != nil {
		return nil, err
	}
	payments, err := NewPaymentRepository(provider)
	if err != nil {
		return nil, err
	}
	history, err := NewHistoryRepository(provider, limits)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider: provider,
		orders:   orders,
		payments: payments,
		history:  history,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Payments returns the payment repository.
func (r *Registry) Payments() repositories.PaymentRepository { return r.payments }

// History returns the history repository.
func (r *Registry) History() repositories.HistoryRepository { return r.history }

// RunInTx executes fn inside one Firestore transaction, carried in the
// context so every repository call within joins it. A nested call joins the
// already-open transaction instead of starting a second one.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := pfirestore.TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return observability.TraceTx(ctx, "ledger.transaction", func(ctx context.Context) error {
		return r.provider.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
			return fn(pfirestore.WithTx(txCtx, tx))
		})
	})
}

var _ repositories.Registry = (*Registry)(nil)
