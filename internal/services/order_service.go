package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/orderhub/api/internal/domain"
	"github.com/orderhub/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventRecalculated  = "order.recalculated"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix    = "ord_"
	lineItemIDPrefix = "itm_"

	defaultNumberRetries = 1

	historyActionOrderCreated      = "order_created"
	historyActionItemAdded         = "item_added"
	historyActionItemQuantity      = "item_quantity_changed"
	historyActionItemRemoved       = "item_removed"
	historyActionDiscountChanged   = "discount_changed"
	historyActionStatusChanged     = "status_changed"
	historyActionOrderCancelled     = "order_cancelled"
	historyActionDiscountReconciled = "discount_reconciled"
	historyActionPaymentReconciled  = "payment_reconciled"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order or line item could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the status machine rejected the move.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a concurrent mutation or duplicate number.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderImmutable indicates the order reached a terminal status.
	ErrOrderImmutable = errors.New("order: terminal status forbids mutation")
	// ErrProductUnavailable indicates the product cannot currently be ordered.
	ErrProductUnavailable = errors.New("order: product unavailable")

	errOrderPaymentRepositoryUnavailable = errors.New("order: payment repository not configured")
	errOrderHistoryServiceUnavailable    = errors.New("order: history service not configured")
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	StoreID        string
	PreviousStatus OrderStatus
	CurrentStatus  OrderStatus
	PaymentStatus  PaymentStatus
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Payments    repositories.PaymentRepository
	History     HistoryService
	UnitOfWork  repositories.UnitOfWork
	Catalog     ProductCatalog
	Directory   Directory
	Numbers     NumberGenerator
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
	// NumberRetries bounds how many fresh numbers are attempted after a
	// reservation collision. Defaults to 1 when unset.
	NumberRetries int
}

type orderService struct {
	orders        repositories.OrderRepository
	payments      repositories.PaymentRepository
	history       HistoryService
	unitOfWork    repositories.UnitOfWork
	catalog       ProductCatalog
	directory     Directory
	numbers       NumberGenerator
	clock         func() time.Time
	newID         func() string
	events        OrderEventPublisher
	logger        func(context.Context, string, map[string]any)
	numberRetries int
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: product catalog is required")
	}
	if deps.Numbers == nil {
		return nil, errors.New("order service: number generator is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	retries := deps.NumberRetries
	if retries < 1 {
		retries = defaultNumberRetries
	}

	return &orderService{
		orders:     deps.Orders,
		payments:   deps.Payments,
		history:    deps.History,
		unitOfWork: unit,
		catalog:    deps.Catalog,
		directory:  deps.Directory,
		numbers:    deps.Numbers,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:         idGen,
		events:        deps.Events,
		logger:        logger,
		numberRetries: retries,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	storeID := strings.TrimSpace(cmd.StoreID)
	if storeID == "" {
		return Order{}, fmt.Errorf("%w: store id is required", ErrOrderInvalidInput)
	}
	currency := strings.TrimSpace(cmd.Currency)
	if currency == "" {
		return Order{}, fmt.Errorf("%w: currency is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	for _, input := range cmd.Items {
		if strings.TrimSpace(input.ProductID) == "" {
			return Order{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
		}
		if input.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: quantity must be at least 1", ErrOrderInvalidInput)
		}
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)

	// Catalog and directory reads happen before the transaction; nothing
	// inside the unit of work blocks on external collaborators.
	if actor != "" && s.directory != nil {
		if _, err := s.directory.GetActor(ctx, actor); err != nil {
			return Order{}, fmt.Errorf("%w: actor %s: %v", ErrOrderInvalidInput, actor, err)
		}
	}

	items := make([]LineItem, 0, len(cmd.Items))
	for _, input := range cmd.Items {
		item, err := s.buildLineItem(ctx, input.ProductID, input.Quantity, now)
		if err != nil {
			return Order{}, err
		}
		items = append(items, item)
	}

	var deliverTo *AddressSnapshot
	if addressID := strings.TrimSpace(cmd.DeliveryAddressID); addressID != "" {
		if s.directory == nil {
			return Order{}, fmt.Errorf("%w: delivery address requires a directory", ErrOrderInvalidInput)
		}
		address, err := s.directory.GetAddress(ctx, addressID)
		if err != nil {
			return Order{}, fmt.Errorf("%w: delivery address %s: %v", ErrOrderInvalidInput, addressID, err)
		}
		snapshot := buildAddressSnapshot(address)
		deliverTo = &snapshot
	}

	status := domain.OrderStatusDraft
	if cmd.Submit {
		status = domain.OrderStatusPending
	}

	subtotal := domain.SumLineTotals(items)
	order := Order{
		ID:            orderIDPrefix + s.newID(),
		StoreID:       storeID,
		NetworkID:     strings.TrimSpace(cmd.NetworkID),
		Status:        status,
		PaymentStatus: domain.PaymentStatusPending,
		Currency:      currency,
		Totals: OrderTotals{
			Subtotal: subtotal,
			Discount: 0,
			Total:    subtotal,
			Paid:     0,
		},
		Items:        items,
		DeliverTo:    deliverTo,
		DeliveryDate: cmd.DeliveryDate,
		Notes:        strings.TrimSpace(cmd.Notes),
		Audit:        OrderAudit{CreatedBy: actor, UpdatedBy: actor},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.insertWithFreshNumber(ctx, &order, actor, now); err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		StoreID:       order.StoreID,
		CurrentStatus: order.Status,
		PaymentStatus: order.PaymentStatus,
		ActorID:       actor,
		OccurredAt:    now,
	})

	return order, nil
}

// insertWithFreshNumber persists a new order, retrying with a freshly
// generated order number when the reservation collides. The number index is
// the source of truth for uniqueness; the generator only promises low
// collision probability.
func (s *orderService) insertWithFreshNumber(ctx context.Context, order *Order, actor string, now time.Time) error {
	for attempt := 0; ; attempt++ {
		order.OrderNumber = s.numbers.NextOrderNumber(now)

		err := s.runInTx(ctx, func(txCtx context.Context) error {
			if err := s.orders.Insert(txCtx, *order); err != nil {
				return s.mapRepositoryError(err)
			}
			s.recordHistory(txCtx, HistoryRecord{
				OrderID:     order.ID,
				ActorID:     optionalActor(actor),
				Action:      historyActionOrderCreated,
				NewValue:    string(order.Status),
				Description: fmt.Sprintf("order %s created", order.OrderNumber),
			})
			return nil
		})
		if err == nil {
			return nil
		}
		if attempt < s.numberRetries && errors.Is(err, ErrOrderConflict) {
			s.logger(ctx, "order.number.collision", map[string]any{
				"order":  order.ID,
				"number": order.OrderNumber,
			})
			continue
		}
		return err
	}
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if opts.IncludePayments {
		if s.payments == nil {
			return Order{}, errOrderPaymentRepositoryUnavailable
		}
		payments, err := s.payments.ListByOrder(ctx, orderID)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		order.Payments = payments
	}

	if opts.IncludeHistory {
		if s.history == nil {
			return Order{}, errOrderHistoryServiceUnavailable
		}
		page, err := s.history.ListByOrder(ctx, orderID, Pagination{})
		if err != nil {
			return Order{}, err
		}
		order.History = page.Items
	}

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) AddItem(ctx context.Context, cmd AddItemCommand) (Order, error) {
	if strings.TrimSpace(cmd.ProductID) == "" {
		return Order{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	}
	if cmd.Quantity < 1 {
		return Order{}, fmt.Errorf("%w: quantity must be at least 1", ErrOrderInvalidInput)
	}

	now := s.now()
	item, err := s.buildLineItem(ctx, cmd.ProductID, cmd.Quantity, now)
	if err != nil {
		return Order{}, err
	}

	actor := strings.TrimSpace(cmd.ActorID)
	order, err := s.mutateOrder(ctx, cmd.OrderID, func(txCtx context.Context, order *Order) error {
		order.Items = append(order.Items, item)
		s.recalculate(txCtx, order, actor, now)
		s.stampUpdate(order, actor, now)
		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     order.ID,
			ActorID:     optionalActor(actor),
			Action:      historyActionItemAdded,
			Field:       "items",
			NewValue:    fmt.Sprintf("%s x%d", item.ProductID, item.Quantity),
			Description: fmt.Sprintf("added %s (qty %d)", item.Product.Name, item.Quantity),
		})
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishRecalculated(ctx, order, actor, now)
	return order, nil
}

func (s *orderService) UpdateItemQuantity(ctx context.Context, cmd UpdateItemQuantityCommand) (Order, error) {
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return Order{}, fmt.Errorf("%w: item id is required", ErrOrderInvalidInput)
	}
	if cmd.Quantity < 1 {
		return Order{}, fmt.Errorf("%w: quantity must be at least 1", ErrOrderInvalidInput)
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)
	order, err := s.mutateOrder(ctx, cmd.OrderID, func(txCtx context.Context, order *Order) error {
		idx := -1
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: line item %s", ErrOrderNotFound, itemID)
		}

		oldQuantity := order.Items[idx].Quantity
		order.Items[idx].Quantity = cmd.Quantity
		// Unit price stays frozen at what was copied when the line was added.
		order.Items[idx].Total = domain.LineTotal(order.Items[idx].UnitPrice, cmd.Quantity)
		order.Items[idx].UpdatedAt = now

		s.recalculate(txCtx, order, actor, now)
		s.stampUpdate(order, actor, now)
		s.recordHistory(txCtx, HistoryRecord{
			OrderID:  order.ID,
			ActorID:  optionalActor(actor),
			Action:   historyActionItemQuantity,
			Field:    "quantity",
			OldValue: strconv.Itoa(oldQuantity),
			NewValue: strconv.Itoa(cmd.Quantity),
		})
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishRecalculated(ctx, order, actor, now)
	return order, nil
}

func (s *orderService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (Order, error) {
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return Order{}, fmt.Errorf("%w: item id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)
	order, err := s.mutateOrder(ctx, cmd.OrderID, func(txCtx context.Context, order *Order) error {
		idx := -1
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: line item %s", ErrOrderNotFound, itemID)
		}

		removed := order.Items[idx]
		order.Items = append(order.Items[:idx], order.Items[idx+1:]...)

		s.recalculate(txCtx, order, actor, now)
		s.stampUpdate(order, actor, now)
		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     order.ID,
			ActorID:     optionalActor(actor),
			Action:      historyActionItemRemoved,
			Field:       "items",
			OldValue:    fmt.Sprintf("%s x%d", removed.ProductID, removed.Quantity),
			Description: fmt.Sprintf("removed %s", removed.Product.Name),
		})
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishRecalculated(ctx, order, actor, now)
	return order, nil
}

func (s *orderService) SetDiscount(ctx context.Context, cmd SetDiscountCommand) (Order, error) {
	if cmd.Discount < 0 {
		return Order{}, fmt.Errorf("%w: discount cannot be negative", ErrOrderInvalidInput)
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)
	order, err := s.mutateOrder(ctx, cmd.OrderID, func(txCtx context.Context, order *Order) error {
		if cmd.Discount > order.Totals.Subtotal {
			return fmt.Errorf("%w: discount %d exceeds subtotal %d", ErrOrderInvalidInput, cmd.Discount, order.Totals.Subtotal)
		}

		oldDiscount := order.Totals.Discount
		order.Totals.Discount = cmd.Discount

		s.recalculate(txCtx, order, actor, now)
		s.stampUpdate(order, actor, now)
		s.recordHistory(txCtx, HistoryRecord{
			OrderID:  order.ID,
			ActorID:  optionalActor(actor),
			Action:   historyActionDiscountChanged,
			Field:    "discount_amount",
			OldValue: strconv.FormatInt(oldDiscount, 10),
			NewValue: strconv.FormatInt(cmd.Discount, 10),
		})
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishRecalculated(ctx, order, actor, now)
	return order, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionStatusCommand) (Order, error) {
	target := cmd.TargetStatus
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if !domain.ValidOrderStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)

	var previous OrderStatus
	order, err := s.transitionInTx(ctx, cmd.OrderID, func(txCtx context.Context, order *Order) error {
		if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
			return fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, order.Status)
		}
		previous = order.Status
		if err := s.applyStatusTransition(order, target, actor, now); err != nil {
			return err
		}
		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     order.ID,
			ActorID:     optionalActor(actor),
			Action:      historyActionStatusChanged,
			Field:       "status",
			OldValue:    string(previous),
			NewValue:    string(target),
			Description: strings.TrimSpace(cmd.Reason),
		})
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		StoreID:        order.StoreID,
		PreviousStatus: previous,
		CurrentStatus:  order.Status,
		PaymentStatus:  order.PaymentStatus,
		ActorID:        actor,
		OccurredAt:     now,
	})

	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)
	reason := strings.TrimSpace(cmd.Reason)

	var previous OrderStatus
	order, err := s.transitionInTx(ctx, cmd.OrderID, func(txCtx context.Context, order *Order) error {
		if !domain.CanCancel(order.Status) {
			return fmt.Errorf("%w: order status %q cannot be cancelled", ErrOrderInvalidTransition, order.Status)
		}
		if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
			return fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, order.Status)
		}

		previous = order.Status
		order.CancelReason = optionalString(reason)
		if err := s.applyStatusTransition(order, domain.OrderStatusCancelled, actor, now); err != nil {
			return err
		}
		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     order.ID,
			ActorID:     optionalActor(actor),
			Action:      historyActionOrderCancelled,
			Field:       "status",
			OldValue:    string(previous),
			NewValue:    string(domain.OrderStatusCancelled),
			Description: reason,
		})
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		StoreID:        order.StoreID,
		PreviousStatus: previous,
		CurrentStatus:  order.Status,
		PaymentStatus:  order.PaymentStatus,
		ActorID:        actor,
		OccurredAt:     now,
		Metadata:       map[string]any{"reason": reason},
	})

	return order, nil
}

func (s *orderService) DeleteDraft(ctx context.Context, cmd DeleteDraftCommand) error {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if s.payments == nil {
		return errOrderPaymentRepositoryUnavailable
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)

	var deleted Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if order.Status != domain.OrderStatusDraft {
			return fmt.Errorf("%w: only draft orders may be deleted", ErrOrderInvalidInput)
		}
		payments, err := s.payments.ListByOrder(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if len(payments) > 0 {
			return fmt.Errorf("%w: order has payments and cannot be deleted", ErrOrderInvalidInput)
		}
		if err := s.orders.Delete(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		deleted = order
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventDeleted,
		OrderID:        deleted.ID,
		OrderNumber:    deleted.OrderNumber,
		StoreID:        deleted.StoreID,
		PreviousStatus: domain.OrderStatusDraft,
		ActorID:        actor,
		OccurredAt:     now,
	})

	return nil
}

// mutateOrder runs a read-modify-write over the order inside the unit of
// work. The order is read within the transaction so a concurrent mutation
// aborts and retries instead of silently losing an update.
func (s *orderService) mutateOrder(ctx context.Context, orderID string, fn func(txCtx context.Context, order *Order) error) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var updated Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if domain.IsTerminal(order.Status) {
			return fmt.Errorf("%w: status %q", ErrOrderImmutable, order.Status)
		}
		if err := fn(txCtx, &order); err != nil {
			return err
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// transitionInTx is mutateOrder without the terminal gate; the status machine
// itself reports terminal states as invalid transitions.
func (s *orderService) transitionInTx(ctx context.Context, orderID string, fn func(txCtx context.Context, order *Order) error) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var updated Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if err := fn(txCtx, &order); err != nil {
			return err
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}

// recalculate recomputes the order's derived monetary fields from its current
// line items and discount. A discount left above the shrunken subtotal is
// reconciled down first so the total never goes negative, and payments
// already exceeding the new total are clamped; both repairs are documented
// with history entries. Rejecting the recalculation instead would block
// legitimate item corrections after partial payment.
func (s *orderService) recalculate(txCtx context.Context, order *Order, actor string, now time.Time) {
	order.Totals.Subtotal = domain.SumLineTotals(order.Items)

	if order.Totals.Discount > order.Totals.Subtotal {
		oldDiscount := order.Totals.Discount
		order.Totals.Discount = order.Totals.Subtotal
		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     order.ID,
			ActorID:     optionalActor(actor),
			Action:      historyActionDiscountReconciled,
			Field:       "discount_amount",
			OldValue:    strconv.FormatInt(oldDiscount, 10),
			NewValue:    strconv.FormatInt(order.Totals.Discount, 10),
			Description: "discount reduced to recalculated subtotal",
		})
	}

	// Subtotal and discount are both non-negative and discount never exceeds
	// the subtotal, so the total (and any clamped paid amount) stays >= 0.
	order.Totals.Total = order.Totals.Subtotal - order.Totals.Discount

	if order.Totals.Paid > order.Totals.Total {
		oldPaid := order.Totals.Paid
		order.Totals.Paid = order.Totals.Total
		order.PaymentStatus = domain.DerivePaymentStatus(order.Totals.Paid, order.Totals.Total)
		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     order.ID,
			ActorID:     optionalActor(actor),
			Action:      historyActionPaymentReconciled,
			Field:       "paid_amount",
			OldValue:    strconv.FormatInt(oldPaid, 10),
			NewValue:    strconv.FormatInt(order.Totals.Paid, 10),
			Description: "paid amount clamped to recalculated total",
		})
		return
	}

	// failed/refunded are explicit payment-ledger markers; recalculation
	// leaves them in place until a new payment event re-derives the status.
	if order.PaymentStatus != domain.PaymentStatusFailed && order.PaymentStatus != domain.PaymentStatusRefunded {
		order.PaymentStatus = domain.DerivePaymentStatus(order.Totals.Paid, order.Totals.Total)
	}
}

func (s *orderService) applyStatusTransition(order *Order, target OrderStatus, actor string, now time.Time) error {
	current := order.Status
	if !domain.CanTransition(current, target) {
		return fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, current, target)
	}

	order.Status = target
	s.stampStatusTimestamps(order, target, now)
	s.stampUpdate(order, actor, now)
	return nil
}

// stampStatusTimestamps sets the lifecycle timestamp for the entered status.
// Each is written at most once and never cleared.
func (s *orderService) stampStatusTimestamps(order *Order, status OrderStatus, now time.Time) {
	switch status {
	case domain.OrderStatusApproved:
		if order.ApprovedAt == nil {
			order.ApprovedAt = &now
		}
	case domain.OrderStatusShipped:
		if order.ShippedAt == nil {
			order.ShippedAt = &now
		}
	case domain.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			order.DeliveredAt = &now
		}
	case domain.OrderStatusCancelled:
		if order.CancelledAt == nil {
			order.CancelledAt = &now
		}
	case domain.OrderStatusRejected:
		if order.RejectedAt == nil {
			order.RejectedAt = &now
		}
	}
}

func (s *orderService) stampUpdate(order *Order, actor string, now time.Time) {
	order.UpdatedAt = now
	if actor != "" {
		order.Audit.UpdatedBy = actor
	}
}

func (s *orderService) buildLineItem(ctx context.Context, productID string, quantity int, now time.Time) (LineItem, error) {
	productID = strings.TrimSpace(productID)
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return LineItem{}, fmt.Errorf("%w: product %s: %v", ErrOrderInvalidInput, productID, err)
	}
	if !product.Orderable {
		return LineItem{}, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}

	// Price is copied at the moment of addition and never re-fetched.
	return LineItem{
		ID:        lineItemIDPrefix + s.newID(),
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		Total:     domain.LineTotal(product.Price, quantity),
		Product:   buildProductSnapshot(product),
		AddedAt:   now,
		UpdatedAt: now,
	}, nil
}

func (s *orderService) recordHistory(ctx context.Context, record HistoryRecord) {
	if s.history == nil {
		return
	}
	s.history.Record(ctx, record)
}

func (s *orderService) publishRecalculated(ctx context.Context, order Order, actor string, now time.Time) {
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventRecalculated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		StoreID:       order.StoreID,
		CurrentStatus: order.Status,
		PaymentStatus: order.PaymentStatus,
		ActorID:       actor,
		OccurredAt:    now,
		Metadata: map[string]any{
			"subtotal": order.Totals.Subtotal,
			"total":    order.Totals.Total,
			"paid":     order.Totals.Paid,
		},
	})
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func optionalActor(actor string) *string {
	return optionalString(strings.TrimSpace(actor))
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	ref := *value
	return &ref
}
