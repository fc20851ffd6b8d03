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
	paymentEventApplied   = "payment.applied"
	paymentEventCompleted = "payment.completed"
	paymentEventFailed    = "payment.failed"
	paymentEventRefunded  = "payment.refunded"

	paymentIDPrefix = "pay_"

	historyActionPaymentAdded     = "payment_added"
	historyActionPaymentCompleted = "payment_completed"
	historyActionPaymentFailed    = "payment_failed"
	historyActionPaymentRefunded  = "payment_refunded"
)

var (
	// ErrPaymentInvalidInput signals the caller provided invalid data.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentInvalidAmount indicates an amount outside the permitted range.
	ErrPaymentInvalidAmount = errors.New("payment: invalid amount")
	// ErrPaymentNotFound indicates the payment could not be located.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrPaymentInvalidState indicates the payment's state forbids the operation.
	ErrPaymentInvalidState = errors.New("payment: invalid state")
	// ErrPaymentConflict indicates a concurrent mutation or duplicate number.
	ErrPaymentConflict = errors.New("payment: conflict")
)

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders      repositories.OrderRepository
	Payments    repositories.PaymentRepository
	History     HistoryRecorder
	UnitOfWork  repositories.UnitOfWork
	Numbers     NumberGenerator
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
	// NumberRetries bounds how many fresh numbers are attempted after a
	// reservation collision. Defaults to 1 when unset.
	NumberRetries int
}

type paymentService struct {
	orders        repositories.OrderRepository
	payments      repositories.PaymentRepository
	history       HistoryRecorder
	unitOfWork    repositories.UnitOfWork
	numbers       NumberGenerator
	clock         func() time.Time
	newID         func() string
	events        OrderEventPublisher
	logger        func(context.Context, string, map[string]any)
	numberRetries int
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}
	if deps.Numbers == nil {
		return nil, errors.New("payment service: number generator is required")
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

	return &paymentService{
		orders:     deps.Orders,
		payments:   deps.Payments,
		history:    deps.History,
		unitOfWork: unit,
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

func (s *paymentService) ApplyPayment(ctx context.Context, cmd ApplyPaymentCommand) (Payment, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Payment{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	if cmd.Amount <= 0 {
		return Payment{}, fmt.Errorf("%w: amount must be positive", ErrPaymentInvalidAmount)
	}
	if !domain.ValidPaymentMethod(cmd.Method) {
		return Payment{}, fmt.Errorf("%w: unknown payment method %q", ErrPaymentInvalidInput, cmd.Method)
	}

	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)

	var payment Payment
	var order Order
	// The payment number index is the source of truth for uniqueness; retry
	// with a fresh number when the reservation collides.
	for attempt := 0; ; attempt++ {
		paymentNumber := s.numbers.NextPaymentNumber(now)

		err := s.runInTx(ctx, func(txCtx context.Context) error {
			var err error
			order, err = s.orders.FindByID(txCtx, orderID)
			if err != nil {
				return s.mapRepositoryError(err, ErrOrderNotFound)
			}
			if cmd.Amount > order.RemainingAmount() {
				return fmt.Errorf("%w: amount %d exceeds remaining balance %d", ErrPaymentInvalidAmount, cmd.Amount, order.RemainingAmount())
			}

			payment = Payment{
				ID:            paymentIDPrefix + s.newID(),
				OrderID:       orderID,
				PaymentNumber: paymentNumber,
				Amount:        cmd.Amount,
				Method:        cmd.Method,
				State:         domain.PaymentStatePending,
				TransactionID: cloneStringPtr(cmd.TransactionID),
				CreatedBy:     actor,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := s.payments.Insert(txCtx, payment); err != nil {
				return s.mapRepositoryError(err, ErrPaymentNotFound)
			}
			s.recordHistory(txCtx, HistoryRecord{
				OrderID:     orderID,
				ActorID:     optionalActor(actor),
				Action:      historyActionPaymentAdded,
				Field:       "payments",
				NewValue:    strconv.FormatInt(cmd.Amount, 10),
				Description: fmt.Sprintf("payment %s (%s) recorded", paymentNumber, cmd.Method),
			})
			return nil
		})
		if err == nil {
			break
		}
		if attempt < s.numberRetries && errors.Is(err, ErrPaymentConflict) {
			s.logger(ctx, "payment.number.collision", map[string]any{
				"order":  orderID,
				"number": paymentNumber,
			})
			continue
		}
		return Payment{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          paymentEventApplied,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		StoreID:       order.StoreID,
		CurrentStatus: order.Status,
		PaymentStatus: order.PaymentStatus,
		ActorID:       actor,
		OccurredAt:    now,
		Metadata: map[string]any{
			"paymentId": payment.ID,
			"amount":    payment.Amount,
			"method":    string(payment.Method),
		},
	})

	return payment, nil
}

func (s *paymentService) CompletePayment(ctx context.Context, cmd CompletePaymentCommand) (Payment, error) {
	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)

	var payment Payment
	var order Order
	var alreadyCompleted bool
	err := s.mutatePayment(ctx, cmd.OrderID, cmd.PaymentID, func(txCtx context.Context, o *Order, p *Payment) error {
		if p.State == domain.PaymentStateCompleted {
			// Completing a completed payment is a no-op; the paid amount
			// is only ever added on the first transition.
			alreadyCompleted = true
			return nil
		}
		if p.State != domain.PaymentStatePending && p.State != domain.PaymentStateProcessing {
			return fmt.Errorf("%w: cannot complete payment in state %q", ErrPaymentInvalidState, p.State)
		}

		p.State = domain.PaymentStateCompleted
		if p.PaymentDate == nil {
			p.PaymentDate = &now
		}
		if cmd.TransactionID != nil {
			p.TransactionID = cloneStringPtr(cmd.TransactionID)
		}
		p.UpdatedAt = now

		o.Totals.Paid += p.Amount
		o.PaymentStatus = domain.DerivePaymentStatus(o.Totals.Paid, o.Totals.Total)
		o.UpdatedAt = now
		if actor != "" {
			o.Audit.UpdatedBy = actor
		}

		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     p.OrderID,
			ActorID:     optionalActor(actor),
			Action:      historyActionPaymentCompleted,
			Field:       "paid_amount",
			OldValue:    strconv.FormatInt(o.Totals.Paid-p.Amount, 10),
			NewValue:    strconv.FormatInt(o.Totals.Paid, 10),
			Description: fmt.Sprintf("payment %s completed", p.PaymentNumber),
		})
		return nil
	}, &order, &payment)
	if err != nil {
		return Payment{}, err
	}

	if !alreadyCompleted {
		s.publishEvent(ctx, OrderEvent{
			Type:          paymentEventCompleted,
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			StoreID:       order.StoreID,
			CurrentStatus: order.Status,
			PaymentStatus: order.PaymentStatus,
			ActorID:       actor,
			OccurredAt:    now,
			Metadata: map[string]any{
				"paymentId": payment.ID,
				"amount":    payment.Amount,
			},
		})
	}

	return payment, nil
}

func (s *paymentService) FailPayment(ctx context.Context, cmd FailPaymentCommand) (Payment, error) {
	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)
	reason := strings.TrimSpace(cmd.Reason)

	var payment Payment
	var order Order
	err := s.mutatePayment(ctx, cmd.OrderID, cmd.PaymentID, func(txCtx context.Context, o *Order, p *Payment) error {
		if p.State != domain.PaymentStatePending && p.State != domain.PaymentStateProcessing {
			return fmt.Errorf("%w: cannot fail payment in state %q", ErrPaymentInvalidState, p.State)
		}

		p.State = domain.PaymentStateFailed
		p.FailureReason = reason
		p.UpdatedAt = now

		// The order only carries the failed marker while nothing has been
		// paid; an order with settled payments keeps its derived status.
		if o.Totals.Paid == 0 {
			o.PaymentStatus = domain.PaymentStatusFailed
		}
		o.UpdatedAt = now
		if actor != "" {
			o.Audit.UpdatedBy = actor
		}

		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     p.OrderID,
			ActorID:     optionalActor(actor),
			Action:      historyActionPaymentFailed,
			Field:       "payments",
			NewValue:    string(domain.PaymentStateFailed),
			Description: reason,
		})
		return nil
	}, &order, &payment)
	if err != nil {
		return Payment{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          paymentEventFailed,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		StoreID:       order.StoreID,
		CurrentStatus: order.Status,
		PaymentStatus: order.PaymentStatus,
		ActorID:       actor,
		OccurredAt:    now,
		Metadata: map[string]any{
			"paymentId": payment.ID,
			"reason":    reason,
		},
	})

	return payment, nil
}

func (s *paymentService) RefundPayment(ctx context.Context, cmd RefundPaymentCommand) (Payment, error) {
	now := s.now()
	actor := strings.TrimSpace(cmd.ActorID)
	reason := strings.TrimSpace(cmd.Reason)

	var payment Payment
	var order Order
	var refunded int64
	err := s.mutatePayment(ctx, cmd.OrderID, cmd.PaymentID, func(txCtx context.Context, o *Order, p *Payment) error {
		if p.State != domain.PaymentStateCompleted {
			return fmt.Errorf("%w: only completed payments can be refunded, state is %q", ErrPaymentInvalidState, p.State)
		}

		remaining := p.Amount - p.RefundedAmount
		refunded = remaining
		if cmd.Amount != nil {
			refunded = *cmd.Amount
		}
		if refunded <= 0 {
			return fmt.Errorf("%w: refund amount must be positive", ErrPaymentInvalidAmount)
		}
		if refunded > remaining {
			return fmt.Errorf("%w: refund %d exceeds unrefunded amount %d", ErrPaymentInvalidAmount, refunded, remaining)
		}

		p.RefundedAmount += refunded
		p.RefundedAt = &now
		p.State = domain.PaymentStateRefunded
		p.UpdatedAt = now

		oldPaid := o.Totals.Paid
		o.Totals.Paid -= refunded
		if o.Totals.Paid <= 0 {
			o.Totals.Paid = 0
			o.PaymentStatus = domain.PaymentStatusRefunded
		} else {
			o.PaymentStatus = domain.DerivePaymentStatus(o.Totals.Paid, o.Totals.Total)
		}
		o.UpdatedAt = now
		if actor != "" {
			o.Audit.UpdatedBy = actor
		}

		s.recordHistory(txCtx, HistoryRecord{
			OrderID:     p.OrderID,
			ActorID:     optionalActor(actor),
			Action:      historyActionPaymentRefunded,
			Field:       "paid_amount",
			OldValue:    strconv.FormatInt(oldPaid, 10),
			NewValue:    strconv.FormatInt(o.Totals.Paid, 10),
			Description: fmt.Sprintf("payment %s refunded %d: %s", p.PaymentNumber, refunded, reason),
		})
		return nil
	}, &order, &payment)
	if err != nil {
		return Payment{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          paymentEventRefunded,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		StoreID:       order.StoreID,
		CurrentStatus: order.Status,
		PaymentStatus: order.PaymentStatus,
		ActorID:       actor,
		OccurredAt:    now,
		Metadata: map[string]any{
			"paymentId": payment.ID,
			"amount":    refunded,
		},
	})

	return payment, nil
}

func (s *paymentService) ListPayments(ctx context.Context, orderID string) ([]Payment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	payments, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, s.mapRepositoryError(err, ErrOrderNotFound)
	}
	return payments, nil
}

// mutatePayment runs a read-modify-write over a payment and its owning order
// inside one unit of work. Both rows are read within the transaction so a
// concurrent payment application cannot observe a stale paid amount.
func (s *paymentService) mutatePayment(ctx context.Context, orderID, paymentID string, fn func(txCtx context.Context, order *Order, payment *Payment) error, orderOut *Order, paymentOut *Payment) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return fmt.Errorf("%w: payment id is required", ErrPaymentInvalidInput)
	}

	return s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err, ErrOrderNotFound)
		}
		payment, err := s.payments.FindByID(txCtx, orderID, paymentID)
		if err != nil {
			return s.mapRepositoryError(err, ErrPaymentNotFound)
		}

		before := payment
		if err := fn(txCtx, &order, &payment); err != nil {
			return err
		}

		if payment != before {
			if err := s.payments.Update(txCtx, payment); err != nil {
				return s.mapRepositoryError(err, ErrPaymentNotFound)
			}
			if err := s.orders.Update(txCtx, order); err != nil {
				return s.mapRepositoryError(err, ErrOrderNotFound)
			}
		}

		*orderOut = order
		*paymentOut = payment
		return nil
	})
}

func (s *paymentService) recordHistory(ctx context.Context, record HistoryRecord) {
	if s.history == nil {
		return
	}
	s.history.Record(ctx, record)
}

func (s *paymentService) mapRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrPaymentConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("payment: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *paymentService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *paymentService) now() time.Time {
	return s.clock()
}

func (s *paymentService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "payment.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}
