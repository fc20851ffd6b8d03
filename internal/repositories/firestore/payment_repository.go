package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/orderhub/api/internal/domain"
	pfirestore "github.com/orderhub/api/internal/platform/firestore"
	"github.com/orderhub/api/internal/repositories"
)

const (
	paymentCollection       = "payments"
	paymentNumberCollection = "paymentNumbers"
)

// PaymentRepository stores payment rows as a subcollection of their order.
type PaymentRepository struct {
	provider *pfirestore.Provider
}

// NewPaymentRepository constructs a Firestore-backed payment repository.
func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &PaymentRepository{provider: provider}, nil
}

// Insert persists a new payment and reserves its number; a duplicate number
// surfaces as a conflict.
func (r *PaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	orderID := strings.TrimSpace(payment.OrderID)
	paymentID := strings.TrimSpace(payment.ID)
	if orderID == "" || paymentID == "" {
		return errors.New("payment repository: order id and payment id are required")
	}
	number := strings.TrimSpace(payment.PaymentNumber)
	if number == "" {
		return errors.New("payment repository: payment number is required")
	}

	numberRef := client.Collection(paymentNumberCollection).Doc(number)
	if err := pfirestore.CreateDoc(ctx, numberRef, numberIndexDocument{
		OrderID:    orderID,
		PaymentID:  paymentID,
		ReservedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	ref := client.Collection(orderCollection).Doc(orderID).Collection(paymentCollection).Doc(paymentID)
	return pfirestore.CreateDoc(ctx, ref, encodePayment(payment))
}

// Update overwrites the payment row.
func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	orderID := strings.TrimSpace(payment.OrderID)
	paymentID := strings.TrimSpace(payment.ID)
	if orderID == "" || paymentID == "" {
		return errors.New("payment repository: order id and payment id are required")
	}
	ref := client.Collection(orderCollection).Doc(orderID).Collection(paymentCollection).Doc(paymentID)
	return pfirestore.SetDoc(ctx, ref, encodePayment(payment))
}

// FindByID loads a single payment underneath the order.
func (r *PaymentRepository) FindByID(ctx context.Context, orderID, paymentID string) (domain.Payment, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Payment{}, err
	}
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" {
		return domain.Payment{}, errors.New("payment repository: order id and payment id are required")
	}

	ref := client.Collection(orderCollection).Doc(orderID).Collection(paymentCollection).Doc(paymentID)
	snap, err := pfirestore.GetDoc(ctx, ref)
	if err != nil {
		return domain.Payment{}, err
	}
	return decodePayment(orderID, snap)
}

// ListByOrder returns the order's payments in creation order.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("payment repository: order id is required")
	}

	coll := client.Collection(orderCollection).Doc(orderID).Collection(paymentCollection)
	return pfirestore.QueryDocs(ctx, coll,
		func(query firestore.Query) firestore.Query {
			return query.OrderBy("createdAt", firestore.Asc)
		},
		func(snap *firestore.DocumentSnapshot) (domain.Payment, error) {
			return decodePayment(orderID, snap)
		})
}

func encodePayment(payment domain.Payment) paymentDocument {
	return paymentDocument{
		PaymentNumber:  payment.PaymentNumber,
		Amount:         payment.Amount,
		Method:         string(payment.Method),
		State:          string(payment.State),
		TransactionID:  payment.TransactionID,
		PaymentDate:    payment.PaymentDate,
		RefundedAmount: payment.RefundedAmount,
		RefundedAt:     payment.RefundedAt,
		FailureReason:  payment.FailureReason,
		CreatedBy:      payment.CreatedBy,
		CreatedAt:      payment.CreatedAt.UTC(),
		UpdatedAt:      payment.UpdatedAt.UTC(),
	}
}

func decodePayment(orderID string, snap *firestore.DocumentSnapshot) (domain.Payment, error) {
	var doc paymentDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Payment{}, fmt.Errorf("payment repository: decode %s: %w", snap.Ref.ID, err)
	}
	return domain.Payment{
		ID:             snap.Ref.ID,
		OrderID:        orderID,
		PaymentNumber:  doc.PaymentNumber,
		Amount:         doc.Amount,
		Method:         domain.PaymentMethod(doc.Method),
		State:          domain.PaymentState(doc.State),
		TransactionID:  doc.TransactionID,
		PaymentDate:    doc.PaymentDate,
		RefundedAmount: doc.RefundedAmount,
		RefundedAt:     doc.RefundedAt,
		FailureReason:  doc.FailureReason,
		CreatedBy:      doc.CreatedBy,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

type paymentDocument struct {
	PaymentNumber  string     `firestore:"paymentNumber"`
	Amount         int64      `firestore:"amount"`
	Method         string     `firestore:"method"`
	State          string     `firestore:"state"`
	TransactionID  *string    `firestore:"transactionId,omitempty"`
	PaymentDate    *time.Time `firestore:"paymentDate,omitempty"`
	RefundedAmount int64      `firestore:"refundedAmount"`
	RefundedAt     *time.Time `firestore:"refundedAt,omitempty"`
	FailureReason  string     `firestore:"failureReason,omitempty"`
	CreatedBy      string     `firestore:"createdBy,omitempty"`
	CreatedAt      time.Time  `firestore:"createdAt"`
	UpdatedAt      time.Time  `firestore:"updatedAt"`
}

var _ repositories.PaymentRepository = (*PaymentRepository)(nil)
