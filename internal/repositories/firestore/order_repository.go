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
	orderCollection       = "orders"
	orderNumberCollection = "orderNumbers"
)

// OrderRepository persists order headers, with line items embedded in the
// header document so a line-item change and the recalculated totals commit as
// one write.
type OrderRepository struct {
	provider *pfirestore.Provider
	limits   PageLimits
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider, limits PageLimits) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider, limits: limits.withDefaults()}, nil
}

// Insert persists a new order and reserves its number. The number index
// document is created with a must-not-exist write, so a duplicate number
// surfaces as a conflict and the caller retries with a fresh one.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	number := strings.TrimSpace(order.OrderNumber)
	if number == "" {
		return errors.New("order repository: order number is required")
	}

	numberRef := client.Collection(orderNumberCollection).Doc(number)
	if err := pfirestore.CreateDoc(ctx, numberRef, numberIndexDocument{
		OrderID:    orderID,
		ReservedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	orderRef := client.Collection(orderCollection).Doc(orderID)
	return pfirestore.CreateDoc(ctx, orderRef, encodeOrder(order))
}

// Update overwrites the order header (including embedded items).
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	return pfirestore.SetDoc(ctx, client.Collection(orderCollection).Doc(orderID), encodeOrder(order))
}

// FindByID loads the order header, joining the context transaction when one
// is active so the read locks the row for the surrounding read-modify-write.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	snap, err := pfirestore.GetDoc(ctx, client.Collection(orderCollection).Doc(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(snap)
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	pageSize := r.limits.clamp(filter.Pagination.PageSize)

	build := func(query firestore.Query) firestore.Query {
		if storeID := strings.TrimSpace(filter.StoreID); storeID != "" {
			query = query.Where("storeId", "==", storeID)
		}
		if networkID := strings.TrimSpace(filter.NetworkID); networkID != "" {
			query = query.Where("networkId", "==", networkID)
		}
		if createdBy := strings.TrimSpace(filter.CreatedBy); createdBy != "" {
			query = query.Where("createdBy", "==", createdBy)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, status := range filter.Status {
				statuses = append(statuses, string(status))
			}
			query = query.Where("status", "in", statuses)
		}
		if filter.DateRange.From != nil {
			query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		query = query.OrderBy("createdAt", firestore.Desc)
		if cursor, ok := decodePageToken(filter.Pagination.PageToken); ok {
			query = query.StartAfter(cursor)
		}
		return query.Limit(pageSize + 1)
	}

	orders, err := pfirestore.QueryDocs(ctx, client.Collection(orderCollection), build, decodeOrder)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: orders}
	if len(orders) > pageSize {
		page.Items = orders[:pageSize]
		page.NextPageToken = encodePageToken(page.Items[pageSize-1].CreatedAt)
	}
	return page, nil
}

// Delete removes the order header, its number reservation, and its history
// entries. Line items are embedded in the header and vanish with it. The
// history reads happen before any delete so the call stays legal inside a
// transaction.
func (r *OrderRepository) Delete(ctx context.Context, order domain.Order) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	orderRef := client.Collection(orderCollection).Doc(orderID)
	historyRefs, err := pfirestore.QueryDocs(ctx, orderRef.Collection(historyCollection), nil,
		func(snap *firestore.DocumentSnapshot) (*firestore.DocumentRef, error) {
			return snap.Ref, nil
		})
	if err != nil {
		return err
	}

	if err := pfirestore.DeleteDoc(ctx, orderRef); err != nil {
		return err
	}
	if number := strings.TrimSpace(order.OrderNumber); number != "" {
		if err := pfirestore.DeleteDoc(ctx, client.Collection(orderNumberCollection).Doc(number)); err != nil {
			return err
		}
	}
	for _, ref := range historyRefs {
		if err := pfirestore.DeleteDoc(ctx, ref); err != nil {
			return err
		}
	}
	return nil
}

func encodePageToken(createdAt time.Time) string {
	return createdAt.UTC().Format(time.RFC3339Nano)
}

func decodePageToken(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}
	cursor, err := time.Parse(time.RFC3339Nano, token)
	if err != nil {
		return time.Time{}, false
	}
	return cursor, true
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:   order.OrderNumber,
		StoreID:       order.StoreID,
		NetworkID:     order.NetworkID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		Subtotal:      order.Totals.Subtotal,
		Discount:      order.Totals.Discount,
		Total:         order.Totals.Total,
		Paid:          order.Totals.Paid,
		Items:         make([]lineItemDocument, 0, len(order.Items)),
		DeliveryDate:  order.DeliveryDate,
		Notes:         order.Notes,
		CreatedBy:     order.Audit.CreatedBy,
		UpdatedBy:     order.Audit.UpdatedBy,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
		ApprovedAt:    order.ApprovedAt,
		ShippedAt:     order.ShippedAt,
		DeliveredAt:   order.DeliveredAt,
		CancelledAt:   order.CancelledAt,
		RejectedAt:    order.RejectedAt,
		CancelReason:  order.CancelReason,
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, lineItemDocument{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
			Product: productSnapshotDocument{
				SchemaVersion: item.Product.SchemaVersion,
				Name:          item.Product.Name,
				SKU:           item.Product.SKU,
				Category:      item.Product.Category,
				Supplier:      item.Product.Supplier,
			},
			AddedAt:   item.AddedAt.UTC(),
			UpdatedAt: item.UpdatedAt.UTC(),
		})
	}
	if order.DeliverTo != nil {
		doc.DeliverTo = &addressSnapshotDocument{
			SchemaVersion: order.DeliverTo.SchemaVersion,
			Label:         order.DeliverTo.Label,
			Line1:         order.DeliverTo.Line1,
			Line2:         order.DeliverTo.Line2,
			City:          order.DeliverTo.City,
			Region:        order.DeliverTo.Region,
			PostalCode:    order.DeliverTo.PostalCode,
			Country:       order.DeliverTo.Country,
			Phone:         order.DeliverTo.Phone,
		}
	}
	return doc
}

func decodeOrder(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("order repository: decode %s: %w", snap.Ref.ID, err)
	}

	order := domain.Order{
		ID:            snap.Ref.ID,
		OrderNumber:   doc.OrderNumber,
		StoreID:       doc.StoreID,
		NetworkID:     doc.NetworkID,
		Status:        domain.OrderStatus(doc.Status),
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		Currency:      doc.Currency,
		Totals: domain.OrderTotals{
			Subtotal: doc.Subtotal,
			Discount: doc.Discount,
			Total:    doc.Total,
			Paid:     doc.Paid,
		},
		Items:        make([]domain.LineItem, 0, len(doc.Items)),
		DeliveryDate: doc.DeliveryDate,
		Notes:        doc.Notes,
		Audit: domain.OrderAudit{
			CreatedBy: doc.CreatedBy,
			UpdatedBy: doc.UpdatedBy,
		},
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		ApprovedAt:   doc.ApprovedAt,
		ShippedAt:    doc.ShippedAt,
		DeliveredAt:  doc.DeliveredAt,
		CancelledAt:  doc.CancelledAt,
		RejectedAt:   doc.RejectedAt,
		CancelReason: doc.CancelReason,
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.LineItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
			Product: domain.ProductSnapshot{
				SchemaVersion: item.Product.SchemaVersion,
				Name:          item.Product.Name,
				SKU:           item.Product.SKU,
				Category:      item.Product.Category,
				Supplier:      item.Product.Supplier,
			},
			AddedAt:   item.AddedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	if doc.DeliverTo != nil {
		order.DeliverTo = &domain.AddressSnapshot{
			SchemaVersion: doc.DeliverTo.SchemaVersion,
			Label:         doc.DeliverTo.Label,
			Line1:         doc.DeliverTo.Line1,
			Line2:         doc.DeliverTo.Line2,
			City:          doc.DeliverTo.City,
			Region:        doc.DeliverTo.Region,
			PostalCode:    doc.DeliverTo.PostalCode,
			Country:       doc.DeliverTo.Country,
			Phone:         doc.DeliverTo.Phone,
		}
	}
	return order, nil
}

type orderDocument struct {
	OrderNumber   string                   `firestore:"orderNumber"`
	StoreID       string                   `firestore:"storeId"`
	NetworkID     string                   `firestore:"networkId,omitempty"`
	Status        string                   `firestore:"status"`
	PaymentStatus string                   `firestore:"paymentStatus"`
	Currency      string                   `firestore:"currency"`
	Subtotal      int64                    `firestore:"subtotal"`
	Discount      int64                    `firestore:"discountAmount"`
	Total         int64                    `firestore:"totalAmount"`
	Paid          int64                    `firestore:"paidAmount"`
	Items         []lineItemDocument       `firestore:"items"`
	DeliverTo     *addressSnapshotDocument `firestore:"deliverTo,omitempty"`
	DeliveryDate  *time.Time               `firestore:"deliveryDate,omitempty"`
	Notes         string                   `firestore:"notes,omitempty"`
	CreatedBy     string                   `firestore:"createdBy,omitempty"`
	UpdatedBy     string                   `firestore:"updatedBy,omitempty"`
	CreatedAt     time.Time                `firestore:"createdAt"`
	UpdatedAt     time.Time                `firestore:"updatedAt"`
	ApprovedAt    *time.Time               `firestore:"approvedAt,omitempty"`
	ShippedAt     *time.Time               `firestore:"shippedAt,omitempty"`
	DeliveredAt   *time.Time               `firestore:"deliveredAt,omitempty"`
	CancelledAt   *time.Time               `firestore:"cancelledAt,omitempty"`
	RejectedAt    *time.Time               `firestore:"rejectedAt,omitempty"`
	CancelReason  *string                  `firestore:"cancelReason,omitempty"`
}

type lineItemDocument struct {
	ID        string                  `firestore:"id"`
	ProductID string                  `firestore:"productId"`
	Quantity  int                     `firestore:"quantity"`
	UnitPrice int64                   `firestore:"unitPrice"`
	Total     int64                   `firestore:"total"`
	Product   productSnapshotDocument `firestore:"product"`
	AddedAt   time.Time               `firestore:"addedAt"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
}

type productSnapshotDocument struct {
	SchemaVersion int    `firestore:"schemaVersion"`
	Name          string `firestore:"name"`
	SKU           string `firestore:"sku"`
	Category      string `firestore:"category,omitempty"`
	Supplier      string `firestore:"supplier,omitempty"`
}

type addressSnapshotDocument struct {
	SchemaVersion int    `firestore:"schemaVersion"`
	Label         string `firestore:"label,omitempty"`
	Line1         string `firestore:"line1"`
	Line2         string `firestore:"line2,omitempty"`
	City          string `firestore:"city"`
	Region        string `firestore:"region,omitempty"`
	PostalCode    string `firestore:"postalCode,omitempty"`
	Country       string `firestore:"country"`
	Phone         string `firestore:"phone,omitempty"`
}

type numberIndexDocument struct {
	OrderID    string    `firestore:"orderId"`
	PaymentID  string    `firestore:"paymentId,omitempty"`
	ReservedAt time.Time `firestore:"reservedAt"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
