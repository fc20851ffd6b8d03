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

const historyCollection = "history"

// HistoryRepository persists immutable history entries as a subcollection of
// their order. Entries are only ever created; there is no update or delete.
type HistoryRepository struct {
	provider *pfirestore.Provider
	limits   PageLimits
}

// NewHistoryRepository constructs a Firestore-backed history repository.
func NewHistoryRepository(provider *pfirestore.Provider, limits PageLimits) (*HistoryRepository, error) {
	if provider == nil {
		return nil, errors.New("history repository requires firestore provider")
	}
	return &HistoryRepository{provider: provider, limits: limits.withDefaults()}, nil
}

// Append writes a new history entry. Create semantics guard against a reused
// entry ID silently overwriting an existing record.
func (r *HistoryRepository) Append(ctx context.Context, entry domain.HistoryEntry) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	orderID := strings.TrimSpace(entry.OrderID)
	entryID := strings.TrimSpace(entry.ID)
	if orderID == "" || entryID == "" {
		return errors.New("history repository: order id and entry id are required")
	}

	ref := client.Collection(orderCollection).Doc(orderID).Collection(historyCollection).Doc(entryID)
	return pfirestore.CreateDoc(ctx, ref, encodeHistoryEntry(entry))
}

// ListByOrder returns the order's history, newest first.
func (r *HistoryRepository) ListByOrder(ctx context.Context, orderID string, pager domain.Pagination) (domain.CursorPage[domain.HistoryEntry], error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.HistoryEntry]{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.CursorPage[domain.HistoryEntry]{}, errors.New("history repository: order id is required")
	}

	pageSize := r.limits.clamp(pager.PageSize)

	coll := client.Collection(orderCollection).Doc(orderID).Collection(historyCollection)
	entries, err := pfirestore.QueryDocs(ctx, coll,
		func(query firestore.Query) firestore.Query {
			query = query.OrderBy("createdAt", firestore.Desc)
			if cursor, ok := decodePageToken(pager.PageToken); ok {
				query = query.StartAfter(cursor)
			}
			return query.Limit(pageSize + 1)
		},
		func(snap *firestore.DocumentSnapshot) (domain.HistoryEntry, error) {
			return decodeHistoryEntry(orderID, snap)
		})
	if err != nil {
		return domain.CursorPage[domain.HistoryEntry]{}, err
	}

	page := domain.CursorPage[domain.HistoryEntry]{Items: entries}
	if len(entries) > pageSize {
		page.Items = entries[:pageSize]
		page.NextPageToken = encodePageToken(page.Items[pageSize-1].CreatedAt)
	}
	return page, nil
}

func encodeHistoryEntry(entry domain.HistoryEntry) historyEntryDocument {
	return historyEntryDocument{
		ActorID:     entry.ActorID,
		Action:      entry.Action,
		Field:       entry.Field,
		OldValue:    entry.OldValue,
		NewValue:    entry.NewValue,
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt.UTC(),
	}
}

func decodeHistoryEntry(orderID string, snap *firestore.DocumentSnapshot) (domain.HistoryEntry, error) {
	var doc historyEntryDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("history repository: decode %s: %w", snap.Ref.ID, err)
	}
	return domain.HistoryEntry{
		ID:          snap.Ref.ID,
		OrderID:     orderID,
		ActorID:     doc.ActorID,
		Action:      doc.Action,
		Field:       doc.Field,
		OldValue:    doc.OldValue,
		NewValue:    doc.NewValue,
		Description: doc.Description,
		CreatedAt:   doc.CreatedAt,
	}, nil
}

type historyEntryDocument struct {
	ActorID     *string   `firestore:"actorId,omitempty"`
	Action      string    `firestore:"action"`
	Field       string    `firestore:"field,omitempty"`
	OldValue    string    `firestore:"oldValue,omitempty"`
	NewValue    string    `firestore:"newValue,omitempty"`
	Description string    `firestore:"description,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

var _ repositories.HistoryRepository = (*HistoryRepository)(nil)
