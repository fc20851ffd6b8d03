package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// QueryBuilder customises Firestore queries before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// GetDoc reads a document, joining the context transaction when one is active.
func GetDoc(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if ref == nil {
		return nil, WrapError("get", errors.New("firestore: document ref is nil"))
	}
	if tx, ok := TxFromContext(ctx); ok {
		snap, err := tx.Get(ref)
		if err != nil {
			return nil, WrapError(opFor(ref, "get"), err)
		}
		return snap, nil
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, WrapError(opFor(ref, "get"), err)
	}
	return snap, nil
}

// SetDoc writes a document, joining the context transaction when one is active.
func SetDoc(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if ref == nil {
		return WrapError("set", errors.New("firestore: document ref is nil"))
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError(opFor(ref, "set"), tx.Set(ref, data))
	}
	_, err := ref.Set(ctx, data)
	return WrapError(opFor(ref, "set"), err)
}

// CreateDoc writes a document that must not already exist. A duplicate
// surfaces as a conflict, which number reservations rely on.
func CreateDoc(ctx context.Context, ref *firestore.DocumentRef, data any) error {
	if ref == nil {
		return WrapError("create", errors.New("firestore: document ref is nil"))
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError(opFor(ref, "create"), tx.Create(ref, data))
	}
	_, err := ref.Create(ctx, data)
	return WrapError(opFor(ref, "create"), err)
}

// DeleteDoc removes a document, joining the context transaction when one is active.
func DeleteDoc(ctx context.Context, ref *firestore.DocumentRef) error {
	if ref == nil {
		return WrapError("delete", errors.New("firestore: document ref is nil"))
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError(opFor(ref, "delete"), tx.Delete(ref))
	}
	_, err := ref.Delete(ctx)
	return WrapError(opFor(ref, "delete"), err)
}

// QueryDocs runs a collection query and decodes every snapshot through decode.
// The query joins the context transaction when one is active; Firestore
// requires transactional reads to happen before any write.
func QueryDocs[T any](ctx context.Context, coll *firestore.CollectionRef, build QueryBuilder, decode func(snap *firestore.DocumentSnapshot) (T, error)) ([]T, error) {
	if coll == nil {
		return nil, WrapError("query", errors.New("firestore: collection ref is nil"))
	}

	query := coll.Query
	if build != nil {
		query = build(query)
	}

	var iter *firestore.DocumentIterator
	if tx, ok := TxFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, WrapError(coll.Path+".query", err)
		}
		decoded, err := decode(snap)
		if err != nil {
			return nil, fmt.Errorf("firestore: decode document %s: %w", snap.Ref.ID, err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

func opFor(ref *firestore.DocumentRef, action string) string {
	name := "firestore"
	if ref != nil && ref.Parent != nil {
		if trimmed := strings.TrimSpace(ref.Parent.ID); trimmed != "" {
			name = trimmed
		}
	}
	return fmt.Sprintf("%s.%s", name, action)
}
