package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/orderhub/api/internal/domain"
)

type stubHistoryRepository struct {
	appendFunc func(ctx context.Context, entry domain.HistoryEntry) error
	listFunc   func(ctx context.Context, orderID string, pager domain.Pagination) (domain.CursorPage[domain.HistoryEntry], error)
}

func (s *stubHistoryRepository) Append(ctx context.Context, entry domain.HistoryEntry) error {
	if s.appendFunc != nil {
		return s.appendFunc(ctx, entry)
	}
	return errors.New("not implemented")
}

func (s *stubHistoryRepository) ListByOrder(ctx context.Context, orderID string, pager domain.Pagination) (domain.CursorPage[domain.HistoryEntry], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, orderID, pager)
	}
	return domain.CursorPage[domain.HistoryEntry]{}, errors.New("not implemented")
}

type captureHistoryLogger struct {
	messages []string
}

func (l *captureHistoryLogger) Warnf(format string, args ...any) {
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func TestHistoryServiceRecordAppendsEntry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	var appended domain.HistoryEntry
	repo := &stubHistoryRepository{
		appendFunc: func(ctx context.Context, entry domain.HistoryEntry) error {
			appended = entry
			return nil
		},
	}

	service, err := NewHistoryService(HistoryServiceDeps{
		Repository:  repo,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "01HIST" },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing history service: %v", err)
	}

	service.Record(context.Background(), HistoryRecord{
		OrderID:     " ord_1 ",
		ActorID:     strPtr("user-1"),
		Action:      " status_changed ",
		Field:       " status ",
		OldValue:    "pending",
		NewValue:    "approved",
		Description: "approved by manager",
	})

	if appended.ID != "hist_01HIST" {
		t.Fatalf("expected entry id hist_01HIST, got %q", appended.ID)
	}
	if appended.OrderID != "ord_1" {
		t.Fatalf("expected trimmed order id, got %q", appended.OrderID)
	}
	if appended.Action != "status_changed" || appended.Field != "status" {
		t.Fatalf("expected trimmed action/field, got %q/%q", appended.Action, appended.Field)
	}
	if appended.ActorID == nil || *appended.ActorID != "user-1" {
		t.Fatalf("expected actor user-1, got %#v", appended.ActorID)
	}
	if !appended.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt %v, got %v", now, appended.CreatedAt)
	}
}

func TestHistoryServiceRecordDropsInvalidEntries(t *testing.T) {
	appends := 0
	repo := &stubHistoryRepository{
		appendFunc: func(ctx context.Context, entry domain.HistoryEntry) error {
			appends++
			return nil
		},
	}
	logger := &captureHistoryLogger{}

	service, err := NewHistoryService(HistoryServiceDeps{Repository: repo, Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error constructing history service: %v", err)
	}

	service.Record(context.Background(), HistoryRecord{OrderID: "ord_1", Action: "   "})
	service.Record(context.Background(), HistoryRecord{OrderID: "  ", Action: "status_changed"})

	if appends != 0 {
		t.Fatalf("expected no appends, got %d", appends)
	}
	if len(logger.messages) != 2 {
		t.Fatalf("expected two dropped-entry warnings, got %v", logger.messages)
	}
}

func TestHistoryServiceRecordSwallowsRepositoryFailure(t *testing.T) {
	repo := &stubHistoryRepository{
		appendFunc: func(ctx context.Context, entry domain.HistoryEntry) error {
			return errors.New("firestore unavailable")
		},
	}
	logger := &captureHistoryLogger{}

	service, err := NewHistoryService(HistoryServiceDeps{Repository: repo, Logger: logger})
	if err != nil {
		t.Fatalf("unexpected error constructing history service: %v", err)
	}

	service.Record(context.Background(), HistoryRecord{OrderID: "ord_1", Action: "order_created"})

	if len(logger.messages) != 1 || !strings.Contains(logger.messages[0], "firestore unavailable") {
		t.Fatalf("expected append failure warning, got %v", logger.messages)
	}
}

func TestHistoryServiceListByOrder(t *testing.T) {
	repo := &stubHistoryRepository{
		listFunc: func(ctx context.Context, orderID string, pager domain.Pagination) (domain.CursorPage[domain.HistoryEntry], error) {
			if orderID != "ord_1" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			if pager.PageSize != 25 {
				t.Fatalf("unexpected page size %d", pager.PageSize)
			}
			return domain.CursorPage[domain.HistoryEntry]{
				Items:         []domain.HistoryEntry{{ID: "hist_1", OrderID: orderID, Action: "order_created"}},
				NextPageToken: "token-1",
			}, nil
		},
	}

	service, err := NewHistoryService(HistoryServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("unexpected error constructing history service: %v", err)
	}

	page, err := service.ListByOrder(context.Background(), " ord_1 ", Pagination{PageSize: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 1 || page.NextPageToken != "token-1" {
		t.Fatalf("unexpected page %#v", page)
	}

	if _, err := service.ListByOrder(context.Background(), "  ", Pagination{}); err == nil {
		t.Fatalf("expected error for blank order id")
	}
}
