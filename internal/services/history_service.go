package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/orderhub/api/internal/domain"
	"github.com/orderhub/api/internal/repositories"
)

const historyEntryIDPrefix = "hist_"

// HistoryLogger defines the logging contract used by the history writer service.
type HistoryLogger interface {
	Warnf(format string, args ...any)
}

type historyService struct {
	repo   repositories.HistoryRepository
	clock  func() time.Time
	newID  func() string
	logger HistoryLogger
}

// HistoryServiceDeps bundles constructor inputs for the history writer service.
type HistoryServiceDeps struct {
	Repository  repositories.HistoryRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      HistoryLogger
}

// NewHistoryService creates a history writer backed by the supplied repository.
func NewHistoryService(deps HistoryServiceDeps) (HistoryService, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("history service: repository is required")
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
		logger = noopHistoryLogger{}
	}

	return &historyService{
		repo:   deps.Repository,
		clock:  func() time.Time { return clock().UTC() },
		newID:  idGen,
		logger: logger,
	}, nil
}

// Record appends a history entry. Entries with an empty action are dropped.
// Repository failures are logged but do not bubble up to callers; the audit
// trail must never abort the mutation it documents.
func (s *historyService) Record(ctx context.Context, record HistoryRecord) {
	action := strings.TrimSpace(record.Action)
	if action == "" {
		s.logger.Warnf("history entry dropped: action is required (order %s)", record.OrderID)
		return
	}
	orderID := strings.TrimSpace(record.OrderID)
	if orderID == "" {
		s.logger.Warnf("history entry dropped: order id is required (action %s)", action)
		return
	}

	entry := domain.HistoryEntry{
		ID:          historyEntryIDPrefix + s.newID(),
		OrderID:     orderID,
		ActorID:     cloneStringPtr(record.ActorID),
		Action:      action,
		Field:       strings.TrimSpace(record.Field),
		OldValue:    record.OldValue,
		NewValue:    record.NewValue,
		Description: record.Description,
		CreatedAt:   s.clock(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warnf("history append failed for order %s action %s: %v", orderID, action, err)
	}
}

// ListByOrder retrieves the order's history, newest first.
func (s *historyService) ListByOrder(ctx context.Context, orderID string, pager Pagination) (domain.CursorPage[HistoryEntry], error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.CursorPage[HistoryEntry]{}, fmt.Errorf("history service: order id is required")
	}
	return s.repo.ListByOrder(ctx, orderID, pager)
}

type noopHistoryLogger struct{}

func (noopHistoryLogger) Warnf(string, ...any) {}
