package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ostrem/kasse/internal/domain"
)

type historyService struct {
	store Store
}

// Compile-time check that historyService implements domain.HistoryService.
var _ domain.HistoryService = (*historyService)(nil)

// NewHistoryService creates the append-only audit log service.
func NewHistoryService(store Store) domain.HistoryService {
	return &historyService{store: store}
}

// Record appends one entry. Entries are never updated or deleted.
func (s *historyService) Record(ctx context.Context, entry domain.HistoryEntry) error {
	const op = "history.record"

	if strings.TrimSpace(entry.EntityType) == "" {
		return domain.NewValidationError(op, "entity_type", "entity type is required")
	}
	if entry.EntityID == uuid.Nil {
		return domain.NewValidationError(op, "entity_id", "entity id is required")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return domain.NewValidationError(op, "action", "action is required")
	}

	_, err := s.store.InsertHistoryEntry(ctx, entry)
	return err
}

// GetHistoryForEntity returns entries for the subject in stable
// chronological order, oldest first.
func (s *historyService) GetHistoryForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.HistoryEntry, error) {
	return s.store.ListHistoryForEntity(ctx, entityType, entityID)
}
