package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// History entity types.
const (
	EntityOrder         = "order"
	EntityOrderLineItem = "order_line_item"
	EntityProduct       = "product"
	EntitySpecial       = "special"
)

// History actions.
const (
	ActionCreated            = "created"
	ActionOrderCreated       = "order_created"
	ActionStatusChanged      = "status_changed"
	ActionLineItemAdded      = "line_item_added"
	ActionAvailabilityChange = "availability_changed"
)

// HistoryEntry is one append-only audit record. Entries reference their
// subject by type and id only; they are never cascade-deleted with it, so
// the audit trail survives even if the subject row is later purged.
type HistoryEntry struct {
	ID         uuid.UUID `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`

	// Actor is who performed the change: the admin id for back-office
	// operations, the customer's user id for order creation, or uuid.Nil
	// for a guest checkout.
	Actor uuid.UUID `json:"actor"`

	Action    string          `json:"action"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// HistoryService is the append-only audit log. No update or delete
// operation exists.
type HistoryService interface {
	// Record appends one entry for a state-changing operation.
	Record(ctx context.Context, entry HistoryEntry) error

	// GetHistoryForEntity returns entries for the subject in stable
	// chronological order, oldest first.
	GetHistoryForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]HistoryEntry, error)
}
