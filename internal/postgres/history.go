package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/ostrem/kasse/internal/domain"
)

const historyColumns = `id, entity_type, entity_id, actor, action, before_state, after_state, created_at`

// InsertHistoryEntry appends one audit record. The table has no update or
// delete path and no foreign key to the subject, so entries survive it.
func (s *Store) InsertHistoryEntry(ctx context.Context, entry domain.HistoryEntry) (*domain.HistoryEntry, error) {
	const op = "history.insert"

	row := s.db.QueryRow(ctx, `
		INSERT INTO history (id, entity_type, entity_id, actor, action, before_state, after_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+historyColumns,
		uuid.New(), entry.EntityType, entry.EntityID, entry.Actor,
		entry.Action, []byte(entry.Before), []byte(entry.After),
	)

	var (
		inserted      domain.HistoryEntry
		before, after []byte
	)
	if err := row.Scan(
		&inserted.ID, &inserted.EntityType, &inserted.EntityID, &inserted.Actor,
		&inserted.Action, &before, &after, &inserted.CreatedAt,
	); err != nil {
		return nil, domain.Internal(err, op, "failed to insert history entry")
	}
	inserted.Before = before
	inserted.After = after
	return &inserted, nil
}

func (s *Store) ListHistoryForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]domain.HistoryEntry, error) {
	const op = "history.list"

	rows, err := s.db.Query(ctx, `
		SELECT `+historyColumns+`
		FROM history
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id`,
		entityType, entityID,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list history")
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			entry         domain.HistoryEntry
			before, after []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Actor,
			&entry.Action, &before, &after, &entry.CreatedAt,
		); err != nil {
			return nil, domain.Internal(err, op, "failed to scan history entry")
		}
		entry.Before = before
		entry.After = after
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list history")
	}
	return entries, nil
}
