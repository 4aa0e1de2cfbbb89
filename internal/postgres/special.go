package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ostrem/kasse/internal/domain"
)

const specialColumns = `id, name, status, bundle_price_cents, created_at`

func scanSpecial(row pgx.Row) (*domain.Special, error) {
	var sp domain.Special
	if err := row.Scan(&sp.ID, &sp.Name, &sp.Status, &sp.BundlePriceCents, &sp.CreatedAt); err != nil {
		return nil, err
	}
	return &sp, nil
}

// loadSpecialItems attaches constituent items to the given specials.
func (s *Store) loadSpecialItems(ctx context.Context, specials map[uuid.UUID]*domain.Special) error {
	const op = "special.items"

	if len(specials) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(specials))
	for id := range specials {
		ids = append(ids, id)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, special_id, product_id, quantity, selection, sort_order
		FROM special_items
		WHERE special_id = ANY($1)
		ORDER BY special_id, sort_order`,
		ids,
	)
	if err != nil {
		return domain.Internal(err, op, "failed to load special items")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item domain.SpecialItem
			raw  []byte
		)
		if err := rows.Scan(&item.ID, &item.SpecialID, &item.ProductID, &item.Quantity, &raw, &item.SortOrder); err != nil {
			return domain.Internal(err, op, "failed to scan special item")
		}
		selection, err := unmarshalSelection(raw)
		if err != nil {
			return domain.Internal(err, op, "failed to decode selection")
		}
		item.Selection = selection
		if sp, ok := specials[item.SpecialID]; ok {
			sp.Items = append(sp.Items, item)
		}
	}
	return rows.Err()
}

func (s *Store) GetSpecial(ctx context.Context, specialID uuid.UUID) (*domain.Special, error) {
	const op = "special.get"

	row := s.db.QueryRow(ctx, `SELECT `+specialColumns+` FROM specials WHERE id = $1`, specialID)
	sp, err := scanSpecial(row)
	if err != nil {
		return nil, mapError(err, op, "failed to get special", domain.ErrSpecialNotFound)
	}

	if err := s.loadSpecialItems(ctx, map[uuid.UUID]*domain.Special{sp.ID: sp}); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Store) ListSpecialsByStatus(ctx context.Context, status domain.SpecialStatus) ([]domain.Special, error) {
	const op = "special.list"

	rows, err := s.db.Query(ctx, `
		SELECT `+specialColumns+` FROM specials WHERE status = $1 ORDER BY created_at`,
		status,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list specials")
	}

	var (
		specials []domain.Special
		index    = make(map[uuid.UUID]int)
	)
	for rows.Next() {
		sp, err := scanSpecial(rows)
		if err != nil {
			rows.Close()
			return nil, domain.Internal(err, op, "failed to scan special")
		}
		index[sp.ID] = len(specials)
		specials = append(specials, *sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list specials")
	}

	byID := make(map[uuid.UUID]*domain.Special, len(specials))
	for id, i := range index {
		byID[id] = &specials[i]
	}
	if err := s.loadSpecialItems(ctx, byID); err != nil {
		return nil, err
	}
	return specials, nil
}

func (s *Store) UpdateSpecialStatus(ctx context.Context, specialID uuid.UUID, status domain.SpecialStatus) (*domain.Special, error) {
	const op = "special.update_status"

	row := s.db.QueryRow(ctx, `
		UPDATE specials SET status = $2 WHERE id = $1
		RETURNING `+specialColumns,
		specialID, status,
	)
	sp, err := scanSpecial(row)
	if err != nil {
		return nil, mapError(err, op, "failed to update special status", domain.ErrSpecialNotFound)
	}

	if err := s.loadSpecialItems(ctx, map[uuid.UUID]*domain.Special{sp.ID: sp}); err != nil {
		return nil, err
	}
	return sp, nil
}
