package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ostrem/kasse/internal/domain"
)

const productColumns = `id, category, name, base_price_cents, available, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID, &p.Category, &p.Name, &p.BasePriceCents,
		&p.Available, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	const op = "product.get"

	row := s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	product, err := scanProduct(row)
	if err != nil {
		return nil, mapError(err, op, "failed to get product", domain.ErrProductNotFound)
	}
	return product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "product.list"

	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE available
		ORDER BY category, name`,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan product")
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list products")
	}
	return products, nil
}

func (s *Store) GetProductDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error) {
	details, err := s.GetProductDetails(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, err
	}
	detail, ok := details[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return detail, nil
}

// GetProductDetails batch-loads products with their attached groups and
// parameters in three queries regardless of input size.
func (s *Store) GetProductDetails(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*domain.ProductDetail, error) {
	const op = "product.details"

	details := make(map[uuid.UUID]*domain.ProductDetail, len(productIDs))
	if len(productIDs) == 0 {
		return details, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		productIDs,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load products")
	}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, domain.Internal(err, op, "failed to scan product")
		}
		details[p.ID] = &domain.ProductDetail{Product: *p}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to load products")
	}

	// Attachments carry the per-product default; the group itself is shared.
	attachRows, err := s.db.Query(ctx, `
		SELECT ppg.product_id, pg.id, pg.name, pg.sort_order, ppg.default_parameter_id, ppg.sort_order
		FROM product_parameter_groups ppg
		JOIN parameter_groups pg ON pg.id = ppg.group_id
		WHERE ppg.product_id = ANY($1)
		ORDER BY ppg.product_id, ppg.sort_order`,
		productIDs,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load parameter groups")
	}

	for attachRows.Next() {
		var (
			productID uuid.UUID
			attached  domain.AttachedGroup
		)
		if err := attachRows.Scan(
			&productID, &attached.Group.ID, &attached.Group.Name, &attached.Group.SortOrder,
			&attached.DefaultParameterID, &attached.SortOrder,
		); err != nil {
			attachRows.Close()
			return nil, domain.Internal(err, op, "failed to scan parameter group")
		}
		if detail, ok := details[productID]; ok {
			detail.Groups = append(detail.Groups, attached)
		}
	}
	attachRows.Close()
	if err := attachRows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to load parameter groups")
	}

	// Index attachments by group only after all appends are done; the same
	// group may be attached to several products.
	groupIndex := make(map[uuid.UUID][]*domain.AttachedGroup)
	for _, detail := range details {
		for i := range detail.Groups {
			g := &detail.Groups[i]
			groupIndex[g.Group.ID] = append(groupIndex[g.Group.ID], g)
		}
	}
	if len(groupIndex) == 0 {
		return details, nil
	}

	groupIDs := make([]uuid.UUID, 0, len(groupIndex))
	for id := range groupIndex {
		groupIDs = append(groupIDs, id)
	}

	paramRows, err := s.db.Query(ctx, `
		SELECT id, group_id, label, price_delta_cents, sort_order
		FROM parameters
		WHERE group_id = ANY($1)
		ORDER BY group_id, sort_order`,
		groupIDs,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load parameters")
	}
	defer paramRows.Close()

	for paramRows.Next() {
		var p domain.Parameter
		if err := paramRows.Scan(&p.ID, &p.GroupID, &p.Label, &p.PriceDeltaCents, &p.SortOrder); err != nil {
			return nil, domain.Internal(err, op, "failed to scan parameter")
		}
		for _, attached := range groupIndex[p.GroupID] {
			attached.Parameters = append(attached.Parameters, p)
		}
	}
	if err := paramRows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to load parameters")
	}

	return details, nil
}

func (s *Store) InsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const op = "product.insert"

	row := s.db.QueryRow(ctx, `
		INSERT INTO products (id, category, name, base_price_cents, available)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		uuid.New(), product.Category, product.Name, product.BasePriceCents, product.Available,
	)
	inserted, err := scanProduct(row)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to insert product")
	}
	return inserted, nil
}

func (s *Store) InsertParameterGroup(ctx context.Context, group domain.ParameterGroup) (*domain.ParameterGroup, error) {
	const op = "group.insert"

	row := s.db.QueryRow(ctx, `
		INSERT INTO parameter_groups (id, name, sort_order)
		VALUES ($1, $2, $3)
		RETURNING id, name, sort_order`,
		uuid.New(), group.Name, group.SortOrder,
	)
	var inserted domain.ParameterGroup
	if err := row.Scan(&inserted.ID, &inserted.Name, &inserted.SortOrder); err != nil {
		return nil, domain.Internal(err, op, "failed to insert parameter group")
	}
	return &inserted, nil
}

func (s *Store) InsertParameter(ctx context.Context, parameter domain.Parameter) (*domain.Parameter, error) {
	const op = "parameter.insert"

	row := s.db.QueryRow(ctx, `
		INSERT INTO parameters (id, group_id, label, price_delta_cents, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, group_id, label, price_delta_cents, sort_order`,
		uuid.New(), parameter.GroupID, parameter.Label, parameter.PriceDeltaCents, parameter.SortOrder,
	)
	var inserted domain.Parameter
	if err := row.Scan(&inserted.ID, &inserted.GroupID, &inserted.Label, &inserted.PriceDeltaCents, &inserted.SortOrder); err != nil {
		return nil, domain.Internal(err, op, "failed to insert parameter")
	}
	return &inserted, nil
}

func (s *Store) AttachParameterGroup(ctx context.Context, productID, groupID uuid.UUID, defaultParameterID *uuid.UUID, sortOrder int32) error {
	const op = "product.attach_group"

	_, err := s.db.Exec(ctx, `
		INSERT INTO product_parameter_groups (product_id, group_id, default_parameter_id, sort_order)
		VALUES ($1, $2, $3, $4)`,
		productID, groupID, defaultParameterID, sortOrder,
	)
	if err != nil {
		return mapError(err, op, "group is already attached to product", domain.ErrGroupNotFound)
	}
	return nil
}

func (s *Store) GetParameterGroup(ctx context.Context, groupID uuid.UUID) (*domain.ParameterGroupDetail, error) {
	const op = "group.get"

	row := s.db.QueryRow(ctx, `SELECT id, name, sort_order FROM parameter_groups WHERE id = $1`, groupID)

	var detail domain.ParameterGroupDetail
	if err := row.Scan(&detail.Group.ID, &detail.Group.Name, &detail.Group.SortOrder); err != nil {
		return nil, mapError(err, op, "failed to get parameter group", domain.ErrGroupNotFound)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, group_id, label, price_delta_cents, sort_order
		FROM parameters
		WHERE group_id = $1
		ORDER BY sort_order`,
		groupID,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load parameters")
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Parameter
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Label, &p.PriceDeltaCents, &p.SortOrder); err != nil {
			return nil, domain.Internal(err, op, "failed to scan parameter")
		}
		detail.Parameters = append(detail.Parameters, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to load parameters")
	}
	return &detail, nil
}

func (s *Store) SetProductAvailability(ctx context.Context, productID uuid.UUID, available bool) (*domain.Product, error) {
	const op = "product.set_availability"

	row := s.db.QueryRow(ctx, `
		UPDATE products
		SET available = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		productID, available,
	)
	product, err := scanProduct(row)
	if err != nil {
		return nil, mapError(err, op, "failed to set product availability", domain.ErrProductNotFound)
	}
	return product, nil
}
