package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Product-related domain errors.
var (
	ErrProductNotFound    = &Error{Code: ENOTFOUND, Message: "Product not found"}
	ErrProductUnavailable = &Error{Code: ECONFLICT, Message: "Product is not available"}
	ErrGroupNotFound      = &Error{Code: ENOTFOUND, Message: "Parameter group not found"}
)

// Product is a configurable physical product. Products are never deleted
// while referenced by a cart or order; they are soft-disabled via Available.
type Product struct {
	ID             uuid.UUID `json:"id"`
	Category       string    `json:"category"`
	Name           string    `json:"name"`
	BasePriceCents int64     `json:"base_price_cents"`
	Available      bool      `json:"available"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ParameterGroup is an ordered set of parameters. A group attached to a
// product is single-select: it resolves to exactly one parameter per unit.
type ParameterGroup struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
}

// Parameter is one selectable option within a group. Its price delta is
// signed and added to the product base price.
type Parameter struct {
	ID              uuid.UUID `json:"id"`
	GroupID         uuid.UUID `json:"group_id"`
	Label           string    `json:"label"`
	PriceDeltaCents int64     `json:"price_delta_cents"`
	SortOrder       int32     `json:"sort_order"`
}

// AttachedGroup is a parameter group as attached to one product, with that
// attachment's optional default parameter and the group's parameters in
// display order.
type AttachedGroup struct {
	Group              ParameterGroup `json:"group"`
	Parameters         []Parameter    `json:"parameters"`
	DefaultParameterID *uuid.UUID     `json:"default_parameter_id,omitempty"`
	SortOrder          int32          `json:"sort_order"`
}

// ProductDetail is a product together with its attached groups in order.
// It is the snapshot unit the pricing resolver operates on.
type ProductDetail struct {
	Product Product         `json:"product"`
	Groups  []AttachedGroup `json:"groups"`
}

// Parameter looks up a parameter by id within the attached group.
// Returns nil if the parameter does not belong to the group.
func (g *AttachedGroup) Parameter(id uuid.UUID) *Parameter {
	for i := range g.Parameters {
		if g.Parameters[i].ID == id {
			return &g.Parameters[i]
		}
	}
	return nil
}

// AttachedGroup looks up an attachment by group id.
// Returns nil if the group is not attached to the product.
func (d *ProductDetail) AttachedGroup(groupID uuid.UUID) *AttachedGroup {
	for i := range d.Groups {
		if d.Groups[i].Group.ID == groupID {
			return &d.Groups[i]
		}
	}
	return nil
}

// ParameterGroupDetail is a group together with its parameters, as
// returned from authoring operations.
type ParameterGroupDetail struct {
	Group      ParameterGroup `json:"group"`
	Parameters []Parameter    `json:"parameters"`
}

// CreateProductParams carries admin product authoring input.
type CreateProductParams struct {
	Category       string
	Name           string
	BasePriceCents int64
}

// NewParameterParams is one parameter authored within a group.
type NewParameterParams struct {
	Label           string
	PriceDeltaCents int64
	SortOrder       int32
}

// CreateParameterGroupParams carries group authoring input. Parameters
// are created with the group; a group is never empty.
type CreateParameterGroupParams struct {
	Name       string
	SortOrder  int32
	Parameters []NewParameterParams
}

// AttachGroupParams attaches an existing group to a product. The optional
// default must be one of the group's own parameters.
type AttachGroupParams struct {
	ProductID          uuid.UUID
	GroupID            uuid.UUID
	DefaultParameterID *uuid.UUID
	SortOrder          int32
}

// CatalogService provides product and parameter-group catalog operations.
// Mutations trigger invalidation of the named listing caches.
type CatalogService interface {
	// GetProductDetail retrieves a product with its attached groups and
	// parameters, ready for price resolution.
	GetProductDetail(ctx context.Context, productID uuid.UUID) (*ProductDetail, error)

	// ListProducts returns all available products.
	ListProducts(ctx context.Context) ([]Product, error)

	// GetProductDetails batch-loads product details for the given ids.
	// Used by callers of batch special pricing to pre-fetch all referenced
	// products once; batch pricing never issues per-item fetches.
	GetProductDetails(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]*ProductDetail, error)

	// SetProductAvailability soft-enables or soft-disables a product.
	// Products referenced by carts or orders are never deleted.
	SetProductAvailability(ctx context.Context, productID uuid.UUID, available bool, actor uuid.UUID) (*Product, error)

	// CreateProduct authors a new product, initially with no groups.
	CreateProduct(ctx context.Context, params CreateProductParams, actor uuid.UUID) (*Product, error)

	// CreateParameterGroup authors a group with its parameters.
	CreateParameterGroup(ctx context.Context, params CreateParameterGroupParams) (*ParameterGroupDetail, error)

	// AttachParameterGroup attaches a group to a product with an optional
	// default parameter, which must belong to the group.
	AttachParameterGroup(ctx context.Context, params AttachGroupParams, actor uuid.UUID) (*ProductDetail, error)
}
