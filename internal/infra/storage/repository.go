package storage

import (
	"context"
	"time"

	"github.com/andrzw/marketsync/internal/core/domain"
)

// OfferRepository handles offer storage operations
type OfferRepository interface {
	// LoadCandidates returns offers changed since the given mark, with their
	// attribute and description rows merged in (chunked batch loads).
	LoadCandidates(ctx context.Context, since time.Time, limit int) ([]*domain.Offer, error)

	// SaveStates persists a batch of state deltas in one transaction.
	SaveStates(ctx context.Context, deltas []domain.OfferStateDelta) error

	// CountByExists reports how many offers exist (or not) on the destination.
	CountByExists(ctx context.Context, exists bool) (int, error)
}

// ProductRepository handles supplier product storage operations
type ProductRepository interface {
	// GetByIDs loads products for the given ids (chunked).
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)

	// MissingCategory returns products still carrying the unresolved sentinel.
	MissingCategory(ctx context.Context, limit int) ([]*domain.Product, error)

	// SetCategory persists a resolved category id.
	SetCategory(ctx context.Context, productID, categoryID int64) error

	// SetHasParams persists the derived has-parameters flag.
	SetHasParams(ctx context.Context, productID int64, has bool) error

	// ResetCategories clears resolved ids so the next cycle re-resolves.
	ResetCategories(ctx context.Context) (int64, error)
}

// CategoryRepository handles the mirrored destination category tree
type CategoryRepository interface {
	// UpsertCategoryTree saves a root-to-leaf path, keyed by category id.
	UpsertCategoryTree(ctx context.Context, path []domain.CategoryNode) error

	// SaveParameters replaces the parameter schema of one category.
	SaveParameters(ctx context.Context, categoryID int64, params []domain.CategoryParameter) error
}
