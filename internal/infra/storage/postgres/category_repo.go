package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andrzw/marketsync/internal/core/domain"
)

// CategoryRepo implements storage.CategoryRepository using PostgreSQL.
type CategoryRepo struct {
	db *DB
}

// NewCategoryRepo creates a new PostgreSQL category repository.
func NewCategoryRepo(db *DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// UpsertCategoryTree saves a resolved root-to-leaf path. Idempotent: nodes
// are keyed by category id and parent links are rewired on conflict.
func (r *CategoryRepo) UpsertCategoryTree(ctx context.Context, path []domain.CategoryNode) error {
	if len(path) == 0 {
		return nil
	}

	uow, err := r.db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	for _, node := range path {
		_, err := uow.tx.ExecContext(ctx, `
			INSERT INTO categories (id, name, parent_id)
			VALUES ($1, $2, NULLIF($3, 0))
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id`,
			node.ID, node.Name, node.ParentID)
		if err != nil {
			return &domain.PersistenceError{
				Op:  fmt.Sprintf("upsert category %d", node.ID),
				Err: err,
			}
		}
	}
	return uow.Commit()
}

// SaveParameters replaces the stored parameter schema of one category.
func (r *CategoryRepo) SaveParameters(ctx context.Context, categoryID int64, params []domain.CategoryParameter) error {
	uow, err := r.db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if _, err := uow.tx.ExecContext(ctx,
		`DELETE FROM category_parameters WHERE category_id = $1`, categoryID); err != nil {
		return &domain.PersistenceError{Op: fmt.Sprintf("clear parameters for category %d", categoryID), Err: err}
	}

	for _, p := range params {
		dictionary, err := json.Marshal(p.Dictionary)
		if err != nil {
			return fmt.Errorf("marshal dictionary for parameter %s: %w", p.ID, err)
		}

		_, err = uow.tx.ExecContext(ctx, `
			INSERT INTO category_parameters
				(id, category_id, name, param_type, required, min_value, max_value, dictionary_json)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, categoryID, p.Name, p.Type, p.Required, p.Min, p.Max, string(dictionary))
		if err != nil {
			return &domain.PersistenceError{
				Op:  fmt.Sprintf("save parameter %s for category %d", p.ID, categoryID),
				Err: err,
			}
		}
	}
	return uow.Commit()
}
