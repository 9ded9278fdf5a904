package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andrzw/marketsync/internal/core/batch"
	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/sync/metrics"
)

// ProductRepo implements storage.ProductRepository using PostgreSQL.
type ProductRepo struct {
	db        *DB
	chunkSize int
}

// NewProductRepo creates a new PostgreSQL product repository.
func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db, chunkSize: batch.DefaultChunkSize}
}

type productRow struct {
	ID          int64          `db:"id"`
	Code        string         `db:"code"`
	Name        string         `db:"name"`
	Unit        sql.NullString `db:"unit"`
	PriceNet    float64        `db:"price_net"`
	PriceGross  float64        `db:"price_gross"`
	Stock       int            `db:"stock"`
	WeightKG    float64        `db:"weight_kg"`
	Technical   sql.NullString `db:"technical"`
	Description sql.NullString `db:"description"`
	Attributes  sql.NullString `db:"attributes_json"`
	Apps        sql.NullString `db:"applications_json"`
	CategoryID  int64          `db:"category_id"`
	HasParams   bool           `db:"has_params"`
	Archived    bool           `db:"archived"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (row productRow) toDomain() *domain.Product {
	p := &domain.Product{
		ID:          row.ID,
		Code:        row.Code,
		Name:        row.Name,
		Unit:        row.Unit.String,
		PriceNet:    row.PriceNet,
		PriceGross:  row.PriceGross,
		Stock:       row.Stock,
		WeightKG:    row.WeightKG,
		Technical:   row.Technical.String,
		Description: row.Description.String,
		CategoryID:  row.CategoryID,
		HasParams:   row.HasParams,
		Archived:    row.Archived,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.Attributes.Valid {
		_ = json.Unmarshal([]byte(row.Attributes.String), &p.Attributes)
	}
	if row.Apps.Valid {
		_ = json.Unmarshal([]byte(row.Apps.String), &p.Applications)
	}
	return p
}

const productColumns = `id, code, name, unit, price_net, price_gross, stock, weight_kg,
	technical, description, attributes_json, applications_json, category_id,
	has_params, archived, created_at, updated_at`

// GetByIDs loads products for the given ids, chunking the id list.
func (r *ProductRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product, len(ids))

	for _, chunk := range batch.Split(ids, r.chunkSize) {
		metrics.ChunkedQueriesTotal.WithLabelValues("products").Inc()

		q, args, err := sqlx.In(
			`SELECT `+productColumns+` FROM products WHERE id IN (?)`, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to build product query: %w", err)
		}

		var rows []productRow
		if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}
		for _, row := range rows {
			out[row.ID] = row.toDomain()
		}
	}
	return out, nil
}

// MissingCategory returns non-archived products with no resolved category.
func (r *ProductRepo) MissingCategory(ctx context.Context, limit int) ([]*domain.Product, error) {
	var rows []productRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+productColumns+`
		FROM products
		WHERE category_id = 0 AND archived = FALSE
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load products missing category: %w", err)
	}

	products := make([]*domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

// SetCategory persists a resolved category id for a product.
func (r *ProductRepo) SetCategory(ctx context.Context, productID, categoryID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET category_id = $2, updated_at = NOW() WHERE id = $1`,
		productID, categoryID)
	if err != nil {
		return &domain.PersistenceError{Op: fmt.Sprintf("set category for product %d", productID), Err: err}
	}
	return nil
}

// SetHasParams persists the derived has-parameters flag.
func (r *ProductRepo) SetHasParams(ctx context.Context, productID int64, has bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET has_params = $2, updated_at = NOW() WHERE id = $1`,
		productID, has)
	if err != nil {
		return &domain.PersistenceError{Op: fmt.Sprintf("set has_params for product %d", productID), Err: err}
	}
	return nil
}

// ResetCategories clears all resolved category ids and reports how many rows
// were touched. Used by the reset-category admin command.
func (r *ProductRepo) ResetCategories(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET category_id = 0, updated_at = NOW() WHERE category_id <> 0`)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "reset categories", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}
