package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/andrzw/marketsync/internal/core/batch"
	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/sync/metrics"
)

// OfferRepo implements storage.OfferRepository using PostgreSQL.
type OfferRepo struct {
	db        *DB
	chunkSize int

	// satelliteConcurrency bounds parallel chunk queries per batch load.
	satelliteConcurrency int
}

// NewOfferRepo creates a new PostgreSQL offer repository.
func NewOfferRepo(db *DB) *OfferRepo {
	return &OfferRepo{db: db, chunkSize: batch.DefaultChunkSize, satelliteConcurrency: 4}
}

type offerRow struct {
	ID           int64          `db:"id"`
	ExternalID   sql.NullString `db:"external_id"`
	ProductID    sql.NullInt64  `db:"product_id"`
	CategoryID   int64          `db:"category_id"`
	Price        float64        `db:"price"`
	Stock        int            `db:"stock"`
	Status       string         `db:"status"`
	ExistsRemote bool           `db:"exists_remote"`
	DispatchTime sql.NullString `db:"dispatch_time"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

type attributeRow struct {
	OfferID  int64          `db:"offer_id"`
	AttrID   string         `db:"attr_id"`
	Type     sql.NullString `db:"attr_type"`
	Values   sql.NullString `db:"values_json"`
	ValueIDs sql.NullString `db:"value_ids_json"`
}

type descriptionRow struct {
	OfferID   int64          `db:"offer_id"`
	SectionID int            `db:"section_id"`
	ItemID    int            `db:"item_id"`
	Type      sql.NullString `db:"item_type"`
	Content   sql.NullString `db:"content"`
}

// LoadCandidates loads offers changed since the mark, plus any offer whose
// last cycle ended with an error marker, so failed entities re-enter the
// window without a source change. Satellite rows are merged client-side,
// chunking the id sets so a single query never carries an unbounded
// parameter list.
func (r *OfferRepo) LoadCandidates(ctx context.Context, since time.Time, limit int) ([]*domain.Offer, error) {
	var rows []offerRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, external_id, product_id, category_id, price, stock, status,
		       exists_remote, dispatch_time, updated_at
		FROM offers
		WHERE updated_at > $1 OR last_error IS NOT NULL
		ORDER BY id
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate offers: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	offers := make([]*domain.Offer, 0, len(rows))
	byID := make(map[int64]*domain.Offer, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		offer := &domain.Offer{
			ID:           row.ID,
			ExternalID:   row.ExternalID.String,
			CategoryID:   row.CategoryID,
			Price:        row.Price,
			Stock:        row.Stock,
			Status:       domain.NormalizeStatus(row.Status),
			Exists:       row.ExistsRemote,
			DispatchTime: row.DispatchTime.String,
			UpdatedAt:    row.UpdatedAt,
		}
		if row.ProductID.Valid {
			pid := row.ProductID.Int64
			offer.ProductID = &pid
		}
		offers = append(offers, offer)
		byID[row.ID] = offer
		ids = append(ids, row.ID)
	}

	if err := r.mergeAttributes(ctx, byID, ids); err != nil {
		return nil, err
	}
	if err := r.mergeDescriptions(ctx, byID, ids); err != nil {
		return nil, err
	}
	return offers, nil
}

func (r *OfferRepo) mergeAttributes(ctx context.Context, byID map[int64]*domain.Offer, ids []int64) error {
	rows, err := chunkedSelect[attributeRow](ctx, r, "offer_attributes", `
		SELECT offer_id, attr_id, attr_type, values_json, value_ids_json
		FROM offer_attributes
		WHERE offer_id IN (?)
		ORDER BY offer_id, attr_id`, ids)
	if err != nil {
		return err
	}

	for _, row := range rows {
		offer, ok := byID[row.OfferID]
		if !ok {
			continue
		}
		offer.Attributes = append(offer.Attributes, domain.AttributeRow{
			OfferID:  row.OfferID,
			AttrID:   row.AttrID,
			Type:     row.Type.String,
			Values:   row.Values.String,
			ValueIDs: row.ValueIDs.String,
		})
	}
	return nil
}

func (r *OfferRepo) mergeDescriptions(ctx context.Context, byID map[int64]*domain.Offer, ids []int64) error {
	rows, err := chunkedSelect[descriptionRow](ctx, r, "offer_descriptions", `
		SELECT offer_id, section_id, item_id, item_type, content
		FROM offer_descriptions
		WHERE offer_id IN (?)`, ids)
	if err != nil {
		return err
	}

	for _, row := range rows {
		offer, ok := byID[row.OfferID]
		if !ok {
			continue
		}
		offer.Descriptions = append(offer.Descriptions, &domain.DescriptionRow{
			OfferID:   row.OfferID,
			SectionID: row.SectionID,
			ItemID:    row.ItemID,
			Type:      row.Type.String,
			Content:   row.Content.String,
		})
	}
	return nil
}

// chunkedSelect runs one IN-query per id chunk and concatenates the rows.
// Failed chunks are collected into a ChunkError; rows from succeeded chunks
// are returned alongside it so callers never silently lose partial results.
func chunkedSelect[T any](ctx context.Context, r *OfferRepo, table, query string, ids []int64) ([]T, error) {
	chunks := batch.Split(ids, r.chunkSize)

	results := make([][]T, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.satelliteConcurrency)

	failures := make([]error, len(chunks))
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			metrics.ChunkedQueriesTotal.WithLabelValues(table).Inc()

			q, args, err := sqlx.In(query, chunk)
			if err != nil {
				failures[i] = err
				return nil
			}
			q = r.db.Rebind(q)

			var rows []T
			if err := r.db.SelectContext(gctx, &rows, q, args...); err != nil {
				failures[i] = err
				return nil
			}
			results[i] = rows
			return nil
		})
	}
	_ = g.Wait()

	var merged []T
	chunkErr := &batch.ChunkError{Total: len(chunks)}
	for i, rows := range results {
		if failures[i] != nil {
			chunkErr.Failures = append(chunkErr.Failures, batch.ChunkFailure{Index: i, Err: failures[i]})
			continue
		}
		merged = append(merged, rows...)
	}

	if len(chunkErr.Failures) > 0 {
		return merged, fmt.Errorf("load %s: %w", table, chunkErr)
	}
	return merged, nil
}

// SaveStates persists a batch of deltas inside a single transaction. The
// batch commits or rolls back as a whole; other batches are unaffected.
func (r *OfferRepo) SaveStates(ctx context.Context, deltas []domain.OfferStateDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	uow, err := r.db.NewUnitOfWork(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.SaveOfferStates(ctx, deltas); err != nil {
		return err
	}
	return uow.Commit()
}

// CountByExists reports how many offers carry the given exists flag.
func (r *OfferRepo) CountByExists(ctx context.Context, exists bool) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM offers WHERE exists_remote = $1`, exists)
	if err != nil {
		return 0, fmt.Errorf("failed to count offers: %w", err)
	}
	return n, nil
}
