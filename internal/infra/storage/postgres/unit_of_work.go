package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andrzw/marketsync/internal/core/domain"
)

// UnitOfWork bundles the write-backs of one reconciliation batch into a
// single database transaction, so an offer's state flags either all land or
// none do.
type UnitOfWork struct {
	db *DB
	tx *sqlx.Tx
}

// NewUnitOfWork creates a new unit of work with an active transaction.
func (db *DB) NewUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{db: db, tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

// SaveOfferStates writes the per-offer deltas of one batch.
func (u *UnitOfWork) SaveOfferStates(ctx context.Context, deltas []domain.OfferStateDelta) error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}

	for _, d := range deltas {
		// A zero SyncedAt means the delta records a failure; keep the last
		// successful sync time intact.
		var syncedAt any
		if !d.SyncedAt.IsZero() {
			syncedAt = d.SyncedAt
		}

		_, err := u.tx.ExecContext(ctx, `
			UPDATE offers
			SET external_id = COALESCE(NULLIF($2, ''), external_id),
			    exists_remote = $3,
			    last_error = NULLIF($4, ''),
			    synced_at = COALESCE(CAST($5 AS TIMESTAMPTZ), synced_at)
			WHERE id = $1`,
			d.OfferID, d.ExternalID, d.Exists, d.LastError, syncedAt)
		if err != nil {
			return &domain.PersistenceError{
				Op:  fmt.Sprintf("save state for offer %d", d.OfferID),
				Err: err,
			}
		}
	}
	return nil
}
