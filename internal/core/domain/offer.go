package domain

import (
	"strings"
	"time"
)

// Offer statuses after ingestion normalization.
const (
	OfferStatusActive   = "active"
	OfferStatusInactive = "inactive"
)

// NormalizeStatus maps a raw marketplace status onto the internal form.
// "ENDED" (any case) becomes inactive, everything else is lower-cased as-is.
func NormalizeStatus(raw string) string {
	if strings.EqualFold(raw, "ended") {
		return OfferStatusInactive
	}
	return strings.ToLower(raw)
}

// SyncState classifies an offer within one reconciliation cycle.
type SyncState string

const (
	StateUnsynced        SyncState = "unsynced"
	StateReadyToCreate   SyncState = "ready_to_create"
	StateExisting        SyncState = "existing"
	StateUpdateCandidate SyncState = "update_candidate"
)

// Offer is the sales-channel projection of a Product.
type Offer struct {
	ID         int64
	ExternalID string
	ProductID  *int64
	CategoryID int64
	Price      float64
	Stock      int
	Status     string

	// Exists flips to true once a create call on the destination succeeds.
	Exists bool

	Attributes   []AttributeRow
	Descriptions []*DescriptionRow

	DispatchTime string
	UpdatedAt    time.Time
}

// AttributeRow is a raw attribute record as loaded from storage. Values and
// value ids are opaque JSON arrays decoded only at the transformer boundary.
type AttributeRow struct {
	OfferID  int64
	AttrID   string
	Type     string
	Values   string
	ValueIDs string
}

// DescriptionRow is a raw description record keyed by (section, item).
type DescriptionRow struct {
	OfferID   int64
	SectionID int
	ItemID    int
	Type      string
	Content   string
}

// OfferStateDelta is the per-entity write-back produced by a cycle.
type OfferStateDelta struct {
	OfferID    int64
	ExternalID string
	Exists     bool
	LastError  string
	SyncedAt   time.Time
}
