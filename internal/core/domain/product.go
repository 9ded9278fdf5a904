package domain

import "time"

// CategoryUnresolved is the sentinel category id meaning "not yet resolved".
// A product carrying it is picked up again by the resolver on the next cycle.
const CategoryUnresolved int64 = 0

// Product is the canonical supplier-side catalog record. The reconciler only
// reads it, except for the resolved category id and the has-parameters flag.
type Product struct {
	ID           int64
	Code         string
	Name         string
	Unit         string
	PriceNet     float64
	PriceGross   float64
	Stock        int
	WeightKG     float64
	Technical    string
	Description  string
	Attributes   map[string]string
	Applications []string
	CategoryID   int64
	HasParams    bool
	Archived     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NeedsCategory reports whether the product still waits for category resolution.
func (p *Product) NeedsCategory() bool {
	return p.CategoryID == CategoryUnresolved && !p.Archived
}
