package transform

import "github.com/andrzw/marketsync/internal/core/domain"

// OfferPayload is the full destination wire document for a create or update
// call. Numeric fields already carry destination units (minor units, grams,
// whole days).
type OfferPayload struct {
	Name         string               `json:"name,omitempty"`
	CategoryID   int64                `json:"categoryId"`
	Price        int64                `json:"price"`
	Stock        int                  `json:"stock"`
	Status       string               `json:"status"`
	WeightGrams  int64                `json:"weight,omitempty"`
	DispatchDays int                  `json:"dispatchTime"`
	Attributes   []Attribute          `json:"attributes"`
	Description  []DescriptionSection `json:"description,omitempty"`
}

// BuildOfferPayload assembles the complete outbound document for an offer.
// The linked product, when present, contributes name and weight.
func BuildOfferPayload(offer *domain.Offer, product *domain.Product) OfferPayload {
	payload := OfferPayload{
		CategoryID:   offer.CategoryID,
		Price:        PriceMinorUnits(offer.Price),
		Stock:        offer.Stock,
		Status:       domain.NormalizeStatus(offer.Status),
		DispatchDays: DispatchDays(offer.DispatchTime),
		Attributes:   MapAttributes(offer.Attributes),
		Description:  MapDescription(offer.Descriptions),
	}
	if product != nil {
		payload.Name = product.Name
		payload.WeightGrams = WeightGrams(product.WeightKG)
	}
	return payload
}
