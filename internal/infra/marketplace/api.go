package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/sync/transform"
)

// CategorySuggestion is one candidate returned by the matching endpoint,
// carrying its parent chain as nested references.
type CategorySuggestion struct {
	ID     int64               `json:"id,string"`
	Name   string              `json:"name"`
	Parent *CategorySuggestion `json:"parent,omitempty"`
}

// API exposes the typed marketplace endpoints over the resilient transport.
type API struct {
	c *Client
}

// NewAPI wraps a transport client.
func NewAPI(c *Client) *API {
	return &API{c: c}
}

// SuggestCategories asks the destination for categories matching a product
// name. An empty list is a normal outcome, not an error.
func (a *API) SuggestCategories(ctx context.Context, name string) ([]CategorySuggestion, error) {
	endpoint := "/sale/matching-categories?name=" + url.QueryEscape(name)

	resp, err := GetOrZero[struct {
		Categories []CategorySuggestion `json:"matchingCategories"`
	}](ctx, a.c, endpoint)
	if err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// CreateOffer publishes a new offer and returns the assigned external id.
func (a *API) CreateOffer(ctx context.Context, payload transform.OfferPayload) (string, error) {
	resp, err := DoJSON[struct {
		ID string `json:"id"`
	}](ctx, a.c, http.MethodPost, "/sale/offers", payload)
	if err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &domain.DeserializationError{
			Endpoint: "/sale/offers",
			Err:      fmt.Errorf("create response carries no offer id"),
		}
	}
	return resp.ID, nil
}

// UpdateOffer replaces an existing offer's document. Safe to repeat.
func (a *API) UpdateOffer(ctx context.Context, externalID string, payload transform.OfferPayload) error {
	endpoint := "/sale/offers/" + url.PathEscape(externalID)
	_, err := a.c.Do(ctx, http.MethodPut, endpoint, payload)
	return err
}

// GetCategoryParameters fetches the attribute schema of a category. A 404
// means the category defines no schema and yields an empty list.
func (a *API) GetCategoryParameters(ctx context.Context, categoryID int64) ([]domain.CategoryParameter, error) {
	endpoint := fmt.Sprintf("/sale/categories/%d/parameters", categoryID)

	resp, err := GetOrZero[struct {
		Parameters []struct {
			ID         string                   `json:"id"`
			Name       string                   `json:"name"`
			Type       string                   `json:"type"`
			Required   bool                     `json:"required"`
			Min        *float64                 `json:"min,omitempty"`
			Max        *float64                 `json:"max,omitempty"`
			Dictionary []domain.DictionaryEntry `json:"dictionary,omitempty"`
		} `json:"parameters"`
	}](ctx, a.c, endpoint)
	if err != nil {
		return nil, err
	}

	params := make([]domain.CategoryParameter, 0, len(resp.Parameters))
	for _, p := range resp.Parameters {
		params = append(params, domain.CategoryParameter{
			ID:         p.ID,
			CategoryID: categoryID,
			Name:       p.Name,
			Type:       p.Type,
			Required:   p.Required,
			Min:        p.Min,
			Max:        p.Max,
			Dictionary: p.Dictionary,
		})
	}
	return params, nil
}
