// Package category resolves the destination category for a product through
// the marketplace suggestion endpoint and a prioritized matching heuristic.
package category

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/infra/marketplace"
	"github.com/andrzw/marketsync/internal/sync/metrics"
)

// Suggester is the slice of the marketplace API the resolver depends on.
type Suggester interface {
	SuggestCategories(ctx context.Context, name string) ([]marketplace.CategorySuggestion, error)
}

// Store persists resolved category paths.
type Store interface {
	UpsertCategoryTree(ctx context.Context, path []domain.CategoryNode) error
}

// Hint maps an application keyword onto a preferred leaf category id. Hints
// are checked in order; the first keyword contained in any application wins.
type Hint struct {
	Keyword string `yaml:"keyword"`
	LeafID  int64  `yaml:"leaf_id"`
}

// Config carries the business priority table. The ids are configuration for
// one destination taxonomy, not structure.
type Config struct {
	PreferredRoot  int64  `yaml:"preferred_root"`
	PreferredChild int64  `yaml:"preferred_child"`
	DefaultLeaf    int64  `yaml:"default_leaf"`
	Hints          []Hint `yaml:"hints"`

	// HarvesterLeaf gets a second chance: when it is the active hint and no
	// candidate path contains it, matching retries with HarvesterFallback.
	HarvesterLeaf     int64 `yaml:"harvester_leaf"`
	HarvesterFallback int64 `yaml:"harvester_fallback"`
}

// Resolver picks the best-fit destination category for a product.
type Resolver struct {
	api   Suggester
	store Store
	cfg   Config

	// memo caches name -> resolved id for one cycle so duplicate product
	// names cost a single suggest call.
	memo map[string]int64
}

// NewResolver creates a resolver. Call ResetCycle between cycles.
func NewResolver(api Suggester, store Store, cfg Config) *Resolver {
	return &Resolver{api: api, store: store, cfg: cfg, memo: make(map[string]int64)}
}

// ResetCycle drops the per-cycle resolution cache.
func (r *Resolver) ResetCycle() {
	r.memo = make(map[string]int64)
}

// Resolve determines and persists the category for one product. On any
// no-candidate outcome it returns the unresolved sentinel together with a
// ResolutionError; callers log it and move on, the product is retried next
// cycle.
func (r *Resolver) Resolve(ctx context.Context, p *domain.Product) (int64, error) {
	if id, ok := r.memo[p.Name]; ok {
		return id, nil
	}

	leafHint := r.leafHint(p)

	suggestions, err := r.api.SuggestCategories(ctx, p.Name)
	if err != nil {
		metrics.CategoriesResolved.WithLabelValues("error").Inc()
		return domain.CategoryUnresolved, fmt.Errorf("suggest categories for product %d: %w", p.ID, err)
	}
	if len(suggestions) == 0 {
		return r.unresolved(p, "no candidates returned")
	}

	var paths [][]domain.CategoryNode
	for i := range suggestions {
		path, err := BuildPath(&suggestions[i])
		if err != nil {
			slog.Warn("skipping corrupt category candidate", "product_id", p.ID, "error", err)
			continue
		}
		paths = append(paths, path)
	}

	paths = filterByID(paths, r.cfg.PreferredRoot)
	if len(paths) == 0 {
		return r.unresolved(p, "no candidate under preferred root")
	}

	paths = filterByID(paths, r.cfg.PreferredChild)
	if len(paths) == 0 {
		return r.unresolved(p, "no candidate under preferred root child")
	}

	winner := firstContaining(paths, leafHint)
	if winner == nil && leafHint == r.cfg.HarvesterLeaf && r.cfg.HarvesterFallback != 0 {
		winner = firstContaining(paths, r.cfg.HarvesterFallback)
	}
	if winner == nil {
		// No hint matched: first remaining candidate in received order.
		winner = paths[0]
	}

	if err := r.store.UpsertCategoryTree(ctx, winner); err != nil {
		metrics.CategoriesResolved.WithLabelValues("error").Inc()
		return domain.CategoryUnresolved, &domain.PersistenceError{Op: "upsert category tree", Err: err}
	}

	id := winner[len(winner)-1].ID
	r.memo[p.Name] = id
	metrics.CategoriesResolved.WithLabelValues("resolved").Inc()
	slog.Debug("category resolved", "product_id", p.ID, "category_id", id)
	return id, nil
}

func (r *Resolver) unresolved(p *domain.Product, reason string) (int64, error) {
	metrics.CategoriesResolved.WithLabelValues("unresolved").Inc()
	return domain.CategoryUnresolved, &domain.ResolutionError{ProductID: p.ID, Name: p.Name, Reason: reason}
}

// leafHint picks the preferred leaf id from the product's application tags.
func (r *Resolver) leafHint(p *domain.Product) int64 {
	for _, hint := range r.cfg.Hints {
		kw := strings.ToLower(hint.Keyword)
		for _, app := range p.Applications {
			if strings.Contains(strings.ToLower(app), kw) {
				return hint.LeafID
			}
		}
	}
	return r.cfg.DefaultLeaf
}

func filterByID(paths [][]domain.CategoryNode, id int64) [][]domain.CategoryNode {
	var out [][]domain.CategoryNode
	for _, path := range paths {
		if pathContains(path, id) {
			out = append(out, path)
		}
	}
	return out
}

func firstContaining(paths [][]domain.CategoryNode, id int64) []domain.CategoryNode {
	for _, path := range paths {
		if pathContains(path, id) {
			return path
		}
	}
	return nil
}
