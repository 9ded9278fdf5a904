// Package reconcile drives one synchronization cycle: load changed offers,
// resolve missing categories, build destination payloads, create or update
// remote records, and write state flags back in batched transactions.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/sync/metrics"
	"github.com/andrzw/marketsync/internal/sync/transform"
)

// MarketplaceAPI is the slice of the destination API the reconciler uses.
type MarketplaceAPI interface {
	CreateOffer(ctx context.Context, payload transform.OfferPayload) (string, error)
	UpdateOffer(ctx context.Context, externalID string, payload transform.OfferPayload) error
	GetCategoryParameters(ctx context.Context, categoryID int64) ([]domain.CategoryParameter, error)
}

// CategoryResolver resolves destination categories for products.
type CategoryResolver interface {
	Resolve(ctx context.Context, p *domain.Product) (int64, error)
	ResetCycle()
}

// OfferStore is the offer-side storage surface.
type OfferStore interface {
	LoadCandidates(ctx context.Context, since time.Time, limit int) ([]*domain.Offer, error)
	SaveStates(ctx context.Context, deltas []domain.OfferStateDelta) error
}

// ProductStore is the product-side storage surface.
type ProductStore interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
	MissingCategory(ctx context.Context, limit int) ([]*domain.Product, error)
	SetCategory(ctx context.Context, productID, categoryID int64) error
	SetHasParams(ctx context.Context, productID int64, has bool) error
}

// ParameterStore persists fetched category parameter schemas.
type ParameterStore interface {
	SaveParameters(ctx context.Context, categoryID int64, params []domain.CategoryParameter) error
}

// FailureQueue parks failed offers for operator inspection.
type FailureQueue interface {
	Add(ctx context.Context, offerID int64, step, reason string) error
	Remove(ctx context.Context, offerID int64) error
	Depth(ctx context.Context) (int64, error)
}

// Config holds reconciler settings.
type Config struct {
	PageSize         int      `yaml:"page_size"`
	BatchSize        int      `yaml:"batch_size"`
	SellableStatuses []string `yaml:"sellable_statuses"`
}

// persistFlushTimeout bounds the final state write of a cancelled cycle.
const persistFlushTimeout = 5 * time.Second

// Reconciler executes cycles. Not safe for concurrent cycles; the scheduler
// guarantees one at a time.
type Reconciler struct {
	offers   OfferStore
	products ProductStore
	params   ParameterStore
	resolver CategoryResolver
	api      MarketplaceAPI
	queue    FailureQueue

	sellable map[string]bool
	pageSize int
	batch    int

	// lastMark is the change watermark of the previous successful load.
	lastMark time.Time
}

// New creates a reconciler. params and queue may be nil.
func New(
	offers OfferStore,
	products ProductStore,
	params ParameterStore,
	resolver CategoryResolver,
	api MarketplaceAPI,
	queue FailureQueue,
	cfg Config,
) *Reconciler {
	sellable := make(map[string]bool, len(cfg.SellableStatuses))
	for _, s := range cfg.SellableStatuses {
		sellable[domain.NormalizeStatus(s)] = true
	}
	if len(sellable) == 0 {
		sellable[domain.OfferStatusActive] = true
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Reconciler{
		offers:   offers,
		products: products,
		params:   params,
		resolver: resolver,
		api:      api,
		queue:    queue,
		sellable: sellable,
		pageSize: pageSize,
		batch:    batchSize,
	}
}

// RunCycle executes one full pass. A panic anywhere inside ends the cycle
// early instead of crashing the host; the next scheduled cycle retries
// naturally since re-running on the same data converges to the same state.
func (r *Reconciler) RunCycle(ctx context.Context) (summary Summary, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cycle aborted by panic: %v", rec)
			metrics.CyclesTotal.WithLabelValues("panic").Inc()
		}
	}()

	start := time.Now()
	summary.CycleID = uuid.NewString()
	log := slog.With("cycle_id", summary.CycleID)

	r.resolver.ResetCycle()

	summary.Resolved = r.resolvePendingProducts(ctx, log)

	offers, err := r.offers.LoadCandidates(ctx, r.lastMark, r.pageSize)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("load_failed").Inc()
		return summary, fmt.Errorf("load candidates: %w", err)
	}
	summary.Loaded = len(offers)
	if len(offers) == 0 {
		r.lastMark = start
		metrics.CyclesTotal.WithLabelValues("empty").Inc()
		return summary, nil
	}

	products, err := r.loadLinkedProducts(ctx, offers)
	if err != nil {
		// Payloads degrade without product data but offers still reconcile.
		log.Warn("loading linked products failed", "error", err)
		products = map[int64]*domain.Product{}
	}

	summary.Resolved += r.resolveCategories(ctx, log, offers, products)

	var deltas []domain.OfferStateDelta
	var cycleErr error
	for _, offer := range offers {
		if err := ctx.Err(); err != nil {
			cycleErr = err
			break
		}

		res, delta := r.processOffer(ctx, offer, products)
		summary.count(res)
		metrics.OffersProcessed.WithLabelValues(res.outcome.String()).Inc()

		switch res.outcome {
		case outcomeFailed:
			log.Warn("offer reconciliation failed",
				"offer_id", res.offerID, "reason", res.reason)
		case outcomeSkipped:
			log.Debug("offer skipped", "offer_id", res.offerID, "reason", res.reason)
		}
		if delta != nil {
			deltas = append(deltas, *delta)
		}
	}

	// Flag writes for destination calls already made must land even when the
	// cycle is cut short; a created offer with no local record would be
	// re-created next cycle.
	persistCtx := ctx
	if cycleErr != nil {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), persistFlushTimeout)
		defer cancel()
	}
	persistErr := r.persistDeltas(persistCtx, log, deltas)
	if cycleErr != nil {
		metrics.CyclesTotal.WithLabelValues("cancelled").Inc()
		return summary, cycleErr
	}

	// A failed persist batch means some offers lost their error marker; hold
	// the watermark so the next cycle reloads the same window.
	if persistErr == nil {
		r.lastMark = start
	}

	if r.queue != nil {
		if depth, err := r.queue.Depth(ctx); err == nil {
			metrics.FailedQueueDepth.Set(float64(depth))
		}
	}

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	log.Info("cycle finished",
		"loaded", summary.Loaded, "resolved", summary.Resolved,
		"created", summary.Created, "updated", summary.Updated,
		"skipped", summary.Skipped, "failed", summary.Failed,
		"took", time.Since(start))
	return summary, nil
}

func (r *Reconciler) loadLinkedProducts(ctx context.Context, offers []*domain.Offer) (map[int64]*domain.Product, error) {
	var ids []int64
	seen := make(map[int64]bool)
	for _, o := range offers {
		if o.ProductID != nil && !seen[*o.ProductID] {
			seen[*o.ProductID] = true
			ids = append(ids, *o.ProductID)
		}
	}
	if len(ids) == 0 {
		return map[int64]*domain.Product{}, nil
	}
	return r.products.GetByIDs(ctx, ids)
}

// resolvePendingProducts resolves categories for products still carrying the
// sentinel, independent of offer changes. A product whose suggestions were
// empty last cycle gets its retry here even when no offer moved.
func (r *Reconciler) resolvePendingProducts(ctx context.Context, log *slog.Logger) int {
	pending, err := r.products.MissingCategory(ctx, r.pageSize)
	if err != nil {
		log.Warn("loading products missing category failed", "error", err)
		return 0
	}

	resolved := 0
	for _, product := range pending {
		if ctx.Err() != nil {
			return resolved
		}
		if r.resolveProduct(ctx, log, product) {
			resolved++
		}
	}
	return resolved
}

// resolveCategories fills missing categories for offers whose linked product
// has none yet. Each product is isolated: one failure is logged and the rest
// of the batch continues.
func (r *Reconciler) resolveCategories(
	ctx context.Context,
	log *slog.Logger,
	offers []*domain.Offer,
	products map[int64]*domain.Product,
) int {
	resolved := 0
	for _, offer := range offers {
		if ctx.Err() != nil {
			return resolved
		}
		if offer.CategoryID != domain.CategoryUnresolved || offer.ProductID == nil {
			continue
		}
		product, ok := products[*offer.ProductID]
		if !ok {
			continue
		}

		if product.CategoryID == domain.CategoryUnresolved {
			if !r.resolveProduct(ctx, log, product) {
				continue
			}
			resolved++
		}

		offer.CategoryID = product.CategoryID
	}
	return resolved
}

// resolveProduct resolves and persists one product's category, then pulls the
// category parameter schema. Reports whether the product now carries a
// resolved id.
func (r *Reconciler) resolveProduct(ctx context.Context, log *slog.Logger, product *domain.Product) bool {
	id, err := r.resolver.Resolve(ctx, product)
	if err != nil || id == domain.CategoryUnresolved {
		log.Warn("category resolution failed",
			"product_id", product.ID, "step", "resolve_category", "error", err)
		return false
	}
	if err := r.products.SetCategory(ctx, product.ID, id); err != nil {
		log.Warn("persisting resolved category failed",
			"product_id", product.ID, "step", "persist_category", "error", err)
		return false
	}
	product.CategoryID = id
	r.fetchParameters(ctx, log, product)
	return true
}

// fetchParameters pulls the category attribute schema and derives the
// has-parameters flag. Best effort: schema enriches mapping, its absence
// never blocks the offer.
func (r *Reconciler) fetchParameters(ctx context.Context, log *slog.Logger, product *domain.Product) {
	if r.params == nil {
		return
	}

	params, err := r.api.GetCategoryParameters(ctx, product.CategoryID)
	if err != nil {
		log.Warn("fetching category parameters failed",
			"category_id", product.CategoryID, "error", err)
		return
	}
	if err := r.params.SaveParameters(ctx, product.CategoryID, params); err != nil {
		log.Warn("saving category parameters failed",
			"category_id", product.CategoryID, "error", err)
		return
	}
	if err := r.products.SetHasParams(ctx, product.ID, len(params) > 0); err != nil {
		log.Warn("saving has_params flag failed", "product_id", product.ID, "error", err)
	}
}

// processOffer runs the create-or-update phase for one offer. The destination
// call and the local flag write form a unit: no call success, no local write.
func (r *Reconciler) processOffer(
	ctx context.Context,
	offer *domain.Offer,
	products map[int64]*domain.Product,
) (entityResult, *domain.OfferStateDelta) {
	var product *domain.Product
	if offer.ProductID != nil {
		product = products[*offer.ProductID]
	}

	switch Classify(offer, r.sellable) {
	case domain.StateReadyToCreate:
		payload := transform.BuildOfferPayload(offer, product)
		externalID, err := r.api.CreateOffer(ctx, payload)
		if err != nil {
			r.park(ctx, offer.ID, "create", err)
			return entityResult{offerID: offer.ID, outcome: outcomeFailed, reason: err.Error()},
				r.failureDelta(offer, err)
		}
		r.unpark(ctx, offer.ID)
		return entityResult{offerID: offer.ID, outcome: outcomeCreated},
			&domain.OfferStateDelta{
				OfferID:    offer.ID,
				ExternalID: externalID,
				Exists:     true,
				SyncedAt:   time.Now(),
			}

	case domain.StateUpdateCandidate:
		payload := transform.BuildOfferPayload(offer, product)
		if err := r.api.UpdateOffer(ctx, offer.ExternalID, payload); err != nil {
			r.park(ctx, offer.ID, "update", err)
			return entityResult{offerID: offer.ID, outcome: outcomeFailed, reason: err.Error()},
				r.failureDelta(offer, err)
		}
		r.unpark(ctx, offer.ID)
		return entityResult{offerID: offer.ID, outcome: outcomeUpdated},
			&domain.OfferStateDelta{
				OfferID:    offer.ID,
				ExternalID: offer.ExternalID,
				Exists:     true,
				SyncedAt:   time.Now(),
			}

	case domain.StateExisting:
		_, reason := updateEligible(offer)
		return entityResult{offerID: offer.ID, outcome: outcomeSkipped, reason: reason},
			r.skipDelta(offer, reason)

	default:
		_, reason := creationEligible(offer, r.sellable)
		return entityResult{offerID: offer.ID, outcome: outcomeSkipped, reason: reason},
			r.skipDelta(offer, reason)
	}
}

// failureDelta records the failure reason on the offer row without touching
// the exists flag, so the candidate query reloads the offer next cycle.
func (r *Reconciler) failureDelta(offer *domain.Offer, cause error) *domain.OfferStateDelta {
	return &domain.OfferStateDelta{
		OfferID:    offer.ID,
		ExternalID: offer.ExternalID,
		Exists:     offer.Exists,
		LastError:  cause.Error(),
	}
}

// skipDelta marks category-unresolved skips the same way as failures: those
// clear themselves once resolution succeeds, so the offer must stay in the
// candidate window. Every other skip reason requires a source change, which
// bumps the row into the window on its own.
func (r *Reconciler) skipDelta(offer *domain.Offer, reason string) *domain.OfferStateDelta {
	if reason != reasonCategoryUnresolved {
		return nil
	}
	return &domain.OfferStateDelta{
		OfferID:    offer.ID,
		ExternalID: offer.ExternalID,
		Exists:     offer.Exists,
		LastError:  reason,
	}
}

// persistDeltas writes state flags in independent batches. Each batch is its
// own transaction checkpoint; a later batch failing never rolls back an
// earlier committed one. Returns the first batch failure.
func (r *Reconciler) persistDeltas(ctx context.Context, log *slog.Logger, deltas []domain.OfferStateDelta) error {
	var firstErr error
	for start := 0; start < len(deltas); start += r.batch {
		end := start + r.batch
		if end > len(deltas) {
			end = len(deltas)
		}
		if err := r.offers.SaveStates(ctx, deltas[start:end]); err != nil {
			log.Error("state batch persist failed",
				"from", deltas[start].OfferID, "count", end-start, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Reconciler) park(ctx context.Context, offerID int64, step string, cause error) {
	if r.queue == nil {
		return
	}
	if err := r.queue.Add(ctx, offerID, step, cause.Error()); err != nil {
		slog.Warn("parking failed offer failed", "offer_id", offerID, "error", err)
	}
}

func (r *Reconciler) unpark(ctx context.Context, offerID int64) {
	if r.queue == nil {
		return
	}
	if err := r.queue.Remove(ctx, offerID); err != nil {
		slog.Warn("removing offer from failure queue failed", "offer_id", offerID, "error", err)
	}
}
