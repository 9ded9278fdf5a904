package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/sync/transform"
)

type fakeOfferStore struct {
	offers      []*domain.Offer
	honorSince  bool
	saved       [][]domain.OfferStateDelta
	saveErr     error
	lastChanged time.Time
	lastErrs    map[int64]string
}

// LoadCandidates mirrors the SQL predicate: changed since the mark, or still
// carrying an error marker from an earlier cycle.
func (f *fakeOfferStore) LoadCandidates(_ context.Context, since time.Time, _ int) ([]*domain.Offer, error) {
	if !f.honorSince {
		return f.offers, nil
	}
	var out []*domain.Offer
	for _, o := range f.offers {
		if f.lastChanged.After(since) || f.lastErrs[o.ID] != "" {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOfferStore) SaveStates(_ context.Context, deltas []domain.OfferStateDelta) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, deltas)
	if f.lastErrs == nil {
		f.lastErrs = make(map[int64]string)
	}
	for _, d := range deltas {
		f.lastErrs[d.OfferID] = d.LastError
		for _, o := range f.offers {
			if o.ID == d.OfferID {
				o.Exists = d.Exists
				if d.ExternalID != "" {
					o.ExternalID = d.ExternalID
				}
			}
		}
	}
	return nil
}

type fakeProductStore struct {
	products   map[int64]*domain.Product
	categories map[int64]int64
}

func (f *fakeProductStore) GetByIDs(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeProductStore) MissingCategory(context.Context, int) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range f.products {
		if p.CategoryID == domain.CategoryUnresolved && !p.Archived {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductStore) SetCategory(_ context.Context, productID, categoryID int64) error {
	if f.categories == nil {
		f.categories = make(map[int64]int64)
	}
	f.categories[productID] = categoryID
	return nil
}

func (f *fakeProductStore) SetHasParams(context.Context, int64, bool) error { return nil }

type fakeResolver struct {
	id    int64
	err   error
	calls int
}

func (f *fakeResolver) Resolve(context.Context, *domain.Product) (int64, error) {
	f.calls++
	return f.id, f.err
}

func (f *fakeResolver) ResetCycle() {}

type fakeAPI struct {
	creates    int
	updates    int
	createErr  error
	updateErr  error
	lastCreate transform.OfferPayload
	onCreate   func()
}

func (f *fakeAPI) CreateOffer(_ context.Context, payload transform.OfferPayload) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.creates++
	f.lastCreate = payload
	if f.onCreate != nil {
		f.onCreate()
	}
	return "ext-1", nil
}

func (f *fakeAPI) UpdateOffer(_ context.Context, _ string, _ transform.OfferPayload) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	return nil
}

func (f *fakeAPI) GetCategoryParameters(context.Context, int64) ([]domain.CategoryParameter, error) {
	return nil, nil
}

func sellableConfig() Config {
	return Config{SellableStatuses: []string{"active"}, PageSize: 100, BatchSize: 10}
}

func sellableOffer(id int64) *domain.Offer {
	return &domain.Offer{
		ID:         id,
		CategoryID: 42,
		Price:      10,
		Stock:      3,
		Status:     "active",
	}
}

func TestClassify(t *testing.T) {
	sellable := map[string]bool{"active": true}

	tests := []struct {
		name  string
		offer *domain.Offer
		want  domain.SyncState
	}{
		{"eligible new offer", sellableOffer(1), domain.StateReadyToCreate},
		{"zero price", &domain.Offer{CategoryID: 1, Price: 0, Stock: 1, Status: "active"}, domain.StateUnsynced},
		{"zero stock", &domain.Offer{CategoryID: 1, Price: 1, Stock: 0, Status: "active"}, domain.StateUnsynced},
		{"no category", &domain.Offer{CategoryID: 0, Price: 1, Stock: 1, Status: "active"}, domain.StateUnsynced},
		{"not sellable", &domain.Offer{CategoryID: 1, Price: 1, Stock: 1, Status: "inactive"}, domain.StateUnsynced},
		{"existing out of stock still updates", &domain.Offer{Exists: true, CategoryID: 1, Price: 1, Stock: 0, Status: "active"}, domain.StateUpdateCandidate},
		{"existing zero price held back", &domain.Offer{Exists: true, CategoryID: 1, Price: 0, Stock: 1, Status: "active"}, domain.StateExisting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.offer, sellable); got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunCycleCreatesThenUpdates(t *testing.T) {
	store := &fakeOfferStore{offers: []*domain.Offer{sellableOffer(1)}}
	api := &fakeAPI{}
	r := New(store, &fakeProductStore{}, nil, &fakeResolver{}, api, nil, sellableConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if summary.Created != 1 || api.creates != 1 {
		t.Fatalf("first cycle: %+v, creates=%d", summary, api.creates)
	}
	if !store.offers[0].Exists || store.offers[0].ExternalID != "ext-1" {
		t.Fatalf("create success must flip exists and store the external id: %+v", store.offers[0])
	}

	// Second cycle over the same (now-existing) offer: update, never create.
	summary, err = r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if api.creates != 1 {
		t.Errorf("create called %d times across cycles, want 1", api.creates)
	}
	if summary.Updated != 1 || api.updates != 1 {
		t.Errorf("second cycle: %+v, updates=%d", summary, api.updates)
	}
}

func TestRunCycleIdempotentOnUnchangedSet(t *testing.T) {
	store := &fakeOfferStore{
		offers:      []*domain.Offer{sellableOffer(1)},
		honorSince:  true,
		lastChanged: time.Now().Add(-time.Hour),
	}
	api := &fakeAPI{}
	r := New(store, &fakeProductStore{}, nil, &fakeResolver{}, api, nil, sellableConfig())

	if _, err := r.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := api.creates + api.updates; got != 1 {
		t.Errorf("unchanged set caused %d destination calls, want 1 (first cycle only)", got)
	}
}

func TestRunCycleCreateFailureLeavesStateUntouched(t *testing.T) {
	store := &fakeOfferStore{offers: []*domain.Offer{sellableOffer(1)}}
	api := &fakeAPI{createErr: errors.New("http 500")}
	r := New(store, &fakeProductStore{}, nil, &fakeResolver{}, api, nil, sellableConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("per-entity failure must not abort the cycle: %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want one failure", summary)
	}
	if store.offers[0].Exists {
		t.Error("failed create must not flip the exists flag")
	}
	if len(store.saved) != 1 {
		t.Fatalf("failure must be recorded in exactly one delta batch, got %v", store.saved)
	}
	if d := store.saved[0][0]; d.Exists || d.LastError == "" || !d.SyncedAt.IsZero() {
		t.Errorf("failure delta must record the error without flipping exists or the sync time: %+v", d)
	}
}

func TestRunCycleRetriesFailedCreateNextCycle(t *testing.T) {
	store := &fakeOfferStore{
		offers:      []*domain.Offer{sellableOffer(1)},
		honorSince:  true,
		lastChanged: time.Now().Add(-time.Hour),
	}
	api := &fakeAPI{createErr: errors.New("http 503")}
	r := New(store, &fakeProductStore{}, nil, &fakeResolver{}, api, nil, sellableConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || store.lastErrs[1] == "" {
		t.Fatalf("failure marker missing after cycle 1: %+v, lastErrs=%v", summary, store.lastErrs)
	}

	// Destination recovers; the offer must re-enter the candidate window even
	// though its source row never changed.
	api.createErr = nil
	summary, err = r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 1 || api.creates != 1 {
		t.Fatalf("failed offer was not retried: %+v, creates=%d", summary, api.creates)
	}
	if store.lastErrs[1] != "" {
		t.Error("successful create must clear the error marker")
	}

	// With the marker cleared and no source change the window is empty again.
	summary, err = r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Loaded != 0 {
		t.Errorf("third cycle loaded %d offers, want 0", summary.Loaded)
	}
}

func TestRunCycleFlushesDeltasOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeOfferStore{offers: []*domain.Offer{sellableOffer(1), sellableOffer(2)}}
	api := &fakeAPI{onCreate: cancel} // cancel mid-cycle, after the first create landed
	r := New(store, &fakeProductStore{}, nil, &fakeResolver{}, api, nil, sellableConfig())

	_, err := r.RunCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if api.creates != 1 {
		t.Fatalf("creates = %d, want 1 (second offer cut off)", api.creates)
	}
	if len(store.saved) != 1 || len(store.saved[0]) != 1 {
		t.Fatalf("the completed create's delta must still be persisted, got %v", store.saved)
	}
	if d := store.saved[0][0]; d.OfferID != 1 || !d.Exists || d.ExternalID != "ext-1" {
		t.Errorf("flushed delta = %+v, want offer 1 marked existing", d)
	}
}

func TestRunCycleResolvesPendingProductsWithoutOfferChanges(t *testing.T) {
	store := &fakeOfferStore{honorSince: true} // empty candidate window
	products := &fakeProductStore{products: map[int64]*domain.Product{
		7: {ID: 7, Name: "sieve"},
	}}
	resolver := &fakeResolver{id: 257698}
	r := New(store, products, nil, resolver, &fakeAPI{}, nil, sellableConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Resolved != 1 {
		t.Errorf("summary = %+v, want one resolution from the pending scan", summary)
	}
	if products.categories[7] != 257698 {
		t.Error("pending product's resolved category must be persisted")
	}
}

func TestRunCycleRetriesUnresolvedCategoryNextCycle(t *testing.T) {
	productID := int64(7)
	offer := sellableOffer(1)
	offer.CategoryID = 0
	offer.ProductID = &productID

	store := &fakeOfferStore{
		offers:      []*domain.Offer{offer},
		honorSince:  true,
		lastChanged: time.Now().Add(-time.Hour),
	}
	products := &fakeProductStore{products: map[int64]*domain.Product{
		7: {ID: 7, Name: "sieve"},
	}}
	resolver := &fakeResolver{id: domain.CategoryUnresolved, err: &domain.ResolutionError{ProductID: 7, Reason: "no candidates"}}
	api := &fakeAPI{}
	r := New(store, products, nil, resolver, api, nil, sellableConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || store.lastErrs[1] == "" {
		t.Fatalf("unresolved-category skip must stay reloadable: %+v, lastErrs=%v", summary, store.lastErrs)
	}

	// Resolution starts succeeding; the skipped offer must come back and ship.
	resolver.id = 257698
	resolver.err = nil
	summary, err = r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Created != 1 || api.creates != 1 {
		t.Fatalf("offer skipped for category was not retried: %+v, creates=%d", summary, api.creates)
	}
	if api.lastCreate.CategoryID != 257698 {
		t.Errorf("payload category = %d, want resolved id", api.lastCreate.CategoryID)
	}
}

func TestRunCycleFailureIsolation(t *testing.T) {
	// Offer 1 fails its update; offer 2 must still be created.
	existing := &domain.Offer{ID: 1, ExternalID: "ext-1", Exists: true, CategoryID: 5, Price: 2, Stock: 0, Status: "active"}
	store := &fakeOfferStore{offers: []*domain.Offer{existing, sellableOffer(2)}}
	api := &fakeAPI{updateErr: errors.New("http 422")}
	r := New(store, &fakeProductStore{}, nil, &fakeResolver{}, api, nil, sellableConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 || summary.Created != 1 {
		t.Errorf("summary = %+v, want 1 failed + 1 created", summary)
	}
}

func TestRunCycleResolvesMissingCategories(t *testing.T) {
	productID := int64(7)
	offer := sellableOffer(1)
	offer.CategoryID = 0
	offer.ProductID = &productID

	store := &fakeOfferStore{offers: []*domain.Offer{offer}}
	products := &fakeProductStore{products: map[int64]*domain.Product{
		7: {ID: 7, Name: "sieve", CategoryID: domain.CategoryUnresolved},
	}}
	resolver := &fakeResolver{id: 257698}
	api := &fakeAPI{}
	r := New(store, products, nil, resolver, api, nil, sellableConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Resolved != 1 {
		t.Errorf("summary = %+v, want one resolution", summary)
	}
	if products.categories[7] != 257698 {
		t.Error("resolved id must be persisted before payload building")
	}
	if api.creates != 1 || api.lastCreate.CategoryID != 257698 {
		t.Errorf("payload category = %d, want resolved id", api.lastCreate.CategoryID)
	}
}

func TestRunCycleUnresolvedCategorySkips(t *testing.T) {
	productID := int64(7)
	offer := sellableOffer(1)
	offer.CategoryID = 0
	offer.ProductID = &productID

	store := &fakeOfferStore{offers: []*domain.Offer{offer}}
	products := &fakeProductStore{products: map[int64]*domain.Product{
		7: {ID: 7, Name: "sieve"},
	}}
	resolver := &fakeResolver{id: domain.CategoryUnresolved, err: &domain.ResolutionError{ProductID: 7, Reason: "no candidates"}}
	api := &fakeAPI{}
	r := New(store, products, nil, resolver, api, nil, sellableConfig())

	summary, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("resolution failure is non-fatal: %v", err)
	}
	if summary.Skipped != 1 || api.creates != 0 {
		t.Errorf("summary = %+v, creates = %d; offer must be skipped", summary, api.creates)
	}
}

func TestRunCycleObservesCancellation(t *testing.T) {
	store := &fakeOfferStore{offers: []*domain.Offer{sellableOffer(1), sellableOffer(2)}}
	api := &fakeAPI{}
	r := New(store, &fakeProductStore{}, nil, &fakeResolver{}, api, nil, sellableConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if api.creates != 0 {
		t.Errorf("cancelled cycle still issued %d creates", api.creates)
	}
}
