package category

import (
	"context"
	"errors"
	"testing"

	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/infra/marketplace"
)

const (
	rootID      = int64(100)
	childID     = int64(110)
	leafMachine = int64(257698)
	leafSpare   = int64(257699)
)

type fakeSuggester struct {
	byName map[string][]marketplace.CategorySuggestion
	calls  int
}

func (f *fakeSuggester) SuggestCategories(_ context.Context, name string) ([]marketplace.CategorySuggestion, error) {
	f.calls++
	return f.byName[name], nil
}

type fakeStore struct {
	upserts [][]domain.CategoryNode
	err     error
}

func (f *fakeStore) UpsertCategoryTree(_ context.Context, path []domain.CategoryNode) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, path)
	return nil
}

func chain(ids ...int64) marketplace.CategorySuggestion {
	// ids are root-to-leaf; build the nested leaf-to-root form.
	var cur *marketplace.CategorySuggestion
	for _, id := range ids {
		cur = &marketplace.CategorySuggestion{ID: id, Name: "node", Parent: cur}
	}
	return *cur
}

func testConfig() Config {
	return Config{
		PreferredRoot:     rootID,
		PreferredChild:    childID,
		DefaultLeaf:       leafMachine,
		HarvesterLeaf:     leafMachine,
		HarvesterFallback: leafSpare,
		Hints: []Hint{
			{Keyword: "harvester", LeafID: leafMachine},
			{Keyword: "tractor", LeafID: leafSpare},
		},
	}
}

func TestResolvePrefersMatchingPath(t *testing.T) {
	api := &fakeSuggester{byName: map[string][]marketplace.CategorySuggestion{
		"sieve": {
			chain(999, 998, 997),
			chain(rootID, childID, leafMachine),
		},
	}}
	store := &fakeStore{}
	r := NewResolver(api, store, testConfig())

	id, err := r.Resolve(context.Background(), &domain.Product{ID: 1, Name: "sieve", Applications: []string{"Combine Harvester X"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != leafMachine {
		t.Errorf("resolved id = %d, want %d", id, leafMachine)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected one path upsert, got %d", len(store.upserts))
	}
	if got := store.upserts[0]; got[0].ID != rootID || got[len(got)-1].ID != leafMachine {
		t.Errorf("persisted path not root-to-leaf: %+v", got)
	}
}

func TestResolveUnresolvedOutsidePreferredRoot(t *testing.T) {
	api := &fakeSuggester{byName: map[string][]marketplace.CategorySuggestion{
		"sieve": {chain(999, 998, 997)},
	}}
	r := NewResolver(api, &fakeStore{}, testConfig())

	id, err := r.Resolve(context.Background(), &domain.Product{ID: 1, Name: "sieve"})
	if id != domain.CategoryUnresolved {
		t.Errorf("id = %d, want unresolved sentinel", id)
	}
	var re *domain.ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want ResolutionError", err)
	}
}

func TestResolveUnresolvedOnNoCandidates(t *testing.T) {
	r := NewResolver(&fakeSuggester{byName: map[string][]marketplace.CategorySuggestion{}}, &fakeStore{}, testConfig())

	id, err := r.Resolve(context.Background(), &domain.Product{ID: 2, Name: "unknown thing"})
	if id != domain.CategoryUnresolved {
		t.Errorf("id = %d, want unresolved sentinel", id)
	}
	var re *domain.ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want ResolutionError", err)
	}
}

func TestResolveHarvesterFallback(t *testing.T) {
	// Candidates live under the preferred root+child but none carries the
	// harvester leaf; the fallback leaf must win over plain first-choice.
	api := &fakeSuggester{byName: map[string][]marketplace.CategorySuggestion{
		"belt": {
			chain(rootID, childID, 555),
			chain(rootID, childID, leafSpare),
		},
	}}
	store := &fakeStore{}
	r := NewResolver(api, store, testConfig())

	id, err := r.Resolve(context.Background(), &domain.Product{ID: 3, Name: "belt", Applications: []string{"harvester drive"}})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != leafSpare {
		t.Errorf("resolved id = %d, want fallback leaf %d", id, leafSpare)
	}
}

func TestResolveFirstRemainingWhenNoHintMatches(t *testing.T) {
	cfg := testConfig()
	cfg.HarvesterLeaf = 0 // not the harvester hint, no secondary retry
	api := &fakeSuggester{byName: map[string][]marketplace.CategorySuggestion{
		"belt": {
			chain(rootID, childID, 555),
			chain(rootID, childID, 556),
		},
	}}
	r := NewResolver(api, &fakeStore{}, cfg)

	id, err := r.Resolve(context.Background(), &domain.Product{ID: 4, Name: "belt"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != 555 {
		t.Errorf("resolved id = %d, want first remaining 555", id)
	}
}

func TestResolveMemoizesPerCycle(t *testing.T) {
	api := &fakeSuggester{byName: map[string][]marketplace.CategorySuggestion{
		"sieve": {chain(rootID, childID, leafMachine)},
	}}
	r := NewResolver(api, &fakeStore{}, testConfig())

	p := &domain.Product{ID: 1, Name: "sieve"}
	if _, err := r.Resolve(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if api.calls != 1 {
		t.Errorf("suggest called %d times, want 1 (memoized)", api.calls)
	}

	r.ResetCycle()
	if _, err := r.Resolve(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if api.calls != 2 {
		t.Errorf("suggest called %d times after reset, want 2", api.calls)
	}
}

func TestBuildPathRejectsCycles(t *testing.T) {
	self := &marketplace.CategorySuggestion{ID: 42, Name: "loop"}
	self.Parent = self

	if _, err := BuildPath(self); err == nil {
		t.Fatal("expected error for self-referencing parent chain")
	}
}

func TestBuildPathOrdersRootToLeaf(t *testing.T) {
	c := chain(1, 2, 3)
	path, err := BuildPath(&c)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 3 || path[0].ID != 1 || path[2].ID != 3 {
		t.Errorf("path = %+v, want ids 1,2,3", path)
	}
	if path[2].ParentID != 2 || path[0].ParentID != 0 {
		t.Errorf("parent links wrong: %+v", path)
	}
}
