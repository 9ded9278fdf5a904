package reconcile

import "github.com/andrzw/marketsync/internal/core/domain"

// reasonCategoryUnresolved is the one skip reason that clears itself without
// a source change: resolution can succeed on a later cycle, so offers skipped
// for it are kept reloadable instead of waiting for the source row to move.
const reasonCategoryUnresolved = "category unresolved"

// Classify places an offer into its sync state. Offers failing creation
// eligibility stay Unsynced until the source data changes.
func Classify(o *domain.Offer, sellable map[string]bool) domain.SyncState {
	if o.Exists {
		if ok, _ := updateEligible(o); ok {
			return domain.StateUpdateCandidate
		}
		return domain.StateExisting
	}
	if ok, _ := creationEligible(o, sellable); ok {
		return domain.StateReadyToCreate
	}
	return domain.StateUnsynced
}

// creationEligible checks the full create precondition set. The returned
// reason explains the first failing check for skip reporting.
func creationEligible(o *domain.Offer, sellable map[string]bool) (bool, string) {
	switch {
	case o.Exists:
		return false, "already exists on destination"
	case !sellable[o.Status]:
		return false, "status not sellable: " + o.Status
	case o.Price <= 0:
		return false, "non-positive price"
	case o.Stock <= 0:
		return false, "non-positive stock"
	case o.CategoryID == domain.CategoryUnresolved:
		return false, reasonCategoryUnresolved
	default:
		return true, ""
	}
}

// updateEligible checks update preconditions. Stock may be zero: out-of-stock
// is a legitimate update for an existing listing.
func updateEligible(o *domain.Offer) (bool, string) {
	switch {
	case !o.Exists:
		return false, "not yet created on destination"
	case o.Price <= 0:
		return false, "non-positive price"
	case o.CategoryID == domain.CategoryUnresolved:
		return false, reasonCategoryUnresolved
	default:
		return true, ""
	}
}
