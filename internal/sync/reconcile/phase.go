package reconcile

// outcome is the per-entity phase verdict. Expected conditions like "not
// eligible" are outcomes, not errors; the driver decides continuation policy
// from the verdict instead of exception flow.
type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeCreated:
		return "created"
	case outcomeUpdated:
		return "updated"
	case outcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// entityResult carries one offer's verdict through the cycle.
type entityResult struct {
	offerID int64
	outcome outcome
	reason  string
}

// Summary aggregates one cycle's results.
type Summary struct {
	CycleID  string
	Loaded   int
	Resolved int
	Created  int
	Updated  int
	Skipped  int
	Failed   int
}

func (s *Summary) count(res entityResult) {
	switch res.outcome {
	case outcomeCreated:
		s.Created++
	case outcomeUpdated:
		s.Updated++
	case outcomeSkipped:
		s.Skipped++
	case outcomeFailed:
		s.Failed++
	}
}
