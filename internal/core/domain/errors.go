package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a 404 at a call site where absence is normal.
	ErrNotFound = errors.New("not found")

	// ErrRateLimitExceeded signals an exhausted 429 retry budget. Callers
	// decide per call site whether it is fatal or log-and-continue.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// TransportError carries the final non-success status and body of a call.
type TransportError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("marketplace call %s failed: http %d: %s", e.Endpoint, e.Status, e.Body)
}

// DeserializationError reports a response body that could not be decoded.
// Kept distinct from TransportError so malformed payloads are never mistaken
// for endpoint failures.
type DeserializationError struct {
	Endpoint string
	Err      error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.Endpoint, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// ResolutionError reports that category resolution found no eligible candidate
// for a product. Non-fatal: logged and retried on the next cycle.
type ResolutionError struct {
	ProductID int64
	Name      string
	Reason    string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("category resolution for product %d (%q): %s", e.ProductID, e.Name, e.Reason)
}

// PersistenceError wraps a storage write failure for a whole batch.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
