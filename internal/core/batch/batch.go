// Package batch splits large identifier sets into bounded chunks so that
// IN-queries and marketplace batch endpoints never exceed their parameter
// limits.
package batch

import (
	"fmt"
	"strings"
)

// DefaultChunkSize is the safe per-request identifier limit.
const DefaultChunkSize = 2000

// Split partitions ids into chunks of at most size elements, preserving order.
// A non-positive size falls back to DefaultChunkSize.
func Split(ids []int64, size int) [][]int64 {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(ids) == 0 {
		return nil
	}

	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// ChunkFailure records one failed chunk of a split request.
type ChunkFailure struct {
	Index int
	Err   error
}

// ChunkError aggregates per-chunk failures. Results from succeeded chunks are
// kept by the caller; the error only describes what is missing.
type ChunkError struct {
	Total    int
	Failures []ChunkFailure
}

func (e *ChunkError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("chunk %d/%d: %v", f.Index+1, e.Total, f.Err)
	}
	return fmt.Sprintf("%d of %d chunks failed: %s", len(e.Failures), e.Total, strings.Join(parts, "; "))
}
