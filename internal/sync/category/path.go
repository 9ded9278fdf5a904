package category

import (
	"fmt"

	"github.com/andrzw/marketsync/internal/core/domain"
	"github.com/andrzw/marketsync/internal/infra/marketplace"
)

// maxPathHops bounds the parent-chain walk. A legitimate category tree is a
// handful of levels deep; anything longer is treated as corrupt data.
const maxPathHops = 16

// BuildPath flattens a suggestion's parent chain into a root-to-leaf node
// path. Nodes are first indexed into an id arena and the walk follows parent
// id references with a hop bound, so self- or cross-referencing parents are
// reported instead of looping.
func BuildPath(leaf *marketplace.CategorySuggestion) ([]domain.CategoryNode, error) {
	if leaf == nil {
		return nil, fmt.Errorf("nil category suggestion")
	}

	arena := make(map[int64]domain.CategoryNode)
	for cur, hops := leaf, 0; cur != nil; cur = cur.Parent {
		if hops++; hops > maxPathHops {
			return nil, fmt.Errorf("category %d: parent chain exceeds %d hops", leaf.ID, maxPathHops)
		}
		node := domain.CategoryNode{ID: cur.ID, Name: cur.Name}
		if cur.Parent != nil {
			node.ParentID = cur.Parent.ID
		}
		arena[cur.ID] = node
	}

	var reversed []domain.CategoryNode
	seen := make(map[int64]bool)
	for id, hops := leaf.ID, 0; id != 0; {
		if hops++; hops > maxPathHops {
			return nil, fmt.Errorf("category %d: parent walk exceeds %d hops", leaf.ID, maxPathHops)
		}
		if seen[id] {
			return nil, fmt.Errorf("category %d: parent chain cycles at %d", leaf.ID, id)
		}
		seen[id] = true

		node, ok := arena[id]
		if !ok {
			return nil, fmt.Errorf("category %d: dangling parent reference %d", leaf.ID, id)
		}
		reversed = append(reversed, node)
		id = node.ParentID
	}

	path := make([]domain.CategoryNode, len(reversed))
	for i, node := range reversed {
		path[len(reversed)-1-i] = node
	}
	return path, nil
}

// pathContains reports whether any node in the path carries the given id.
func pathContains(path []domain.CategoryNode, id int64) bool {
	for _, node := range path {
		if node.ID == id {
			return true
		}
	}
	return false
}
