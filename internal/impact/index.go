package impact

import (
	"errors"
	"fmt"
)

// ErrInvalidTree is returned when a fetched tree breaks the structural rules of the
// chain of impact: duplicate node ids, or a child at a lower niveau than its parent
var ErrInvalidTree = errors.New("invalid chain of impact")

// Index is built once per fetched tree, and maps each node id to its position in the
// tree so that lookups don't require walking it
type Index struct {
	entries map[NodeID]indexEntry
	order   []NodeID
}

type indexEntry struct {
	node   *TreeNode
	parent NodeID
	depth  int
}

// BuildIndex indexes every node reachable from roots, in depth-first order
func BuildIndex(roots []TreeNode) (*Index, error) {
	idx := &Index{entries: make(map[NodeID]indexEntry)}
	for i := range roots {
		if err := idx.add(&roots[i], "", 0); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *Index) add(node *TreeNode, parent NodeID, depth int) error {
	if _, exists := idx.entries[node.ID]; exists {
		return fmt.Errorf("%w: duplicate node id %q", ErrInvalidTree, node.ID)
	}
	idx.entries[node.ID] = indexEntry{node: node, parent: parent, depth: depth}
	idx.order = append(idx.order, node.ID)
	for i := range node.Children {
		child := &node.Children[i]
		if child.Niveau < node.Niveau {
			return fmt.Errorf("%w: node %q at niveau %d is below its parent %q at niveau %d",
				ErrInvalidTree, child.ID, child.Niveau, node.ID, node.Niveau)
		}
		if err := idx.add(child, node.ID, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of nodes in the tree
func (idx *Index) Len() int {
	return len(idx.order)
}

// Lookup returns the node with the given id
func (idx *Index) Lookup(id NodeID) (*TreeNode, bool) {
	e, ok := idx.entries[id]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Parent returns the id of a node's parent; roots have no parent
func (idx *Index) Parent(id NodeID) (NodeID, bool) {
	e, ok := idx.entries[id]
	if !ok || e.parent == "" {
		return "", false
	}
	return e.parent, true
}

// Depth returns how many levels below a root the node sits, or -1 if it's unknown
func (idx *Index) Depth(id NodeID) int {
	e, ok := idx.entries[id]
	if !ok {
		return -1
	}
	return e.depth
}

// IDs returns every node id in depth-first order
func (idx *Index) IDs() []NodeID {
	ids := make([]NodeID, len(idx.order))
	copy(ids, idx.order)
	return ids
}

// Branches returns the ids of all nodes that have children
func (idx *Index) Branches() []NodeID {
	ids := make([]NodeID, 0)
	for _, id := range idx.order {
		if len(idx.entries[id].node.Children) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
