package btree

import (
	"context"

	"github.com/sharedcode/soi"
)

// NodeRepository manages nodes of a B-tree, addressed by soi.UUID. It is the
// slab the tree's parent/sibling/child references index into.
type NodeRepository[TK Ordered, TV any] interface {
	// Add stores a newly created node.
	Add(n *Node[TK, TV])
	// Update upserts an existing node.
	Update(n *Node[TK, TV])
	// Get retrieves the node with nodeID, nil if absent.
	Get(ctx context.Context, nodeID soi.UUID) (*Node[TK, TV], error)
	// Remove deletes the node with nodeID.
	Remove(nodeID soi.UUID)
	// Clear drops every node for bulk reclamation. Nodes are never removed
	// individually by deletion (deletes only tombstone), only en masse here.
	Clear()
}

// in-memory implementation of NodeRepository. Uses a map to manage nodes in memory.
type nodeRepository[TK Ordered, TV any] struct {
	lookup map[soi.UUID]*Node[TK, TV]
}

// NewNodeRepository instantiates a NodeRepository that uses a map to manage items.
func NewNodeRepository[TK Ordered, TV any]() NodeRepository[TK, TV] {
	return &nodeRepository[TK, TV]{
		lookup: make(map[soi.UUID]*Node[TK, TV]),
	}
}

// Add will upsert node to the map.
func (nr *nodeRepository[TK, TV]) Add(n *Node[TK, TV]) {
	nr.lookup[n.ID] = n
}

// Update will upsert node to the map.
func (nr *nodeRepository[TK, TV]) Update(n *Node[TK, TV]) {
	nr.lookup[n.ID] = n
}

// Get will retrieve a node with nodeID from the map.
func (nr *nodeRepository[TK, TV]) Get(ctx context.Context, nodeID soi.UUID) (*Node[TK, TV], error) {
	v := nr.lookup[nodeID]
	return v, nil
}

// Remove will remove a node with nodeID from the map.
func (nr *nodeRepository[TK, TV]) Remove(nodeID soi.UUID) {
	delete(nr.lookup, nodeID)
}

// Clear replaces the map wholesale; the garbage collector reclaims the nodes.
func (nr *nodeRepository[TK, TV]) Clear() {
	nr.lookup = make(map[soi.UUID]*Node[TK, TV])
}
