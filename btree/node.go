package btree

import (
	"sort"

	"github.com/sharedcode/soi"
)

// Item contains a key/value pair stored in a node slot.
type Item[TK Ordered, TV any] struct {
	// Key is the key part in the key/value pair.
	Key TK
	// Value points to the stored data. A nil Value on a leaf slot is a
	// tombstone: the key keeps its slot but reads treat it as absent.
	// Items on inner nodes are separators and carry no Value.
	Value *TV
}

// Node contains a B-tree node's data. Nodes are addressed by soi.UUID through
// the NodeRepository; ParentID, NextID and ChildrenIDs are repository IDs,
// never in-process pointers. Parent and sibling links are back-references
// only; a child is owned by exactly one parent at a time.
type Node[TK Ordered, TV any] struct {
	ID       soi.UUID
	ParentID soi.UUID
	// NextID links same-level nodes in ascending key order. Following the
	// chain from the leftmost leaf yields every key in the tree in order.
	NextID soi.UUID
	// Slots is an array where the Items get stored. Its length is
	// SlotLength+1; the extra slot is transient overflow space that is only
	// populated between an overflowing insert and the split that resolves it.
	Slots []*Item[TK, TV]
	// Count of items in this node.
	Count int
	// ChildrenIDs holds the IDs of this node's children, nil for leaves.
	// Its length is SlotLength+2, mirroring the transient slot in Slots.
	ChildrenIDs []soi.UUID
}

// newNode creates a new leaf node sized for slotLength items plus the
// transient overflow slot.
func newNode[TK Ordered, TV any](slotLength int) *Node[TK, TV] {
	return &Node[TK, TV]{
		Slots: make([]*Item[TK, TV], slotLength+1),
	}
}

// newID assigns a fresh repository ID and the parent back-reference.
func (node *Node[TK, TV]) newID(parentID soi.UUID) {
	node.ID = soi.NewUUID()
	node.ParentID = parentID
}

// isLeaf reports whether the node stores values rather than child routes.
func (node *Node[TK, TV]) isLeaf() bool {
	return node.ChildrenIDs == nil
}

// isRootNode returns true if the node has no parent.
func (node *Node[TK, TV]) isRootNode() bool {
	return node.ParentID.IsNil()
}

// isOverflowed reports whether the transient slot is occupied, i.e. the node
// holds slotLength+1 items and must be split before the tree is advertised
// as consistent again.
func (node *Node[TK, TV]) isOverflowed() bool {
	return node.Count == len(node.Slots)
}

// lowerBound returns the smallest key in the node.
func (node *Node[TK, TV]) lowerBound() TK {
	return node.Slots[0].Key
}

// indexOfKey returns the slot position key occupies, or the position it
// would be inserted at, and whether an exact match was found.
func (node *Node[TK, TV]) indexOfKey(btree *Btree[TK, TV], key TK) (int, bool) {
	index := sort.Search(node.Count, func(index int) bool {
		return btree.compare(node.Slots[index].Key, key) >= 0
	})
	if index < node.Count && btree.compare(node.Slots[index].Key, key) == 0 {
		return index, true
	}
	return index, false
}

// routeChildIndex returns the index of the child whose subtree covers key:
// the child following the largest separator <= key, or the leftmost child
// when key is smaller than every separator. Readers and the writer's descent
// apply this same rule.
func (node *Node[TK, TV]) routeChildIndex(btree *Btree[TK, TV], key TK) int {
	return sort.Search(node.Count, func(index int) bool {
		return btree.compare(node.Slots[index].Key, key) > 0
	})
}

// insertSlotItem inserts item at position, shifting trailing items right.
// The caller checks for overflow afterwards; an insert that lands in the
// transient slot obliges it to split the node.
func (node *Node[TK, TV]) insertSlotItem(item *Item[TK, TV], position int) {
	copy(node.Slots[position+1:], node.Slots[position:])
	node.Slots[position] = item
	node.Count++
}

// insertSeparator inserts a separator key and the right child produced by a
// split. The left child already occupies position, so only the right child
// reference is added, at position+1.
func (node *Node[TK, TV]) insertSeparator(separator *Item[TK, TV], rightChildID soi.UUID, position int) {
	copy(node.Slots[position+1:], node.Slots[position:])
	node.Slots[position] = separator
	copy(node.ChildrenIDs[position+2:], node.ChildrenIDs[position+1:])
	node.ChildrenIDs[position+1] = rightChildID
	node.Count++
}

// clearSlotsFrom nils out slots from position onward so the left half of a
// split does not pin items that moved to the right sibling.
func (node *Node[TK, TV]) clearSlotsFrom(position int) {
	for i := position; i < len(node.Slots); i++ {
		node.Slots[i] = nil
	}
}

// clearChildrenFrom nils out child references from position onward.
func (node *Node[TK, TV]) clearChildrenFrom(position int) {
	for i := position; i < len(node.ChildrenIDs); i++ {
		node.ChildrenIDs[i] = soi.NilUUID
	}
}
