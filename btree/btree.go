package btree

import (
	"context"
	"fmt"

	"github.com/sharedcode/soi"
)

// Btree is the in-memory ordered index core: fixed-capacity sorted nodes
// addressed through a NodeRepository, with splits that propagate separator
// keys up to the root.
//
// A Btree is not safe for concurrent use. It is owned by a single writer
// task; concurrent readers are admitted only through the visibility gate the
// inmemory package maintains around it.
type Btree[TK Ordered, TV any] struct {
	// StoreInfo carries configuration (slot length) and the advertised
	// runtime state (root ID, live key count, height).
	StoreInfo      *soi.StoreInfo
	nodeRepository NodeRepository[TK, TV]
	comparer       ComparerFunc[TK]
}

// New creates a Btree over the given store metadata and node repository.
// A nil comparer defaults to cmp.Compare ordering.
func New[TK Ordered, TV any](si *soi.StoreInfo, nodeRepository NodeRepository[TK, TV], comparer ComparerFunc[TK]) (*Btree[TK, TV], error) {
	if si == nil {
		return nil, fmt.Errorf("si can't be nil")
	}
	if nodeRepository == nil {
		return nil, fmt.Errorf("nodeRepository can't be nil")
	}
	if si.SlotLength < soi.MinimumSlotLength {
		return nil, fmt.Errorf("si.SlotLength %d is below the minimum of %d", si.SlotLength, soi.MinimumSlotLength)
	}
	if comparer == nil {
		comparer = DefaultComparer[TK]()
	}
	return &Btree[TK, TV]{
		StoreInfo:      si,
		nodeRepository: nodeRepository,
		comparer:       comparer,
	}, nil
}

func (btree *Btree[TK, TV]) compare(a TK, b TK) int {
	return btree.comparer(a, b)
}

func (btree *Btree[TK, TV]) getSlotLength() int {
	return btree.StoreInfo.SlotLength
}

func (btree *Btree[TK, TV]) getNode(ctx context.Context, id soi.UUID) (*Node[TK, TV], error) {
	n, err := btree.nodeRepository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("can't get node (ID='%v')", id)
	}
	return n, nil
}

func (btree *Btree[TK, TV]) saveNode(node *Node[TK, TV]) {
	btree.nodeRepository.Update(node)
}

// Count returns the number of live (non-tombstoned) keys.
func (btree *Btree[TK, TV]) Count() int64 {
	return btree.StoreInfo.Count
}

// Height returns the number of levels from root to leaves, zero when empty.
// Height only ever grows, and only by one per root split.
func (btree *Btree[TK, TV]) Height() int {
	return btree.StoreInfo.Height
}

// Upsert applies one (key, value) write: it inserts the key at its sorted
// leaf position or overwrites the value of an existing key (last write
// wins). A nil value records a tombstone, logically deleting the key while
// keeping its slot. Overflowing a leaf triggers the split/propagate cycle,
// which always runs to completion before Upsert returns.
func (btree *Btree[TK, TV]) Upsert(ctx context.Context, key TK, value *TV) error {
	if btree.StoreInfo.RootNodeID.IsNil() {
		// Empty-tree bootstrap: the first write creates the root leaf.
		root := newNode[TK, TV](btree.getSlotLength())
		root.newID(soi.NilUUID)
		root.Slots[0] = &Item[TK, TV]{Key: key, Value: value}
		root.Count = 1
		btree.saveNode(root)
		btree.StoreInfo.RootNodeID = root.ID
		btree.StoreInfo.Height = 1
		if value != nil {
			btree.StoreInfo.Count++
		}
		return nil
	}

	node, err := btree.findLeaf(ctx, key)
	if err != nil {
		return err
	}

	index, found := node.indexOfKey(btree, key)
	if found {
		// Overwrite in place; a split can't happen here.
		prev := node.Slots[index].Value
		node.Slots[index].Value = value
		if prev == nil && value != nil {
			btree.StoreInfo.Count++
		}
		if prev != nil && value == nil {
			btree.StoreInfo.Count--
		}
		btree.saveNode(node)
		return nil
	}

	node.insertSlotItem(&Item[TK, TV]{Key: key, Value: value}, index)
	if value != nil {
		btree.StoreInfo.Count++
	}
	if !node.isOverflowed() {
		btree.saveNode(node)
		return nil
	}
	// The insert landed the node in its transient overflow state; split and
	// propagate the separator until the tree is consistent again.
	return btree.splitAndPropagate(ctx, node)
}

// Lookup descends from root to leaf using the routing rule and returns the
// item stored at key, or nil when the key has no slot. Tombstoned items are
// returned as-is; interpreting a nil Value as absence is the caller's call.
func (btree *Btree[TK, TV]) Lookup(ctx context.Context, key TK) (*Item[TK, TV], error) {
	if btree.StoreInfo.RootNodeID.IsNil() {
		return nil, nil
	}
	node, err := btree.findLeaf(ctx, key)
	if err != nil {
		return nil, err
	}
	index, found := node.indexOfKey(btree, key)
	if !found {
		return nil, nil
	}
	return node.Slots[index], nil
}

// findLeaf descends from the root to the leaf whose range covers key,
// applying routeChildIndex at every inner node.
func (btree *Btree[TK, TV]) findLeaf(ctx context.Context, key TK) (*Node[TK, TV], error) {
	node, err := btree.getNode(ctx, btree.StoreInfo.RootNodeID)
	if err != nil {
		return nil, err
	}
	for !node.isLeaf() {
		node, err = btree.getNode(ctx, node.ChildrenIDs[node.routeChildIndex(btree, key)])
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Clear drops the tree wholesale: root reference, counters and the node
// repository contents. Reclamation is in bulk, never node by node.
func (btree *Btree[TK, TV]) Clear() {
	btree.nodeRepository.Clear()
	btree.StoreInfo.RootNodeID = soi.NilUUID
	btree.StoreInfo.Count = 0
	btree.StoreInfo.Height = 0
}

// LeafCursor walks the leaf sibling chain in ascending key order. It is the
// only range-iteration primitive the index exposes. The cursor does not skip
// tombstones; callers filter on Item.Value.
type LeafCursor[TK Ordered, TV any] struct {
	btree  *Btree[TK, TV]
	nodeID soi.UUID
	index  int
}

// First returns a cursor positioned at the smallest key, or nil when the
// tree is empty.
func (btree *Btree[TK, TV]) First(ctx context.Context) (*LeafCursor[TK, TV], error) {
	if btree.StoreInfo.RootNodeID.IsNil() {
		return nil, nil
	}
	node, err := btree.getNode(ctx, btree.StoreInfo.RootNodeID)
	if err != nil {
		return nil, err
	}
	for !node.isLeaf() {
		node, err = btree.getNode(ctx, node.ChildrenIDs[0])
		if err != nil {
			return nil, err
		}
	}
	if node.Count == 0 {
		return nil, nil
	}
	return &LeafCursor[TK, TV]{btree: btree, nodeID: node.ID, index: 0}, nil
}

// Current returns the item at the cursor position.
func (cursor *LeafCursor[TK, TV]) Current(ctx context.Context) (*Item[TK, TV], error) {
	node, err := cursor.btree.getNode(ctx, cursor.nodeID)
	if err != nil {
		return nil, err
	}
	return node.Slots[cursor.index], nil
}

// Next advances to the following key, hopping to the next sibling leaf when
// the current one is exhausted. It returns false at the end of the chain.
func (cursor *LeafCursor[TK, TV]) Next(ctx context.Context) (bool, error) {
	node, err := cursor.btree.getNode(ctx, cursor.nodeID)
	if err != nil {
		return false, err
	}
	if cursor.index+1 < node.Count {
		cursor.index++
		return true, nil
	}
	if node.NextID.IsNil() {
		return false, nil
	}
	cursor.nodeID = node.NextID
	cursor.index = 0
	return true, nil
}
