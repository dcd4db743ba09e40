package btree

import (
	"context"
	log "log/slog"

	"github.com/sharedcode/soi"
)

// splitAndPropagate resolves a node left in its transient overflow state by
// splitting it and inserting the separator into the parent, repeating one
// level up whenever the parent overflows in turn. When propagation runs past
// the current root, a new root with exactly two children is created and the
// tree grows in height by one. The cycle always runs to completion: the tree
// is never advertised across the visibility gate mid-propagation.
func (btree *Btree[TK, TV]) splitAndPropagate(ctx context.Context, node *Node[TK, TV]) error {
	pair, separator, err := btree.split(ctx, node)
	if err != nil {
		return err
	}
	for {
		left, right := pair.First, pair.Second
		if left.isRootNode() {
			// No parent left to insert into; grow the tree with a new root
			// holding the final separator and the two newest siblings.
			root := newNode[TK, TV](btree.getSlotLength())
			root.newID(soi.NilUUID)
			root.ChildrenIDs = make([]soi.UUID, btree.getSlotLength()+2)
			root.Slots[0] = separator
			root.Count = 1
			root.ChildrenIDs[0] = left.ID
			root.ChildrenIDs[1] = right.ID
			left.ParentID = root.ID
			right.ParentID = root.ID
			btree.saveNode(left)
			btree.saveNode(right)
			btree.saveNode(root)
			btree.StoreInfo.RootNodeID = root.ID
			btree.StoreInfo.Height++
			log.Debug("root split", "store", btree.StoreInfo.Name, "height", btree.StoreInfo.Height)
			return nil
		}

		parent, err := btree.getNode(ctx, left.ParentID)
		if err != nil {
			return err
		}
		// The split left the right sibling's parent unset; it becomes a
		// child of the same parent as the left sibling.
		right.ParentID = parent.ID
		btree.saveNode(right)

		index, _ := parent.indexOfKey(btree, separator.Key)
		parent.insertSeparator(separator, right.ID, index)
		if !parent.isOverflowed() {
			btree.saveNode(parent)
			return nil
		}
		pair, separator, err = btree.split(ctx, parent)
		if err != nil {
			return err
		}
	}
}

// split partitions an overflowed node into an ordered (left, right) pair.
// The left node keeps the original identity and position in the sibling
// chain; the right node is new, with its ParentID left for the caller to
// assign. Leaf and inner splits report their result through the same
// convention: the separator is the lower bound of the right subtree. For a
// leaf that is a copy of the right node's lowest key (which stays in the
// leaf); for an inner node it is the middle key, moved up exclusively.
func (btree *Btree[TK, TV]) split(ctx context.Context, node *Node[TK, TV]) (soi.Tuple[*Node[TK, TV], *Node[TK, TV]], *Item[TK, TV], error) {
	pair := soi.Tuple[*Node[TK, TV], *Node[TK, TV]]{First: node}
	right := newNode[TK, TV](btree.getSlotLength())
	right.newID(soi.NilUUID)
	pair.Second = right
	var separator *Item[TK, TV]

	if node.isLeaf() {
		// Left keeps the lowest ceil((slotLength+1)/2) items.
		half := (btree.getSlotLength() + 2) / 2
		right.Count = node.Count - half
		copy(right.Slots, node.Slots[half:node.Count])
		node.clearSlotsFrom(half)
		node.Count = half
		separator = &Item[TK, TV]{Key: right.lowerBound()}
	} else {
		// The middle key moves up; it ends in neither half.
		mid := (btree.getSlotLength() + 1) / 2
		separator = node.Slots[mid]
		right.Count = node.Count - mid - 1
		right.ChildrenIDs = make([]soi.UUID, btree.getSlotLength()+2)
		copy(right.Slots, node.Slots[mid+1:node.Count])
		copy(right.ChildrenIDs, node.ChildrenIDs[mid+1:node.Count+1])
		node.clearSlotsFrom(mid)
		node.clearChildrenFrom(mid + 1)
		node.Count = mid
		if err := btree.updateChildrenParent(ctx, right); err != nil {
			return pair, nil, err
		}
	}

	// Rewire the same-level sibling chain around the new right node.
	right.NextID = node.NextID
	node.NextID = right.ID

	btree.saveNode(node)
	btree.saveNode(right)
	return pair, separator, nil
}

// updateChildrenParent fixes the ParentID back-reference of all of node's
// children after a structural change handed them to a new parent.
func (btree *Btree[TK, TV]) updateChildrenParent(ctx context.Context, node *Node[TK, TV]) error {
	for i := 0; i <= node.Count; i++ {
		child, err := btree.getNode(ctx, node.ChildrenIDs[i])
		if err != nil {
			return err
		}
		child.ParentID = node.ID
		btree.saveNode(child)
	}
	return nil
}
