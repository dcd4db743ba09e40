package btree

import (
	"context"
	"fmt"
	"strings"

	"github.com/sharedcode/soi"
	"github.com/xlab/treeprint"
)

// String renders the tree structure for diagnostics. Leaves show their keys
// with a trailing '*' marking tombstones; inner nodes show separator keys.
// Output is meant for humans debugging a tree shape, nothing parses it.
func (btree *Btree[TK, TV]) String() string {
	if btree.StoreInfo.RootNodeID.IsNil() {
		return "(empty)"
	}
	tp := treeprint.NewWithRoot(btree.StoreInfo.Name)
	if err := btree.addBranch(context.Background(), tp, btree.StoreInfo.RootNodeID); err != nil {
		return fmt.Sprintf("(dump failed: %v)", err)
	}
	return tp.String()
}

func (btree *Btree[TK, TV]) addBranch(ctx context.Context, branch treeprint.Tree, nodeID soi.UUID) error {
	node, err := btree.getNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.isLeaf() {
		branch.AddNode(formatLeaf(node))
		return nil
	}
	child := branch.AddBranch(formatInner(node))
	for i := 0; i <= node.Count; i++ {
		if err := btree.addBranch(ctx, child, node.ChildrenIDs[i]); err != nil {
			return err
		}
	}
	return nil
}

func formatLeaf[TK Ordered, TV any](node *Node[TK, TV]) string {
	keys := make([]string, 0, node.Count)
	for i := 0; i < node.Count; i++ {
		s := fmt.Sprintf("%v", node.Slots[i].Key)
		if node.Slots[i].Value == nil {
			s += "*"
		}
		keys = append(keys, s)
	}
	return "[" + strings.Join(keys, " ") + "]"
}

func formatInner[TK Ordered, TV any](node *Node[TK, TV]) string {
	keys := make([]string, 0, node.Count)
	for i := 0; i < node.Count; i++ {
		keys = append(keys, fmt.Sprintf("%v", node.Slots[i].Key))
	}
	return "(" + strings.Join(keys, " ") + ")"
}
