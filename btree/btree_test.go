package btree

import (
	"context"
	"math/rand"
	"testing"

	"github.com/sharedcode/soi"
)

var ctx = context.Background()

// helper to construct a test btree over a map-backed repository.
func newTestBtree(t *testing.T, slotLength int) *Btree[int, string] {
	t.Helper()
	si, err := soi.NewStoreInfo(soi.StoreOptions{Name: "it", SlotLength: slotLength})
	if err != nil {
		t.Fatalf("store info: %v", err)
	}
	b, err := New[int, string](si, NewNodeRepository[int, string](), nil)
	if err != nil {
		t.Fatalf("new btree: %v", err)
	}
	return b
}

func put(t *testing.T, b *Btree[int, string], key int, value string) {
	t.Helper()
	if err := b.Upsert(ctx, key, &value); err != nil {
		t.Fatalf("upsert %d: %v", key, err)
	}
}

func tombstone(t *testing.T, b *Btree[int, string], key int) {
	t.Helper()
	if err := b.Upsert(ctx, key, nil); err != nil {
		t.Fatalf("tombstone %d: %v", key, err)
	}
}

// liveKeys walks the leaf sibling chain and returns every non-tombstoned key in order.
func liveKeys(t *testing.T, b *Btree[int, string]) []int {
	t.Helper()
	var keys []int
	cursor, err := b.First(ctx)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	for cursor != nil {
		item, err := cursor.Current(ctx)
		if err != nil {
			t.Fatalf("current: %v", err)
		}
		if item.Value != nil {
			keys = append(keys, item.Key)
		}
		ok, err := cursor.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
	}
	return keys
}

// leafDepths collects the depth of every leaf reachable from the root.
func leafDepths(t *testing.T, b *Btree[int, string]) []int {
	t.Helper()
	var depths []int
	var walk func(id soi.UUID, depth int)
	walk = func(id soi.UUID, depth int) {
		n, err := b.getNode(ctx, id)
		if err != nil {
			t.Fatalf("get node: %v", err)
		}
		if n.Count > b.getSlotLength() {
			t.Fatalf("node %v left in overflow state (count=%d)", n.ID, n.Count)
		}
		for i := 1; i < n.Count; i++ {
			if n.Slots[i-1].Key >= n.Slots[i].Key {
				t.Fatalf("node %v keys not strictly ascending", n.ID)
			}
		}
		if n.isLeaf() {
			depths = append(depths, depth)
			return
		}
		for i := 0; i <= n.Count; i++ {
			walk(n.ChildrenIDs[i], depth+1)
		}
	}
	if !b.StoreInfo.RootNodeID.IsNil() {
		walk(b.StoreInfo.RootNodeID, 1)
	}
	return depths
}

func assertUniformDepth(t *testing.T, b *Btree[int, string]) {
	t.Helper()
	depths := leafDepths(t, b)
	for _, d := range depths {
		if d != b.Height() {
			t.Fatalf("leaf depth %d != height %d", d, b.Height())
		}
	}
}

func TestNew_ValidationErrors(t *testing.T) {
	si, _ := soi.NewStoreInfo(soi.StoreOptions{Name: "x", SlotLength: 4})
	if b, err := New[int, string](nil, NewNodeRepository[int, string](), nil); err == nil || b != nil {
		t.Fatalf("expected error for nil store info")
	}
	if b, err := New[int, string](si, nil, nil); err == nil || b != nil {
		t.Fatalf("expected error for nil node repo")
	}
	si.SlotLength = 1
	if b, err := New[int, string](si, NewNodeRepository[int, string](), nil); err == nil || b != nil {
		t.Fatalf("expected error for slot length below minimum")
	}
}

func TestUpsertAndLookup_Basic(t *testing.T) {
	b := newTestBtree(t, 4)
	put(t, b, 2, "b")
	put(t, b, 1, "a")
	put(t, b, 3, "c")

	if got := b.Count(); got != 3 {
		t.Fatalf("count %d", got)
	}
	if got := b.Height(); got != 1 {
		t.Fatalf("height %d", got)
	}
	for key, want := range map[int]string{1: "a", 2: "b", 3: "c"} {
		item, err := b.Lookup(ctx, key)
		if err != nil || item == nil || item.Value == nil {
			t.Fatalf("lookup %d: item=%v err=%v", key, item, err)
		}
		if *item.Value != want {
			t.Fatalf("lookup %d = %q, want %q", key, *item.Value, want)
		}
	}
	if item, _ := b.Lookup(ctx, 99); item != nil {
		t.Fatalf("expected absent for 99, got %v", item)
	}
}

func TestUpsert_LastWriteWins(t *testing.T) {
	b := newTestBtree(t, 4)
	put(t, b, 7, "first")
	put(t, b, 7, "second")
	put(t, b, 7, "third")

	if got := b.Count(); got != 1 {
		t.Fatalf("count %d", got)
	}
	item, _ := b.Lookup(ctx, 7)
	if item == nil || item.Value == nil || *item.Value != "third" {
		t.Fatalf("lookup 7 = %v", item)
	}
}

func TestTombstone_RemoveThenReinsert(t *testing.T) {
	b := newTestBtree(t, 4)
	put(t, b, 1, "a")
	put(t, b, 2, "b")
	tombstone(t, b, 1)

	if got := b.Count(); got != 1 {
		t.Fatalf("count after tombstone %d", got)
	}
	item, _ := b.Lookup(ctx, 1)
	if item == nil {
		t.Fatal("tombstoned key should keep its slot")
	}
	if item.Value != nil {
		t.Fatal("tombstoned key should read as absent")
	}

	put(t, b, 1, "a2")
	if got := b.Count(); got != 2 {
		t.Fatalf("count after reinsert %d", got)
	}
	item, _ = b.Lookup(ctx, 1)
	if item == nil || item.Value == nil || *item.Value != "a2" {
		t.Fatalf("lookup after reinsert = %v", item)
	}
}

// Node capacity 6 with keys 1..7 forces exactly one leaf split: the root
// becomes an inner node with two leaf children and the separator equals the
// right leaf's lowest key.
func TestLeafSplit_SlotLength6(t *testing.T) {
	b := newTestBtree(t, 6)
	for key := 1; key <= 7; key++ {
		put(t, b, key, "v")
	}

	if got := b.Height(); got != 2 {
		t.Fatalf("height %d", got)
	}
	root, err := b.getNode(ctx, b.StoreInfo.RootNodeID)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if root.isLeaf() || root.Count != 1 {
		t.Fatalf("root should be an inner node with one separator, got count %d", root.Count)
	}
	left, err := b.getNode(ctx, root.ChildrenIDs[0])
	if err != nil {
		t.Fatalf("left: %v", err)
	}
	right, err := b.getNode(ctx, root.ChildrenIDs[1])
	if err != nil {
		t.Fatalf("right: %v", err)
	}
	if !left.isLeaf() || !right.isLeaf() {
		t.Fatal("both children should be leaves")
	}
	if root.Slots[0].Key != right.lowerBound() {
		t.Fatalf("separator %d != right leaf lower bound %d", root.Slots[0].Key, right.lowerBound())
	}
	// Left keeps the lowest ceil((6+1)/2)=4 items, right takes the rest.
	if left.Count != 4 || right.Count != 3 {
		t.Fatalf("split sizes %d/%d", left.Count, right.Count)
	}
	if left.NextID != right.ID {
		t.Fatal("sibling chain should link left to right")
	}
	if left.ParentID != root.ID || right.ParentID != root.ID {
		t.Fatal("children should back-reference the new root")
	}
	assertUniformDepth(t, b)
}

func TestSplitPropagation_AscendingInserts(t *testing.T) {
	b := newTestBtree(t, 4)
	const n = 500
	for key := 1; key <= n; key++ {
		put(t, b, key, "v")
	}
	if got := b.Count(); got != n {
		t.Fatalf("count %d", got)
	}
	assertUniformDepth(t, b)
	keys := liveKeys(t, b)
	if len(keys) != n {
		t.Fatalf("chain yielded %d keys", len(keys))
	}
	for i, key := range keys {
		if key != i+1 {
			t.Fatalf("chain out of order at %d: %d", i, key)
		}
	}
}

func TestSplitPropagation_ShuffledInserts(t *testing.T) {
	b := newTestBtree(t, 6)
	const n = 1000
	rng := rand.New(rand.NewSource(42))
	for _, key := range rng.Perm(n) {
		put(t, b, key, "v")
	}
	if got := b.Count(); got != n {
		t.Fatalf("count %d", got)
	}
	assertUniformDepth(t, b)
	keys := liveKeys(t, b)
	if len(keys) != n {
		t.Fatalf("chain yielded %d keys", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("chain not strictly ascending at %d", i)
		}
	}
}

func TestHeight_GrowsOnlyOnRootSplit(t *testing.T) {
	b := newTestBtree(t, 2)
	lastHeight := 0
	lastRoot := b.StoreInfo.RootNodeID
	for key := 1; key <= 200; key++ {
		put(t, b, key, "v")
		h := b.Height()
		if h < lastHeight {
			t.Fatalf("height shrank from %d to %d", lastHeight, h)
		}
		if h > lastHeight {
			if h != lastHeight+1 {
				t.Fatalf("height jumped from %d to %d", lastHeight, h)
			}
			if b.StoreInfo.RootNodeID == lastRoot && lastHeight > 0 {
				t.Fatal("height grew without a root split")
			}
		}
		lastHeight = h
		lastRoot = b.StoreInfo.RootNodeID
	}
	if lastHeight < 3 {
		t.Fatalf("expected the tree to grow several levels, got height %d", lastHeight)
	}
}

func TestClear_DropsEverything(t *testing.T) {
	b := newTestBtree(t, 4)
	for key := 1; key <= 50; key++ {
		put(t, b, key, "v")
	}
	b.Clear()
	if b.Count() != 0 || b.Height() != 0 {
		t.Fatalf("count %d height %d after clear", b.Count(), b.Height())
	}
	if item, err := b.Lookup(ctx, 10); err != nil || item != nil {
		t.Fatalf("lookup after clear: %v %v", item, err)
	}
	// The tree bootstraps again on the next write.
	put(t, b, 1, "a")
	if b.Count() != 1 || b.Height() != 1 {
		t.Fatalf("count %d height %d after re-bootstrap", b.Count(), b.Height())
	}
}

func TestCursor_AcrossLeaves(t *testing.T) {
	b := newTestBtree(t, 2)
	for key := 1; key <= 20; key++ {
		put(t, b, key, "v")
	}
	tombstone(t, b, 5)
	tombstone(t, b, 13)

	keys := liveKeys(t, b)
	if len(keys) != 18 {
		t.Fatalf("live keys %d", len(keys))
	}
	for _, key := range keys {
		if key == 5 || key == 13 {
			t.Fatalf("tombstoned key %d surfaced", key)
		}
	}
	if got := b.Count(); got != 18 {
		t.Fatalf("count %d", got)
	}
}

func TestCursor_EmptyTree(t *testing.T) {
	b := newTestBtree(t, 4)
	cursor, err := b.First(ctx)
	if err != nil || cursor != nil {
		t.Fatalf("expected nil cursor on empty tree, got %v %v", cursor, err)
	}
}
