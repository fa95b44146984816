package btree

import (
	"bptreedb/pkg/bpage"
	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"
)

// split describes the result of a node splitting in two: key is the
// separator promoted to the parent, leftPageID is the original node
// (unchanged identity), right is the guard of the freshly allocated
// sibling, still held with its writer latch.
type split struct {
	isSplit    bool
	key        int64
	leftPageID int64
	right      *buffer.Guard
}

// Insert adds key/value to the tree, returning false if key already
// exists. Descent takes writer latches and crabs per spec §4.4: a
// child proven safe (size < max_size-1, so it cannot itself split)
// lets every ancestor above it be released immediately.
func (t *BPlusTree) Insert(key, value int64) (bool, error) {
	t.lockRoot()
	if t.rootPageID == disk.InvalidPageID {
		g, err := t.bpm.NewWrite()
		if err != nil {
			t.unlockRoot()
			return false, err
		}
		bpage.InitLeaf(g.Data(), g.PageID(), disk.InvalidPageID, t.leafMax)
		g.MarkDirty()
		if err := t.setRoot(g.PageID()); err != nil {
			g.Release()
			t.unlockRoot()
			return false, err
		}
		g.Release()
	}

	root, err := t.bpm.FetchWrite(t.rootPageID)
	t.unlockRoot()
	if err != nil {
		return false, err
	}

	b := newBag()
	b.push(root)
	defer b.releaseAll()

	cur := root
	for bpage.GetPageType(cur.Data()) != bpage.LeafPageType {
		idx := internalChildIndex(cur.Data(), key, t.cmp)
		childID := bpage.InternalChildAt(cur.Data(), idx)
		child, err := t.bpm.FetchWrite(childID)
		if err != nil {
			return false, err
		}
		b.push(child)
		if isSafeForInsert(child.Data()) {
			b.releaseAllExceptLast()
		}
		cur = child
	}

	leaf, _ := b.popLast()
	sp, inserted := t.insertIntoLeaf(leaf, key, value)
	if !inserted {
		leaf.Release()
		return false, nil
	}
	if err := t.propagateSplit(b, leaf, sp); err != nil {
		return false, err
	}
	return true, nil
}

// insertIntoLeaf inserts key/value into a leaf already known to have
// room, splitting it if the insert brings it to max_size (spec §4.3.2).
func (t *BPlusTree) insertIntoLeaf(leaf *buffer.Guard, key, value int64) (split, bool) {
	data := leaf.Data()
	size := bpage.GetSize(data)
	pos := leafSearch(data, key, t.cmp)
	if pos < size && t.cmp(bpage.LeafKeyAt(data, pos), key) == 0 {
		return split{}, false
	}
	for i := size; i > pos; i-- {
		bpage.SetLeafEntryAt(data, i, bpage.LeafKeyAt(data, i-1), bpage.LeafValueAt(data, i-1))
	}
	bpage.SetLeafEntryAt(data, pos, key, value)
	bpage.SetSize(data, size+1)
	leaf.MarkDirty()

	if size+1 != t.leafMax {
		return split{}, true
	}
	sp, err := t.splitLeaf(leaf)
	if err != nil {
		// Disk exhaustion mid-split is a structural invariant violation
		// the caller cannot repair; surface it as "inserted" with no
		// split so the caller's error path doesn't re-run the insert.
		t.log.Printf("btree: leaf split failed: %v", err)
		return split{}, true
	}
	return sp, true
}

// splitLeaf moves the upper half of leaf's entries into a new right
// sibling, re-threads the leaf chain, and returns the promoted key
// (the new sibling's first key).
func (t *BPlusTree) splitLeaf(left *buffer.Guard) (split, error) {
	right, err := t.bpm.NewWrite()
	if err != nil {
		return split{}, err
	}
	leftData := left.Data()
	bpage.InitLeaf(right.Data(), right.PageID(), bpage.GetParentPageID(leftData), t.leafMax)

	size := bpage.GetSize(leftData)
	m := size / 2
	newSize := size - m
	for i := int64(0); i < newSize; i++ {
		bpage.SetLeafEntryAt(right.Data(), i, bpage.LeafKeyAt(leftData, m+i), bpage.LeafValueAt(leftData, m+i))
	}
	bpage.SetSize(right.Data(), newSize)
	bpage.SetSize(leftData, m)

	oldNext := bpage.GetNextPageID(leftData)
	bpage.SetNextPageID(right.Data(), oldNext)
	bpage.SetPrevPageID(right.Data(), left.PageID())
	bpage.SetNextPageID(leftData, right.PageID())
	if oldNext != disk.InvalidPageID {
		if next, err := t.bpm.FetchWrite(oldNext); err == nil {
			bpage.SetPrevPageID(next.Data(), right.PageID())
			next.MarkDirty()
			next.Release()
		}
	}
	left.MarkDirty()
	right.MarkDirty()

	return split{isSplit: true, key: bpage.LeafKeyAt(right.Data(), 0), leftPageID: left.PageID(), right: right}, nil
}

// splitInternal moves the upper half of an internal node's separators
// and children into a new right sibling, reparenting every moved
// child, and returns the key folded up to the parent (spec §4.3.2,
// "internal split midpoint m = max_size/2 + 1").
func (t *BPlusTree) splitInternal(left *buffer.Guard) (split, error) {
	right, err := t.bpm.NewWrite()
	if err != nil {
		return split{}, err
	}
	leftData := left.Data()
	bpage.InitInternal(right.Data(), right.PageID(), bpage.GetParentPageID(leftData), t.internalMax)

	size := bpage.GetSize(leftData)
	m := size/2 + 1

	childM := bpage.InternalChildAt(leftData, m)
	bpage.SetInternalChildAt(right.Data(), 0, childM)
	if err := t.reparentChild(childM, right.PageID()); err != nil {
		right.Release()
		return split{}, err
	}

	newSize := size - m
	for i := int64(1); i <= newSize; i++ {
		srcIdx := m + i
		key := bpage.InternalKeyAt(leftData, srcIdx)
		child := bpage.InternalChildAt(leftData, srcIdx)
		bpage.SetInternalKeyAt(right.Data(), i, key)
		bpage.SetInternalChildAt(right.Data(), i, child)
		if err := t.reparentChild(child, right.PageID()); err != nil {
			right.Release()
			return split{}, err
		}
	}
	promoted := bpage.InternalKeyAt(leftData, m)
	bpage.SetSize(right.Data(), newSize)
	bpage.SetSize(leftData, m-1)
	left.MarkDirty()
	right.MarkDirty()

	return split{isSplit: true, key: promoted, leftPageID: left.PageID(), right: right}, nil
}

// insertSeparator inserts (key, rightPageID) into an internal node
// known to be the parent of the node that just split, splitting it in
// turn if that brings it to max_size.
func (t *BPlusTree) insertSeparator(parent *buffer.Guard, key, rightPageID int64) (split, error) {
	data := parent.Data()
	size := bpage.GetSize(data)
	pos := internalChildIndex(data, key, t.cmp) + 1
	for i := size; i >= pos; i-- {
		bpage.SetInternalKeyAt(data, i+1, bpage.InternalKeyAt(data, i))
		bpage.SetInternalChildAt(data, i+1, bpage.InternalChildAt(data, i))
	}
	bpage.SetInternalKeyAt(data, pos, key)
	bpage.SetInternalChildAt(data, pos, rightPageID)
	bpage.SetSize(data, size+1)
	parent.MarkDirty()

	if size+1 != t.internalMax {
		return split{}, nil
	}
	return t.splitInternal(parent)
}

// propagateSplit promotes a freshly split node's separator up through
// the latched ancestor chain in bag, creating a new root if the split
// reaches the top (spec §4.3.2).
func (t *BPlusTree) propagateSplit(b *bag, node *buffer.Guard, sp split) error {
	for {
		if !sp.isSplit {
			node.Release()
			return nil
		}
		parent, hasParent := b.popLast()
		if !hasParent {
			newRoot, err := t.bpm.NewWrite()
			if err != nil {
				node.Release()
				sp.right.Release()
				return err
			}
			bpage.InitInternal(newRoot.Data(), newRoot.PageID(), disk.InvalidPageID, t.internalMax)
			bpage.SetInternalChildAt(newRoot.Data(), 0, node.PageID())
			bpage.SetInternalKeyAt(newRoot.Data(), 1, sp.key)
			bpage.SetInternalChildAt(newRoot.Data(), 1, sp.right.PageID())
			bpage.SetSize(newRoot.Data(), 1)
			newRoot.MarkDirty()

			bpage.SetParentPageID(node.Data(), newRoot.PageID())
			node.MarkDirty()
			bpage.SetParentPageID(sp.right.Data(), newRoot.PageID())
			sp.right.MarkDirty()

			t.lockRoot()
			err = t.setRoot(newRoot.PageID())
			t.unlockRoot()

			node.Release()
			sp.right.Release()
			newRoot.Release()
			return err
		}

		rightPageID := sp.right.PageID()
		sp.right.Release()
		node.Release()
		sp2, err := t.insertSeparator(parent, sp.key, rightPageID)
		if err != nil {
			parent.Release()
			return err
		}
		node = parent
		sp = sp2
	}
}
