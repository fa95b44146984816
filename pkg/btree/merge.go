package btree

import (
	"bptreedb/pkg/bpage"
	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"
)

// Remove deletes key from the tree, if present. Descent crabs exactly
// as Insert does, but "safe" means size > ceil(max_size/2): a child
// this full cannot underflow from losing one entry, so every ancestor
// above it can be released immediately (spec §4.3.3, §4.4).
func (t *BPlusTree) Remove(key int64) error {
	t.lockRoot()
	if t.rootPageID == disk.InvalidPageID {
		t.unlockRoot()
		return nil
	}
	root, err := t.bpm.FetchWrite(t.rootPageID)
	t.unlockRoot()
	if err != nil {
		return err
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
			return err
		}
		b.push(child)
		if isSafeForRemove(child.Data()) {
			b.releaseAllExceptLast()
		}
		cur = child
	}

	leaf, _ := b.popLast()
	removed, wasFirst, newFirstKey, hasEntries := t.removeFromLeaf(leaf, key)
	if !removed {
		leaf.Release()
		return nil
	}
	if wasFirst && hasEntries {
		parentID := bpage.GetParentPageID(leaf.Data())
		if err := t.fixAncestorKey(b, leaf.PageID(), parentID, newFirstKey); err != nil {
			t.log.Printf("btree: ancestor separator update failed: %v", err)
		}
	}
	return t.repairAfterRemove(b, leaf)
}

// removeFromLeaf removes key from leaf if present, reporting whether
// the removed entry was the leaf's first (so the ancestor separator
// pointing at it may be stale) and the leaf's new first key.
func (t *BPlusTree) removeFromLeaf(leaf *buffer.Guard, key int64) (removed, wasFirst bool, newFirstKey int64, hasEntries bool) {
	data := leaf.Data()
	size := bpage.GetSize(data)
	pos := leafSearch(data, key, t.cmp)
	if pos >= size || t.cmp(bpage.LeafKeyAt(data, pos), key) != 0 {
		return false, false, 0, false
	}
	wasFirst = pos == 0
	for i := pos; i < size-1; i++ {
		bpage.SetLeafEntryAt(data, i, bpage.LeafKeyAt(data, i+1), bpage.LeafValueAt(data, i+1))
	}
	bpage.SetSize(data, size-1)
	leaf.MarkDirty()
	if size-1 > 0 {
		return true, wasFirst, bpage.LeafKeyAt(data, 0), true
	}
	return true, wasFirst, 0, false
}

// fixAncestorKey walks up from a node whose first key just changed,
// via parent_page_id pointers, until it finds the ancestor where the
// node is not the leftmost child — the separator that actually needs
// the new key. An ancestor still held in the crabbing bag b is updated
// through that guard; any other ancestor is fetched and released here.
// A node that is its subtree's true leftmost leaf has no such ancestor
// and this is a no-op (spec §4.3.3, "walk up until finding the
// ancestor where the affected subtree is not the leftmost child").
func (t *BPlusTree) fixAncestorKey(b *bag, childPageID, parentID, newKey int64) error {
	for parentID != disk.InvalidPageID {
		var parent *buffer.Guard
		for _, g := range b.entries {
			if g.PageID() == parentID {
				parent = g
			}
		}
		held := parent != nil
		if !held {
			p, err := t.bpm.FetchWrite(parentID)
			if err != nil {
				return err
			}
			parent = p
		}
		idx := findChildIndex(parent.Data(), childPageID)
		if idx != 0 {
			bpage.SetInternalKeyAt(parent.Data(), idx, newKey)
			parent.MarkDirty()
			if !held {
				parent.Release()
			}
			return nil
		}
		grandParentID := bpage.GetParentPageID(parent.Data())
		childPageID = parentID
		parentID = grandParentID
		if !held {
			parent.Release()
		}
	}
	return nil
}

// repairAfterRemove walks node up through bag, stealing from or
// merging with a sibling wherever node has underflowed, and collapses
// the root when it no longer needs a full level (spec §4.3.3).
func (t *BPlusTree) repairAfterRemove(b *bag, node *buffer.Guard) error {
	for {
		if node.PageID() == t.getRoot() {
			return t.collapseRootIfNeeded(node)
		}
		if !isUnderflowed(node.Data()) {
			node.Release()
			return nil
		}
		parent, hasParent := b.popLast()
		if !hasParent {
			parentID := bpage.GetParentPageID(node.Data())
			p, err := t.bpm.FetchWrite(parentID)
			if err != nil {
				node.Release()
				return err
			}
			parent = p
		}
		if err := t.stealOrMerge(parent, node); err != nil {
			parent.Release()
			return err
		}
		node = parent
	}
}

func isUnderflowed(data []byte) bool {
	return bpage.GetSize(data) < ceilDiv(bpage.GetMaxSize(data), 2)
}

// collapseRootIfNeeded implements the two root-collapse rules of spec
// §4.3.3: an emptied leaf root resets the tree to empty; an internal
// root left with a single child is replaced by that child.
func (t *BPlusTree) collapseRootIfNeeded(root *buffer.Guard) error {
	data := root.Data()
	size := bpage.GetSize(data)
	isLeaf := bpage.GetPageType(data) == bpage.LeafPageType

	if isLeaf {
		root.Release()
		if size == 0 {
			t.lockRoot()
			err := t.setRoot(disk.InvalidPageID)
			t.unlockRoot()
			if err != nil {
				return err
			}
			return t.bpm.DeletePage(root.PageID())
		}
		return nil
	}

	if size != 0 {
		root.Release()
		return nil
	}
	onlyChild := bpage.InternalChildAt(data, 0)
	child, err := t.bpm.FetchWrite(onlyChild)
	if err != nil {
		root.Release()
		return err
	}
	bpage.SetParentPageID(child.Data(), disk.InvalidPageID)
	child.MarkDirty()
	child.Release()

	t.lockRoot()
	err = t.setRoot(onlyChild)
	t.unlockRoot()

	rootPageID := root.PageID()
	root.Release()
	if err != nil {
		return err
	}
	return t.bpm.DeletePage(rootPageID)
}

// stealOrMerge repairs node's underflow against its siblings under
// parent: a right-sibling steal is tried first, then a left-sibling
// steal, and only then a merge — with the right sibling if one exists,
// else the left (spec §4.3.3). node, and whichever sibling is fetched,
// are always released before this returns.
func (t *BPlusTree) stealOrMerge(parent, node *buffer.Guard) error {
	data := parent.Data()
	idx := findChildIndex(data, node.PageID())
	size := bpage.GetSize(data)
	isLeaf := bpage.GetPageType(node.Data()) == bpage.LeafPageType

	if idx < size {
		right, err := t.bpm.FetchWrite(bpage.InternalChildAt(data, idx+1))
		if err != nil {
			return err
		}
		if bpage.GetSize(right.Data()) > ceilDiv(bpage.GetMaxSize(right.Data()), 2) {
			if isLeaf {
				t.stealFromRightLeaf(parent, idx, node, right)
			} else {
				t.stealFromRightInternal(parent, idx, node, right)
			}
			right.Release()
			node.Release()
			return nil
		}
		if idx == 0 {
			// node absorbs right; node survives, right is deleted.
			if isLeaf {
				t.mergeLeaf(parent, idx+1, node, right)
			} else {
				t.mergeInternal(parent, idx+1, node, right)
			}
			node.Release()
			return nil
		}
		right.Release()
	}

	left, err := t.bpm.FetchWrite(bpage.InternalChildAt(data, idx-1))
	if err != nil {
		return err
	}
	if bpage.GetSize(left.Data()) > ceilDiv(bpage.GetMaxSize(left.Data()), 2) {
		if isLeaf {
			t.stealFromLeftLeaf(parent, idx, left, node)
		} else {
			t.stealFromLeftInternal(parent, idx, left, node)
		}
		left.Release()
		node.Release()
		return nil
	}
	if idx < size {
		right, err := t.bpm.FetchWrite(bpage.InternalChildAt(data, idx+1))
		if err != nil {
			left.Release()
			return err
		}
		// node absorbs right; node survives, right is deleted.
		if isLeaf {
			t.mergeLeaf(parent, idx+1, node, right)
		} else {
			t.mergeInternal(parent, idx+1, node, right)
		}
		left.Release()
		node.Release()
		return nil
	}
	// left absorbs node; left survives, node is deleted.
	if isLeaf {
		t.mergeLeaf(parent, idx, left, node)
	} else {
		t.mergeInternal(parent, idx, left, node)
	}
	left.Release()
	return nil
}

func (t *BPlusTree) stealFromRightLeaf(parent *buffer.Guard, nodeIdx int64, node, right *buffer.Guard) {
	nData, rData := node.Data(), right.Data()
	nSize := bpage.GetSize(nData)
	bpage.SetLeafEntryAt(nData, nSize, bpage.LeafKeyAt(rData, 0), bpage.LeafValueAt(rData, 0))
	bpage.SetSize(nData, nSize+1)

	rSize := bpage.GetSize(rData)
	for i := int64(0); i < rSize-1; i++ {
		bpage.SetLeafEntryAt(rData, i, bpage.LeafKeyAt(rData, i+1), bpage.LeafValueAt(rData, i+1))
	}
	bpage.SetSize(rData, rSize-1)

	bpage.SetInternalKeyAt(parent.Data(), nodeIdx+1, bpage.LeafKeyAt(rData, 0))
	node.MarkDirty()
	right.MarkDirty()
	parent.MarkDirty()
}

func (t *BPlusTree) stealFromLeftLeaf(parent *buffer.Guard, nodeIdx int64, left, node *buffer.Guard) {
	lData, nData := left.Data(), node.Data()
	lSize := bpage.GetSize(lData)
	key, value := bpage.LeafKeyAt(lData, lSize-1), bpage.LeafValueAt(lData, lSize-1)
	bpage.SetSize(lData, lSize-1)

	nSize := bpage.GetSize(nData)
	for i := nSize; i > 0; i-- {
		bpage.SetLeafEntryAt(nData, i, bpage.LeafKeyAt(nData, i-1), bpage.LeafValueAt(nData, i-1))
	}
	bpage.SetLeafEntryAt(nData, 0, key, value)
	bpage.SetSize(nData, nSize+1)

	bpage.SetInternalKeyAt(parent.Data(), nodeIdx, key)
	left.MarkDirty()
	node.MarkDirty()
	parent.MarkDirty()
}

func (t *BPlusTree) stealFromRightInternal(parent *buffer.Guard, nodeIdx int64, node, right *buffer.Guard) {
	nData, rData := node.Data(), right.Data()
	promote := bpage.InternalKeyAt(rData, 1)
	folded := bpage.InternalKeyAt(parent.Data(), nodeIdx+1)
	firstRightChild := bpage.InternalChildAt(rData, 0)

	nSize := bpage.GetSize(nData)
	bpage.SetInternalKeyAt(nData, nSize+1, folded)
	bpage.SetInternalChildAt(nData, nSize+1, firstRightChild)
	bpage.SetSize(nData, nSize+1)
	_ = t.reparentChild(firstRightChild, node.PageID())

	rSize := bpage.GetSize(rData)
	for i := int64(0); i < rSize; i++ {
		bpage.SetInternalChildAt(rData, i, bpage.InternalChildAt(rData, i+1))
	}
	for i := int64(1); i < rSize; i++ {
		bpage.SetInternalKeyAt(rData, i, bpage.InternalKeyAt(rData, i+1))
	}
	bpage.SetSize(rData, rSize-1)

	bpage.SetInternalKeyAt(parent.Data(), nodeIdx+1, promote)
	node.MarkDirty()
	right.MarkDirty()
	parent.MarkDirty()
}

func (t *BPlusTree) stealFromLeftInternal(parent *buffer.Guard, nodeIdx int64, left, node *buffer.Guard) {
	lData, nData := left.Data(), node.Data()
	lSize := bpage.GetSize(lData)
	promote := bpage.InternalKeyAt(lData, lSize)
	folded := bpage.InternalKeyAt(parent.Data(), nodeIdx)
	lastLeftChild := bpage.InternalChildAt(lData, lSize)

	nSize := bpage.GetSize(nData)
	for i := nSize; i >= 0; i-- {
		bpage.SetInternalChildAt(nData, i+1, bpage.InternalChildAt(nData, i))
	}
	for i := nSize; i >= 1; i-- {
		bpage.SetInternalKeyAt(nData, i+1, bpage.InternalKeyAt(nData, i))
	}
	bpage.SetInternalChildAt(nData, 0, lastLeftChild)
	bpage.SetInternalKeyAt(nData, 1, folded)
	bpage.SetSize(nData, nSize+1)
	_ = t.reparentChild(lastLeftChild, node.PageID())

	bpage.SetSize(lData, lSize-1)
	bpage.SetInternalKeyAt(parent.Data(), nodeIdx, promote)
	left.MarkDirty()
	node.MarkDirty()
	parent.MarkDirty()
}

// mergeLeaf folds right's entries into left and drops right's parent
// entry and page. rightIdx is right's slot within parent's children.
func (t *BPlusTree) mergeLeaf(parent *buffer.Guard, rightIdx int64, left, right *buffer.Guard) {
	lData, rData := left.Data(), right.Data()
	lSize, rSize := bpage.GetSize(lData), bpage.GetSize(rData)
	for i := int64(0); i < rSize; i++ {
		bpage.SetLeafEntryAt(lData, lSize+i, bpage.LeafKeyAt(rData, i), bpage.LeafValueAt(rData, i))
	}
	bpage.SetSize(lData, lSize+rSize)

	newNext := bpage.GetNextPageID(rData)
	bpage.SetNextPageID(lData, newNext)
	if newNext != disk.InvalidPageID {
		if next, err := t.bpm.FetchWrite(newNext); err == nil {
			bpage.SetPrevPageID(next.Data(), left.PageID())
			next.MarkDirty()
			next.Release()
		}
	}
	left.MarkDirty()

	removeParentEntry(parent, rightIdx)
	rightPageID := right.PageID()
	right.Release()
	_ = t.bpm.DeletePage(rightPageID)
}

// mergeInternal folds parent's separator at rightIdx and all of
// right's keys/children into left, reparenting every moved child.
func (t *BPlusTree) mergeInternal(parent *buffer.Guard, rightIdx int64, left, right *buffer.Guard) {
	lData, rData := left.Data(), right.Data()
	lSize, rSize := bpage.GetSize(lData), bpage.GetSize(rData)

	folded := bpage.InternalKeyAt(parent.Data(), rightIdx)
	bpage.SetInternalKeyAt(lData, lSize+1, folded)
	firstRightChild := bpage.InternalChildAt(rData, 0)
	bpage.SetInternalChildAt(lData, lSize+1, firstRightChild)
	_ = t.reparentChild(firstRightChild, left.PageID())

	for i := int64(1); i <= rSize; i++ {
		bpage.SetInternalKeyAt(lData, lSize+1+i, bpage.InternalKeyAt(rData, i))
		child := bpage.InternalChildAt(rData, i)
		bpage.SetInternalChildAt(lData, lSize+1+i, child)
		_ = t.reparentChild(child, left.PageID())
	}
	bpage.SetSize(lData, lSize+1+rSize)
	left.MarkDirty()

	removeParentEntry(parent, rightIdx)
	rightPageID := right.PageID()
	right.Release()
	_ = t.bpm.DeletePage(rightPageID)
}

// removeParentEntry drops the separator key and child link at slot
// childIdx, shifting everything after it left by one.
func removeParentEntry(parent *buffer.Guard, childIdx int64) {
	data := parent.Data()
	size := bpage.GetSize(data)
	for i := childIdx; i < size; i++ {
		bpage.SetInternalKeyAt(data, i, bpage.InternalKeyAt(data, i+1))
		bpage.SetInternalChildAt(data, i, bpage.InternalChildAt(data, i+1))
	}
	bpage.SetSize(data, size-1)
	parent.MarkDirty()
}
