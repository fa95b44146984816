package btree

import (
	"bptreedb/pkg/bpage"
	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"
)

// Iterator is a forward cursor over a BPlusTree's leaves in key order
// (spec §4.3.4). It holds a reader latch on exactly one leaf at a
// time, released and replaced as Next crosses a leaf boundary. A zero
// Iterator (Valid() == false) represents End().
type Iterator struct {
	tree  *BPlusTree
	guard *buffer.Guard
	index int64
}

// Begin returns an iterator positioned at the tree's smallest entry.
func (t *BPlusTree) Begin() (*Iterator, error) {
	t.lockRoot()
	if t.rootPageID == disk.InvalidPageID {
		t.unlockRoot()
		return &Iterator{tree: t}, nil
	}
	cur, err := t.bpm.FetchRead(t.rootPageID)
	t.unlockRoot()
	if err != nil {
		return nil, err
	}
	for bpage.GetPageType(cur.Data()) != bpage.LeafPageType {
		childID := bpage.InternalChildAt(cur.Data(), 0)
		child, err := t.bpm.FetchRead(childID)
		cur.Release()
		if err != nil {
			return nil, err
		}
		cur = child
	}
	it := &Iterator{tree: t, guard: cur, index: 0}
	return it.skipEmptyLeaves()
}

// BeginAt returns an iterator positioned at the slot matching key. If
// key is absent, the iterator is positioned at the smallest key
// greater than it, or is End() if there is no such key.
func (t *BPlusTree) BeginAt(key int64) (*Iterator, error) {
	t.lockRoot()
	if t.rootPageID == disk.InvalidPageID {
		t.unlockRoot()
		return &Iterator{tree: t}, nil
	}
	cur, err := t.bpm.FetchRead(t.rootPageID)
	t.unlockRoot()
	if err != nil {
		return nil, err
	}
	for bpage.GetPageType(cur.Data()) != bpage.LeafPageType {
		idx := internalChildIndex(cur.Data(), key, t.cmp)
		childID := bpage.InternalChildAt(cur.Data(), idx)
		child, err := t.bpm.FetchRead(childID)
		cur.Release()
		if err != nil {
			return nil, err
		}
		cur = child
	}
	pos := leafSearch(cur.Data(), key, t.cmp)
	it := &Iterator{tree: t, guard: cur, index: pos}
	return it.skipEmptyLeaves()
}

// End returns the one-past-the-last sentinel iterator.
func (t *BPlusTree) End() *Iterator { return &Iterator{tree: t} }

// skipEmptyLeaves advances past any leaf the iterator has landed on
// with index >= size, following next_page_id links.
func (it *Iterator) skipEmptyLeaves() (*Iterator, error) {
	for it.guard != nil && it.index >= bpage.GetSize(it.guard.Data()) {
		next := bpage.GetNextPageID(it.guard.Data())
		it.guard.Release()
		if next == disk.InvalidPageID {
			it.guard = nil
			it.index = 0
			return it, nil
		}
		g, err := it.tree.bpm.FetchRead(next)
		if err != nil {
			it.guard = nil
			return it, err
		}
		it.guard = g
		it.index = 0
	}
	return it, nil
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.guard != nil }

// Key returns the key at the iterator's current position.
func (it *Iterator) Key() int64 { return bpage.LeafKeyAt(it.guard.Data(), it.index) }

// Value returns the value at the iterator's current position.
func (it *Iterator) Value() int64 { return bpage.LeafValueAt(it.guard.Data(), it.index) }

// Next advances the iterator by one entry, crossing into the next
// leaf if needed. Calling Next on an invalid iterator is a no-op.
func (it *Iterator) Next() error {
	if it.guard == nil {
		return nil
	}
	it.index++
	_, err := it.skipEmptyLeaves()
	return err
}

// Close releases the iterator's held latch, if any. Safe to call more
// than once.
func (it *Iterator) Close() {
	if it.guard != nil {
		it.guard.Release()
		it.guard = nil
	}
}
