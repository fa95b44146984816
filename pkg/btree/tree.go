// Package btree implements the clustered B+-tree index of spec §4.3 on
// top of a buffer pool manager and the bpage page layouts: search,
// insert-with-split, remove-with-steal-or-merge, and a forward
// iterator, all under the latch-crabbing discipline of §4.4.
package btree

import (
	"errors"
	"sync"

	"bptreedb/pkg/bpage"
	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"
	"bptreedb/pkg/logger"
)

// ErrKeyNotFound is returned by GetValue when no entry has the given key.
var ErrKeyNotFound = errors.New("btree: key not found")

const minMaxSize = 3

// BPlusTree is a single named clustered index living inside a shared
// buffer pool. Its root_page_id is persisted in the pool's header page
// (page 0) under the tree's name, and cached here guarded by rootMu —
// the dedicated mutex spec §4.4 requires be "taken at the start of
// every root-touching operation and released after the root's latch is
// acquired."
type BPlusTree struct {
	name string
	bpm  *buffer.BufferPoolManager
	dir  *directory
	cmp  Comparator
	log  logger.Logger

	leafMax     int64
	internalMax int64

	rootMu     sync.Mutex
	rootPageID int64
}

// Open returns the named BPlusTree, creating a header-page entry for it
// if this is the first time name has been opened against bpm. leafMax
// and internalMax bound a page's fan-out and must not exceed the
// physical capacity bpage computes for disk.Pagesize.
func Open(name string, bpm *buffer.BufferPoolManager, cmp Comparator, leafMax, internalMax int64) (*BPlusTree, error) {
	if cmp == nil {
		cmp = defaultComparator
	}
	if leafMax < minMaxSize || int(leafMax) > bpage.LeafCapacity {
		return nil, errors.New("btree: leaf_max_size out of range")
	}
	if internalMax < minMaxSize || int(internalMax) > bpage.InternalCapacity {
		return nil, errors.New("btree: internal_max_size out of range")
	}
	dir, err := openDirectory(bpm)
	if err != nil {
		return nil, err
	}
	rootPageID, err := dir.lookupRoot(name)
	if err != nil {
		return nil, err
	}
	t := &BPlusTree{
		name:        name,
		bpm:         bpm,
		dir:         dir,
		cmp:         cmp,
		log:         logger.Discard,
		leafMax:     leafMax,
		internalMax: internalMax,
		rootPageID:  rootPageID,
	}
	return t, nil
}

// SetLogger attaches a diagnostic logger.
func (t *BPlusTree) SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.Discard
	}
	t.log = l
}

// Name returns the index's name as registered in the header page.
func (t *BPlusTree) Name() string { return t.name }

func (t *BPlusTree) lockRoot()   { t.rootMu.Lock() }
func (t *BPlusTree) unlockRoot() { t.rootMu.Unlock() }

// getRoot returns the cached root_page_id. Caller must hold rootMu, or
// this is being called from within an operation that already acquired
// and released it while holding the root page's own latch (which is
// sufficient, since any later root change also goes through rootMu).
func (t *BPlusTree) getRoot() int64 { return t.rootPageID }

// setRoot updates both the persisted and cached root_page_id. Caller
// must hold rootMu.
func (t *BPlusTree) setRoot(pageID int64) error {
	if err := t.dir.setRoot(t.name, pageID); err != nil {
		return err
	}
	t.rootPageID = pageID
	return nil
}

// IsEmpty reports whether the tree currently has no root page.
func (t *BPlusTree) IsEmpty() bool {
	t.lockRoot()
	defer t.unlockRoot()
	return t.rootPageID == disk.InvalidPageID
}

func (t *BPlusTree) maxSizeFor(data []byte) int64 {
	if bpage.GetPageType(data) == bpage.LeafPageType {
		return t.leafMax
	}
	return t.internalMax
}

func (t *BPlusTree) reparentChild(childPageID, newParentID int64) error {
	g, err := t.bpm.FetchWrite(childPageID)
	if err != nil {
		return err
	}
	bpage.SetParentPageID(g.Data(), newParentID)
	g.MarkDirty()
	g.Release()
	return nil
}

// GetValue looks up key, descending with reader latches handed over
// one at a time (spec §4.4, "each child is latched before the parent
// is released").
func (t *BPlusTree) GetValue(key int64) (int64, error) {
	t.lockRoot()
	if t.rootPageID == disk.InvalidPageID {
		t.unlockRoot()
		return 0, ErrKeyNotFound
	}
	cur, err := t.bpm.FetchRead(t.rootPageID)
	t.unlockRoot()
	if err != nil {
		return 0, err
	}
	for bpage.GetPageType(cur.Data()) != bpage.LeafPageType {
		idx := internalChildIndex(cur.Data(), key, t.cmp)
		childID := bpage.InternalChildAt(cur.Data(), idx)
		child, err := t.bpm.FetchRead(childID)
		cur.Release()
		if err != nil {
			return 0, err
		}
		cur = child
	}
	defer cur.Release()

	pos := leafSearch(cur.Data(), key, t.cmp)
	if pos < bpage.GetSize(cur.Data()) && t.cmp(bpage.LeafKeyAt(cur.Data(), pos), key) == 0 {
		return bpage.LeafValueAt(cur.Data(), pos), nil
	}
	return 0, ErrKeyNotFound
}

// Update overwrites the value stored for key, leaving the tree's shape
// untouched: a value-only rewrite never changes a node's size, so
// there is nothing for latch crabbing to protect against here and a
// plain hand-over-hand descent with writer latches suffices.
func (t *BPlusTree) Update(key, value int64) error {
	t.lockRoot()
	if t.rootPageID == disk.InvalidPageID {
		t.unlockRoot()
		return ErrKeyNotFound
	}
	cur, err := t.bpm.FetchWrite(t.rootPageID)
	t.unlockRoot()
	if err != nil {
		return err
	}
	for bpage.GetPageType(cur.Data()) != bpage.LeafPageType {
		idx := internalChildIndex(cur.Data(), key, t.cmp)
		childID := bpage.InternalChildAt(cur.Data(), idx)
		child, err := t.bpm.FetchWrite(childID)
		cur.Release()
		if err != nil {
			return err
		}
		cur = child
	}
	defer cur.Release()

	pos := leafSearch(cur.Data(), key, t.cmp)
	if pos >= bpage.GetSize(cur.Data()) || t.cmp(bpage.LeafKeyAt(cur.Data(), pos), key) != 0 {
		return ErrKeyNotFound
	}
	bpage.SetLeafEntryAt(cur.Data(), pos, key, value)
	cur.MarkDirty()
	return nil
}
