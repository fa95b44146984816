// Package buffer implements the buffer pool manager: the fixed-size
// cache of disk pages that sits beneath the B+-tree (spec §4.2). All
// structural changes are serialized by a single pool-wide mutex; disk
// I/O happens only on a fetch miss, on eviction writeback, and in an
// explicit flush.
package buffer

import (
	"errors"
	"sync"

	"github.com/ncw/directio"

	"bptreedb/pkg/disk"
	"bptreedb/pkg/list"
	"bptreedb/pkg/logger"
	"bptreedb/pkg/replacer"
)

// ErrPoolExhausted is returned by NewPage/FetchPage when every frame in
// the pool is pinned. It is a Transient error (spec §7): no state
// changes before it is returned.
var ErrPoolExhausted = errors.New("buffer: pool exhausted, every frame is pinned")

// Logger is optionally consulted before a dirty page is flushed, giving
// a write-ahead log manager the chance to force its own log to disk
// first (spec §6, "Log manager (consumed, optional)"). It has no
// semantic effect on the buffer pool.
type Logger interface {
	ForceFlushBefore(pageID int64)
}

// BufferPoolManager owns the frame array, the page table, the free
// list, and the replacer. It is the sole path through which B+-tree (or
// hash index) pages are read from or written to disk.
type BufferPoolManager struct {
	mu sync.Mutex

	disk     disk.Manager
	replacer *replacer.LRUKReplacer
	log      logger.Logger
	wal      Logger // optional write-ahead-log force-flush hook

	frames    []*Frame
	freeList  *list.List // of *Frame, page_id == InvalidPageID, pin_count == 0
	pageTable map[int64]*Frame
}

// New constructs a BufferPoolManager with poolSize frames, an LRU-K
// replacer parameterized by k, and the given disk manager.
func New(poolSize int, k int, dm disk.Manager) *BufferPoolManager {
	bpm := &BufferPoolManager{
		disk:      dm,
		replacer:  replacer.New(poolSize, k),
		log:       logger.Discard,
		frames:    make([]*Frame, poolSize),
		freeList:  list.NewList(),
		pageTable: make(map[int64]*Frame),
	}
	// Each frame's buffer must be block-aligned, matching the teacher's
	// pager: the underlying disk.Manager talks to an O_DIRECT file, which
	// rejects unaligned buffers.
	for i := 0; i < poolSize; i++ {
		f := &Frame{id: i, data: directio.AlignedBlock(int(disk.Pagesize))}
		f.pageID.Store(disk.InvalidPageID)
		bpm.frames[i] = f
		bpm.freeList.PushTail(f)
	}
	return bpm
}

// SetLogger attaches a diagnostic logger.
func (bpm *BufferPoolManager) SetLogger(l logger.Logger) {
	if l == nil {
		l = logger.Discard
	}
	bpm.log = l
}

// SetWAL attaches an optional write-ahead log manager that will be
// given the chance to force-log before any dirty page is flushed.
func (bpm *BufferPoolManager) SetWAL(w Logger) {
	bpm.wal = w
}

// PoolSize returns the number of frames in the pool.
func (bpm *BufferPoolManager) PoolSize() int { return len(bpm.frames) }

// frameFor returns a frame to host a page, preferring the free list and
// falling back to eviction. Must be called with bpm.mu held.
func (bpm *BufferPoolManager) frameFor() (*Frame, error) {
	if link := bpm.freeList.PeekHead(); link != nil {
		link.PopSelf()
		return link.GetValue().(*Frame), nil
	}
	frameID, ok := bpm.replacer.Evict()
	if !ok {
		return nil, ErrPoolExhausted
	}
	victim := bpm.frames[frameID]
	if victim.IsDirty() {
		bpm.writeback(victim)
	}
	delete(bpm.pageTable, victim.PageID())
	return victim, nil
}

// writeback flushes a dirty frame to disk, force-logging first if a WAL
// is attached. Must be called with bpm.mu held.
func (bpm *BufferPoolManager) writeback(f *Frame) {
	if bpm.wal != nil {
		bpm.wal.ForceFlushBefore(f.PageID())
	}
	if err := bpm.disk.WritePage(f.PageID(), f.Data()); err != nil {
		bpm.log.Printf("buffer: writeback of page %d failed: %v", f.PageID(), err)
	}
	f.dirty.Store(false)
}

// NewPage allocates a fresh page id and returns a pinned Page for it
// (spec §4.2, "NewPage").
func (bpm *BufferPoolManager) NewPage() (*Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	f, err := bpm.frameFor()
	if err != nil {
		return nil, err
	}
	pageID := bpm.disk.AllocatePage()
	f.reset(pageID, 1, false)
	bpm.pageTable[pageID] = f
	bpm.replacer.RecordAccess(f.id)
	bpm.replacer.SetEvictable(f.id, false)
	return &Page{bpm: bpm, frame: f, pageID: pageID}, nil
}

// FetchPage returns a pinned Page for pageID, reading it from disk on a
// miss (spec §4.2, "FetchPage").
func (bpm *BufferPoolManager) FetchPage(pageID int64) (*Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if f, ok := bpm.pageTable[pageID]; ok {
		f.pinCount.Add(1)
		bpm.replacer.RecordAccess(f.id)
		bpm.replacer.SetEvictable(f.id, false)
		return &Page{bpm: bpm, frame: f, pageID: pageID}, nil
	}

	f, err := bpm.frameFor()
	if err != nil {
		return nil, err
	}
	f.reset(pageID, 1, false)
	if err := bpm.disk.ReadPage(pageID, f.data); err != nil {
		// unwind: the frame never got installed in the page table.
		f.reset(disk.InvalidPageID, 0, false)
		bpm.freeList.PushTail(f)
		return nil, err
	}
	bpm.pageTable[pageID] = f
	bpm.replacer.RecordAccess(f.id)
	bpm.replacer.SetEvictable(f.id, false)
	return &Page{bpm: bpm, frame: f, pageID: pageID}, nil
}

// UnpinPage releases one pin on pageID. dirty is OR-ed into the frame's
// dirty bit: a dirty unpin stays dirty regardless of subsequent clean
// unpins (spec §4.2). Fails if the page isn't resident or is already
// unpinned.
func (bpm *BufferPoolManager) UnpinPage(pageID int64, dirty bool) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	f, ok := bpm.pageTable[pageID]
	if !ok || f.PinCount() <= 0 {
		return false
	}
	if dirty {
		f.dirty.Store(true)
	}
	if f.pinCount.Add(-1) == 0 {
		bpm.replacer.SetEvictable(f.id, true)
	}
	return true
}

// Unpin is a convenience wrapper around UnpinPage taking a *Page.
func (bpm *BufferPoolManager) Unpin(p *Page, dirty bool) bool {
	return bpm.UnpinPage(p.pageID, dirty)
}

// FlushPage writes pageID to disk if resident, clearing its dirty bit.
// Succeeds regardless of pin count.
func (bpm *BufferPoolManager) FlushPage(pageID int64) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	f, ok := bpm.pageTable[pageID]
	if !ok {
		return false
	}
	bpm.writeback(f)
	return true
}

// FlushAllPages flushes every resident, dirty page to disk.
func (bpm *BufferPoolManager) FlushAllPages() {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	for _, f := range bpm.pageTable {
		if f.IsDirty() {
			bpm.writeback(f)
		}
	}
}

// DeletePage returns pageID's frame to the free list and releases the
// id to the allocator. Fails with "in use" if the page is pinned.
// Deleting a non-resident page is a no-op success (spec §4.2).
func (bpm *BufferPoolManager) DeletePage(pageID int64) error {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	f, ok := bpm.pageTable[pageID]
	if !ok {
		return nil
	}
	if f.PinCount() > 0 {
		return errors.New("buffer: page is in use")
	}
	f.reset(disk.InvalidPageID, 0, false)
	delete(bpm.pageTable, pageID)
	// Remove is documented to fail on a non-evictable frame; a pinCount
	// of zero always leaves the frame marked evictable by UnpinPage (or
	// it was never pinned after NewPage/FetchPage, in which case it was
	// never marked non-evictable either and Remove is a safe no-op).
	_ = bpm.replacer.Remove(f.id)
	bpm.freeList.PushTail(f)
	return bpm.disk.DeallocatePage(pageID)
}
