package buffer

import (
	"sync"
	"sync/atomic"
)

// Frame is one fixed-size in-memory page buffer plus the metadata the
// buffer pool needs to manage it (spec §3, "Page"): identity, pin
// count, dirty bit, and the reader/writer latch the tree layer uses for
// crabbing.
type Frame struct {
	id       int          // frame index within the pool, stable for the process lifetime
	pageID   atomic.Int64 // disk.InvalidPageID if the frame is free
	pinCount atomic.Int64
	dirty    atomic.Bool
	latch    sync.RWMutex
	data     []byte
}

// ID returns this frame's index within the pool.
func (f *Frame) ID() int { return f.id }

// PageID returns the page currently resident in this frame, or
// disk.InvalidPageID if the frame is free.
func (f *Frame) PageID() int64 { return f.pageID.Load() }

// PinCount returns the number of outstanding pins on this frame.
func (f *Frame) PinCount() int64 { return f.pinCount.Load() }

// IsDirty reports whether the frame's bytes have changed since the
// last writeback.
func (f *Frame) IsDirty() bool { return f.dirty.Load() }

// Data returns the frame's backing byte buffer. Callers must hold the
// frame's latch (via Page) before reading or writing it.
func (f *Frame) Data() []byte { return f.data }

// WLock/WUnlock/RLock/RUnlock implement the frame's reader/writer latch,
// used for B+-tree latch crabbing (spec §4.4); distinct from the pool's
// own pin-count bookkeeping.
func (f *Frame) WLock()   { f.latch.Lock() }
func (f *Frame) WUnlock() { f.latch.Unlock() }
func (f *Frame) RLock()   { f.latch.RLock() }
func (f *Frame) RUnlock() { f.latch.RUnlock() }

func (f *Frame) reset(pageID int64, pinCount int64, dirty bool) {
	f.pageID.Store(pageID)
	f.pinCount.Store(pinCount)
	f.dirty.Store(dirty)
	for i := range f.data {
		f.data[i] = 0
	}
}

// Page is a pinned, borrowed view of a frame returned to callers of the
// buffer pool. A Page is only valid while pinned; callers must call
// BufferPoolManager.UnpinPage exactly once per Page obtained (spec §9,
// "pin/unpin as scoped resource").
type Page struct {
	bpm    *BufferPoolManager
	frame  *Frame
	pageID int64
}

// GetPageID returns the identity of the page this view refers to.
func (p *Page) GetPageID() int64 { return p.pageID }

// Data returns the page's bytes.
func (p *Page) Data() []byte { return p.frame.Data() }

// WLock/WUnlock/RLock/RUnlock forward to the underlying frame's latch.
func (p *Page) WLock()   { p.frame.WLock() }
func (p *Page) WUnlock() { p.frame.WUnlock() }
func (p *Page) RLock()   { p.frame.RLock() }
func (p *Page) RUnlock() { p.frame.RUnlock() }

// IsDirty reports the frame's current dirty bit.
func (p *Page) IsDirty() bool { return p.frame.IsDirty() }
