package buffer

// Guard is the scoped pin+latch resource recommended by spec §9
// ("Pin/unpin as scoped resource"): it bundles a pinned Page together
// with whichever of its latch it currently holds, and releases both
// exactly once, on every exit path, when Release is called.
type Guard struct {
	page    *Page
	held    latchKind
	dirty   bool
	bpm     *BufferPoolManager
	release bool
}

type latchKind int

const (
	latchNone latchKind = iota
	latchRead
	latchWrite
)

// FetchRead fetches pageID and acquires its reader latch.
func (bpm *BufferPoolManager) FetchRead(pageID int64) (*Guard, error) {
	p, err := bpm.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	p.RLock()
	return &Guard{page: p, held: latchRead, bpm: bpm, release: true}, nil
}

// FetchWrite fetches pageID and acquires its writer latch.
func (bpm *BufferPoolManager) FetchWrite(pageID int64) (*Guard, error) {
	p, err := bpm.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	p.WLock()
	return &Guard{page: p, held: latchWrite, bpm: bpm, release: true}, nil
}

// NewWrite allocates a fresh page and acquires its writer latch. A
// brand-new page has no concurrent readers, but taking the latch keeps
// the guard's invariant ("every live guard holds the latch it claims
// to") simple to reason about.
func (bpm *BufferPoolManager) NewWrite() (*Guard, error) {
	p, err := bpm.NewPage()
	if err != nil {
		return nil, err
	}
	p.WLock()
	return &Guard{page: p, held: latchWrite, bpm: bpm, release: true}, nil
}

// Page returns the underlying pinned page view.
func (g *Guard) Page() *Page { return g.page }

// PageID returns the id of the guarded page.
func (g *Guard) PageID() int64 { return g.page.GetPageID() }

// Data returns the guarded page's bytes.
func (g *Guard) Data() []byte { return g.page.Data() }

// MarkDirty records that this guard's holder mutated the page; the
// dirty bit is OR-ed in when the guard is released.
func (g *Guard) MarkDirty() { g.dirty = true }

// UnlatchOnly drops the latch this guard holds without unpinning the
// page. Release calls it before unpinning.
func (g *Guard) UnlatchOnly() {
	switch g.held {
	case latchRead:
		g.page.RUnlock()
	case latchWrite:
		g.page.WUnlock()
	}
	g.held = latchNone
}

// Release unpins the page (carrying the dirty bit) and drops whichever
// latch is still held, idempotently. Safe to call multiple times and
// via defer on every exit path (spec §9).
func (g *Guard) Release() {
	if !g.release {
		return
	}
	g.release = false
	g.UnlatchOnly()
	g.bpm.UnpinPage(g.page.GetPageID(), g.dirty)
}
