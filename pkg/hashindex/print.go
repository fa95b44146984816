package hashindex

import (
	"fmt"
	"io"
)

// Print pretty-prints the directory and every distinct bucket page.
func (h *HashIndex) Print(w io.Writer) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fmt.Fprintf(w, "====\nglobal depth: %d\n", h.globalDepth)
	seen := make(map[int64]bool)
	for i, pageID := range h.buckets {
		if seen[pageID] {
			continue
		}
		seen[pageID] = true
		fmt.Fprintf(w, "====\nbucket %d (page %d)\n", i, pageID)
		h.printBucket(pageID, w)
	}
}

// PrintPN pretty-prints the single bucket page with the given page number.
func (h *HashIndex) PrintPN(pn int, w io.Writer) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.printBucket(int64(pn), w)
}

func (h *HashIndex) printBucket(pageID int64, w io.Writer) {
	g, err := h.bpm.FetchRead(pageID)
	if err != nil {
		fmt.Fprintln(w, "out of bounds")
		return
	}
	defer g.Release()
	fmt.Fprintf(w, "local depth: %d\n", getLocalDepth(g.Data()))
	n := getNumKeys(g.Data())
	for i := int64(0); i < n; i++ {
		getEntry(g.Data(), i).Print(w)
	}
	fmt.Fprintln(w)
}
