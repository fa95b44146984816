package btree

import (
	"errors"
	"fmt"
	"io"

	"bptreedb/pkg/bpage"
	"bptreedb/pkg/disk"
	"bptreedb/pkg/entry"
)

// Select returns every entry in the tree in key order, by driving an
// Iterator from Begin to End.
func (t *BPlusTree) Select() ([]entry.Entry, error) {
	it, err := t.Begin()
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []entry.Entry
	for it.Valid() {
		out = append(out, entry.New(it.Key(), it.Value()))
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SelectRange returns every entry with key in [startKey, endKey).
func (t *BPlusTree) SelectRange(startKey, endKey int64) ([]entry.Entry, error) {
	if startKey >= endKey {
		return nil, errors.New("btree: startKey is not smaller than endKey")
	}
	it, err := t.BeginAt(startKey)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []entry.Entry
	for it.Valid() && it.Key() < endKey {
		out = append(out, entry.New(it.Key(), it.Value()))
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Print pretty-prints the whole tree starting from its root page.
func (t *BPlusTree) Print(w io.Writer) {
	if t.rootPageID == disk.InvalidPageID {
		return
	}
	t.PrintPN(int(t.rootPageID), w)
}

// PrintPN pretty-prints the single page with the given page number,
// recursing into children if it is an internal node.
func (t *BPlusTree) PrintPN(pn int, w io.Writer) {
	g, err := t.bpm.FetchRead(int64(pn))
	if err != nil {
		return
	}
	data := g.Data()
	if bpage.GetPageType(data) == bpage.LeafPageType {
		size := bpage.GetSize(data)
		fmt.Fprintf(w, "leaf@%d size=%d [", pn, size)
		for i := int64(0); i < size; i++ {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "%d:%d", bpage.LeafKeyAt(data, i), bpage.LeafValueAt(data, i))
		}
		fmt.Fprintln(w, "]")
		g.Release()
		return
	}
	size := bpage.GetSize(data)
	children := make([]int64, size+1)
	for i := int64(0); i <= size; i++ {
		children[i] = bpage.InternalChildAt(data, i)
	}
	fmt.Fprintf(w, "internal@%d size=%d [", pn, size)
	for i := int64(1); i <= size; i++ {
		if i > 1 {
			fmt.Fprint(w, " ")
		}
		fmt.Fprintf(w, "%d", bpage.InternalKeyAt(data, i))
	}
	fmt.Fprintln(w, "]")
	g.Release()
	for _, childID := range children {
		t.PrintPN(int(childID), w)
	}
}
