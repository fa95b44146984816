package catalog

import (
	"io"

	"bptreedb/pkg/btree"
	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"
	"bptreedb/pkg/entry"
	"bptreedb/pkg/hashindex"
)

// IndexType names the access method backing a table.
type IndexType string

const (
	BTreeIndexType IndexType = "btree"
	HashIndexType  IndexType = "hash"
)

// Index is the access method every table in a Catalog implements,
// whether it's backed by a BPlusTree or a HashIndex.
type Index interface {
	Close() error
	GetName() string
	Find(int64) (entry.Entry, error)
	Insert(int64, int64) error
	Update(int64, int64) error
	Delete(int64) error
	Select() ([]entry.Entry, error)
	Print(io.Writer)
	PrintPN(int, io.Writer)
	Flush()
}

// btreeTable adapts a *btree.BPlusTree, plus the disk.Manager and
// buffer pool backing it, to the Index interface.
type btreeTable struct {
	name string
	dm   disk.Manager
	bpm  *buffer.BufferPoolManager
	tree *btree.BPlusTree
}

func (b *btreeTable) Close() error    { return b.dm.Close() }
func (b *btreeTable) GetName() string { return b.name }
func (b *btreeTable) Flush()          { b.bpm.FlushAllPages() }

func (b *btreeTable) Find(key int64) (entry.Entry, error) {
	v, err := b.tree.GetValue(key)
	if err != nil {
		return entry.Entry{}, err
	}
	return entry.New(key, v), nil
}

func (b *btreeTable) Insert(key, value int64) error {
	ok, err := b.tree.Insert(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return errKeyExists
	}
	return nil
}

func (b *btreeTable) Update(key, value int64) error { return b.tree.Update(key, value) }
func (b *btreeTable) Delete(key int64) error        { return b.tree.Remove(key) }
func (b *btreeTable) Select() ([]entry.Entry, error) { return b.tree.Select() }
func (b *btreeTable) Print(w io.Writer)          { b.tree.Print(w) }
func (b *btreeTable) PrintPN(pn int, w io.Writer) { b.tree.PrintPN(pn, w) }

// hashTable adapts a *hashindex.HashIndex, plus its own private
// buffer pool's disk.Manager, to the Index interface.
type hashTable struct {
	name string
	dm   disk.Manager
	bpm  *buffer.BufferPoolManager
	idx  *hashindex.HashIndex
}

func (h *hashTable) Close() error    { return h.dm.Close() }
func (h *hashTable) GetName() string { return h.name }
func (h *hashTable) Flush()          { h.bpm.FlushAllPages() }

func (h *hashTable) Find(key int64) (entry.Entry, error) {
	v, err := h.idx.Find(key)
	if err != nil {
		return entry.Entry{}, err
	}
	return entry.New(key, v), nil
}

func (h *hashTable) Insert(key, value int64) error {
	if _, err := h.idx.Find(key); err == nil {
		return errKeyExists
	}
	return h.idx.Insert(key, value)
}

func (h *hashTable) Update(key, value int64) error { return h.idx.Update(key, value) }
func (h *hashTable) Delete(key int64) error        { return h.idx.Delete(key) }
func (h *hashTable) Select() ([]entry.Entry, error) { return h.idx.Select() }
func (h *hashTable) Print(w io.Writer)          { h.idx.Print(w) }
func (h *hashTable) PrintPN(pn int, w io.Writer) { h.idx.PrintPN(pn, w) }
