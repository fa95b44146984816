package btree_test

import (
	"path/filepath"
	"testing"

	"bptreedb/pkg/btree"
	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"

	"golang.org/x/sync/errgroup"
)

func newTestTree(t *testing.T, leafMax, internalMax int64, poolSize int) *btree.BPlusTree {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	bpm := buffer.New(poolSize, 2, dm)
	tree, err := btree.Open("primary", bpm, nil, leafMax, internalMax)
	if err != nil {
		t.Fatalf("btree.Open: %v", err)
	}
	return tree
}

func TestInsertAndGetValue(t *testing.T) {
	tree := newTestTree(t, 4, 4, 16)
	for i := int64(0); i < 20; i++ {
		ok, err := tree.Insert(i, i*10)
		if err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("Insert(%d): expected success", i)
		}
	}
	for i := int64(0); i < 20; i++ {
		v, err := tree.GetValue(i)
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		if v != i*10 {
			t.Fatalf("GetValue(%d) = %d, want %d", i, v, i*10)
		}
	}
	if _, err := tree.GetValue(100); err != btree.ErrKeyNotFound {
		t.Fatalf("GetValue(100) = %v, want ErrKeyNotFound", err)
	}
}

func TestInsertDuplicateRejected(t *testing.T) {
	tree := newTestTree(t, 4, 4, 16)
	ok, err := tree.Insert(1, 100)
	if err != nil || !ok {
		t.Fatalf("first insert failed: ok=%v err=%v", ok, err)
	}
	ok, err = tree.Insert(1, 200)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if ok {
		t.Fatal("duplicate insert should report false")
	}
	v, err := tree.GetValue(1)
	if err != nil || v != 100 {
		t.Fatalf("value after rejected duplicate = %d, %v, want 100, nil", v, err)
	}
}

func TestInsertTriggersMultiLevelSplit(t *testing.T) {
	tree := newTestTree(t, 4, 4, 8)
	const n = 200
	for i := int64(0); i < n; i++ {
		if ok, err := tree.Insert(i, -i); err != nil || !ok {
			t.Fatalf("Insert(%d): ok=%v err=%v", i, ok, err)
		}
	}
	for i := int64(0); i < n; i++ {
		v, err := tree.GetValue(i)
		if err != nil || v != -i {
			t.Fatalf("GetValue(%d) = %d, %v, want %d, nil", i, v, err, -i)
		}
	}
}

func TestRemoveTriggersStealAndMerge(t *testing.T) {
	tree := newTestTree(t, 4, 4, 8)
	const n = 100
	for i := int64(0); i < n; i++ {
		if ok, err := tree.Insert(i, i); err != nil || !ok {
			t.Fatalf("Insert(%d): ok=%v err=%v", i, ok, err)
		}
	}
	// Remove every other key, forcing leaves below minimum fill to
	// steal from or merge with a sibling.
	for i := int64(0); i < n; i += 2 {
		if err := tree.Remove(i); err != nil {
			t.Fatalf("Remove(%d): %v", i, err)
		}
	}
	for i := int64(0); i < n; i++ {
		v, err := tree.GetValue(i)
		if i%2 == 0 {
			if err != btree.ErrKeyNotFound {
				t.Fatalf("GetValue(%d) after delete = %v, want ErrKeyNotFound", i, err)
			}
			continue
		}
		if err != nil || v != i {
			t.Fatalf("GetValue(%d) = %d, %v, want %d, nil", i, v, err, i)
		}
	}
}

func TestRemoveAllCollapsesToEmpty(t *testing.T) {
	tree := newTestTree(t, 4, 4, 8)
	const n = 50
	for i := int64(0); i < n; i++ {
		if _, err := tree.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int64(0); i < n; i++ {
		if err := tree.Remove(i); err != nil {
			t.Fatalf("Remove(%d): %v", i, err)
		}
	}
	if !tree.IsEmpty() {
		t.Fatal("tree should be empty after removing every key")
	}
	if _, err := tree.GetValue(0); err != btree.ErrKeyNotFound {
		t.Fatalf("GetValue on empty tree = %v, want ErrKeyNotFound", err)
	}
}

func TestIteratorOrdersByKey(t *testing.T) {
	tree := newTestTree(t, 4, 4, 8)
	keys := []int64{5, 1, 9, 3, 7, 2, 8, 4, 6, 0}
	for _, k := range keys {
		if _, err := tree.Insert(k, k*k); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	it, err := tree.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer it.Close()
	var got []int64
	for it.Valid() {
		got = append(got, it.Key())
		if it.Value() != it.Key()*it.Key() {
			t.Fatalf("Value() = %d, want %d", it.Value(), it.Key()*it.Key())
		}
		if err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	want := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBeginAtPositionsAtOrAfterKey(t *testing.T) {
	tree := newTestTree(t, 4, 4, 8)
	for _, k := range []int64{0, 2, 4, 6, 8} {
		if _, err := tree.Insert(k, k); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	it, err := tree.BeginAt(3)
	if err != nil {
		t.Fatalf("BeginAt: %v", err)
	}
	defer it.Close()
	if !it.Valid() || it.Key() != 4 {
		t.Fatalf("BeginAt(3) landed on key %v, want 4", it.Key())
	}
}

// Concurrent inserters working disjoint key ranges should never observe
// a latching bug corrupting a sibling's range, since latch crabbing only
// ever holds latches along a single root-to-leaf path at a time.
func TestConcurrentInsertsOnDisjointKeyRanges(t *testing.T) {
	tree := newTestTree(t, 4, 4, 32)
	const workers = 8
	const perWorker = 100

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			base := int64(w * perWorker)
			for i := int64(0); i < perWorker; i++ {
				if _, err := tree.Insert(base+i, (base+i)*3); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Insert: %v", err)
	}

	for w := 0; w < workers; w++ {
		base := int64(w * perWorker)
		for i := int64(0); i < perWorker; i++ {
			v, err := tree.GetValue(base + i)
			if err != nil || v != (base+i)*3 {
				t.Fatalf("GetValue(%d) = %d, %v, want %d, nil", base+i, v, err, (base+i)*3)
			}
		}
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	dm1, err := disk.Open(path)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	bpm1 := buffer.New(4, 2, dm1)
	tree1, err := btree.Open("primary", bpm1, nil, 4, 4)
	if err != nil {
		t.Fatalf("btree.Open: %v", err)
	}
	for i := int64(0); i < 40; i++ {
		if _, err := tree1.Insert(i, i*2); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	bpm1.FlushAllPages()
	dm1.Close()

	dm2, err := disk.Open(path)
	if err != nil {
		t.Fatalf("reopen disk.Open: %v", err)
	}
	defer dm2.Close()
	bpm2 := buffer.New(4, 2, dm2)
	tree2, err := btree.Open("primary", bpm2, nil, 4, 4)
	if err != nil {
		t.Fatalf("reopen btree.Open: %v", err)
	}
	for i := int64(0); i < 40; i++ {
		v, err := tree2.GetValue(i)
		if err != nil || v != i*2 {
			t.Fatalf("GetValue(%d) after reopen = %d, %v, want %d, nil", i, v, err, i*2)
		}
	}
}
