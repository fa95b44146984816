package hashindex_test

import (
	"path/filepath"
	"testing"

	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"
	"bptreedb/pkg/hashindex"
)

func newTestIndex(t *testing.T, poolSize int) *hashindex.HashIndex {
	t.Helper()
	dm, err := disk.Open(filepath.Join(t.TempDir(), "hash.db"))
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	bpm := buffer.New(poolSize, 2, dm)
	h, err := hashindex.New(bpm)
	if err != nil {
		t.Fatalf("hashindex.New: %v", err)
	}
	return h
}

func TestInsertAndFind(t *testing.T) {
	h := newTestIndex(t, 16)
	for i := int64(0); i < 50; i++ {
		if err := h.Insert(i, i*3); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int64(0); i < 50; i++ {
		v, err := h.Find(i)
		if err != nil || v != i*3 {
			t.Fatalf("Find(%d) = %d, %v, want %d, nil", i, v, err, i*3)
		}
	}
	if _, err := h.Find(999); err != hashindex.ErrKeyNotFound {
		t.Fatalf("Find(999) = %v, want ErrKeyNotFound", err)
	}
}

func TestInsertOverwritesExistingKey(t *testing.T) {
	h := newTestIndex(t, 8)
	if err := h.Insert(1, 10); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := h.Insert(1, 20); err != nil {
		t.Fatalf("Insert overwrite: %v", err)
	}
	v, err := h.Find(1)
	if err != nil || v != 20 {
		t.Fatalf("Find(1) = %d, %v, want 20, nil", v, err)
	}
}

func TestInsertForcesSplitAndGrowsDirectory(t *testing.T) {
	h := newTestIndex(t, 8)
	startDepth := h.GlobalDepth()
	const n = 2000
	for i := int64(0); i < n; i++ {
		if err := h.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if h.GlobalDepth() <= startDepth {
		t.Fatalf("GlobalDepth() = %d, want > %d after %d inserts", h.GlobalDepth(), startDepth, n)
	}
	for i := int64(0); i < n; i++ {
		v, err := h.Find(i)
		if err != nil || v != i {
			t.Fatalf("Find(%d) = %d, %v, want %d, nil", i, v, err, i)
		}
	}
}

func TestDelete(t *testing.T) {
	h := newTestIndex(t, 8)
	for i := int64(0); i < 20; i++ {
		if err := h.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int64(0); i < 20; i += 2 {
		if err := h.Delete(i); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	for i := int64(0); i < 20; i++ {
		_, err := h.Find(i)
		if i%2 == 0 {
			if err != hashindex.ErrKeyNotFound {
				t.Fatalf("Find(%d) after delete = %v, want ErrKeyNotFound", i, err)
			}
		} else if err != nil {
			t.Fatalf("Find(%d) = %v, want nil", i, err)
		}
	}
	if err := h.Delete(0); err != hashindex.ErrKeyNotFound {
		t.Fatalf("Delete(0) again = %v, want ErrKeyNotFound", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hash.db")

	dm1, err := disk.Open(path)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	bpm1 := buffer.New(8, 2, dm1)
	h1, err := hashindex.Open(bpm1)
	if err != nil {
		t.Fatalf("hashindex.Open: %v", err)
	}
	const n = 200
	for i := int64(0); i < n; i++ {
		if err := h1.Insert(i, i*5); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	depth1 := h1.GlobalDepth()
	bpm1.FlushAllPages()
	dm1.Close()

	dm2, err := disk.Open(path)
	if err != nil {
		t.Fatalf("reopen disk.Open: %v", err)
	}
	defer dm2.Close()
	bpm2 := buffer.New(8, 2, dm2)
	h2, err := hashindex.Open(bpm2)
	if err != nil {
		t.Fatalf("reopen hashindex.Open: %v", err)
	}
	if h2.GlobalDepth() != depth1 {
		t.Fatalf("GlobalDepth() after reopen = %d, want %d", h2.GlobalDepth(), depth1)
	}
	for i := int64(0); i < n; i++ {
		v, err := h2.Find(i)
		if err != nil || v != i*5 {
			t.Fatalf("Find(%d) after reopen = %d, %v, want %d, nil", i, v, err, i*5)
		}
	}
}

func TestSelectReturnsEveryEntryExactlyOnce(t *testing.T) {
	h := newTestIndex(t, 8)
	const n = 300
	for i := int64(0); i < n; i++ {
		if err := h.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	entries, err := h.Select()
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	seen := make(map[int64]bool)
	for _, e := range entries {
		if seen[e.Key] {
			t.Fatalf("key %d returned more than once", e.Key)
		}
		seen[e.Key] = true
	}
	if len(seen) != n {
		t.Fatalf("Select returned %d distinct keys, want %d", len(seen), n)
	}
}
