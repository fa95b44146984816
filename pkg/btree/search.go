package btree

import "bptreedb/pkg/bpage"

// Comparator orders two keys, returning a negative number, zero, or a
// positive number as a is less than, equal to, or greater than b. A
// BPlusTree is opened with one (spec §4.3, "dependency-injected
// comparator" in place of the teacher's hardcoded int64 ordering).
type Comparator func(a, b int64) int

func defaultComparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// internalChildIndex returns the child slot to follow for key: the
// largest i in [1, size] with key_i <= key, or 0 if no such i exists
// (spec §3, "slot 0 holds only a child pointer, covering everything
// less than key_1").
func internalChildIndex(data []byte, key int64, cmp Comparator) int64 {
	size := bpage.GetSize(data)
	lo, hi := int64(1), size+1
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(bpage.InternalKeyAt(data, mid), key) > 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo - 1
}

// leafSearch returns the first slot index holding a key >= the probe,
// or size if every key is smaller.
func leafSearch(data []byte, key int64, cmp Comparator) int64 {
	size := bpage.GetSize(data)
	lo, hi := int64(0), size
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(bpage.LeafKeyAt(data, mid), key) >= 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// findChildIndex linearly scans an internal page's children for
// childPageID. Fan-outs are small enough (bounded by page size) that a
// linear scan is cheaper than maintaining extra bookkeeping.
func findChildIndex(data []byte, childPageID int64) int64 {
	size := bpage.GetSize(data)
	for i := int64(0); i <= size; i++ {
		if bpage.InternalChildAt(data, i) == childPageID {
			return i
		}
	}
	return -1
}

func ceilDiv(n, d int64) int64 {
	return (n + d - 1) / d
}

func isSafeForInsert(data []byte) bool {
	return bpage.GetSize(data) < bpage.GetMaxSize(data)-1
}

func isSafeForRemove(data []byte) bool {
	return bpage.GetSize(data) > ceilDiv(bpage.GetMaxSize(data), 2)
}
