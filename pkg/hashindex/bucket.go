package hashindex

import (
	"encoding/binary"

	"bptreedb/pkg/disk"
	"bptreedb/pkg/entry"
)

// Bucket page layout: a small header (local depth, entry count) followed
// by a flat array of fixed-width (key, value) slots, the same
// fixed-slot-varint idiom bpage uses for B+-tree pages.
const (
	varintSlot = binary.MaxVarintLen64

	localDepthOffset = 0
	numKeysOffset    = localDepthOffset + varintSlot
	bucketHeaderSize = numKeysOffset + varintSlot

	entrySize = varintSlot * 2
)

// BucketCapacity is the maximum number of entries a single bucket page
// can hold before it must split.
var BucketCapacity = int64(disk.Pagesize-bucketHeaderSize) / entrySize

func getVarint(data []byte, offset int) int64 {
	v, _ := binary.Varint(data[offset : offset+varintSlot])
	return v
}

func putVarint(data []byte, offset int, v int64) {
	buf := make([]byte, varintSlot)
	binary.PutVarint(buf, v)
	copy(data[offset:offset+varintSlot], buf)
}

func initBucket(data []byte, localDepth int64) {
	for i := range data {
		data[i] = 0
	}
	setLocalDepth(data, localDepth)
	setNumKeys(data, 0)
}

func getLocalDepth(data []byte) int64        { return getVarint(data, localDepthOffset) }
func setLocalDepth(data []byte, depth int64) { putVarint(data, localDepthOffset, depth) }
func getNumKeys(data []byte) int64           { return getVarint(data, numKeysOffset) }
func setNumKeys(data []byte, n int64)        { putVarint(data, numKeysOffset, n) }

func entryOffset(i int64) int { return bucketHeaderSize + int(i)*entrySize }

func getEntry(data []byte, i int64) entry.Entry {
	off := entryOffset(i)
	key := getVarint(data, off)
	value := getVarint(data, off+varintSlot)
	return entry.New(key, value)
}

func setEntry(data []byte, i int64, e entry.Entry) {
	off := entryOffset(i)
	putVarint(data, off, e.Key)
	putVarint(data, off+varintSlot, e.Value)
}

// findInBucket linearly scans a bucket's entries for key, since a
// bucket has no sort order (unlike a B+-tree leaf).
func findInBucket(data []byte, key int64) (int64, bool) {
	n := getNumKeys(data)
	for i := int64(0); i < n; i++ {
		if getEntry(data, i).Key == key {
			return i, true
		}
	}
	return 0, false
}
