package bpage

import (
	"bptreedb/pkg/disk"
)

// Internal header layout: just the common header — no siblings.
const InternalHeaderSize = CommonHeaderSize

const (
	keySize   = varintSlot
	childSize = varintSlot
)

// InternalCapacity is the maximum number of separator keys a single
// internal page's physical byte budget can hold (so capacity+1
// children). A tree's configured internal_max_size must not exceed
// this.
var InternalCapacity = computeInternalCapacity()

func computeInternalCapacity() int {
	available := int(disk.Pagesize) - InternalHeaderSize
	// available >= capacity*keySize + (capacity+1)*childSize
	return (available - childSize) / (keySize + childSize)
}

var keysOffset = InternalHeaderSize
var childrenOffset = keysOffset + InternalCapacity*keySize

// InitInternal resets data to an empty internal page with the given
// identity and fan-out bound.
func InitInternal(data []byte, pageID, parentPageID, maxSize int64) {
	initCommonHeader(data, InternalPageType, pageID, parentPageID, maxSize)
}

// InternalKeyAt reads the separator key at slot i, for i in [1, size].
// Slot 0 has no key (spec §3: "slot 0 holds only a child pointer").
func InternalKeyAt(data []byte, i int64) int64 {
	off := keysOffset + int(i-1)*keySize
	return getVarint(data, off)
}

// SetInternalKeyAt writes the separator key at slot i, for i in [1, size].
func SetInternalKeyAt(data []byte, i int64, key int64) {
	off := keysOffset + int(i-1)*keySize
	putVarint(data, off, key)
}

// InternalChildAt reads the child page id at slot i, for i in [0, size].
func InternalChildAt(data []byte, i int64) int64 {
	off := childrenOffset + int(i)*childSize
	return getVarint(data, off)
}

// SetInternalChildAt writes the child page id at slot i, for i in [0, size].
func SetInternalChildAt(data []byte, i int64, pageID int64) {
	off := childrenOffset + int(i)*childSize
	putVarint(data, off, pageID)
}
