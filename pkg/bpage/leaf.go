package bpage

import (
	"bptreedb/pkg/disk"
)

// Leaf header layout: common header + next/prev sibling page ids.
const (
	nextPageIDOffset = CommonHeaderSize
	prevPageIDOffset = nextPageIDOffset + varintSlot

	// LeafHeaderSize is the number of bytes a leaf page reserves before
	// its entry slot array begins.
	LeafHeaderSize = prevPageIDOffset + varintSlot

	entrySize = varintSlot * 2 // one key slot + one value slot
)

// LeafCapacity is the maximum number of (key, value) entries a single
// leaf page's physical byte budget can hold. A tree's configured
// leaf_max_size must not exceed this.
var LeafCapacity = int((disk.Pagesize - LeafHeaderSize) / entrySize)

// InitLeaf resets data to an empty leaf page with the given identity
// and fan-out bound, and marks it as having no siblings yet.
func InitLeaf(data []byte, pageID, parentPageID, maxSize int64) {
	initCommonHeader(data, LeafPageType, pageID, parentPageID, maxSize)
	SetNextPageID(data, disk.InvalidPageID)
	SetPrevPageID(data, disk.InvalidPageID)
}

// GetNextPageID reads the id of the leaf's right (next, higher-keyed)
// sibling, or disk.InvalidPageID if this is the last leaf.
func GetNextPageID(data []byte) int64 { return getVarint(data, nextPageIDOffset) }

// SetNextPageID writes the leaf's right sibling.
func SetNextPageID(data []byte, pageID int64) { putVarint(data, nextPageIDOffset, pageID) }

// GetPrevPageID reads the id of the leaf's left (previous, lower-keyed)
// sibling, or disk.InvalidPageID if this is the first leaf.
func GetPrevPageID(data []byte) int64 { return getVarint(data, prevPageIDOffset) }

// SetPrevPageID writes the leaf's left sibling.
func SetPrevPageID(data []byte, pageID int64) { putVarint(data, prevPageIDOffset, pageID) }

func leafEntryOffset(index int64) int {
	return LeafHeaderSize + int(index)*entrySize
}

// LeafKeyAt reads the key at the given slot index.
func LeafKeyAt(data []byte, index int64) int64 {
	off := leafEntryOffset(index)
	return getVarint(data, off)
}

// LeafValueAt reads the value (record id) at the given slot index.
func LeafValueAt(data []byte, index int64) int64 {
	off := leafEntryOffset(index) + varintSlot
	return getVarint(data, off)
}

// SetLeafEntryAt writes the key and value at the given slot index.
func SetLeafEntryAt(data []byte, index int64, key, value int64) {
	off := leafEntryOffset(index)
	putVarint(data, off, key)
	putVarint(data, off+varintSlot, value)
}
