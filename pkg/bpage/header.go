// Package bpage implements the on-disk B+-tree page layouts of spec §3:
// a common header shared by leaf and internal pages, plus the sorted
// slot arrays each variant adds. Every accessor here operates directly
// on a page's raw byte buffer (little-endian-packed, spec §6) — the
// type is a self-describing view, not a cached copy, so a write through
// an accessor is immediately visible to any other view of the same
// bytes.
package bpage

import (
	"encoding/binary"
)

// PageType discriminates a B+-tree page's variant (spec §9, "replace
// inheritance between page variants with a tagged union").
type PageType byte

const (
	InternalPageType PageType = 0
	LeafPageType     PageType = 1
)

// Field sizes. Every varint-encoded field is stored in a fixed-width
// slot of binary.MaxVarintLen64 bytes: binary.Varint stops consuming at
// the first complete encoding, so trailing zero bytes in the slot are
// harmless. This is the same fixed-slot-varint idiom the teacher uses
// throughout pkg/btree/constants.go.
const (
	pageTypeSize = 1
	lsnSize      = 8
	varintSlot   = binary.MaxVarintLen64
)

// Common header layout.
const (
	pageTypeOffset = 0
	lsnOffset      = pageTypeOffset + pageTypeSize
	sizeOffset     = lsnOffset + lsnSize
	maxSizeOffset  = sizeOffset + varintSlot
	parentOffset   = maxSizeOffset + varintSlot
	pageIDOffset   = parentOffset + varintSlot

	// CommonHeaderSize is the number of bytes every B+-tree page
	// reserves for the fields common to leaf and internal pages.
	CommonHeaderSize = pageIDOffset + varintSlot
)

func getVarint(data []byte, offset int) int64 {
	v, _ := binary.Varint(data[offset : offset+varintSlot])
	return v
}

func putVarint(data []byte, offset int, v int64) {
	buf := make([]byte, varintSlot)
	binary.PutVarint(buf, v)
	copy(data[offset:offset+varintSlot], buf)
}

// GetPageType reads the page-type discriminant.
func GetPageType(data []byte) PageType { return PageType(data[pageTypeOffset]) }

// SetPageType writes the page-type discriminant.
func SetPageType(data []byte, t PageType) { data[pageTypeOffset] = byte(t) }

// GetLSN reads the page's log sequence number.
func GetLSN(data []byte) uint64 { return binary.LittleEndian.Uint64(data[lsnOffset : lsnOffset+lsnSize]) }

// SetLSN writes the page's log sequence number.
func SetLSN(data []byte, lsn uint64) {
	binary.LittleEndian.PutUint64(data[lsnOffset:lsnOffset+lsnSize], lsn)
}

// GetSize reads the number of key slots in use.
func GetSize(data []byte) int64 { return getVarint(data, sizeOffset) }

// SetSize writes the number of key slots in use.
func SetSize(data []byte, size int64) { putVarint(data, sizeOffset, size) }

// GetMaxSize reads the page's configured fan-out bound.
func GetMaxSize(data []byte) int64 { return getVarint(data, maxSizeOffset) }

// SetMaxSize writes the page's configured fan-out bound.
func SetMaxSize(data []byte, maxSize int64) { putVarint(data, maxSizeOffset, maxSize) }

// GetParentPageID reads the page's current parent.
func GetParentPageID(data []byte) int64 { return getVarint(data, parentOffset) }

// SetParentPageID writes the page's current parent.
func SetParentPageID(data []byte, pageID int64) { putVarint(data, parentOffset, pageID) }

// GetPageID reads the page's own stable identity.
func GetPageID(data []byte) int64 { return getVarint(data, pageIDOffset) }

// SetPageID writes the page's own stable identity.
func SetPageID(data []byte, pageID int64) { putVarint(data, pageIDOffset, pageID) }

// initCommonHeader zeroes then stamps the fields common to every
// B+-tree page. Callers of InitLeaf/InitInternal don't need to call
// this directly.
func initCommonHeader(data []byte, t PageType, pageID, parentPageID, maxSize int64) {
	for i := range data {
		data[i] = 0
	}
	SetPageType(data, t)
	SetSize(data, 0)
	SetMaxSize(data, maxSize)
	SetParentPageID(data, parentPageID)
	SetPageID(data, pageID)
}
