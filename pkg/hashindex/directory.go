package hashindex

import (
	"encoding/binary"
	"errors"

	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"
)

// ErrDirectoryOverflow is returned by Open/split when the directory
// (global depth, bucket array, and local-depth map) no longer fits in
// a single header page, mirroring btree's own header-page limit.
var ErrDirectoryOverflow = errors.New("hashindex: directory no longer fits in the header page")

// Open returns the HashIndex persisted in bpm's header page (page 0),
// reconstructing it if bpm's backing file already holds one, or
// bootstrapping a fresh directory otherwise. Unlike a BPlusTree, a
// HashIndex gets the whole of one disk file to itself (see
// pkg/catalog), so there's no name -> directory map to thread through
// the way btree's directory.go does: the header page holds exactly one
// directory.
func Open(bpm *buffer.BufferPoolManager) (*HashIndex, error) {
	g, err := bpm.FetchRead(disk.HeaderPageID)
	if err != nil {
		return nil, err
	}
	globalDepth, buckets, localDepth, ok := decodeDirectory(g.Data())
	g.Release()
	if ok {
		return &HashIndex{bpm: bpm, globalDepth: globalDepth, buckets: buckets, localDepth: localDepth}, nil
	}
	h, err := New(bpm)
	if err != nil {
		return nil, err
	}
	if err := h.persist(); err != nil {
		return nil, err
	}
	return h, nil
}

// persist writes the current directory to the header page.
func (h *HashIndex) persist() error {
	g, err := h.bpm.FetchWrite(disk.HeaderPageID)
	if err != nil {
		return err
	}
	defer g.Release()
	if err := encodeDirectory(h.globalDepth, h.buckets, h.localDepth, g.Data()); err != nil {
		return err
	}
	g.MarkDirty()
	return nil
}

// decodeDirectory reads back a directory encoded by encodeDirectory.
// ok is false for an all-zero (never-written) header page, in which
// case the caller should bootstrap a fresh directory instead.
func decodeDirectory(data []byte) (globalDepth int64, buckets []int64, localDepth map[int64]int64, ok bool) {
	off := 0
	readVarint := func() int64 {
		v, n := binary.Varint(data[off:])
		off += n
		return v
	}
	globalDepth = readVarint()
	if globalDepth <= 0 {
		return 0, nil, nil, false
	}
	numBuckets := readVarint()
	buckets = make([]int64, numBuckets)
	for i := range buckets {
		buckets[i] = readVarint()
	}
	numDepths := readVarint()
	localDepth = make(map[int64]int64, numDepths)
	for i := int64(0); i < numDepths; i++ {
		pageID := readVarint()
		depth := readVarint()
		localDepth[pageID] = depth
	}
	return globalDepth, buckets, localDepth, true
}

// encodeDirectory writes globalDepth, buckets, and localDepth into out
// (exactly disk.Pagesize bytes), erroring if they don't fit.
func encodeDirectory(globalDepth int64, buckets []int64, localDepth map[int64]int64, out []byte) error {
	buf := make([]byte, binary.MaxVarintLen64)
	off := 0
	writeVarint := func(v int64) error {
		n := binary.PutVarint(buf, v)
		if off+n > len(out) {
			return ErrDirectoryOverflow
		}
		off += copy(out[off:], buf[:n])
		return nil
	}
	if err := writeVarint(globalDepth); err != nil {
		return err
	}
	if err := writeVarint(int64(len(buckets))); err != nil {
		return err
	}
	for _, pageID := range buckets {
		if err := writeVarint(pageID); err != nil {
			return err
		}
	}
	if err := writeVarint(int64(len(localDepth))); err != nil {
		return err
	}
	for pageID, depth := range localDepth {
		if err := writeVarint(pageID); err != nil {
			return err
		}
		if err := writeVarint(depth); err != nil {
			return err
		}
	}
	for i := off; i < len(out); i++ {
		out[i] = 0
	}
	return nil
}
