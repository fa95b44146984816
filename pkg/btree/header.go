package btree

import (
	"encoding/binary"
	"errors"
	"sync"

	"bptreedb/pkg/buffer"
	"bptreedb/pkg/disk"
)

// ErrHeaderOverflow is returned when a table directory no longer fits
// in the single header page (spec §6, "Page 0 is the header page").
var ErrHeaderOverflow = errors.New("btree: header page overflow, too many open indexes")

// directory is the decoded contents of the header page: a name ->
// root_page_id map, one entry per open BPlusTree. It is the persisted
// form of the root_page_id the spec requires a dedicated mutex for
// (§4.4); the in-memory cache lives on BPlusTree.rootPageID and is kept
// in sync with the header page under rootMu.
type directory struct {
	mu  sync.Mutex
	bpm *buffer.BufferPoolManager
}

func openDirectory(bpm *buffer.BufferPoolManager) (*directory, error) {
	d := &directory{bpm: bpm}
	g, err := bpm.FetchWrite(disk.HeaderPageID)
	if err != nil {
		// First open of a brand new file: the disk manager's Open call
		// already stamped an all-zero header page at id 0. FetchWrite
		// should always succeed for it.
		return nil, err
	}
	defer g.Release()
	return d, nil
}

func decodeDirectory(data []byte) map[string]int64 {
	m := make(map[string]int64)
	buf := data
	count, n := binary.Varint(buf)
	buf = buf[n:]
	for i := int64(0); i < count; i++ {
		nameLen, n := binary.Varint(buf)
		buf = buf[n:]
		name := string(buf[:nameLen])
		buf = buf[nameLen:]
		rootPageID, n := binary.Varint(buf)
		buf = buf[n:]
		m[name] = rootPageID
	}
	return m
}

func encodeDirectory(m map[string]int64, out []byte) error {
	buf := out
	n := binary.PutVarint(buf, int64(len(m)))
	buf = buf[n:]
	for name, rootPageID := range m {
		n = binary.PutVarint(buf, int64(len(name)))
		buf = buf[n:]
		if len(buf) < len(name) {
			return ErrHeaderOverflow
		}
		copy(buf, name)
		buf = buf[len(name):]
		n = binary.PutVarint(buf, rootPageID)
		buf = buf[n:]
	}
	return nil
}

// lookupRoot reads the header page and returns the root_page_id
// registered for name, creating an entry set to disk.InvalidPageID if
// none exists yet.
func (d *directory) lookupRoot(name string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, err := d.bpm.FetchWrite(disk.HeaderPageID)
	if err != nil {
		return 0, err
	}
	defer g.Release()

	m := decodeDirectory(g.Data())
	if rootPageID, ok := m[name]; ok {
		return rootPageID, nil
	}
	m[name] = disk.InvalidPageID
	if err := encodeDirectory(m, g.Data()); err != nil {
		return 0, err
	}
	g.MarkDirty()
	return disk.InvalidPageID, nil
}

// setRoot persists a new root_page_id for name.
func (d *directory) setRoot(name string, rootPageID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, err := d.bpm.FetchWrite(disk.HeaderPageID)
	if err != nil {
		return err
	}
	defer g.Release()

	m := decodeDirectory(g.Data())
	m[name] = rootPageID
	if err := encodeDirectory(m, g.Data()); err != nil {
		return err
	}
	g.MarkDirty()
	return nil
}
