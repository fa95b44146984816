// Package disk implements the block-aligned disk manager consumed by the
// buffer pool (spec §6): fixed-size page reads/writes plus a page-id
// allocator, backed by a single O_DIRECT file.
package disk

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ncw/directio"
)

// Pagesize is the fixed size of every page, in bytes.
const Pagesize int64 = directio.BlockSize

// InvalidPageID signals "no page" throughout the storage core.
const InvalidPageID int64 = -1

// HeaderPageID is the well-known page holding the index-name -> root
// page-id map (spec §6, "Persisted layout").
const HeaderPageID int64 = 0

// Manager is the contract the buffer pool depends on (spec §6):
// fixed-page-size reads/writes addressed by page id, plus allocation.
type Manager interface {
	ReadPage(pageID int64, buf []byte) error
	WritePage(pageID int64, buf []byte) error
	AllocatePage() int64
	DeallocatePage(pageID int64) error
	Close() error
}

// FileManager is a Manager backed by a single database file opened with
// O_DIRECT, block-aligned access (github.com/ncw/directio), the same
// mechanism the teacher's pager used to talk to disk.
type FileManager struct {
	mu       sync.Mutex
	file     *os.File
	nextPage int64 // monotonically increasing page-id allocator
	freed    map[int64]bool
}

// Open (re-)initializes a FileManager backed by a database file at
// filePath, creating it (and any parent directories) if it doesn't
// exist yet. The header page is allocated as page 0 if the file is new.
func Open(filePath string) (*FileManager, error) {
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err := os.MkdirAll(filePath[:idx], 0775); err != nil {
			return nil, err
		}
	}
	file, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size()%Pagesize != 0 {
		file.Close()
		return nil, errors.New("disk: database file size is not page-aligned")
	}
	numPages := info.Size() / Pagesize
	dm := &FileManager{file: file, nextPage: numPages, freed: make(map[int64]bool)}
	if numPages == 0 {
		if dm.AllocatePage() != HeaderPageID {
			file.Close()
			return nil, errors.New("disk: header page must be page 0")
		}
		buf := directio.AlignedBlock(int(Pagesize))
		if err := dm.WritePage(HeaderPageID, buf); err != nil {
			file.Close()
			return nil, err
		}
	}
	return dm, nil
}

// GetFileName returns the path of the backing file.
func (dm *FileManager) GetFileName() string {
	return dm.file.Name()
}

// ReadPage reads the page at pageID into buf, which must be exactly
// Pagesize bytes and block-aligned.
func (dm *FileManager) ReadPage(pageID int64, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if _, err := dm.file.Seek(pageID*Pagesize, io.SeekStart); err != nil {
		return err
	}
	if _, err := dm.file.Read(buf); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// WritePage writes buf (exactly Pagesize bytes, block-aligned) to the
// page at pageID.
func (dm *FileManager) WritePage(pageID int64, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	_, err := dm.file.WriteAt(buf, pageID*Pagesize)
	return err
}

// AllocatePage returns a fresh page id from the monotonic counter,
// reusing a deallocated id only never: ids are never recycled across
// a process lifetime, matching the original source's AllocatePage.
func (dm *FileManager) AllocatePage() int64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	id := dm.nextPage
	dm.nextPage++
	return id
}

// DeallocatePage marks a page id as released. This implementation does
// not reclaim disk space or recycle the id; it exists so DeletePage has
// somewhere to report the release, per spec §6.
func (dm *FileManager) DeallocatePage(pageID int64) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.freed[pageID] = true
	return nil
}

// Close closes the backing file.
func (dm *FileManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.file.Close()
}
