// Package catalog is the supplemented feature sitting above the
// storage core: it opens one B+-tree or hash-index table per on-disk
// file, each with its own private buffer pool, and tracks them by
// name the way the teacher's database package tracked pagers.
package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"bptreedb/pkg/buffer"
	"bptreedb/pkg/config"
	"bptreedb/pkg/disk"
	"bptreedb/pkg/hashindex"

	"bptreedb/pkg/btree"

	"golang.org/x/sync/errgroup"
)

var (
	errKeyExists  = errors.New("catalog: key already exists")
	alphanumeric  = regexp.MustCompile(`\W`)
	errBadTableName = errors.New("catalog: table name must be alphanumeric")
	errTableExists  = errors.New("catalog: table already exists")
	errTableMissing = errors.New("catalog: table not found")
)

// Catalog is a directory of named tables, each backed by its own file
// under basepath.
type Catalog struct {
	basepath string
	poolSize int
	tables   map[string]Index
}

// Open returns a Catalog rooted at folder, creating the directory if
// it doesn't exist. poolSize sizes every table's private buffer pool.
func Open(folder string, poolSize int) (*Catalog, error) {
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	if err := os.MkdirAll(folder, 0775); err != nil {
		return nil, err
	}
	return &Catalog{
		basepath: folder,
		poolSize: poolSize,
		tables:   make(map[string]Index),
	}, nil
}

// Close closes every open table.
func (c *Catalog) Close() (err error) {
	for _, table := range c.tables {
		curErr := table.Close()
		if err == nil {
			err = curErr
		}
	}
	return err
}

// kindPath is where a table's access method is recorded, since a
// table's backing file alone doesn't say whether it's a BPlusTree or
// a HashIndex (mirroring the teacher's ".meta exists" sniff, made
// explicit instead of inferred).
func (c *Catalog) kindPath(name string) string {
	return filepath.Join(c.basepath, name+".kind")
}

// CreateTable creates a new table of the given type.
func (c *Catalog) CreateTable(name string, indexType IndexType) (Index, error) {
	if alphanumeric.MatchString(name) {
		return nil, errBadTableName
	}
	path := filepath.Join(c.basepath, name)
	if _, err := os.Stat(path); err == nil {
		return nil, errTableExists
	}
	index, err := c.openTable(name, path, indexType)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(c.kindPath(name), []byte(indexType), 0664); err != nil {
		return nil, err
	}
	c.tables[name] = index
	return index, nil
}

// GetTable returns a table by name, opening it from disk if it isn't
// already resident in this Catalog.
func (c *Catalog) GetTable(name string) (Index, error) {
	if idx, ok := c.tables[name]; ok {
		return idx, nil
	}
	path := filepath.Join(c.basepath, name)
	if _, err := os.Stat(path); err != nil {
		return nil, errTableMissing
	}
	kindBytes, err := os.ReadFile(c.kindPath(name))
	if err != nil {
		return nil, errTableMissing
	}
	index, err := c.openTable(name, path, IndexType(kindBytes))
	if err != nil {
		return nil, err
	}
	c.tables[name] = index
	return index, nil
}

func (c *Catalog) openTable(name, path string, indexType IndexType) (Index, error) {
	dm, err := disk.Open(path)
	if err != nil {
		return nil, err
	}
	bpm := buffer.New(c.poolSize, config.ReplacerK, dm)
	switch indexType {
	case BTreeIndexType:
		tree, err := btree.Open("primary", bpm, nil, config.DefaultLeafMaxSize, config.DefaultInternalMaxSize)
		if err != nil {
			dm.Close()
			return nil, err
		}
		return &btreeTable{name: name, dm: dm, bpm: bpm, tree: tree}, nil
	case HashIndexType:
		idx, err := hashindex.Open(bpm)
		if err != nil {
			dm.Close()
			return nil, err
		}
		return &hashTable{name: name, dm: dm, bpm: bpm, idx: idx}, nil
	default:
		dm.Close()
		return nil, errors.New("catalog: invalid index type")
	}
}

// CreateLogFile ensures the write-ahead log file at filename exists,
// creating an empty one if it doesn't. A no-op if it's already there,
// so recovery can reopen an existing log across restarts.
func CreateLogFile(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		return nil
	}
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	return file.Close()
}

// FlushAll flushes every open table's buffer pool to disk, for use at
// a write-ahead-log checkpoint. Every table's flush runs on its own
// goroutine, since each has its own private buffer pool and disk file
// and so none of them contend with each other.
func (c *Catalog) FlushAll() error {
	var g errgroup.Group
	for _, t := range c.tables {
		t := t
		g.Go(func() error {
			t.Flush()
			return nil
		})
	}
	return g.Wait()
}

// GetTables returns every table this Catalog currently has open.
func (c *Catalog) GetTables() map[string]Index { return c.tables }

// GetBasePath returns the directory this Catalog is rooted at.
func (c *Catalog) GetBasePath() string { return c.basepath }
