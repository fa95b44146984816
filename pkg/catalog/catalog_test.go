package catalog_test

import (
	"path/filepath"
	"testing"

	"bptreedb/pkg/catalog"

	"bptreedb/test/utils"
)

func newTestCatalog(t *testing.T, poolSize int) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Open(filepath.Join(t.TempDir(), "db"), poolSize)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCreateTableRejectsDuplicateAndBadNames(t *testing.T) {
	c := newTestCatalog(t, 16)
	if _, err := c.CreateTable("people", catalog.BTreeIndexType); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := c.CreateTable("people", catalog.BTreeIndexType); err == nil {
		t.Fatalf("expected error creating duplicate table")
	}
	if _, err := c.CreateTable("bad name!", catalog.BTreeIndexType); err == nil {
		t.Fatalf("expected error creating table with non-alphanumeric name")
	}
}

func TestBTreeAndHashTablesThroughCatalog(t *testing.T) {
	c := newTestCatalog(t, 16)

	btreeTable, err := c.CreateTable("people", catalog.BTreeIndexType)
	if err != nil {
		t.Fatalf("CreateTable btree: %v", err)
	}
	hashTable, err := c.CreateTable("lookups", catalog.HashIndexType)
	if err != nil {
		t.Fatalf("CreateTable hash: %v", err)
	}

	for i := int64(0); i < 50; i++ {
		utils.InsertEntry(t, btreeTable, i, i*utils.Salt)
		utils.InsertEntry(t, hashTable, i, i*utils.Salt)
	}
	for i := int64(0); i < 50; i++ {
		utils.CheckFindEntry(t, btreeTable, i, i*utils.Salt)
		utils.CheckFindEntry(t, hashTable, i, i*utils.Salt)
	}
}

func TestGetTableReopensFromDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	c1, err := catalog.Open(dir, 16)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	table, err := c1.CreateTable("orders", catalog.HashIndexType)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	utils.InsertEntry(t, table, 7, 700)
	table.Flush()
	if err := c1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c2, err := catalog.Open(dir, 16)
	if err != nil {
		t.Fatalf("reopen catalog.Open: %v", err)
	}
	defer c2.Close()
	reopened, err := c2.GetTable("orders")
	if err != nil {
		t.Fatalf("GetTable: %v", err)
	}
	utils.CheckFindEntry(t, reopened, 7, 700)
}

func TestGetTableMissing(t *testing.T) {
	c := newTestCatalog(t, 16)
	if _, err := c.GetTable("ghost"); err == nil {
		t.Fatalf("expected error getting missing table")
	}
}
