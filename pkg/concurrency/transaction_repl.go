package concurrency

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bptreedb/pkg/catalog"
	"bptreedb/pkg/repl"

	"github.com/google/uuid"
)

// TransactionREPL wraps catalog.REPL's command set, taking a lock on
// the target resource through tm before delegating to the catalog
// handler, so concurrent clients of the same REPL can't interleave
// conflicting reads and writes to the same key.
func TransactionREPL(c *catalog.Catalog, tm *TransactionManager) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleCreateTable(c, tm, payload, replConfig.GetAddr())
	}, "Create a table. usage: create <btree|hash> table <table>")

	r.AddCommand("find", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleFind(c, tm, payload, replConfig.GetAddr())
	}, "Find an element. usage: find <key> from <table>")

	r.AddCommand("insert", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleInsert(c, tm, payload, replConfig.GetAddr())
	}, "Insert an element. usage: insert <key> <value> into <table>")

	r.AddCommand("update", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleUpdate(c, tm, payload, replConfig.GetAddr())
	}, "Update an element. usage: update <table> <key> <value>")

	r.AddCommand("delete", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleDelete(c, tm, payload, replConfig.GetAddr())
	}, "Delete an element. usage: delete <key> from <table>")

	r.AddCommand("select", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleSelect(c, tm, payload, replConfig.GetAddr())
	}, "Select elements from a table. usage: select from <table>")

	r.AddCommand("transaction", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleTransaction(c, tm, payload, replConfig.GetAddr())
	}, "Handle transactions. usage: transaction <begin|commit>")

	r.AddCommand("lock", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleLock(c, tm, payload, replConfig.GetAddr())
	}, "Grabs a write lock on a resource. usage: lock <table> <key>")

	r.AddCommand("pretty", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandlePretty(c, payload)
	}, "Print out the internal data representation. usage: pretty <optional pagenumber> from <table>")

	return r
}

// HandleTransaction begins or commits the calling client's transaction.
func HandleTransaction(c *catalog.Catalog, tm *TransactionManager, payload string, clientId uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 2 || (fields[1] != "begin" && fields[1] != "commit") {
		return errors.New("usage: transaction <begin|commit>")
	}
	switch fields[1] {
	case "begin":
		return tm.Begin(clientId)
	case "commit":
		return tm.Commit(clientId)
	default:
		return errors.New("internal error in create table handler")
	}
}

// HandleCreateTable delegates straight to the catalog: table creation
// doesn't touch any resource a transaction could hold a lock on.
func HandleCreateTable(c *catalog.Catalog, tm *TransactionManager, payload string, clientId uuid.UUID) (string, error) {
	return catalog.HandleCreateTable(c, payload)
}

// HandleFind takes a read lock on the resource before delegating.
func HandleFind(c *catalog.Catalog, tm *TransactionManager, payload string, clientId uuid.UUID) (output string, err error) {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "from" {
		return "", fmt.Errorf("usage: find <key> from <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	table, err := c.GetTable(fields[3])
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	if err = tm.Lock(clientId, table, key, R_LOCK); err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	output, err = catalog.HandleFind(c, payload)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	return output, nil
}

// HandleInsert takes a write lock on the resource before delegating.
func HandleInsert(c *catalog.Catalog, tm *TransactionManager, payload string, clientId uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 5 || fields[3] != "into" {
		return fmt.Errorf("usage: insert <key> <value> into <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	table, err := c.GetTable(fields[4])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if err = tm.Lock(clientId, table, key, W_LOCK); err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if err := catalog.HandleInsert(c, payload); err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	return nil
}

// HandleUpdate takes a write lock on the resource before delegating.
func HandleUpdate(c *catalog.Catalog, tm *TransactionManager, payload string, clientId uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 4 {
		return fmt.Errorf("usage: update <table> <key> <value>")
	}
	key, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	table, err := c.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	if err = tm.Lock(clientId, table, key, W_LOCK); err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	if err := catalog.HandleUpdate(c, payload); err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	return nil
}

// HandleDelete takes a write lock on the resource before delegating.
func HandleDelete(c *catalog.Catalog, tm *TransactionManager, payload string, clientId uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "from" {
		return fmt.Errorf("usage: delete <key> from <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	table, err := c.GetTable(fields[3])
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	if err = tm.Lock(clientId, table, key, W_LOCK); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	if err := catalog.HandleDelete(c, payload); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return nil
}

// HandleSelect is unsafe: it takes no locks and may observe an
// inconsistent view of the table if run concurrently with writers.
func HandleSelect(c *catalog.Catalog, tm *TransactionManager, payload string, clientId uuid.UUID) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 3 || fields[1] != "from" {
		return "", fmt.Errorf("usage: select from <table>")
	}
	output, err := catalog.HandleSelect(c, payload)
	if err != nil {
		return "", fmt.Errorf("select error: %v", err)
	}
	return output, nil
}

// HandleLock grabs a write lock on a resource without performing any
// operation on it, letting a client hold it across several commands.
func HandleLock(c *catalog.Catalog, tm *TransactionManager, payload string, clientId uuid.UUID) error {
	fields := strings.Fields(payload)
	if len(fields) != 3 {
		return fmt.Errorf("usage: lock <table> <key>")
	}
	table, err := c.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("lock error: %v", err)
	}
	key, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("lock error: %v", err)
	}
	if err = tm.Lock(clientId, table, key, W_LOCK); err != nil {
		return fmt.Errorf("lock error: %v", err)
	}
	return nil
}

// HandlePretty delegates straight to the catalog.
func HandlePretty(c *catalog.Catalog, payload string) (string, error) {
	return catalog.HandlePretty(c, payload)
}
