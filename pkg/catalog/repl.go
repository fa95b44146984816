package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"bptreedb/pkg/entry"
	"bptreedb/pkg/repl"
)

// REPL builds the non-transactional command set for a Catalog: create,
// find, insert, update, delete, select, pretty.
func REPL(c *Catalog) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandleCreateTable(c, payload)
	}, "Create a table. usage: create <btree|hash> table <table>")

	r.AddCommand("find", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandleFind(c, payload)
	}, "Find an element. usage: find <key> from <table>")

	r.AddCommand("insert", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", HandleInsert(c, payload)
	}, "Insert an element. usage: insert <key> <value> into <table>")

	r.AddCommand("update", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", HandleUpdate(c, payload)
	}, "Update an element. usage: update <table> <key> <value>")

	r.AddCommand("delete", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", HandleDelete(c, payload)
	}, "Delete an element. usage: delete <key> from <table>")

	r.AddCommand("select", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandleSelect(c, payload)
	}, "Select elements from a table. usage: select from <table>")

	r.AddCommand("pretty", func(payload string, _ *repl.REPLConfig) (string, error) {
		return HandlePretty(c, payload)
	}, "Print out the internal data representation. usage: pretty <optional pagenumber> from <table>")

	return r
}

// HandleCreateTable parses and executes a "create" command.
func HandleCreateTable(c *Catalog, payload string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 4 || fields[2] != "table" || (fields[1] != "btree" && fields[1] != "hash") {
		return "", fmt.Errorf("usage: create <btree|hash> table <table>")
	}
	var indexType IndexType
	switch fields[1] {
	case "btree":
		indexType = BTreeIndexType
	case "hash":
		indexType = HashIndexType
	}
	tableName := fields[3]
	if _, err := c.CreateTable(tableName, indexType); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s table %s created.\n", fields[1], tableName), nil
}

// HandleFind parses and executes a "find" command.
func HandleFind(c *Catalog, payload string) (string, error) {
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
	e, err := table.Find(key)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	return fmt.Sprintf("found entry: (%d, %d)\n", e.Key, e.Value), nil
}

// HandleInsert parses and executes an "insert" command.
func HandleInsert(c *Catalog, payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 5 || fields[3] != "into" {
		return fmt.Errorf("usage: insert <key> <value> into <table>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	table, err := c.GetTable(fields[4])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if err := table.Insert(key, value); err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	return nil
}

// HandleUpdate parses and executes an "update" command.
func HandleUpdate(c *Catalog, payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 4 {
		return fmt.Errorf("usage: update <table> <key> <value>")
	}
	key, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	value, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	table, err := c.GetTable(fields[1])
	if err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	if err := table.Update(key, value); err != nil {
		return fmt.Errorf("update error: %v", err)
	}
	return nil
}

// HandleDelete parses and executes a "delete" command.
func HandleDelete(c *Catalog, payload string) error {
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
	if err := table.Delete(key); err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return nil
}

// HandleSelect parses and executes a "select" command.
func HandleSelect(c *Catalog, payload string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 3 || fields[1] != "from" {
		return "", fmt.Errorf("usage: select from <table>")
	}
	table, err := c.GetTable(fields[2])
	if err != nil {
		return "", fmt.Errorf("select error: %v", err)
	}
	results, err := table.Select()
	if err != nil {
		return "", err
	}
	w := new(strings.Builder)
	printResults(results, w)
	return w.String(), nil
}

// HandlePretty parses and executes a "pretty" command.
func HandlePretty(c *Catalog, payload string) (string, error) {
	fields := strings.Fields(payload)
	w := new(strings.Builder)
	switch {
	case len(fields) == 3 && fields[1] == "from":
		table, err := c.GetTable(fields[2])
		if err != nil {
			return "", fmt.Errorf("pretty error: %v", err)
		}
		table.Print(w)
	case len(fields) == 4 && fields[2] == "from":
		pn, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("pretty error: %v", err)
		}
		table, err := c.GetTable(fields[3])
		if err != nil {
			return "", fmt.Errorf("pretty error: %v", err)
		}
		table.PrintPN(pn, w)
	default:
		return "", fmt.Errorf("usage: pretty <optional pagenumber> from <table>")
	}
	return w.String(), nil
}

func printResults(entries []entry.Entry, w io.Writer) {
	for _, e := range entries {
		io.WriteString(w, fmt.Sprintf("(%v, %v)\n", e.Key, e.Value))
	}
}
