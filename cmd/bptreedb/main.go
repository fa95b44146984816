package main

import (
	"flag"
	"fmt"
	"strings"

	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"bptreedb/pkg/config"
	"bptreedb/pkg/repl"

	"bptreedb/pkg/catalog"
	"bptreedb/pkg/concurrency"
	"bptreedb/pkg/recovery"

	"github.com/google/uuid"
)

// Default port 8335 (BEES).
const DEFAULT_PORT int = 8335

const LOG_FILE_NAME = "data/bptreedb.log"

// [STORAGE]
// Listens for SIGINT or SIGTERM and closes the catalog.
func setupCloseHandler(c *catalog.Catalog) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("closehandler invoked")
		c.Close()
		os.Exit(0)
	}()
}

// [CONCURRENCY]
// Start listening for connections at port `port`.
func startServer(repl *repl.REPL, tm *concurrency.TransactionManager, prompt string, port int) {
	// Handle a connection by running the repl on it.
	handleConn := func(c net.Conn) {
		clientId := uuid.New()
		defer c.Close()
		if tm != nil {
			defer tm.Commit(clientId)
		}
		repl.Run(clientId, prompt, c, c)
	}
	// Start listening for new connections.
	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%v server started listening on localhost:%v\n", config.DBName,
		listener.Addr().(*net.TCPAddr).Port)
	// Handle each connection.
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Print(err)
			continue
		}
		go handleConn(conn)
	}
}

// Start the database.
func main() {
	// Set up flags.
	var promptFlag = flag.Bool("c", true, "use prompt?")
	var projectFlag = flag.String("project", "", "choose mode: [storage,concurrency,recovery] (required)")

	// [STORAGE]
	var dbFlag = flag.String("db", "data/", "DB folder")

	// [CONCURRENCY]
	var portFlag = flag.Int("p", DEFAULT_PORT, "port number")

	flag.Parse()

	// [STORAGE]
	// Open the catalog.
	c, err := catalog.Open(*dbFlag, config.PoolSize)
	if err != nil {
		panic(err)
	}

	// [RECOVERY]
	// Set up the log file.
	err = catalog.CreateLogFile(LOG_FILE_NAME)
	if err != nil {
		panic(err)
	}

	// [STORAGE]
	// Setup close conditions.
	defer c.Close()
	setupCloseHandler(c)

	// Set up REPL resources.
	prompt := config.GetPrompt(*promptFlag)
	repls := make([]*repl.REPL, 0)

	// [CONCURRENCY]
	var tm *concurrency.TransactionManager
	server := false

	// [RECOVERY]
	var rm *recovery.RecoveryManager

	// Get the right REPLs.
	switch *projectFlag {

	// [STORAGE]
	case "storage":
		server = false
		repls = append(repls, catalog.REPL(c))

	// [CONCURRENCY]
	case "concurrency":
		server = true
		lm := concurrency.NewResourceLockManager()
		tm = concurrency.NewTransactionManager(lm)
		repls = append(repls, concurrency.TransactionREPL(c, tm))

	// [RECOVERY]
	case "recovery":
		server = true
		lm := concurrency.NewResourceLockManager()
		tm = concurrency.NewTransactionManager(lm)
		rm, err = recovery.NewRecoveryManager(c, tm, LOG_FILE_NAME)
		if err != nil {
			fmt.Println(err)
			return
		}
		recovery.Prime(strings.TrimSuffix(c.GetBasePath(), "/"))
		repls = append(repls, recovery.RecoveryREPL(c, tm, rm))
		// Recover in this case!
		rm.Recover()

	default:
		fmt.Println("must specify -project [storage,concurrency,recovery]")
		return
	}

	// Combine the REPLs.
	r, err := repl.CombineRepls(repls)
	if err != nil {
		fmt.Println(err)
		return
	}

	// Start server if server (concurrency or recovery), else run REPL here.
	if server {
		// [CONCURRENCY]
		startServer(r, tm, prompt, *portFlag)
	} else {
		r.Run(uuid.New(), prompt, nil, nil)
	}
}
