// Global database config.
package config

// Name of the database.
const DBName = "bptreedb"

// Prompt printed by REPL.
const Prompt = DBName + "> "

// PoolSize is the default number of frames in the buffer pool.
const PoolSize = 32

// ReplacerK is the default "K" used by the LRU-K replacer: the number of
// recent accesses a frame must accumulate before its backward k-distance
// becomes finite rather than +Inf.
const ReplacerK = 2

// Name of log file.
const LogFileName = "bptreedb.log"

// DefaultLeafMaxSize and DefaultInternalMaxSize bound the fan-out of a
// freshly opened B+-tree that wasn't given explicit sizes.
const (
	DefaultLeafMaxSize     = 128
	DefaultInternalMaxSize = 128
)

// Return prompt if requested, else "".
func GetPrompt(flag bool) string {
	if flag {
		return Prompt
	}
	return ""
}
