package storage

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// Open returns the badger database backing every store.
// An empty path keeps everything in memory: the engine does not promise durability,
// a path only makes the state inspectable between runs.
func Open(path string, log *slog.Logger) (*badger.DB, error) {
	options := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		options = options.WithInMemory(true)
	}
	db, err := badger.Open(options)
	if err != nil {
		return nil, fmt.Errorf("badger open failed: %w", err)
	}
	log.Info("Badger opened", "path", path, "in_memory", path == "")
	return db, nil
}

// OpenInMemory is used by tests and by the default configuration.
func OpenInMemory() (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
}
