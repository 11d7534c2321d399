package storage

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// OpenInMemory opens a badger database that never touches the disk.
// Everything it holds is lost when the process stops.
func OpenInMemory() (*badger.DB, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("in-memory database opening failed: %w", err)
	}
	return db, nil
}
