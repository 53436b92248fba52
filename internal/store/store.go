// Package store wires the configured persistence backend.
package store

import (
	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/store/sqlite"
)

// Open opens the SQLite-backed store at path.
func Open(path string) (interfaces.Store, error) {
	return sqlite.Open(path)
}
