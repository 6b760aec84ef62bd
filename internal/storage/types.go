package storage

import (
	"errors"
	"time"

	"cronboard/internal/board"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (json snapshots + jsonl activity)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API consumed by the board service.
//
// Tasks are read and replaced as a whole collection; the board serializes its
// read-modify-write cycles, so the store only needs to keep each individual
// call consistent.
type Store interface {
	board.Store
	Close() error
}
