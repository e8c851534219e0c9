// Package localstore keeps small pieces of client state (the chat transcript) on disk
// between sessions.
package localstore

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// ErrNotFound is returned by Get for keys that were never written or were deleted.
var ErrNotFound = errors.New("localstore: key not found")

const (
	BackendFile   = "file"
	BackendBadger = "badger"

	stateFileName = "state.json"
	badgerDirName = "state.badger"
)

// Store is a string-keyed byte store.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Config selects a backend and where it lives.
type Config struct {
	Backend string
	Dir     string
	Logger  *log.Logger
}

// Open returns the configured backend, defaulting to the JSON file.
func Open(cfg Config) (Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("localstore: directory is required")
	}
	switch cfg.Backend {
	case "", BackendFile:
		return OpenFile(filepath.Join(cfg.Dir, stateFileName))
	case BackendBadger:
		return OpenBadger(BadgerConfig{Path: filepath.Join(cfg.Dir, badgerDirName), SyncWrites: true, Logger: cfg.Logger})
	default:
		return nil, fmt.Errorf("localstore: unknown backend %q", cfg.Backend)
	}
}

// Memory is an in-process Store used by tests and as a fallback when no directory is usable.
type Memory struct {
	file *File
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{file: &File{values: map[string]string{}}}
}

// Get returns the value for key, or ErrNotFound.
func (m *Memory) Get(key string) ([]byte, error) { return m.file.Get(key) }

// Put stores value under key.
func (m *Memory) Put(key string, value []byte) error { return m.file.Put(key, value) }

// Delete removes key.
func (m *Memory) Delete(key string) error { return m.file.Delete(key) }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
