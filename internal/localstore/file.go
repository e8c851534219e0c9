package localstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File keeps every key in a single indented JSON object so the state stays readable
// and hand-editable.
type File struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// OpenFile loads path, treating a missing or empty file as an empty store.
func OpenFile(path string) (*File, error) {
	f := &File{path: path}
	values, err := loadValues(path)
	if err != nil {
		return nil, fmt.Errorf("localstore: load %s: %w", path, err)
	}
	f.values = values
	return f, nil
}

// Path returns the backing file.
func (f *File) Path() string {
	return f.path
}

// Get returns the value for key, or ErrNotFound.
func (f *File) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(value), nil
}

// Put stores value under key and rewrites the file. A failed write leaves the old value.
func (f *File) Put(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	previous, existed := f.values[key]
	f.values[key] = string(value)
	if err := f.flush(); err != nil {
		if existed {
			f.values[key] = previous
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

// Delete removes key and rewrites the file.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	previous, existed := f.values[key]
	if !existed {
		return nil
	}
	delete(f.values, key)
	if err := f.flush(); err != nil {
		f.values[key] = previous
		return err
	}
	return nil
}

// Close is a no-op; every write is already on disk.
func (f *File) Close() error {
	return nil
}

func (f *File) flush() error {
	if f.path == "" {
		return nil
	}
	return writeValues(f.path, f.values)
}

func writeValues(path string, values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadValues(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]string{}, nil
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}
