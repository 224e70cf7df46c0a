// Package store persists string values under string keys, the way a
// browser's local storage does, on disk or in SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// KV is a small key-value store holding serialized values.
type KV interface {
	// Get returns the value for key. found is false when the key was never set.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var ErrInvalidKey = errors.New("store: invalid key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidKey reports whether key is usable by every backend. Keys map to
// file names in FileKV, so path separators are rejected.
func ValidKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Dir        string
	SQLitePath string
}

// Open builds the configured backend.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileKV(opts.Dir)
	case BackendSQLite:
		return NewSQLiteKV(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
	}
}
