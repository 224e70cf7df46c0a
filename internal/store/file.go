package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "plancal/internal/log"
)

const fileSuffix = ".json"

// FileKV keeps one file per key under a data directory.
type FileKV struct {
	dir string
	mu  sync.Mutex

	// written records the content of our own last write per key so Watch
	// can tell it apart from an edit by another process.
	written map[string]ownWrite
}

// ownWrite is the fingerprint of the last value this FileKV wrote.
// deleted marks a key we removed.
type ownWrite struct {
	sum     [sha256.Size]byte
	deleted bool
}

// NewFileKV creates dir (0700) if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if dir == "" {
		return nil, errors.New("store: data dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &FileKV{dir: dir, written: make(map[string]ownWrite)}, nil
}

func (f *FileKV) Dir() string {
	return f.dir
}

// Path returns the file backing key.
func (f *FileKV) Path(key string) string {
	return filepath.Join(f.dir, key+fileSuffix)
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := ValidKey(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: read %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes atomically via a temp file in the same directory + rename.
func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	if err := ValidKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".plancal-"+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, f.Path(key)); err != nil {
		return fmt.Errorf("store: rename %s: %w", key, err)
	}
	f.written[key] = ownWrite{sum: sha256.Sum256(value)}
	return nil
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	f.written[key] = ownWrite{deleted: true}
	return nil
}

func (f *FileKV) Close() error {
	return nil
}

// isOwnContent reports whether key's file on disk still holds exactly
// what this FileKV last wrote (or is still absent after our Delete).
func (f *FileKV) isOwnContent(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	own, ok := f.written[key]
	if !ok {
		return false
	}
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return own.deleted
	}
	if err != nil || own.deleted {
		return false
	}
	return sha256.Sum256(data) == own.sum
}

// Watch calls onChange whenever key's file is created, rewritten or removed
// by someone other than this FileKV. Events are debounced, then dropped if
// the file still holds exactly our last write. It blocks until ctx is done.
func (f *FileKV) Watch(ctx context.Context, key string, onChange func()) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("store: watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: atomic renames replace the file inode.
	if err := w.Add(f.dir); err != nil {
		return fmt.Errorf("store: watch %s: %w", f.dir, err)
	}
	target := filepath.Clean(f.Path(key))
	appLog.Info("store watch started", "path", target)

	const debounce = 200 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || strings.HasSuffix(ev.Name, ".tmp") {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("store watcher error", err, "path", target)

		case <-fire:
			fire = nil
			if f.isOwnContent(key) {
				continue
			}
			appLog.Info("store changed externally", "key", key)
			onChange()
		}
	}
}
