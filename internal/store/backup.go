package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	appLog "plancal/internal/log"
)

const backupStamp = "20060102T150405Z"

// Backup copies the current value of key into dir as
// <key>-<UTC timestamp>.json and prunes all but the newest keep copies.
// It returns the written path, or "" when the key has no value yet.
func Backup(ctx context.Context, kv KV, key, dir string, keep int, now time.Time) (string, error) {
	value, found, err := kv.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("backup: create dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s%s", key, now.UTC().Format(backupStamp), fileSuffix)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, value, 0o600); err != nil {
		return "", fmt.Errorf("backup: write: %w", err)
	}

	if keep > 0 {
		if err := pruneBackups(dir, key, keep); err != nil {
			appLog.Error("backup prune failed", err, "dir", dir)
		}
	}
	return path, nil
}

// ListBackups returns backup files for key, oldest first.
func ListBackups(dir, key string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	prefix := key + "-"
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(n, prefix), fileSuffix)
		if _, err := time.Parse(backupStamp, stamp); err != nil {
			continue
		}
		names = append(names, filepath.Join(dir, n))
	}
	// Fixed-width UTC stamps sort chronologically.
	sort.Strings(names)
	return names, nil
}

func pruneBackups(dir, key string, keep int) error {
	names, err := ListBackups(dir, key)
	if err != nil {
		return err
	}
	for len(names) > keep {
		if err := os.Remove(names[0]); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}
