package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	fileKV, err := Open(Options{Backend: BackendFile, Dir: filepath.Join(dir, "data")})
	require.NoError(t, err)
	sqliteKV, err := Open(Options{Backend: BackendSQLite, SQLitePath: filepath.Join(dir, "db", "plancal.db")})
	require.NoError(t, err)

	t.Cleanup(func() {
		fileKV.Close()
		sqliteKV.Close()
	})
	return map[string]KV{"file": fileKV, "sqlite": sqliteKV}
}

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := kv.Get(ctx, "events")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, kv.Set(ctx, "events", []byte(`[]`)))
			require.NoError(t, kv.Set(ctx, "events", []byte(`[{"title":"x"}]`)))

			got, found, err := kv.Get(ctx, "events")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[{"title":"x"}]`, string(got))

			require.NoError(t, kv.Delete(ctx, "events"))
			_, found, err = kv.Get(ctx, "events")
			require.NoError(t, err)
			assert.False(t, found)

			// Deleting a missing key is not an error.
			require.NoError(t, kv.Delete(ctx, "events"))
		})
	}
}

func TestKVRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../etc/passwd", "a/b", ".hidden"} {
				assert.ErrorIs(t, kv.Set(ctx, key, []byte("x")), ErrInvalidKey, key)
				_, _, err := kv.Get(ctx, key)
				assert.ErrorIs(t, err, ErrInvalidKey, key)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "redis"})
	assert.Error(t, err)
}

func TestFileKVPermissions(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), "events", []byte("[]")))

	info, err := os.Stat(kv.Path("events"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(kv.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestBackupKeepsNewest(t *testing.T) {
	ctx := context.Background()
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "backup")

	path, err := Backup(ctx, kv, "events", dir, 2, time.Now())
	require.NoError(t, err)
	assert.Empty(t, path, "nothing to back up before first save")

	require.NoError(t, kv.Set(ctx, "events", []byte(`[]`)))
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := Backup(ctx, kv, "events", dir, 2, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	names, err := ListBackups(dir, "events")
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "events-20250701T020000Z.json", filepath.Base(names[0]))
	assert.Equal(t, "events-20250701T030000Z.json", filepath.Base(names[1]))

	data, err := os.ReadFile(names[1])
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
