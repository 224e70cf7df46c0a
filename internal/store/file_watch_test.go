package store

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// startWatch runs Watch in the background and returns the callback
// counter plus a stop func that waits for Watch to return.
func startWatch(t *testing.T, kv *FileKV) (*atomic.Int32, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- kv.Watch(ctx, "events", func() { calls.Add(1) })
	}()
	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	return &calls, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("watch did not stop after cancel")
		}
	}
}

func TestFileKVWatchSeesExternalWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	calls, stop := startWatch(t, kv)
	defer stop()

	require.NoError(t, kv.Set(context.Background(), "events", []byte(`[]`)))
	time.Sleep(400 * time.Millisecond)
	assert.Zero(t, calls.Load(), "own writes are ignored")

	require.NoError(t, os.WriteFile(kv.Path("events"), []byte(`[{"title":"tab 2"}]`), 0o600))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestFileKVWatchSeesExternalWriteRightAfterOwnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	calls, stop := startWatch(t, kv)
	defer stop()

	require.NoError(t, kv.Set(context.Background(), "events", []byte(`[]`)))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(kv.Path("events"), []byte(`[{"title":"other process"}]`), 0o600))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestFileKVWatchIgnoresOwnDelete(t *testing.T) {
	defer goleak.VerifyNone(t)

	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), "events", []byte(`[]`)))
	calls, stop := startWatch(t, kv)
	defer stop()

	require.NoError(t, kv.Delete(context.Background(), "events"))
	time.Sleep(500 * time.Millisecond)
	assert.Zero(t, calls.Load())

	require.NoError(t, os.WriteFile(kv.Path("events"), []byte(`[]`), 0o600))
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond,
		"recreation by another process is reported")
}
