package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settle = 100 * time.Millisecond

// recorder collects the series handed to the handler.
type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recorder) handle(_ context.Context, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, dir)
	return r.err
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func start(t *testing.T, root string, rec *recorder) {
	t.Helper()
	inbox, err := New(root, rec.handle, Options{Settle: settle})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// give the watcher time to register the root
	time.Sleep(50 * time.Millisecond)
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
}

func TestInbox_HandlesNewSeriesOnce(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	start(t, root, rec)

	series := filepath.Join(root, "exam1_series3")
	writeFiles(t, series, "IMG0001.dcm", "IMG0002.dcm")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{series}, rec.snapshot())

	// late files do not trigger a second conversion
	writeFiles(t, series, "IMG0003.dcm")
	time.Sleep(4 * settle)
	assert.Len(t, rec.snapshot(), 1)
}

func TestInbox_WaitsForSettle(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	start(t, root, rec)

	series := filepath.Join(root, "busy")
	deadline := time.Now().Add(3 * settle)
	for i := 0; time.Now().Before(deadline); i++ {
		writeFiles(t, series, "IMG"+string(rune('a'+i%26))+".dcm")
		assert.Empty(t, rec.snapshot(), "series handled while still being written")
		time.Sleep(settle / 5)
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestInbox_QueuesExistingSeries(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "a"), "1.dcm")
	writeFiles(t, filepath.Join(root, "b", "nested"), "1.dcm")
	writeFiles(t, filepath.Join(root, ".hidden"), "1.dcm")
	writeFiles(t, root, "loose.dcm")

	rec := &recorder{}
	start(t, root, rec)

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 5*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []string{filepath.Join(root, "a"), filepath.Join(root, "b")}, rec.snapshot())
}

func TestInbox_HandlerErrorKeepsWatching(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{err: errors.New("boom")}
	start(t, root, rec)

	writeFiles(t, filepath.Join(root, "first"), "1.dcm")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)

	writeFiles(t, filepath.Join(root, "second"), "1.dcm")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 5*time.Second, 20*time.Millisecond)
}

func TestInbox_RecreatedSeriesIsHandledAgain(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	start(t, root, rec)

	series := filepath.Join(root, "redo")
	writeFiles(t, series, "1.dcm")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.RemoveAll(series))
	time.Sleep(2 * settle)
	writeFiles(t, series, "1.dcm")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 5*time.Second, 20*time.Millisecond)
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(t.TempDir(), nil, Options{})
	assert.Error(t, err)
}

func TestInbox_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox")
	start(t, root, &recorder{})
	assert.DirExists(t, root)
}
