package senderpool

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/filewatchrest/pkg/diagnostics"
	"github.com/0xmhha/filewatchrest/pkg/queue"
	"github.com/0xmhha/filewatchrest/pkg/sender"
	"github.com/0xmhha/filewatchrest/pkg/watcher"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (r *recordingSender) Send(ctx context.Context, endpoint string, factory sender.RequestFactory) (*sender.Result, error) {
	req, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	defer req.Body.Close()
	body, _ := io.ReadAll(req.Body)

	r.mu.Lock()
	r.calls = append(r.calls, string(body))
	r.mu.Unlock()

	if r.fail {
		return nil, assert.AnError
	}
	return &sender.Result{StatusCode: http.StatusOK, Attempts: 1}, nil
}

func TestPoolProcessesEventAndArchives(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0600))

	q := queue.New(4)
	store := diagnostics.NewStore()
	fakeSender := &recordingSender{}

	p := New(Config{
		APIEndpoint:        "https://example.com/ingest",
		PostFileContents:   true,
		MaxContentBytes:    1024,
		MoveProcessedFiles: true,
		ProcessedFolder:    "processed",
	}, fakeSender, store, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx, 1)

	require.NoError(t, q.Put(ctx, watcher.FileEvent{Path: filePath, Op: watcher.OpCreate}))

	require.Eventually(t, func() bool {
		return len(store.Events(0)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events := store.Events(0)
	assert.True(t, events[0].PostedSuccess)

	_, err := os.Stat(filepath.Join(dir, "processed", "a.txt"))
	assert.NoError(t, err)
}

func TestPoolRecordsFailure(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0600))

	q := queue.New(4)
	store := diagnostics.NewStore()
	fakeSender := &recordingSender{fail: true}

	p := New(Config{APIEndpoint: "https://example.com/ingest"}, fakeSender, store, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx, 1)
	require.NoError(t, q.Put(ctx, watcher.FileEvent{Path: filePath, Op: watcher.OpCreate}))

	require.Eventually(t, func() bool {
		return len(store.Events(0)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events := store.Events(0)
	assert.False(t, events[0].PostedSuccess)
	assert.NotEmpty(t, events[0].Error)
}

func TestResizeScalesWorkerCount(t *testing.T) {
	q := queue.New(4)
	store := diagnostics.NewStore()
	p := New(Config{APIEndpoint: "https://example.com"}, &recordingSender{}, store, q, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx, 2)
	assert.Len(t, p.workerCancel, 2)

	p.Resize(ctx, 4)
	assert.Len(t, p.workerCancel, 4)

	p.Resize(ctx, 1)
	assert.Len(t, p.workerCancel, 1)
}
