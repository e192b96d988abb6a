// Package senderpool implements the Sender Pool: a resizable set of workers
// that dequeue FileEvents, build a Notification, invoke the HTTP Resilience
// Sender, archive the file on success, and record the outcome to the
// Diagnostics Store.
package senderpool

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/0xmhha/filewatchrest/pkg/archive"
	"github.com/0xmhha/filewatchrest/pkg/diagnostics"
	"github.com/0xmhha/filewatchrest/pkg/logger"
	"github.com/0xmhha/filewatchrest/pkg/notification"
	"github.com/0xmhha/filewatchrest/pkg/queue"
	"github.com/0xmhha/filewatchrest/pkg/sender"
	"github.com/0xmhha/filewatchrest/pkg/watcher"
)

// Sender is the subset of *sender.Sender the pool depends on.
type Sender interface {
	Send(ctx context.Context, endpoint string, factory sender.RequestFactory) (*sender.Result, error)
}

// Config configures a Pool. UpdateConfig replaces it, and every event reads
// the value current when the event is handled.
type Config struct {
	APIEndpoint             string
	BearerToken             string
	PostFileContents        bool
	MoveProcessedFiles      bool
	ProcessedFolder         string
	MaxContentBytes         int64
	StreamingThresholdBytes int64
}

// Pool is the Sender Pool.
type Pool struct {
	mu     sync.RWMutex
	cfg    Config
	sender Sender
	store  *diagnostics.Store
	logger logger.Logger
	q      *queue.Queue

	hostname string

	workerCancel map[int]context.CancelFunc
	nextWorkerID int
	wg           sync.WaitGroup
}

// New creates a Pool reading from q.
func New(cfg Config, s Sender, store *diagnostics.Store, q *queue.Queue, log logger.Logger) *Pool {
	if log == nil {
		log = logger.Default()
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Pool{
		cfg:          cfg,
		sender:       s,
		store:        store,
		logger:       log,
		q:            q,
		hostname:     hostname,
		workerCancel: make(map[int]context.CancelFunc),
	}
}

// Start launches n workers.
func (p *Pool) Start(ctx context.Context, n int) {
	p.Resize(ctx, n)
}

// Resize adjusts the number of running workers to n. Workers above the new
// limit have their per-worker context cancelled, which also aborts any
// send they have in flight.
func (p *Pool) Resize(ctx context.Context, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := len(p.workerCancel)
	if n > current {
		for i := 0; i < n-current; i++ {
			id := p.nextWorkerID
			p.nextWorkerID++
			workerCtx, cancel := context.WithCancel(ctx)
			p.workerCancel[id] = cancel
			p.wg.Add(1)
			go p.runWorker(workerCtx, id)
		}
		p.logger.Info("sender pool scaled up", "workers", n)
		return
	}

	if n < current {
		toStop := current - n
		for id, cancel := range p.workerCancel {
			if toStop == 0 {
				break
			}
			cancel()
			delete(p.workerCancel, id)
			toStop--
		}
		p.logger.Info("sender pool scaled down", "workers", n)
	}
}

// UpdateConfig swaps the Config used to build future notifications.
func (p *Pool) UpdateConfig(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Size reports the current number of running workers.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workerCancel)
}

func (p *Pool) snapshotConfig() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debug("sender pool worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("sender pool worker stopped", "worker_id", id)
			return
		case ev, ok := <-p.q.Get():
			if !ok {
				return
			}
			p.handleEvent(ctx, ev)
		}
	}
}

func (p *Pool) handleEvent(ctx context.Context, ev watcher.FileEvent) {
	cfg := p.snapshotConfig()

	rec := diagnostics.EventRecord{Path: ev.Path, Timestamp: time.Now()}

	n, err := notification.Build(ev.Path, notification.BuildOptions{
		PostFileContents:        cfg.PostFileContents,
		MaxContentBytes:         cfg.MaxContentBytes,
		StreamingThresholdBytes: cfg.StreamingThresholdBytes,
	}, p.hostname)
	if err != nil {
		rec.Error = err.Error()
		p.store.RecordEvent(rec)
		p.logger.Warn("failed to build notification", "path", ev.Path, "error", err)
		return
	}

	factory := p.requestFactory(cfg, ev.Path, n)

	result, sendErr := p.sender.Send(ctx, cfg.APIEndpoint, factory)
	if sendErr != nil {
		rec.Error = sendErr.Error()
		p.store.RecordEvent(rec)
		p.logger.Warn("send failed", "path", ev.Path, "error", sendErr)
		return
	}

	rec.PostedSuccess = true
	rec.StatusCode = result.StatusCode

	if cfg.MoveProcessedFiles {
		if _, moveErr := archive.Move(ev.Path, cfg.ProcessedFolder); moveErr != nil {
			p.logger.Warn("archive move failed", "path", ev.Path, "error", moveErr)
		}
	}

	p.store.RecordEvent(rec)
}

// requestFactory builds a sender.RequestFactory that re-materializes a
// fresh *http.Request on every retry attempt, since a request body can
// only be consumed once.
func (p *Pool) requestFactory(cfg Config, path string, n *notification.Notification) sender.RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		if notification.Streaming(n.FileSize, cfg.StreamingThresholdBytes) && n.Content == nil && cfg.PostFileContents {
			body, err := notification.NewStreamingBody(path, n)
			if err != nil {
				return nil, err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIEndpoint, body)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", body.ContentType)
			return req, nil
		}

		body, err := notification.Encode(n)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIEndpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
}
