// Package orchestrator composes the Watcher Supervisor, Debounce Coalescer,
// Work Queue, Sender Pool, and Diagnostics Endpoint into the running
// FileWatchRest service, owning their combined lifecycle and reacting to
// configuration reloads.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/0xmhha/filewatchrest/pkg/circuitbreaker"
	"github.com/0xmhha/filewatchrest/pkg/clock"
	"github.com/0xmhha/filewatchrest/pkg/config"
	"github.com/0xmhha/filewatchrest/pkg/debounce"
	"github.com/0xmhha/filewatchrest/pkg/diagnostics"
	"github.com/0xmhha/filewatchrest/pkg/diagnosticshttp"
	"github.com/0xmhha/filewatchrest/pkg/logger"
	"github.com/0xmhha/filewatchrest/pkg/queue"
	"github.com/0xmhha/filewatchrest/pkg/sender"
	"github.com/0xmhha/filewatchrest/pkg/senderpool"
	"github.com/0xmhha/filewatchrest/pkg/watcher"
)

// Orchestrator owns the full pipeline's lifecycle.
type Orchestrator struct {
	logger logger.Logger
	clock  clock.Clock

	mu      sync.Mutex
	running bool
	closed  bool
	cancel  context.CancelFunc

	cfg *config.Config

	supervisor watcher.Supervisor
	coalescer  *debounce.Coalescer
	queue      *queue.Queue
	circuits   *circuitbreaker.Registry
	httpSender *sender.Sender
	pool       *senderpool.Pool
	store      *diagnostics.Store
	diagSrv    *diagnosticshttp.Server
}

// New builds an Orchestrator for the given initial configuration.
func New(cfg *config.Config, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Default()
	}

	o := &Orchestrator{
		logger: log,
		clock:  clock.New(),
		cfg:    cfg,
		store:  diagnostics.NewStore(),
	}

	o.circuits = circuitbreaker.NewRegistry(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		OpenDuration:     cfg.CircuitBreakerOpenDuration(),
		Clock:            o.clock,
	})

	var circuitRegistry *circuitbreaker.Registry
	if cfg.EnableCircuitBreaker {
		circuitRegistry = o.circuits
	}

	o.httpSender = sender.New(sender.Config{
		Retries:     cfg.Retries,
		RetryDelay:  cfg.RetryDelayDuration(),
		BearerToken: cfg.BearerToken,
		Clock:       o.clock,
	}, circuitRegistry, log)

	o.queue = queue.New(cfg.ChannelCapacity)

	o.supervisor = watcher.NewSupervisor(watcher.Config{
		Folders:               cfg.Folders,
		AllowedExtensions:     cfg.AllowedExtensions,
		IncludeSubdirectories: cfg.IncludeSubdirectories,
		ProcessedFolder:       cfg.ProcessedFolder,
		MaxRestartAttempts:    cfg.WatcherMaxRestartAttempts,
		RestartDelay:          cfg.WatcherRestartDelayDuration(),
		Clock:                 o.clock,
	}, log)

	o.coalescer = debounce.New(debounce.Config{
		Interval:         cfg.DebounceDuration(),
		WaitForFileReady: cfg.WaitForFileReadyDuration(),
		Clock:            o.clock,
	}, log)

	o.pool = senderpool.New(poolConfig(cfg), o.httpSender, o.store, o.queue, log)

	addr, err := diagnosticsAddr(cfg.DiagnosticsURLPrefix)
	if err != nil {
		log.Warn("invalid diagnostics_url_prefix, diagnostics endpoint disabled", "error", err)
	} else {
		o.diagSrv = diagnosticshttp.NewServer(addr, o.store, log)
	}

	return o
}

func poolConfig(cfg *config.Config) senderpool.Config {
	return senderpool.Config{
		APIEndpoint:             cfg.APIEndpoint,
		BearerToken:             cfg.BearerToken,
		PostFileContents:        cfg.PostFileContents,
		MoveProcessedFiles:      cfg.MoveProcessedFiles,
		ProcessedFolder:         cfg.ProcessedFolder,
		MaxContentBytes:         cfg.MaxContentBytes,
		StreamingThresholdBytes: cfg.StreamingThresholdBytes,
	}
}

func diagnosticsAddr(prefix string) (string, error) {
	u, err := url.Parse(prefix)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("diagnostics_url_prefix has no host: %s", prefix)
	}
	return u.Host, nil
}

// Start begins watching, debouncing, queueing, sending, and serving
// diagnostics. It returns once every goroutine has been launched.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator closed")
	}
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true
	o.mu.Unlock()

	if err := o.supervisor.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start watcher supervisor: %w", err)
	}

	go o.coalescer.Run(runCtx, o.supervisor.Events())
	go o.pumpQueue(runCtx)
	go o.pollWatcherHandles(runCtx)

	o.pool.Start(runCtx, o.cfg.MaxParallelSends)

	if o.diagSrv != nil {
		go func() {
			if err := o.diagSrv.ListenAndServe(); err != nil {
				o.logger.Error("diagnostics endpoint stopped", "error", err)
			}
		}()
	}

	o.logger.Info("orchestrator started", "folders", o.cfg.Folders, "api_endpoint", o.cfg.APIEndpoint)
	return nil
}

// pumpQueue moves coalesced events into the bounded Work Queue.
func (o *Orchestrator) pumpQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-o.coalescer.Out():
			if !ok {
				return
			}
			if err := o.queue.Put(ctx, ev); err != nil {
				return
			}
		}
	}
}

// pollWatcherHandles periodically refreshes the Diagnostics Store's
// watcher and circuit-breaker snapshots.
func (o *Orchestrator) pollWatcherHandles(ctx context.Context) {
	ticker := o.clock.NewTimer(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			o.store.SetWatchers(o.supervisor.Handles())
			o.store.SetCircuits(o.circuits.Snapshots())
			ticker.Reset(pollInterval)
		}
	}
}

const pollInterval = 2 * time.Second

// Reconcile applies a new Configuration: it updates the Sender Pool's
// per-send settings and resizes its worker count. The Watcher Supervisor
// has no incremental reconcile operation, so a folder-set change only
// takes effect on the next full restart of the Orchestrator.
func (o *Orchestrator) Reconcile(ctx context.Context, cfg *config.Config) {
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()

	o.pool.UpdateConfig(poolConfig(cfg))
	o.pool.Resize(ctx, cfg.MaxParallelSends)

	o.logger.Info("configuration reloaded", "max_parallel_sends", cfg.MaxParallelSends)
}

// Stop shuts down every owned component.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return nil
	}

	if o.cancel != nil {
		o.cancel()
	}
	_ = o.supervisor.Close()
	if o.diagSrv != nil {
		_ = o.diagSrv.Close()
	}

	o.running = false
	o.closed = true
	o.logger.Info("orchestrator stopped")
	return nil
}
