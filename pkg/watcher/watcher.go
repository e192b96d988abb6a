package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/filewatchrest/pkg/clock"
	"github.com/0xmhha/filewatchrest/pkg/logger"
)

// Supervisor runs one restartable fsnotify watch per configured folder and
// forwards filtered FileEvents on a single shared channel.
type Supervisor interface {
	// Start begins watching every configured folder. Folders that don't
	// exist at start time are skipped with a warning, not a fatal error;
	// Start only fails if none of the configured folders are watchable.
	Start(ctx context.Context) error

	// Stop gracefully shuts down every per-folder watcher.
	Stop() error

	// Events returns the channel of filtered file events. Closed once
	// every per-folder watcher has stopped.
	Events() <-chan FileEvent

	// Handles returns a snapshot of every per-folder watcher's state.
	Handles() []WatcherHandle

	// Close releases all resources. Safe to call multiple times.
	Close() error
}

type folderWatcher struct {
	folder string
	fsw    *fsnotify.Watcher

	mu           sync.RWMutex
	state        State
	restartCount int
	lastErr      error
	startedAt    time.Time
}

func (fw *folderWatcher) snapshot() WatcherHandle {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	h := WatcherHandle{
		Folder:       fw.folder,
		State:        fw.state,
		RestartCount: fw.restartCount,
		StartedAt:    fw.startedAt,
	}
	if fw.lastErr != nil {
		h.LastError = fw.lastErr.Error()
	}
	return h
}

func (fw *folderWatcher) setState(s State) {
	fw.mu.Lock()
	fw.state = s
	fw.mu.Unlock()
}

func (fw *folderWatcher) setErr(err error) {
	fw.mu.Lock()
	fw.lastErr = err
	fw.mu.Unlock()
}

// supervisor implements Supervisor.
type supervisor struct {
	cfg    Config
	logger logger.Logger
	clock  clock.Clock

	events chan FileEvent

	mu       sync.RWMutex
	running  bool
	closed   bool
	watchers map[string]*folderWatcher

	wg sync.WaitGroup
}

// NewSupervisor creates a new Watcher Supervisor.
func NewSupervisor(cfg Config, log logger.Logger) Supervisor {
	if cfg.MaxRestartAttempts <= 0 {
		cfg.MaxRestartAttempts = 5
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if log == nil {
		log = logger.Default()
	}

	return &supervisor{
		cfg:      cfg,
		logger:   log,
		clock:    cfg.Clock,
		events:   make(chan FileEvent, 256),
		watchers: make(map[string]*folderWatcher),
	}
}

// Start implements Supervisor.Start.
func (s *supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSupervisorClosed
	}
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.running = true
	s.mu.Unlock()

	started := 0
	for _, folder := range s.cfg.Folders {
		if _, err := os.Stat(folder); err != nil {
			s.logger.Warn("watch folder does not exist, skipping", "folder", folder)
			continue
		}

		fw := &folderWatcher{folder: folder, state: StateStarting, startedAt: time.Now()}
		s.mu.Lock()
		s.watchers[folder] = fw
		s.mu.Unlock()

		s.wg.Add(1)
		go s.runFolder(ctx, fw)
		started++
	}

	if started == 0 {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return ErrNoFolders
	}

	s.logger.Info("watcher supervisor started", "folder_count", started)

	go func() {
		s.wg.Wait()
		close(s.events)
	}()

	return nil
}

// runFolder owns one folder's watch-and-restart lifecycle for the life of
// the context.
func (s *supervisor) runFolder(ctx context.Context, fw *folderWatcher) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			fw.setState(StateFailed)
			return
		default:
		}

		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			fw.setErr(fmt.Errorf("create watcher: %w", err))
			if !s.backoffOrFail(ctx, fw) {
				return
			}
			continue
		}

		fw.mu.Lock()
		fw.fsw = fsw
		fw.mu.Unlock()

		if err := s.addPathRecursive(fsw, fw.folder); err != nil {
			fsw.Close()
			fw.setErr(err)
			if !s.backoffOrFail(ctx, fw) {
				return
			}
			continue
		}

		fw.setState(StateRunning)
		s.logger.Info("folder watcher running", "folder", fw.folder)

		err = s.processEvents(ctx, fw, fsw)
		fsw.Close()

		s.mu.RLock()
		stopped := !s.running
		s.mu.RUnlock()

		if err == nil || stopped {
			// Clean shutdown (ctx cancelled or Stop called).
			fw.setState(StateFailed)
			return
		}

		fw.setErr(err)
		s.logger.Warn("folder watcher failed, considering restart", "folder", fw.folder, "error", err)
		if !s.backoffOrFail(ctx, fw) {
			return
		}
	}
}

// backoffOrFail applies the restart policy; returns false if the watcher
// should stop permanently (exhausted attempts, or context cancelled).
func (s *supervisor) backoffOrFail(ctx context.Context, fw *folderWatcher) bool {
	fw.mu.Lock()
	fw.restartCount++
	exhausted := fw.restartCount > s.cfg.MaxRestartAttempts
	fw.mu.Unlock()

	if exhausted {
		fw.setState(StateFailed)
		fw.setErr(ErrWatcherFailed)
		s.logger.Error("folder watcher permanently failed", "folder", fw.folder, "attempts", fw.restartCount-1)
		return false
	}

	fw.setState(StateRestarting)

	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(s.cfg.RestartDelay):
		return true
	}
}

// processEvents reads fsnotify events for one folder until the watch fails
// or the context is cancelled. Returns nil on clean shutdown, non-nil if
// fsnotify closed its channels unexpectedly (triggers a restart).
func (s *supervisor) processEvents(ctx context.Context, fw *folderWatcher, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed")
			}
			s.handleEvent(fw, fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed")
			}
			return err
		}
	}
}

// handleEvent filters and forwards one fsnotify event, and adds newly
// created subdirectories to the watch when IncludeSubdirectories is set.
func (s *supervisor) handleEvent(fw *folderWatcher, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if s.isProcessedPath(event.Name) {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create && s.cfg.IncludeSubdirectories {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fsw.Add(event.Name); err != nil {
				s.logger.Warn("failed to add new subdirectory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !s.extensionAllowed(event.Name) {
		return
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = OpCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = OpWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		op = OpRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		op = OpRename
	case event.Op&fsnotify.Chmod == fsnotify.Chmod:
		op = OpChmod
	default:
		return
	}

	fe := FileEvent{
		Path:      event.Name,
		Folder:    fw.folder,
		Op:        op,
		Timestamp: s.clock.Now(),
	}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return
	}

	select {
	case s.events <- fe:
	default:
		s.logger.Warn("event channel full, dropping event", "path", fe.Path)
	}
}

func (s *supervisor) isProcessedPath(path string) bool {
	if s.cfg.ProcessedFolder == "" {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == s.cfg.ProcessedFolder {
			return true
		}
	}
	return false
}

func (s *supervisor) extensionAllowed(path string) bool {
	if len(s.cfg.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range s.cfg.AllowedExtensions {
		allowed = strings.ToLower(allowed)
		if !strings.HasPrefix(allowed, ".") {
			allowed = "." + allowed
		}
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *supervisor) addPathRecursive(fsw *fsnotify.Watcher, path string) error {
	if err := fsw.Add(path); err != nil {
		return fmt.Errorf("failed to add path %s: %w", path, err)
	}

	if !s.cfg.IncludeSubdirectories {
		return nil
	}

	return filepath.Walk(path, func(subPath string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() || subPath == path {
			return nil
		}
		if s.isProcessedPath(subPath) {
			return filepath.SkipDir
		}
		if addErr := fsw.Add(subPath); addErr != nil {
			s.logger.Warn("failed to add subdirectory", "path", subPath, "error", addErr)
		}
		return nil
	})
}

// Stop implements Supervisor.Stop.
func (s *supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSupervisorClosed
	}
	if !s.running {
		return ErrNotStarted
	}

	for _, fw := range s.watchers {
		fw.mu.RLock()
		fsw := fw.fsw
		fw.mu.RUnlock()
		if fsw != nil {
			fsw.Close()
		}
	}

	s.running = false
	s.logger.Info("watcher supervisor stopped")
	return nil
}

// Events implements Supervisor.Events.
func (s *supervisor) Events() <-chan FileEvent {
	return s.events
}

// Handles implements Supervisor.Handles.
func (s *supervisor) Handles() []WatcherHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]WatcherHandle, 0, len(s.watchers))
	for _, fw := range s.watchers {
		handles = append(handles, fw.snapshot())
	}
	return handles
}

// Close implements Supervisor.Close.
func (s *supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	running := s.running
	s.mu.Unlock()

	if running {
		_ = s.Stop()
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return nil
}
