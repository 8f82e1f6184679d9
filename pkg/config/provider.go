package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceWindow coalesces the event bursts editors emit on save.
const debounceWindow = 100 * time.Millisecond

// FileProvider serves fleet snapshots from a file on disk and reloads them
// when the file changes. Long-running surfaces such as the console subscribe
// so a fleet edit takes effect without a restart.
type FileProvider struct {
	path   string
	logger zerolog.Logger

	mu    sync.RWMutex
	fleet *Fleet
	subs  []chan *Fleet

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

// NewFileProvider loads the fleet file and starts watching it. The initial
// load must succeed; later reload failures keep the previous snapshot.
func NewFileProvider(path string, logger zerolog.Logger) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve fleet path: %w", err)
	}

	provider := &FileProvider{
		path:   abs,
		logger: logger.With().Str("component", "config").Logger(),
	}

	fleet, err := Load(abs)
	if err != nil {
		return nil, err
	}
	provider.fleet = fleet

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fleet watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and
	// a watch on the old inode would go stale.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch fleet directory: %w", err)
	}
	provider.watcher = watcher

	ctx, cancel := context.WithCancel(context.Background())
	provider.cancel = cancel
	go provider.watchLoop(ctx)

	return provider, nil
}

// Current returns the most recent good fleet snapshot.
func (p *FileProvider) Current() *Fleet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fleet
}

// Subscribe registers for reload notifications. The channel is buffered and
// primed with the current snapshot; slow consumers miss intermediate
// snapshots rather than blocking the watcher.
func (p *FileProvider) Subscribe() <-chan *Fleet {
	ch := make(chan *Fleet, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	if p.fleet != nil {
		ch <- p.fleet
	}
	p.mu.Unlock()
	return ch
}

// Close stops the watcher. Subscriber channels are not closed; consumers
// should select on their own shutdown signal.
func (p *FileProvider) Close() error {
	p.cancel()
	return p.watcher.Close()
}

func (p *FileProvider) watchLoop(ctx context.Context) {
	var pending *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounceWindow, p.reload)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn().Err(err).Msg("fleet watcher error")
		}
	}
}

func (p *FileProvider) reload() {
	fleet, err := Load(p.path)
	if err != nil {
		p.logger.Warn().Err(err).Str("path", p.path).Msg("fleet reload failed, keeping previous snapshot")
		return
	}

	p.mu.Lock()
	p.fleet = fleet
	subs := make([]chan *Fleet, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	p.logger.Info().Str("path", p.path).Int("drones", len(fleet.Drones)).Msg("fleet reloaded")

	for _, ch := range subs {
		select {
		case ch <- fleet:
		default:
		}
	}
}
