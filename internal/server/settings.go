package server

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/sadmanca/ck-board/internal/board"
	"github.com/sadmanca/ck-board/internal/store"
)

// BoardSettings is the on-disk shape of a board settings file. Every
// field is optional; absent fields leave the stored board untouched.
type BoardSettings struct {
	Name         *string           `yaml:"name,omitempty"`
	AllowMoveAny *bool             `yaml:"allow_move_any,omitempty"`
	Background   *board.Background `yaml:"background,omitempty"`
}

// SettingsWatcher applies a yaml settings file to a board whenever the
// file changes. Writing the stored board triggers the usual change
// broadcast, so every connected session picks up the new policy.
type SettingsWatcher struct {
	path    string
	boardID string
	st      store.Store
	watcher *fsnotify.Watcher
	logger  *log.Logger

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSettingsWatcher creates a watcher for the given settings file.
// The file does not need to exist yet; it is applied when it appears.
func NewSettingsWatcher(path, boardID string, st store.Store, logger *log.Logger) (*SettingsWatcher, error) {
	if logger == nil {
		logger = log.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &SettingsWatcher{
		path:    path,
		boardID: boardID,
		st:      st,
		watcher: watcher,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start applies the file once if present and begins watching for
// changes. Watching the parent directory rather than the file itself
// survives editors that replace the file on save.
func (sw *SettingsWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.running {
		return fmt.Errorf("settings watcher already running")
	}

	dir := filepath.Dir(sw.path)
	if err := sw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch settings directory %s: %w", dir, err)
	}

	if _, err := os.Stat(sw.path); err == nil {
		if err := sw.apply(ctx); err != nil {
			sw.logger.Printf("Warning: failed to apply settings file: %v", err)
		}
	}

	sw.running = true
	sw.wg.Add(1)
	go sw.processEvents()

	return nil
}

// Stop stops watching and blocks until the event loop has exited.
func (sw *SettingsWatcher) Stop() error {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.done)

	if err := sw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	sw.wg.Wait()
	return nil
}

func (sw *SettingsWatcher) processEvents() {
	defer sw.wg.Done()

	for {
		select {
		case <-sw.done:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}

			if !sw.matches(event) {
				continue
			}

			if err := sw.apply(context.Background()); err != nil {
				sw.logger.Printf("Warning: failed to apply settings file: %v", err)
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Printf("Settings watcher error: %v", err)
		}
	}
}

// matches reports whether the event is a write or create of the
// settings file itself.
func (sw *SettingsWatcher) matches(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	want, err := filepath.Abs(sw.path)
	if err != nil {
		return false
	}
	return abs == want
}

// apply parses the settings file and writes the resulting patch to the
// board. Re-applying identical settings is harmless: board writes are
// merges, and the resulting broadcast reconciles idempotently.
func (sw *SettingsWatcher) apply(ctx context.Context) error {
	data, err := os.ReadFile(sw.path)
	if err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", sw.path, err)
	}

	var settings BoardSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", sw.path, err)
	}

	patch := &board.BoardPatch{
		Name:         settings.Name,
		AllowMoveAny: settings.AllowMoveAny,
		Background:   settings.Background,
	}
	if patch.IsEmpty() {
		return nil
	}

	if err := sw.st.UpdateBoard(ctx, sw.boardID, patch); err != nil {
		return fmt.Errorf("failed to update board settings: %w", err)
	}

	sw.logger.Printf("Applied board settings from %s", sw.path)
	return nil
}
