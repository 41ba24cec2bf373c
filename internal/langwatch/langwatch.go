// Package langwatch watches the language source file during development and
// runs a regeneration command whenever it changes.
package langwatch

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultFile is the language source watched when none is configured.
const DefaultFile = "src/lang.ts"

const defaultDebounce = 100 * time.Millisecond

// Runner executes the regeneration command.
type Runner func(ctx context.Context, dir string, command []string) ([]byte, error)

// Watcher runs Command (in Dir) after File changes.
type Watcher struct {
	File     string
	Dir      string
	Command  []string
	Debounce time.Duration
	Logger   *slog.Logger
	// Run executes Command. Defaults to os/exec.
	Run Runner
	// OnChange, when set, is called after each debounced change has been handled.
	OnChange func(err error)
}

// Watch blocks until ctx is cancelled or the watcher fails.
// The parent directory is watched so that editors which save by renaming
// over the file are still seen.
func (w *Watcher) Watch(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	file, err := filepath.Abs(w.File)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(file)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(file), err)
	}
	logger.Debug("watching language file", "file", file)

	var (
		mu            sync.Mutex
		debounceTimer *time.Timer
		wg            sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		if debounceTimer != nil && debounceTimer.Stop() {
			wg.Done()
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != file {
				continue
			}

			mu.Lock()
			if debounceTimer != nil && debounceTimer.Stop() {
				wg.Done()
			}
			wg.Add(1)
			debounceTimer = time.AfterFunc(debounce, func() {
				defer wg.Done()
				err := w.regenerate(ctx, logger)
				if w.OnChange != nil {
					w.OnChange(err)
				}
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("language watcher error", "error", err)
		}
	}
}

func (w *Watcher) regenerate(ctx context.Context, logger *slog.Logger) error {
	logger.Info("language file changed", "file", filepath.Base(w.File))
	if len(w.Command) == 0 {
		return nil
	}

	run := w.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, w.Dir, w.Command)
	if err != nil {
		logger.Warn("language regeneration failed", "command", w.Command, "error", err, "output", string(out))
		return err
	}
	logger.Debug("language regenerated", "command", w.Command)
	return nil
}

func execRunner(ctx context.Context, dir string, command []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command[0], command[1:]...) //nolint:gosec // G204: command comes from project config
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
