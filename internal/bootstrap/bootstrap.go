// Package bootstrap prepares the local development environment before a
// development build is configured.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/publish"
)

// Default file names, relative to the project root.
const (
	DefaultLocalConfig = ".env.local"
	DefaultTemplate    = ".env.local.example"
)

// ErrTemplateMissing is returned when the local configuration must be
// created but its template does not exist.
var ErrTemplateMissing = errors.New("local configuration template not found")

// Watcher is a background process started for development evaluations.
type Watcher interface {
	Watch(ctx context.Context) error
}

// Options configures Run.
type Options struct {
	LocalConfig string
	Template    string
	// Watcher is started fire-and-forget. Nil disables it.
	Watcher Watcher
	Logger  *slog.Logger
}

// Run bootstraps a development evaluation: it makes sure the local
// configuration exists and starts the watcher. Production and test-run
// evaluations are left alone. The watcher lives until ctx is cancelled.
func Run(ctx context.Context, bc buildctx.Context, opts Options) error {
	if !bc.Mode.IsDev() || bc.Mode.TestRun {
		return nil
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	localConfig := opts.LocalConfig
	if localConfig == "" {
		localConfig = bc.Path(DefaultLocalConfig)
	}
	template := opts.Template
	if template == "" {
		template = bc.Path(DefaultTemplate)
	}

	created, err := EnsureLocalConfig(localConfig, template)
	if err != nil {
		return err
	}
	if created {
		logger.Info("created local configuration from template", "path", localConfig, "template", template)
	}

	if opts.Watcher != nil {
		StartWatcher(ctx, opts.Watcher, logger)
	}
	return nil
}

// EnsureLocalConfig copies template to path when path does not exist.
// It reports whether the file was created.
func EnsureLocalConfig(path, template string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}

	if _, err := os.Stat(template); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("%w: %s (needed to create %s)", ErrTemplateMissing, template, path)
		}
		return false, fmt.Errorf("failed to check %s: %w", template, err)
	}

	if err := publish.CopyFile(template, path); err != nil {
		return false, fmt.Errorf("failed to create local configuration: %w", err)
	}
	return true, nil
}

// StartWatcher runs w in its own goroutine. Its failure is logged and
// otherwise ignored.
func StartWatcher(ctx context.Context, w Watcher, logger *slog.Logger) {
	go func() {
		if err := w.Watch(ctx); err != nil {
			logger.Warn("watcher stopped", "error", err)
		}
	}()
}
