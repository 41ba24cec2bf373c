// Package publish republishes a whitelisted subset of the public directory
// into the build output once bundling has finished.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// RuleKind selects how a Rule is applied.
type RuleKind int

// Rule kinds.
const (
	NamedFile RuleKind = iota
	RecursiveDirectory
)

func (k RuleKind) String() string {
	if k == RecursiveDirectory {
		return "dir"
	}
	return "file"
}

// Rule copies Source (relative to the public dir) to Dest (relative to the
// output dir).
type Rule struct {
	Kind   RuleKind
	Source string
	Dest   string
}

// Dir returns a recursive directory rule.
func Dir(src, dest string) Rule {
	return Rule{Kind: RecursiveDirectory, Source: src, Dest: dest}
}

// File returns a named file rule.
func File(src, dest string) Rule {
	return Rule{Kind: NamedFile, Source: src, Dest: dest}
}

// ErrKindMismatch is returned when a rule's source is not the kind of
// entry the rule names.
var ErrKindMismatch = errors.New("publish source does not match rule kind")

// Published file lists.
var (
	ManifestFiles  = []string{"site.webmanifest", "site_apple.webmanifest", "browserconfig.xml"}
	WorkerPayloads = []string{"rlottie-wasm.wasm", "encoderWorker.min.wasm", "decoderWorker.min.wasm"}
)

// FaviconSource is promoted to FaviconDest so /favicon.ico resolves.
const (
	FaviconSource = "assets/img/favicon.ico"
	FaviconDest   = "favicon.ico"
)

// DefaultRules returns the publication rules in execution order.
func DefaultRules() []Rule {
	rules := []Rule{Dir("assets", "assets")}
	for _, name := range ManifestFiles {
		rules = append(rules, File(name, name))
	}
	for _, name := range WorkerPayloads {
		rules = append(rules, File(name, name))
	}
	return append(rules, File(FaviconSource, FaviconDest))
}

// Report summarises one Publish call.
type Report struct {
	Files   int
	Dirs    int
	Skipped []string
}

// Publisher copies Rules from PublicDir into an output directory.
type Publisher struct {
	PublicDir string
	Rules     []Rule
	// Concurrency bounds parallel file copies within a rule.
	// Zero means GOMAXPROCS.
	Concurrency int
	Logger      *slog.Logger
}

// New creates a Publisher for publicDir with the default rules.
func New(publicDir string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		PublicDir: publicDir,
		Rules:     DefaultRules(),
		Logger:    logger,
	}
}

// Publish applies every rule in order. Missing sources are skipped; any
// other I/O error aborts and is returned.
func (p *Publisher) Publish(ctx context.Context, outDir string) (*Report, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	report := &Report{}
	for _, rule := range p.Rules {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		src := filepath.Join(p.PublicDir, rule.Source)
		dst := filepath.Join(outDir, rule.Dest)

		info, err := os.Stat(src)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("publish source missing, skipping", "source", rule.Source)
			report.Skipped = append(report.Skipped, rule.Source)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to stat %s: %w", src, err)
		}

		switch rule.Kind {
		case RecursiveDirectory:
			if !info.IsDir() {
				return report, fmt.Errorf("%w: %s is not a directory", ErrKindMismatch, src)
			}
			files, dirs, err := p.copyTree(ctx, src, dst)
			report.Files += files
			report.Dirs += dirs
			if err != nil {
				return report, err
			}
		case NamedFile:
			if !info.Mode().IsRegular() {
				return report, fmt.Errorf("%w: %s is not a regular file", ErrKindMismatch, src)
			}
			if err := CopyFile(src, dst); err != nil {
				return report, err
			}
			report.Files++
		default:
			return report, fmt.Errorf("unknown rule kind %d for %s", rule.Kind, rule.Source)
		}
	}

	logger.Info("published public assets",
		"out_dir", outDir,
		"files", report.Files,
		"skipped", len(report.Skipped))
	return report, nil
}

// copyTree walks src depth-first, creating directories as it goes and
// copying files concurrently. Symlinks are followed; a link back into a
// directory already being copied is an error. Entries that are neither
// files nor directories are skipped. It returns once every copy has
// finished.
func (p *Publisher) copyTree(ctx context.Context, src, dst string) (int, int, error) {
	limit := p.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	t := &treeCopy{ctx: egctx, eg: eg, logger: p.Logger}
	walkErr := t.walk(src, dst, nil)

	waitErr := eg.Wait()
	files := int(t.files.Load())
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return files, t.dirs, walkErr
	}
	if waitErr != nil {
		return files, t.dirs, waitErr
	}
	return files, t.dirs, walkErr
}

type treeCopy struct {
	ctx    context.Context
	eg     *errgroup.Group
	logger *slog.Logger
	files  atomic.Int64
	dirs   int
}

// walk copies the tree at src into dst. ancestors holds the resolved
// directories above src, used to detect symlink cycles.
func (t *treeCopy) walk(src, dst string, ancestors []string) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", src, err)
	}
	for _, a := range ancestors {
		if a == resolved {
			return fmt.Errorf("symlink cycle at %s", src)
		}
	}
	ancestors = append(ancestors, resolved)

	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if t.ctx.Err() != nil {
			return t.ctx.Err()
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		mode := d.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}
			if info.IsDir() {
				return t.walk(path, target, ancestors)
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			t.dirs++
		case mode.IsRegular():
			t.eg.Go(func() error {
				if err := CopyFile(path, target); err != nil {
					return err
				}
				t.files.Add(1)
				return nil
			})
		default:
			if t.logger != nil {
				t.logger.Debug("skipping irregular file", "path", path)
			}
		}
		return nil
	})
}

// CopyFile copies src to dst, creating dst's parent directory and
// truncating any existing dst.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	srcFile, err := os.Open(src) //nolint:gosec // G304: src comes from the publication rules
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = srcFile.Close() }()

	dstFile, err := os.Create(dst) //nolint:gosec // G304: dst is inside the output directory
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
