// Package bundle drives esbuild with the composed plugin list.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/leapstack-labs/leapbuild/internal/config"
	"github.com/leapstack-labs/leapbuild/internal/plugins"
)

// ErrBuildFailed wraps the bundler's error messages.
var ErrBuildFailed = errors.New("build failed")

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"esnext": api.ESNext,
}

// assetLoaders emit static imports as hashed files next to the bundle.
var assetLoaders = map[string]api.Loader{
	".png":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".webp":  api.LoaderFile,
	".svg":   api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
	".mp3":   api.LoaderFile,
	".wasm":  api.LoaderFile,
}

// Options returns the esbuild options for env with every plugin applied in
// order.
func Options(env plugins.Env, ps []plugins.Plugin) (api.BuildOptions, error) {
	cfg := env.Config
	if err := env.Aliases.Validate(); err != nil {
		return api.BuildOptions{}, err
	}

	target, ok := targets[strings.ToLower(cfg.Target)]
	if !ok {
		return api.BuildOptions{}, fmt.Errorf("unknown target %q", cfg.Target)
	}

	mode := env.Build.Mode.Mode.String()
	dev := env.Build.Mode.IsDev()

	opts := api.BuildOptions{
		EntryPoints:   cfg.EntryPoints,
		AbsWorkingDir: env.Build.Root,
		Outdir:        cfg.OutDir,
		Bundle:        true,
		Write:         true,
		Splitting:     true,
		Format:        api.FormatESModule,
		Platform:      api.PlatformBrowser,
		Target:        target,
		EntryNames:    "[name]",
		ChunkNames:    "[name]-[hash]",
		AssetNames:    "[name]-[hash]",
		PublicPath:    "",
		Loader:        copyLoaders(),
		Define: map[string]string{
			"process.env.NODE_ENV": fmt.Sprintf("%q", mode),
			"import.meta.env.MODE": fmt.Sprintf("%q", mode),
			"import.meta.env.DEV":  fmt.Sprintf("%t", dev),
			"import.meta.env.PROD": fmt.Sprintf("%t", !dev),
		},
		LogLevel: api.LogLevelSilent,
	}
	if cfg.Sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}
	if cfg.Minify && !dev {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}

	for _, p := range ps {
		if p.Configure != nil {
			p.Configure(&opts)
		}
	}
	for _, p := range ps {
		if ep, ok := p.ESBuild(); ok {
			opts.Plugins = append(opts.Plugins, ep)
		}
	}
	return opts, nil
}

func copyLoaders() map[string]api.Loader {
	out := make(map[string]api.Loader, len(assetLoaders))
	for k, v := range assetLoaders {
		out[k] = v
	}
	return out
}

// Result summarizes one build.
type Result struct {
	OutDir   string        `json:"out_dir"`
	Outputs  []string      `json:"outputs"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Builder runs builds for one project.
type Builder struct {
	Config *config.Config
	Logger *slog.Logger
}

// New creates a Builder.
func New(cfg *config.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{Config: cfg, Logger: logger}
}

// Build runs one build. The output directory is emptied first when
// configured. Cancelling ctx cancels the build.
func (b *Builder) Build(ctx context.Context, opts api.BuildOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.Config.EmptyOutDir {
		if err := EmptyOutDir(opts.Outdir, b.Config.ProjectRoot, b.Logger); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return nil, formatErrors(cerr.Errors)
	}
	defer bctx.Dispose()

	stop := context.AfterFunc(ctx, bctx.Cancel)
	defer stop()

	result := bctx.Rebuild()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, formatErrors(result.Errors)
	}

	res := &Result{
		OutDir:   opts.Outdir,
		Outputs:  outputPaths(result, opts.Outdir, opts.AbsWorkingDir),
		Warnings: formatMessages(result.Warnings),
		Duration: time.Since(start),
	}
	for _, w := range res.Warnings {
		b.Logger.Warn("bundler warning", "message", w)
	}
	b.Logger.Info("build complete", "outputs", len(res.Outputs), "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// Watch builds once and rebuilds on every source change until ctx is
// cancelled. Plugins observe each rebuild through their end hooks.
func (b *Builder) Watch(ctx context.Context, opts api.BuildOptions) error {
	if b.Config.EmptyOutDir {
		if err := EmptyOutDir(opts.Outdir, b.Config.ProjectRoot, b.Logger); err != nil {
			return err
		}
	}

	bctx, cerr := api.Context(opts)
	if cerr != nil {
		return formatErrors(cerr.Errors)
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start watch mode: %w", err)
	}
	b.Logger.Info("watching for changes", "root", opts.AbsWorkingDir)

	<-ctx.Done()
	b.Logger.Debug("stopping watch mode")
	return nil
}

// EmptyOutDir removes the contents of outDir. Directories outside root are
// left alone and a warning is logged.
func EmptyOutDir(outDir, root string, logger *slog.Logger) error {
	if outDir == "" {
		return nil
	}
	if root != "" {
		rel, err := filepath.Rel(root, outDir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			logger.Warn("output directory is not inside the project root, not emptying", "out_dir", outDir)
			return nil
		}
	}

	entries, err := os.ReadDir(outDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(outDir, e.Name())); err != nil {
			return fmt.Errorf("failed to empty output directory: %w", err)
		}
	}
	logger.Debug("emptied output directory", "out_dir", outDir, "entries", len(entries))
	return nil
}

// outputPaths lists the emitted files relative to outDir. When the result
// carries no in-memory files the metafile is used instead.
func outputPaths(result api.BuildResult, outDir, workDir string) []string {
	var abs []string
	for _, f := range result.OutputFiles {
		abs = append(abs, f.Path)
	}
	if len(abs) == 0 && result.Metafile != "" {
		if meta, err := plugins.ParseMetafile(result.Metafile); err == nil {
			for p := range meta.Outputs {
				if !filepath.IsAbs(p) {
					p = filepath.Join(workDir, p)
				}
				abs = append(abs, p)
			}
		}
	}

	paths := make([]string, 0, len(abs))
	for _, p := range abs {
		if rel, err := filepath.Rel(outDir, p); err == nil {
			p = filepath.ToSlash(rel)
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func formatMessages(msgs []api.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			out = append(out, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		if m.PluginName != "" {
			out = append(out, fmt.Sprintf("[%s] %s", m.PluginName, m.Text))
			continue
		}
		out = append(out, m.Text)
	}
	return out
}

func formatErrors(msgs []api.Message) error {
	return fmt.Errorf("%w:\n%s", ErrBuildFailed, strings.Join(formatMessages(msgs), "\n"))
}
