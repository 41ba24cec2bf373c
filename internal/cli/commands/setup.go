package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/bootstrap"
	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/bundle"
	"github.com/leapstack-labs/leapbuild/internal/cli/config"
	"github.com/leapstack-labs/leapbuild/internal/cli/output"
	sharedcfg "github.com/leapstack-labs/leapbuild/internal/config"
	"github.com/leapstack-labs/leapbuild/internal/langwatch"
	"github.com/leapstack-labs/leapbuild/internal/plugins"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration
// and the logger stored by the root command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, falling back to the defaults
// for the working directory when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return sharedcfg.Default(cwd)
}

// Pipeline is one evaluated build configuration.
type Pipeline struct {
	Build   buildctx.Context
	Env     plugins.Env
	Plugins []plugins.Plugin
	Options api.BuildOptions
}

// PipelineOptions selects how NewPipeline evaluates the build.
type PipelineOptions struct {
	Command          buildctx.Command
	ForceDevelopment bool
	// DryRun evaluates without bootstrapping the local environment.
	DryRun bool
}

// NewPipeline evaluates the build context, bootstraps a development
// evaluation and composes the plugin list and bundler options. The language
// watcher started by the bootstrap lives until ctx is cancelled.
func NewPipeline(ctx context.Context, cc *CommandContext, opts PipelineOptions) (*Pipeline, error) {
	bc, err := buildctx.FromEnv(buildctx.Options{
		Root:             cc.Cfg.ProjectRoot,
		Command:          opts.Command,
		ForceDevelopment: opts.ForceDevelopment,
	})
	if err != nil {
		return nil, err
	}
	cc.Logger.Debug("evaluating build", "id", bc.ID, "mode", bc.Mode.Mode.String(),
		"command", bc.Command.String(), "use_own_solid", bc.Override.String())

	if !opts.DryRun {
		if err := bootstrapEnv(ctx, cc, bc); err != nil {
			return nil, err
		}
	}

	env := plugins.NewEnv(bc, cc.Cfg, cc.Logger)
	ps, err := plugins.Compose(env, plugins.DefaultCandidates())
	if err != nil {
		return nil, err
	}
	bopts, err := bundle.Options(env, ps)
	if err != nil {
		return nil, err
	}

	return &Pipeline{Build: bc, Env: env, Plugins: ps, Options: bopts}, nil
}

func bootstrapEnv(ctx context.Context, cc *CommandContext, bc buildctx.Context) error {
	cfg := cc.Cfg
	watcher := &langwatch.Watcher{
		File:    cfg.LangWatch.File,
		Dir:     cfg.ProjectRoot,
		Command: cfg.LangWatch.Command,
		Logger:  cc.Logger.With("component", "langwatch"),
	}
	return bootstrap.Run(ctx, bc, bootstrap.Options{
		LocalConfig: cfg.LocalConfig,
		Template:    cfg.LocalConfigTemplate,
		Watcher:     watcher,
		Logger:      cc.Logger,
	})
}
