package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/bundle"
	"github.com/leapstack-labs/leapbuild/internal/devserver"
	"github.com/leapstack-labs/leapbuild/internal/plugins"
)

// DevOptions holds options for the dev command.
type DevOptions struct {
	NoReload bool
}

// NewDevCommand creates the dev command.
func NewDevCommand() *cobra.Command {
	opts := &DevOptions{}
	cmd := &cobra.Command{
		Use:     "dev",
		Aliases: []string{"serve"},
		Short:   "Build in watch mode and serve the client",
		Long: `Build the client in development mode, rebuild on every change and serve
the result with live reload.

Before the first build the local configuration (.env.local) is created from
its template when missing, and the language file watcher is started. Both
are skipped under a test runner (VITEST or LEAPBUILD_TEST_RUN set).

Static files come from the output directory first and the public directory
second; nothing is published in development.`,
		Example: `  # Serve on the default port
  leapbuild dev

  # Serve over HTTPS on another port
  leapbuild dev --ssl --port 3000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDev(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoReload, "no-reload", false, "Disable live reload")
	return cmd
}

func runDev(ctx context.Context, cmd *cobra.Command, opts *DevOptions) error {
	cc := NewCommandContext(cmd)
	cfg := cc.Cfg
	p, err := NewPipeline(ctx, cc, PipelineOptions{Command: buildctx.CommandServe, ForceDevelopment: true})
	if err != nil {
		return err
	}

	serverOpts, err := configureServer(p.Plugins)
	if err != nil {
		return err
	}

	var reloader *devserver.Reloader
	if !opts.NoReload {
		reloader = devserver.NewReloader()
		p.Options.Plugins = append(p.Options.Plugins, reloader.Plugin())
	}

	srv := devserver.New(devserver.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		OutDir:    cfg.OutDir,
		PublicDir: cfg.PublicDir,
		TLS:       serverOpts,
		Reloader:  reloader,
		Logger:    cc.Logger.With("component", "devserver"),
	})

	cc.Renderer.Success(fmt.Sprintf("Serving %s (%s, %s)", srv.URL(nil), p.Build.Mode.Mode.String(), p.Env.Framework.String()))

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return bundle.New(cfg, cc.Logger).Watch(egctx, p.Options)
	})
	eg.Go(func() error {
		return srv.ListenAndServe(egctx)
	})
	return eg.Wait()
}

// configureServer applies every plugin's server hook in order.
func configureServer(ps []plugins.Plugin) (plugins.ServerOptions, error) {
	var opts plugins.ServerOptions
	for _, p := range ps {
		if p.ConfigureServer == nil {
			continue
		}
		if err := p.ConfigureServer(&opts); err != nil {
			return opts, fmt.Errorf("plugin %s: %w", p.Name, err)
		}
	}
	return opts, nil
}
