package plugins

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aymerick/raymond"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/leapstack-labs/leapbuild/internal/config"
	"github.com/leapstack-labs/leapbuild/internal/publish"
)

// HTMLContext returns the template context for index.html.
func HTMLContext(cfg config.HTMLConfig) map[string]string {
	return map[string]string{
		"title":       cfg.Title,
		"description": cfg.Description,
		"url":         cfg.URL,
		"origin":      cfg.Origin,
	}
}

// RenderHTML renders the Handlebars template at src with ctx.
func RenderHTML(src string, ctx map[string]string) (string, error) {
	tpl, err := raymond.ParseFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", src, err)
	}
	out, err := tpl.Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", src, err)
	}
	return out, nil
}

func newHandlebars(env Env) Plugin {
	src := env.Config.IndexHTML
	ctx := HTMLContext(env.Config.HTML)
	logger := env.Logger.With("plugin", NameHandlebars)

	return Plugin{
		Name: NameHandlebars,
		Setup: func(build api.PluginBuild) {
			outDir := publish.ResolveOutDir(env.Build.Root, build.InitialOptions.Outdir)

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 || src == "" {
					return api.OnEndResult{}, nil
				}
				if _, err := os.Stat(src); os.IsNotExist(err) {
					logger.Debug("no html template, skipping", "path", src)
					return api.OnEndResult{}, nil
				}

				html, err := RenderHTML(src, ctx)
				if err != nil {
					return api.OnEndResult{}, err
				}
				dst := filepath.Join(outDir, filepath.Base(src))
				if err := os.MkdirAll(outDir, 0o750); err != nil {
					return api.OnEndResult{}, fmt.Errorf("failed to create %s: %w", outDir, err)
				}
				if err := os.WriteFile(dst, []byte(html), 0o600); err != nil {
					return api.OnEndResult{}, fmt.Errorf("failed to write %s: %w", dst, err)
				}
				logger.Debug("rendered html", "path", dst)
				return api.OnEndResult{}, nil
			})
		},
	}
}
