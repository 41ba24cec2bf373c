package publish

import (
	"context"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

// PluginName is the esbuild plugin name of the publication hook.
const PluginName = "copy-public-subset"

// Plugin wraps p as an esbuild plugin. The output directory is resolved
// against root when the plugin is set up, before any build runs, and that
// single value is used by every OnEnd invocation.
func Plugin(p *Publisher, root string) api.Plugin {
	return api.Plugin{
		Name: PluginName,
		Setup: func(build api.PluginBuild) {
			outDir := ResolveOutDir(root, build.InitialOptions.Outdir)

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				// nothing is published for a failed bundle
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}
				if _, err := p.Publish(context.Background(), outDir); err != nil {
					return api.OnEndResult{}, err
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}

// ResolveOutDir returns the absolute output directory, defaulting to "dist".
func ResolveOutDir(root, outDir string) string {
	if outDir == "" {
		outDir = "dist"
	}
	if filepath.IsAbs(outDir) {
		return filepath.Clean(outDir)
	}
	return filepath.Join(root, outDir)
}
