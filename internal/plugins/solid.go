package plugins

import (
	"github.com/evanw/esbuild/pkg/api"
)

// newSolid wires the UI framework: automatic JSX through solid-js, the
// solid export conditions and the resolved alias table.
func newSolid(env Env) Plugin {
	aliases := env.Aliases
	if env.Framework.IsVendored() {
		env.Logger.Info("using own solid", "choice", env.Framework.String(), "path", env.Layout.VendoredPath())
	} else {
		env.Logger.Info("using original solid")
	}

	return Plugin{
		Name: NameSolid,
		Configure: func(opts *api.BuildOptions) {
			opts.JSX = api.JSXAutomatic
			opts.JSXImportSource = "solid-js"
			opts.Conditions = append(opts.Conditions, "solid", "browser")
			if opts.Alias == nil {
				opts.Alias = make(map[string]string, len(aliases))
			}
			for k, v := range aliases {
				opts.Alias[k] = v
			}
		},
	}
}
