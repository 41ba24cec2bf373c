package plugins

import (
	"github.com/leapstack-labs/leapbuild/internal/publish"
)

func newPublish(env Env) Plugin {
	p := publish.New(env.Config.PublicDir, env.Logger.With("plugin", NamePublish))
	p.Concurrency = env.Config.Publish.Concurrency
	ep := publish.Plugin(p, env.Build.Root)

	return Plugin{
		Name:  NamePublish,
		Setup: ep.Setup,
	}
}
