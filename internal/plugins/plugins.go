// Package plugins composes the ordered build-pipeline plugin list.
//
// Each plugin is a Candidate with an enable predicate. Compose evaluates the
// predicates in order and constructs only the enabled plugins, so a disabled
// plugin's configuration never exists. A Plugin contributes any of three
// things: esbuild option changes (Configure), esbuild hooks (Setup) and dev
// server settings (ConfigureServer).
package plugins

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/config"
	"github.com/leapstack-labs/leapbuild/internal/framework"
)

// ErrDuplicatePlugin is returned by Compose when two enabled candidates
// share a name.
var ErrDuplicatePlugin = errors.New("duplicate plugin")

// Env is the input of every predicate and constructor.
type Env struct {
	Build     buildctx.Context
	Config    *config.Config
	Framework framework.Choice
	Layout    framework.Layout
	Aliases   framework.AliasTable
	Logger    *slog.Logger
}

// NewEnv resolves the framework source for bc and returns the composition
// environment.
func NewEnv(bc buildctx.Context, cfg *config.Config, logger *slog.Logger) Env {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	layout := framework.Layout{
		Root:               bc.Root,
		SourcePath:         cfg.Framework.SourcePath,
		BuiltPath:          cfg.Framework.BuiltPath,
		TransitionGroupDir: cfg.Framework.TransitionGroupDir,
		UseSource:          cfg.Framework.UseSource,
	}
	choice := framework.ResolveLayout(bc.Override, layout)

	return Env{
		Build:     bc,
		Config:    cfg,
		Framework: choice,
		Layout:    layout,
		Aliases:   framework.BuildAliasTable(choice, layout),
		Logger:    logger,
	}
}

// ServerOptions collects dev server settings contributed by plugins.
type ServerOptions struct {
	CertFile string
	KeyFile  string
}

// TLS reports whether both certificate paths are set.
func (o ServerOptions) TLS() bool {
	return o.CertFile != "" && o.KeyFile != ""
}

// Plugin is one composed build-pipeline plugin.
type Plugin struct {
	Name            string
	Configure       func(opts *api.BuildOptions)
	Setup           func(build api.PluginBuild)
	ConfigureServer func(opts *ServerOptions) error
}

// ESBuild returns p as an esbuild plugin, or false when p has no hooks.
func (p Plugin) ESBuild() (api.Plugin, bool) {
	if p.Setup == nil {
		return api.Plugin{}, false
	}
	return api.Plugin{Name: p.Name, Setup: p.Setup}, true
}

// Candidate is a plugin that may take part in a build.
type Candidate struct {
	Name    string
	Enabled func(env Env) bool
	New     func(env Env) Plugin
}

// Always is the predicate of unconditional plugins.
func Always(Env) bool { return true }

// Compose returns the enabled plugins in candidate order.
func Compose(env Env, candidates []Candidate) ([]Plugin, error) {
	seen := make(map[string]bool, len(candidates))
	var out []Plugin

	for _, c := range candidates {
		if c.Enabled == nil || c.New == nil {
			return nil, fmt.Errorf("plugin candidate %q is incomplete", c.Name)
		}
		if !c.Enabled(env) {
			continue
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlugin, c.Name)
		}
		seen[c.Name] = true

		p := c.New(env)
		if p.Name == "" {
			p.Name = c.Name
		}
		out = append(out, p)
	}
	return out, nil
}

// Names returns the plugin names in order.
func Names(ps []Plugin) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return names
}

// Candidate names, in default order.
const (
	NameChecker    = "checker"
	NameSolid      = "solid"
	NameHandlebars = "handlebars"
	NameBasicSSL   = "basic-ssl"
	NameVisualizer = "visualizer"
	NamePublish    = "copy-public-subset"
)

// DefaultCandidates returns the build pipeline in order. The publication
// hook is last so that it runs after every other end-of-build hook.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Name: NameChecker, Enabled: checkerEnabled, New: newChecker},
		{Name: NameSolid, Enabled: Always, New: newSolid},
		{Name: NameHandlebars, Enabled: Always, New: newHandlebars},
		{Name: NameBasicSSL, Enabled: sslEnabled, New: newBasicSSL},
		{Name: NameVisualizer, Enabled: Always, New: newVisualizer},
		{Name: NamePublish, Enabled: publishEnabled, New: newPublish},
	}
}

func checkerEnabled(env Env) bool {
	return env.Build.Mode.IsDev() && !env.Build.Mode.TestRun && env.Config.Checker.Enabled
}

func sslEnabled(env Env) bool {
	return env.Config.SSL.Enabled
}

func publishEnabled(env Env) bool {
	return env.Build.Command == buildctx.CommandBuild
}
