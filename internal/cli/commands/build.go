package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/bundle"
	"github.com/leapstack-labs/leapbuild/internal/cli/output"
	"github.com/leapstack-labs/leapbuild/internal/plugins"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Development bool
}

// BuildOutput is the structured output of the build command.
type BuildOutput struct {
	ID        string   `json:"id" yaml:"id"`
	Mode      string   `json:"mode" yaml:"mode"`
	Framework string   `json:"framework" yaml:"framework"`
	Plugins   []string `json:"plugins" yaml:"plugins"`
	OutDir    string   `json:"out_dir" yaml:"out_dir"`
	Outputs   []string `json:"outputs" yaml:"outputs"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Duration  string   `json:"duration" yaml:"duration"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Bundle the web client for production",
		Long: `Bundle the web client into the output directory.

The output directory is emptied first, index.html is rendered, a bundle
report is written and the whitelisted subset of the public directory is
published next to the bundle.

A development build first creates .env.local from its template when missing
and fails if the template does not exist either.

Environment:
  NODE_ENV        production (default) or development
  USE_OWN_SOLID   true/false forces the vendored or installed solid-js`,
		Example: `  # Production build
  leapbuild build

  # Build into another directory with machine-readable output
  leapbuild build --out-dir build -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Development, "development", false, "Build in development mode regardless of NODE_ENV")
	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cc := NewCommandContext(cmd)
	p, err := NewPipeline(ctx, cc, PipelineOptions{Command: buildctx.CommandBuild, ForceDevelopment: opts.Development})
	if err != nil {
		return err
	}

	res, err := bundle.New(cc.Cfg, cc.Logger).Build(ctx, p.Options)
	if err != nil {
		return err
	}

	out := BuildOutput{
		ID:        p.Build.ID,
		Mode:      p.Build.Mode.Mode.String(),
		Framework: p.Env.Framework.String(),
		Plugins:   pluginNames(p),
		OutDir:    res.OutDir,
		Outputs:   res.Outputs,
		Warnings:  res.Warnings,
		Duration:  res.Duration.Round(time.Millisecond).String(),
	}
	return renderBuild(cc.Renderer, &out)
}

func pluginNames(p *Pipeline) []string {
	return plugins.Names(p.Plugins)
}

func renderBuild(r *output.Renderer, out *BuildOutput) error {
	if ok, err := r.Structured(out); ok {
		return err
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, "Build"))
		r.Println("")
		r.Println(output.FormatKeyValue("Mode", out.Mode))
		r.Println(output.FormatKeyValue("Framework", out.Framework))
		r.Println(output.FormatKeyValue("Output", out.OutDir))
		r.Println(output.FormatKeyValue("Duration", out.Duration))
		r.Println("")
		r.Println(output.FormatHeader(2, "Files"))
		r.Println("")
		for _, f := range out.Outputs {
			r.Printf("- `%s`\n", f)
		}
		return nil
	}

	styles := r.Styles()
	for _, f := range out.Outputs {
		r.StatusLine(f, "success", "")
	}
	for _, w := range out.Warnings {
		r.Warning(w)
	}
	r.Println("")
	r.Success(fmt.Sprintf("Built %d files in %s (%s, %s)", len(out.Outputs), out.Duration, out.Mode, out.Framework))
	r.Println(styles.Muted.Render("Output: " + out.OutDir))
	return nil
}
