package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/cli/output"
	"github.com/leapstack-labs/leapbuild/internal/framework"
	"github.com/leapstack-labs/leapbuild/internal/publish"
)

// PlanOptions holds options for the plan command.
type PlanOptions struct {
	Command     string
	Development bool
}

// PlanOutput is the evaluated build configuration without running it.
type PlanOutput struct {
	ID        string            `json:"id" yaml:"id"`
	Mode      string            `json:"mode" yaml:"mode"`
	TestRun   bool              `json:"test_run" yaml:"test_run"`
	Command   string            `json:"command" yaml:"command"`
	Override  string            `json:"use_own_solid" yaml:"use_own_solid"`
	Framework string            `json:"framework" yaml:"framework"`
	Aliases   map[string]string `json:"aliases" yaml:"aliases"`
	Plugins   []string          `json:"plugins" yaml:"plugins"`
	Publish   []PlanRule        `json:"publish,omitempty" yaml:"publish,omitempty"`
	OutDir    string            `json:"out_dir" yaml:"out_dir"`
}

// PlanRule is one publication rule in the plan.
type PlanRule struct {
	Kind   string `json:"kind" yaml:"kind"`
	Source string `json:"source" yaml:"source"`
	Dest   string `json:"dest" yaml:"dest"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	opts := &PlanOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the evaluated build configuration",
		Long: `Evaluate the build configuration the way build or dev would and print it
without bundling anything.

Shows the mode, the framework source choice and its alias table, the plugin
order and, for builds, the public directory publication rules.`,
		Example: `  # Plan a production build
  leapbuild plan

  # Plan the dev server as YAML
  leapbuild plan --command serve -o yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Command, "command", "build", "Command to evaluate (build|serve)")
	cmd.Flags().BoolVar(&opts.Development, "development", false, "Evaluate in development mode regardless of NODE_ENV")
	_ = cmd.RegisterFlagCompletionFunc("command", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"build", "serve"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func parseCommand(raw string) (buildctx.Command, error) {
	switch raw {
	case "build", "":
		return buildctx.CommandBuild, nil
	case "serve", "dev":
		return buildctx.CommandServe, nil
	default:
		return 0, fmt.Errorf("unknown command %q (want build or serve)", raw)
	}
}

func runPlan(cmd *cobra.Command, opts *PlanOptions) error {
	command, err := parseCommand(opts.Command)
	if err != nil {
		return err
	}

	cc := NewCommandContext(cmd)
	forceDev := opts.Development || command == buildctx.CommandServe
	p, err := NewPipeline(cmd.Context(), cc, PipelineOptions{Command: command, ForceDevelopment: forceDev, DryRun: true})
	if err != nil {
		return err
	}

	out := PlanOutput{
		ID:        p.Build.ID,
		Mode:      p.Build.Mode.Mode.String(),
		TestRun:   p.Build.Mode.TestRun,
		Command:   p.Build.Command.String(),
		Override:  p.Build.Override.String(),
		Framework: p.Env.Framework.String(),
		Aliases:   p.Env.Aliases,
		Plugins:   pluginNames(p),
		OutDir:    cc.Cfg.OutDir,
	}
	if command == buildctx.CommandBuild {
		for _, r := range publish.DefaultRules() {
			out.Publish = append(out.Publish, PlanRule{Kind: r.Kind.String(), Source: r.Source, Dest: r.Dest})
		}
	}
	return renderPlan(cc.Renderer, &out)
}

func renderPlan(r *output.Renderer, out *PlanOutput) error {
	if ok, err := r.Structured(out); ok {
		return err
	}

	r.Header(1, "Build plan")
	r.Println(output.FormatKeyValue("Mode", out.Mode))
	r.Println(output.FormatKeyValue("Command", out.Command))
	r.Println(output.FormatKeyValue("USE_OWN_SOLID", out.Override))
	r.Println(output.FormatKeyValue("Framework", out.Framework))
	r.Println(output.FormatKeyValue("Output", out.OutDir))
	if out.TestRun {
		r.Println(output.FormatKeyValue("Test run", "yes"))
	}
	r.Println("")

	markdown := r.EffectiveMode() == output.ModeMarkdown
	render := func(t table.Writer) {
		if markdown {
			r.Println(t.RenderMarkdown())
		} else {
			t.SetStyle(table.StyleLight)
			r.Println(t.Render())
		}
		r.Println("")
	}

	r.Header(2, "Plugins")
	pt := table.NewWriter()
	pt.AppendHeader(table.Row{"#", "Plugin"})
	for i, name := range out.Plugins {
		pt.AppendRow(table.Row{i + 1, name})
	}
	render(pt)

	r.Header(2, "Aliases")
	if len(out.Aliases) == 0 {
		r.Println(r.Styles().Muted.Render("none"))
		r.Println("")
	} else {
		at := table.NewWriter()
		at.AppendHeader(table.Row{"Specifier", "Path"})
		for _, k := range framework.AliasTable(out.Aliases).Keys() {
			at.AppendRow(table.Row{k, out.Aliases[k]})
		}
		render(at)
	}

	if len(out.Publish) > 0 {
		r.Header(2, "Publication")
		rt := table.NewWriter()
		rt.AppendHeader(table.Row{"Kind", "Source", "Destination"})
		for _, rule := range out.Publish {
			rt.AppendRow(table.Row{rule.Kind, rule.Source, rule.Dest})
		}
		render(rt)
	}
	return nil
}
