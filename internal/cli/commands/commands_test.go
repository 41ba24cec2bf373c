package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapbuild/internal/bootstrap"
	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/cli/testutil"
	"github.com/leapstack-labs/leapbuild/internal/plugins"
)

// cleanEnv clears the variables that steer evaluation so the host
// environment cannot leak into a test.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{buildctx.EnvNodeEnv, buildctx.EnvVitest, buildctx.EnvTestRun, buildctx.EnvUseOwnSolid} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{cmd: NewBuildCommand(), use: "build", flags: []string{"development"}},
		{cmd: NewDevCommand(), use: "dev", flags: []string{"no-reload"}},
		{cmd: NewPlanCommand(), use: "plan", flags: []string{"command", "development"}},
		{cmd: NewDoctorCommand(), use: "doctor"},
		{cmd: NewInitCommand(), use: "init [directory]", flags: []string{"force"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotEmpty(t, tt.cmd.Long)
			for _, name := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(name), "flag %s", name)
			}
		})
	}
}

func TestBuildCommand_JSON(t *testing.T) {
	cleanEnv(t)
	root := testutil.SetupTestProject(t)
	testutil.LoadProject(t, root, "--output", "json")

	out, err := execute(t, NewBuildCommand())
	require.NoError(t, err, out)

	var res BuildOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)

	assert.Equal(t, "production", res.Mode)
	assert.Equal(t, "external-package", res.Framework)
	assert.Equal(t, []string{
		plugins.NameSolid, plugins.NameHandlebars, plugins.NameVisualizer, plugins.NamePublish,
	}, res.Plugins)
	assert.Equal(t, filepath.Join(root, "dist"), res.OutDir)
	assert.Contains(t, res.Outputs, "index.js")
	assert.NotEmpty(t, res.ID)

	assert.FileExists(t, filepath.Join(root, "dist", "index.html"))
	assert.FileExists(t, filepath.Join(root, "dist", "favicon.ico"))
	assert.NoFileExists(t, filepath.Join(root, "dist", "robots.txt"))
}

func TestBuildCommand_Markdown(t *testing.T) {
	cleanEnv(t)
	root := testutil.SetupTestProject(t)
	testutil.LoadProject(t, root, "--output", "markdown")

	out, err := execute(t, NewBuildCommand())
	require.NoError(t, err, out)

	assert.Contains(t, out, "# Build")
	assert.Contains(t, out, "- **Mode**: production")
	assert.Contains(t, out, "`index.js`")
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
}

func TestBuildCommand_MissingEntryPoint(t *testing.T) {
	cleanEnv(t)
	root := testutil.SetupTestProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "src", "index.ts")))
	testutil.LoadProject(t, root, "--output", "json")

	_, err := execute(t, NewBuildCommand())
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(root, "dist", "favicon.ico"))
}

func TestPlanCommand(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		useOwnSolid   string
		wantMode      string
		wantCommand   string
		wantFramework string
		wantPlugins   []string
		wantPublish   int
	}{
		{
			name:          "production build",
			wantMode:      "production",
			wantCommand:   "build",
			wantFramework: "external-package",
			wantPlugins:   []string{plugins.NameSolid, plugins.NameHandlebars, plugins.NameVisualizer, plugins.NamePublish},
			wantPublish:   8,
		},
		{
			name:          "serve never publishes",
			args:          []string{"--command", "serve"},
			wantMode:      "development",
			wantCommand:   "serve",
			wantFramework: "external-package",
			wantPlugins:   []string{plugins.NameSolid, plugins.NameHandlebars, plugins.NameVisualizer},
		},
		{
			name:          "forced vendored framework",
			useOwnSolid:   "true",
			wantMode:      "production",
			wantCommand:   "build",
			wantFramework: "vendored-built",
			wantPlugins:   []string{plugins.NameSolid, plugins.NameHandlebars, plugins.NameVisualizer, plugins.NamePublish},
			wantPublish:   8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(buildctx.EnvUseOwnSolid, tt.useOwnSolid)
			root := testutil.SetupTestProject(t)
			testutil.LoadProject(t, root, "--output", "yaml")

			out, err := execute(t, NewPlanCommand(), tt.args...)
			require.NoError(t, err, out)

			var plan PlanOutput
			require.NoError(t, yaml.Unmarshal([]byte(out), &plan), out)

			assert.Equal(t, tt.wantMode, plan.Mode)
			assert.Equal(t, tt.wantCommand, plan.Command)
			assert.Equal(t, tt.wantFramework, plan.Framework)
			assert.Equal(t, tt.wantPlugins, plan.Plugins)
			assert.Len(t, plan.Publish, tt.wantPublish)
			assert.Contains(t, plan.Aliases, "solid-transition-group")
			if tt.wantFramework == "vendored-built" {
				assert.Equal(t, filepath.Join(root, "src", "vendor", "solid"), plan.Aliases["solid-js"])
			} else {
				assert.NotContains(t, plan.Aliases, "solid-js")
			}
			assert.NoDirExists(t, filepath.Join(root, "dist"))
		})
	}
}

func TestPlanCommand_Text(t *testing.T) {
	cleanEnv(t)
	root := testutil.SetupTestProject(t)
	testutil.LoadProject(t, root, "--output", "markdown")

	out, err := execute(t, NewPlanCommand())
	require.NoError(t, err)

	assert.Contains(t, out, "# Build plan")
	assert.Contains(t, out, "## Plugins")
	assert.Contains(t, out, "copy-public-subset")
	assert.Contains(t, out, "assets/img/favicon.ico")
	testutil.AssertNoANSI(t, out)
}

func TestPlanCommand_UnknownCommand(t *testing.T) {
	cleanEnv(t)
	root := testutil.SetupTestProject(t)
	testutil.LoadProject(t, root)

	_, err := execute(t, NewPlanCommand(), "--command", "preview")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestConfigureServer(t *testing.T) {
	ps := []plugins.Plugin{
		{Name: "a"},
		{Name: "b", ConfigureServer: func(o *plugins.ServerOptions) error {
			o.CertFile, o.KeyFile = "cert.pem", "key.pem"
			return nil
		}},
	}
	opts, err := configureServer(ps)
	require.NoError(t, err)
	assert.True(t, opts.TLS())

	boom := errors.New("boom")
	ps = append(ps, plugins.Plugin{Name: "c", ConfigureServer: func(*plugins.ServerOptions) error { return boom }})
	_, err = configureServer(ps)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "plugin c")
}

func TestRenderBuild(t *testing.T) {
	out := &BuildOutput{
		Mode:      "production",
		Framework: "external-package",
		OutDir:    "/tmp/app/dist",
		Outputs:   []string{"index.js", "index.js.map"},
		Warnings:  []string{"src/index.ts:1:1: unused import"},
		Duration:  "12ms",
	}

	t.Run("text", func(t *testing.T) {
		tr := testutil.NewTestRendererText()
		require.NoError(t, renderBuild(tr.Renderer, out))
		assert.Contains(t, tr.Output(), "index.js.map")
		assert.Contains(t, tr.Output(), "Built 2 files in 12ms")
		assert.Contains(t, tr.ErrorOutput(), "unused import")
	})

	t.Run("markdown", func(t *testing.T) {
		tr := testutil.NewTestRendererMarkdown()
		require.NoError(t, renderBuild(tr.Renderer, out))
		assert.Contains(t, tr.Output(), "## Files")
		testutil.AssertNoANSI(t, tr.Output())
		testutil.AssertValidMarkdown(t, tr.Output())
	})

	t.Run("json", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, renderBuild(tr.Renderer, out))
		var got BuildOutput
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
		assert.Equal(t, *out, got)
	})
}

func TestBuildCommand_DevelopmentBootstrap(t *testing.T) {
	tests := []struct {
		name         string
		nodeEnv      string
		args         []string
		dropTemplate bool
		wantErr      bool
		wantLocal    bool
	}{
		{name: "NODE_ENV development", nodeEnv: "development", wantLocal: true},
		{name: "development flag", args: []string{"--development"}, wantLocal: true},
		{name: "missing template", nodeEnv: "development", dropTemplate: true, wantErr: true},
		{name: "production leaves it alone", dropTemplate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(buildctx.EnvNodeEnv, tt.nodeEnv)
			root := testutil.SetupTestProject(t)
			if tt.dropTemplate {
				require.NoError(t, os.Remove(filepath.Join(root, ".env.local.example")))
			}
			testutil.LoadProject(t, root, "--output", "json")

			out, err := execute(t, NewBuildCommand(), tt.args...)
			if tt.wantErr {
				require.ErrorIs(t, err, bootstrap.ErrTemplateMissing)
				assert.NoDirExists(t, filepath.Join(root, "dist"))
			} else {
				require.NoError(t, err, out)
			}

			if tt.wantLocal {
				got, err := os.ReadFile(filepath.Join(root, ".env.local"))
				require.NoError(t, err)
				want, err := os.ReadFile(filepath.Join(root, ".env.local.example"))
				require.NoError(t, err)
				assert.Equal(t, string(want), string(got))
			} else {
				assert.NoFileExists(t, filepath.Join(root, ".env.local"))
			}
		})
	}
}

func TestPlanCommand_DoesNotBootstrap(t *testing.T) {
	cleanEnv(t)
	root := testutil.SetupTestProject(t)
	testutil.LoadProject(t, root, "--output", "json")

	_, err := execute(t, NewPlanCommand(), "--command", "serve")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, ".env.local"))
}
