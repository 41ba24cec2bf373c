package commands

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/cli/testutil"
)

func stubLookPath(t *testing.T, found ...string) {
	t.Helper()
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(file string) (string, error) {
		for _, f := range found {
			if f == file {
				return "/usr/bin/" + f, nil
			}
		}
		return "", errors.New("not found")
	}
}

func runDoctorJSON(t *testing.T, root string) DoctorOutput {
	t.Helper()
	testutil.LoadProject(t, root, "--output", "json")

	out, err := execute(t, NewDoctorCommand())
	require.NoError(t, err, out)

	var res DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	return res
}

func findCheck(t *testing.T, out DoctorOutput, id string) HealthCheck {
	t.Helper()
	for _, c := range out.HealthChecks {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("check %s not found", id)
	return HealthCheck{}
}

func TestDoctor_HealthyProject(t *testing.T) {
	cleanEnv(t)
	stubLookPath(t)
	root := testutil.SetupTestProject(t)

	res := runDoctorJSON(t, root)

	assert.Equal(t, root, res.ProjectRoot)
	assert.Equal(t, filepath.Join(root, "leapbuild.yaml"), res.ConfigFile)
	assert.Equal(t, 0, res.IssueCount)
	assert.Equal(t, 100, res.Score)
	assert.Empty(t, res.Recommendations)

	local := findCheck(t, res, "PRJ03")
	assert.Equal(t, statusPass, local.Status)
	assert.Contains(t, local.Details[0], "will be created from .env.local.example")

	sources := findCheck(t, res, "PUB02")
	assert.Equal(t, statusPass, sources.Status)
	assert.Contains(t, sources.Details, "skipped: browserconfig.xml")

	assert.Equal(t, []string{"disabled"}, findCheck(t, res, "TL01").Details)
}

func TestDoctor_ReportsProblems(t *testing.T) {
	cleanEnv(t)
	t.Setenv(buildctx.EnvUseOwnSolid, "true")
	stubLookPath(t)
	root := testutil.SetupTestProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "src", "index.ts")))
	require.NoError(t, os.Remove(filepath.Join(root, ".env.local.example")))

	res := runDoctorJSON(t, root)

	assert.Equal(t, statusError, findCheck(t, res, "PRJ01").Status)
	assert.Equal(t, statusError, findCheck(t, res, "PRJ03").Status)
	fw := findCheck(t, res, "FW01")
	assert.Equal(t, statusWarn, fw.Status)
	assert.Contains(t, fw.Details[0], "vendored-built")
	assert.Equal(t, statusPass, findCheck(t, res, "FW03").Status)

	assert.Less(t, res.Score, 70)
	assert.Contains(t, res.Recommendations, getRecommendation("PRJ01"))
	assert.Contains(t, res.Recommendations, getRecommendation("FW01"))
}

func TestDoctor_CheckerTools(t *testing.T) {
	cleanEnv(t)
	stubLookPath(t, "tsc")
	root := testutil.SetupTestProject(t)
	testutil.WriteConfig(t, root, "checker:\n  enabled: true\n")

	res := runDoctorJSON(t, root)

	tools := findCheck(t, res, "TL01")
	assert.Equal(t, statusWarn, tools.Status)
	assert.Equal(t, 1, tools.IssueCount)
	assert.Equal(t, []string{"eslint not found in PATH"}, tools.Details)
}

func TestDoctor_Markdown(t *testing.T) {
	cleanEnv(t)
	stubLookPath(t)
	root := testutil.SetupTestProject(t)
	testutil.LoadProject(t, root, "--output", "markdown")

	out, err := execute(t, NewDoctorCommand())
	require.NoError(t, err)

	assert.Contains(t, out, "# leapbuild Project Health Report")
	assert.Contains(t, out, "### Framework")
	assert.Contains(t, out, "- **[PASS]** FW03: Alias table")
	assert.Contains(t, out, "**100/100**")
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
}

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   int
	}{
		{name: "no checks", want: 100},
		{name: "all pass", checks: []HealthCheck{{Status: statusPass}}, want: 100},
		{name: "one warning", checks: []HealthCheck{{Status: statusWarn, IssueCount: 1}}, want: 90},
		{name: "errors count double", checks: []HealthCheck{{Status: statusError, IssueCount: 2}}, want: 60},
		{name: "clamped", checks: []HealthCheck{{Status: statusError, IssueCount: 9}}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks))
		})
	}
}
