package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/buildctx"
	"github.com/leapstack-labs/leapbuild/internal/cli/config"
	"github.com/leapstack-labs/leapbuild/internal/cli/output"
	"github.com/leapstack-labs/leapbuild/internal/plugins"
	"github.com/leapstack-labs/leapbuild/internal/publish"
)

// Check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// lookPath finds executables for the tooling checks.
var lookPath = exec.LookPath

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the project setup",
		Long: `Check that the project is ready to build and serve.

The doctor command inspects the configuration, the entry points and
index.html, the local configuration and its template, the framework source
choice and alias table, the public directory and the external tools the
development checker runs. It reports:
- Health checks grouped by category
- Health score (0-100)
- Actionable recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON/YAML: Machine-readable format`,
		Example: `  # Run the checks
  leapbuild doctor

  # Output as JSON
  leapbuild doctor -o json`,
		RunE: runDoctor,
	}
}

// DoctorOutput is the structured output of the doctor command.
type DoctorOutput struct {
	ProjectRoot     string        `json:"project_root" yaml:"project_root"`
	ConfigFile      string        `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	HealthChecks    []HealthCheck `json:"health_checks" yaml:"health_checks"`
	Score           int           `json:"score" yaml:"score"`
	Recommendations []string      `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	IssueCount      int           `json:"issue_count" yaml:"issue_count"`
}

// HealthCheck is a single check result.
type HealthCheck struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Group      string   `json:"group" yaml:"group"`
	Status     string   `json:"status" yaml:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count" yaml:"issue_count"`
	Details    []string `json:"details,omitempty" yaml:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cc := NewCommandContext(cmd)
	out, err := diagnose(cc.Cfg, cc)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if ok, err := r.Structured(out); ok {
		return err
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		return renderDoctorMarkdown(r, out)
	}
	return renderDoctorText(r, out)
}

// diagnose runs every check against cfg.
func diagnose(cfg *config.Config, cc *CommandContext) (*DoctorOutput, error) {
	bc, err := buildctx.FromEnv(buildctx.Options{
		Root:             cfg.ProjectRoot,
		Command:          buildctx.CommandServe,
		ForceDevelopment: true,
	})
	if err != nil {
		return nil, err
	}
	env := plugins.NewEnv(bc, cfg, cc.Logger)

	checks := []HealthCheck{
		checkConfigFile(),
		checkEntryPoints(cfg),
		checkIndexHTML(cfg),
		checkLocalConfig(cfg),
		checkFramework(env),
		checkTransitionGroup(env),
		checkAliases(env),
		checkPublicDir(cfg),
		checkPublishSources(cfg),
		checkCheckerTools(cfg),
		checkLangWatch(cfg),
		checkSSL(cfg),
	}

	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].ID < checks[j].ID
	})

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}

	return &DoctorOutput{
		ProjectRoot:     cfg.ProjectRoot,
		ConfigFile:      config.GetConfigFileUsed(),
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}, nil
}

func newCheck(id, name, group string) HealthCheck {
	return HealthCheck{ID: id, Name: name, Group: group, Status: statusPass}
}

func (c *HealthCheck) fail(status, detail string) {
	if c.Status != statusError {
		c.Status = status
	}
	c.IssueCount++
	c.Details = append(c.Details, detail)
}

func (c *HealthCheck) note(detail string) {
	c.Details = append(c.Details, detail)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func checkConfigFile() HealthCheck {
	c := newCheck("CFG01", "Configuration file", "project")
	if used := config.GetConfigFileUsed(); used != "" {
		c.note(used)
	} else {
		c.fail(statusWarn, "no "+config.ConfigFileName+" found, using defaults")
	}
	return c
}

func checkEntryPoints(cfg *config.Config) HealthCheck {
	c := newCheck("PRJ01", "Entry points", "project")
	for _, ep := range cfg.EntryPoints {
		if !exists(ep) {
			c.fail(statusError, "missing "+ep)
		}
	}
	return c
}

func checkIndexHTML(cfg *config.Config) HealthCheck {
	c := newCheck("PRJ02", "index.html template", "project")
	if !exists(cfg.IndexHTML) {
		c.fail(statusWarn, "missing "+cfg.IndexHTML+", index.html will not be rendered")
	}
	return c
}

func checkLocalConfig(cfg *config.Config) HealthCheck {
	c := newCheck("PRJ03", "Local configuration", "project")
	switch {
	case exists(cfg.LocalConfig):
		c.note(cfg.LocalConfig)
	case exists(cfg.LocalConfigTemplate):
		c.note(filepath.Base(cfg.LocalConfig) + " will be created from " + filepath.Base(cfg.LocalConfigTemplate))
	default:
		c.fail(statusError, "neither "+cfg.LocalConfig+" nor "+cfg.LocalConfigTemplate+" exists")
	}
	return c
}

func checkFramework(env plugins.Env) HealthCheck {
	c := newCheck("FW01", "Framework source", "framework")
	c.note(env.Framework.String() + " (USE_OWN_SOLID " + env.Build.Override.String() + ")")
	if v, forced := env.Build.Override.Value(); forced && v && !exists(env.Layout.VendoredPath()) {
		c.fail(statusWarn, "USE_OWN_SOLID=true but "+env.Layout.VendoredPath()+" does not exist")
	}
	return c
}

func checkTransitionGroup(env plugins.Env) HealthCheck {
	c := newCheck("FW02", "Vendored transition group", "framework")
	dir := env.Aliases["solid-transition-group"]
	if dir != "" && !exists(dir) {
		c.note("missing " + dir + ", imports of solid-transition-group will not resolve")
	}
	return c
}

func checkAliases(env plugins.Env) HealthCheck {
	c := newCheck("FW03", "Alias table", "framework")
	if err := env.Aliases.Validate(); err != nil {
		c.fail(statusError, err.Error())
	}
	return c
}

func checkPublicDir(cfg *config.Config) HealthCheck {
	c := newCheck("PUB01", "Public directory", "assets")
	info, err := os.Stat(cfg.PublicDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.fail(statusWarn, "missing "+cfg.PublicDir+", nothing will be published")
	case err != nil:
		c.fail(statusError, err.Error())
	case !info.IsDir():
		c.fail(statusError, cfg.PublicDir+" is not a directory")
	}
	return c
}

func checkPublishSources(cfg *config.Config) HealthCheck {
	c := newCheck("PUB02", "Publication sources", "assets")
	if !exists(cfg.PublicDir) {
		return c
	}
	for _, r := range publish.DefaultRules() {
		if !exists(filepath.Join(cfg.PublicDir, filepath.FromSlash(r.Source))) {
			c.note("skipped: " + r.Source)
		}
	}
	if !exists(filepath.Join(cfg.PublicDir, filepath.FromSlash(publish.FaviconSource))) {
		c.fail(statusWarn, "no favicon at "+publish.FaviconSource)
	}
	return c
}

func checkCheckerTools(cfg *config.Config) HealthCheck {
	c := newCheck("TL01", "Type checker and linter", "tooling")
	if !cfg.Checker.Enabled {
		c.note("disabled")
		return c
	}
	for _, argv := range [][]string{cfg.Checker.TypeScriptCommand, cfg.Checker.LintCommand} {
		if len(argv) == 0 {
			continue
		}
		if _, err := lookPath(argv[0]); err != nil {
			c.fail(statusWarn, argv[0]+" not found in PATH")
		}
	}
	return c
}

func checkLangWatch(cfg *config.Config) HealthCheck {
	c := newCheck("TL02", "Language file watcher", "tooling")
	if !exists(cfg.LangWatch.File) {
		c.note("no " + cfg.LangWatch.File + ", watcher idle")
	}
	if len(cfg.LangWatch.Command) == 0 {
		c.note("no regeneration command, changes are only logged")
		return c
	}
	if _, err := lookPath(cfg.LangWatch.Command[0]); err != nil {
		c.fail(statusWarn, cfg.LangWatch.Command[0]+" not found in PATH")
	}
	return c
}

func checkSSL(cfg *config.Config) HealthCheck {
	c := newCheck("TL03", "Local TLS", "tooling")
	if !cfg.SSL.Enabled {
		c.note("disabled")
		return c
	}
	if exists(filepath.Join(cfg.SSL.CertDir, plugins.CertFileName)) {
		c.note("certificate cached in " + cfg.SSL.CertDir)
	} else {
		c.note("certificate will be generated in " + cfg.SSL.CertDir)
	}
	return c
}

// calculateHealthScore computes a score from 0-100. Errors cost twice as
// much as warnings.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= check.IssueCount * 20
		case statusWarn:
			score -= check.IssueCount * 10
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

func generateRecommendations(checks []HealthCheck) []string {
	var recs []string
	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		if rec := getRecommendation(check.ID); rec != "" {
			recs = append(recs, rec)
		}
	}
	return recs
}

func getRecommendation(id string) string {
	switch id {
	case "CFG01":
		return "Run leapbuild init or add " + config.ConfigFileName + " to pin the project settings"
	case "PRJ01":
		return "Create the entry point or fix entry_points in " + config.ConfigFileName
	case "PRJ02":
		return "Add an index.html template to the project root"
	case "PRJ03":
		return "Add " + config.DefaultLocalConfigTemplate + " so the local configuration can be created"
	case "FW01":
		return "Unset USE_OWN_SOLID or check out the vendored solid-js tree"
	case "FW03":
		return "Fix the framework layout so every solid-js specifier is aliased"
	case "PUB01", "PUB02":
		return "Add the public directory with assets/img/favicon.ico"
	case "TL01":
		return "Install typescript and eslint or set checker.enabled to false"
	case "TL02":
		return "Install the language regeneration tool or clear lang_watch.command"
	default:
		return ""
	}
}

func statusIcon(styles output.Styles, status string) string {
	switch status {
	case statusWarn:
		return styles.Warning.Render("!")
	case statusError:
		return styles.StatusFailed.String()
	default:
		return styles.StatusSuccess.String()
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("leapbuild Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println(styles.Muted.Render("   " + out.ProjectRoot))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		status := fmt.Sprintf("%s %s: %s", statusIcon(styles, check.Status), check.ID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# leapbuild Project Health Report")
	r.Println("")
	r.Println(output.FormatKeyValue("Project", out.ProjectRoot))
	if out.ConfigFile != "" {
		r.Println(output.FormatKeyValue("Config", out.ConfigFile))
	}
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.ID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
	return nil
}
