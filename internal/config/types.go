// Package config defines the leapbuild project configuration shared by the
// CLI and the build pipeline.
//
// The CLI layers it with koanf: built-in defaults, then leapbuild.yaml,
// then LEAPBUILD_* environment variables, then explicitly set flags.
package config

import "path/filepath"

// Config is the resolved project configuration.
type Config struct {
	// ProjectRoot is inferred, never read from the file.
	ProjectRoot string `koanf:"-"`

	PublicDir           string   `koanf:"public_dir"`
	OutDir              string   `koanf:"out_dir"`
	EntryPoints         []string `koanf:"entry_points"`
	IndexHTML           string   `koanf:"index_html"`
	LocalConfig         string   `koanf:"local_config"`
	LocalConfigTemplate string   `koanf:"local_config_template"`
	Target              string   `koanf:"target"`
	Minify              bool     `koanf:"minify"`
	Sourcemap           bool     `koanf:"sourcemap"`
	EmptyOutDir         bool     `koanf:"empty_out_dir"`
	Verbose             bool     `koanf:"verbose"`
	OutputFormat        string   `koanf:"output"`

	Framework  FrameworkConfig  `koanf:"framework"`
	Server     ServerConfig     `koanf:"server"`
	SSL        SSLConfig        `koanf:"ssl"`
	HTML       HTMLConfig       `koanf:"html"`
	Checker    CheckerConfig    `koanf:"checker"`
	Visualizer VisualizerConfig `koanf:"visualizer"`
	LangWatch  LangWatchConfig  `koanf:"lang_watch"`
	Publish    PublishConfig    `koanf:"publish"`
}

// FrameworkConfig locates the vendored SolidJS trees.
type FrameworkConfig struct {
	SourcePath         string `koanf:"source_path"`
	BuiltPath          string `koanf:"built_path"`
	TransitionGroupDir string `koanf:"transition_group_dir"`
	// UseSource selects the source tree instead of the pre-built one.
	UseSource bool `koanf:"use_source"`
}

// ServerConfig holds dev server options.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// SSLConfig toggles local TLS serving.
type SSLConfig struct {
	Enabled bool   `koanf:"enabled"`
	Name    string `koanf:"name"`
	CertDir string `koanf:"cert_dir"`
}

// HTMLConfig is the template context for index.html.
type HTMLConfig struct {
	Title       string `koanf:"title"`
	Description string `koanf:"description"`
	URL         string `koanf:"url"`
	Origin      string `koanf:"origin"`
}

// CheckerConfig configures the development type/lint checker.
type CheckerConfig struct {
	Enabled           bool     `koanf:"enabled"`
	TypeScriptCommand []string `koanf:"typescript_command"`
	LintCommand       []string `koanf:"lint_command"`
}

// VisualizerConfig configures the bundle report.
type VisualizerConfig struct {
	Filename string `koanf:"filename"`
	GzipSize bool   `koanf:"gzip_size"`
}

// LangWatchConfig configures the development language-file watcher.
type LangWatchConfig struct {
	File    string   `koanf:"file"`
	Command []string `koanf:"command"`
}

// PublishConfig tunes asset publication.
type PublishConfig struct {
	Concurrency int `koanf:"concurrency"`
}

// Default configuration values.
const (
	ConfigFileName             = "leapbuild.yaml"
	DefaultPublicDir           = "public"
	DefaultOutDir              = "dist"
	DefaultEntryPoint          = "src/index.ts"
	DefaultIndexHTML           = "index.html"
	DefaultLocalConfig         = ".env.local"
	DefaultLocalConfigTemplate = ".env.local.example"
	DefaultTarget              = "es2020"
	DefaultPort                = 8080
	DefaultSSLName             = "localhost"
	DefaultCertDir             = ".leapbuild/certs"
	DefaultStatsFile           = "stats.html"
	DefaultLangFile            = "src/lang.ts"
	DefaultOutput              = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Defaults returns the flattened default values loaded first by koanf.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"public_dir":                     DefaultPublicDir,
		"out_dir":                        DefaultOutDir,
		"entry_points":                   []string{DefaultEntryPoint},
		"index_html":                     DefaultIndexHTML,
		"local_config":                   DefaultLocalConfig,
		"local_config_template":          DefaultLocalConfigTemplate,
		"target":                         DefaultTarget,
		"minify":                         true,
		"sourcemap":                      true,
		"empty_out_dir":                  true,
		"verbose":                        false,
		"output":                         DefaultOutput,
		"framework.source_path":          "src/solid/packages/solid",
		"framework.built_path":           "src/vendor/solid",
		"framework.transition_group_dir": "src/vendor/solid-transition-group",
		"framework.use_source":           false,
		"server.host":                    "",
		"server.port":                    DefaultPort,
		"ssl.enabled":                    false,
		"ssl.name":                       DefaultSSLName,
		"ssl.cert_dir":                   DefaultCertDir,
		"html.title":                     "Telegram Web",
		"html.description":               "Telegram is a cloud-based mobile and desktop messaging app with a focus on security and speed.",
		"html.url":                       "https://web.telegram.org/k/",
		"html.origin":                    "https://web.telegram.org/",
		"checker.enabled":                true,
		"checker.typescript_command":     []string{"tsc", "--noEmit"},
		"checker.lint_command":           []string{"eslint", "./src/**/*.{ts,tsx}", "--ignore-pattern", "/src/solid/*"},
		"visualizer.filename":            DefaultStatsFile,
		"visualizer.gzip_size":           true,
		"lang_watch.file":                DefaultLangFile,
		"publish.concurrency":            0,
	}
}

// Default returns the default configuration with paths resolved against
// root, matching what the CLI loads when no file, env or flag is set.
func Default(root string) *Config {
	join := func(p string) string { return filepath.Join(root, p) }
	return &Config{
		ProjectRoot:         root,
		PublicDir:           join(DefaultPublicDir),
		OutDir:              join(DefaultOutDir),
		EntryPoints:         []string{join(DefaultEntryPoint)},
		IndexHTML:           join(DefaultIndexHTML),
		LocalConfig:         join(DefaultLocalConfig),
		LocalConfigTemplate: join(DefaultLocalConfigTemplate),
		Target:              DefaultTarget,
		Minify:              true,
		Sourcemap:           true,
		EmptyOutDir:         true,
		OutputFormat:        DefaultOutput,
		Framework: FrameworkConfig{
			SourcePath:         "src/solid/packages/solid",
			BuiltPath:          "src/vendor/solid",
			TransitionGroupDir: "src/vendor/solid-transition-group",
		},
		Server: ServerConfig{Port: DefaultPort},
		SSL:    SSLConfig{Name: DefaultSSLName, CertDir: join(DefaultCertDir)},
		HTML: HTMLConfig{
			Title:       "Telegram Web",
			Description: "Telegram is a cloud-based mobile and desktop messaging app with a focus on security and speed.",
			URL:         "https://web.telegram.org/k/",
			Origin:      "https://web.telegram.org/",
		},
		Checker: CheckerConfig{
			Enabled:           true,
			TypeScriptCommand: []string{"tsc", "--noEmit"},
			LintCommand:       []string{"eslint", "./src/**/*.{ts,tsx}", "--ignore-pattern", "/src/solid/*"},
		},
		Visualizer: VisualizerConfig{Filename: join(DefaultStatsFile), GzipSize: true},
		LangWatch:  LangWatchConfig{File: join(DefaultLangFile)},
	}
}
