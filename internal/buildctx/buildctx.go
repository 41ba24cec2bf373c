// Package buildctx captures the process-wide inputs of one build evaluation.
//
// Environment variables are read exactly once, in FromEnv, and parsed into
// typed values. Everything downstream (framework resolution, bootstrapping,
// plugin composition) receives a Context and never touches the environment.
package buildctx

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Environment variable names read by FromEnv.
const (
	EnvNodeEnv     = "NODE_ENV"
	EnvVitest      = "VITEST"
	EnvTestRun     = "LEAPBUILD_TEST_RUN"
	EnvUseOwnSolid = "USE_OWN_SOLID"
)

// Mode distinguishes development evaluations from everything else.
type Mode int

// Build modes.
const (
	ModeProduction Mode = iota
	ModeDevelopment
)

// String returns the NODE_ENV spelling of the mode.
func (m Mode) String() string {
	if m == ModeDevelopment {
		return "development"
	}
	return "production"
}

// ParseMode maps a NODE_ENV value to a Mode.
// Only the exact string "development" selects development.
func ParseMode(raw string) Mode {
	if raw == "development" {
		return ModeDevelopment
	}
	return ModeProduction
}

// Command is the build-tool command being evaluated.
type Command int

// Commands.
const (
	CommandBuild Command = iota
	CommandServe
)

func (c Command) String() string {
	if c == CommandServe {
		return "serve"
	}
	return "build"
}

// BuildMode is the mode plus whether the test runner is active.
type BuildMode struct {
	Mode    Mode
	TestRun bool
}

// IsDev reports whether this is a development evaluation.
func (m BuildMode) IsDev() bool {
	return m.Mode == ModeDevelopment
}

// Override is the tri-state framework source override: Auto or Forced(bool).
// The zero value is Auto.
type Override struct {
	forced bool
	value  bool
}

// Auto returns the unset override.
func Auto() Override {
	return Override{}
}

// Forced returns an explicit override.
func Forced(v bool) Override {
	return Override{forced: true, value: v}
}

// ParseOverride parses the raw USE_OWN_SOLID value.
// Empty means Auto, "true" means Forced(true), any other value is Forced(false).
func ParseOverride(raw string) Override {
	if raw == "" {
		return Auto()
	}
	return Forced(raw == "true")
}

// IsAuto reports whether no explicit override was given.
func (o Override) IsAuto() bool {
	return !o.forced
}

// Value returns the forced value and whether the override is forced.
func (o Override) Value() (value, forced bool) {
	return o.value, o.forced
}

func (o Override) String() string {
	switch {
	case !o.forced:
		return "auto"
	case o.value:
		return "forced(true)"
	default:
		return "forced(false)"
	}
}

// Context is the immutable input of one build evaluation.
type Context struct {
	ID       string
	Root     string
	Mode     BuildMode
	Command  Command
	Override Override
}

// Options tweak how FromEnv builds a Context.
type Options struct {
	// Root is the project root. Relative roots are made absolute.
	Root string
	// Command being evaluated.
	Command Command
	// ForceDevelopment ignores NODE_ENV and evaluates in development mode.
	ForceDevelopment bool
	// Lookup reads an environment variable. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

// FromEnv constructs the Context for one evaluation.
func FromEnv(opts Options) (Context, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Context{}, err
	}

	mode := ParseMode(get(EnvNodeEnv))
	if opts.ForceDevelopment {
		mode = ModeDevelopment
	}

	return Context{
		ID:   uuid.NewString(),
		Root: absRoot,
		Mode: BuildMode{
			Mode:    mode,
			TestRun: get(EnvVitest) != "" || get(EnvTestRun) != "",
		},
		Command:  opts.Command,
		Override: ParseOverride(get(EnvUseOwnSolid)),
	}, nil
}

// Path joins elements onto the project root.
func (c Context) Path(elem ...string) string {
	return filepath.Join(append([]string{c.Root}, elem...)...)
}
