// Package framework decides which SolidJS implementation a build wires in
// and computes the module alias table for that choice.
package framework

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/leapbuild/internal/buildctx"
)

// Default vendored locations, relative to the project root.
const (
	DefaultSourcePath         = "src/solid/packages/solid"
	DefaultBuiltPath          = "src/vendor/solid"
	DefaultTransitionGroupDir = "src/vendor/solid-transition-group"
)

// ErrPartialAliasTable is returned by Validate when only some framework
// specifiers are aliased.
var ErrPartialAliasTable = errors.New("partial framework alias table")

// Choice is where the framework is loaded from.
type Choice int

// Framework sources.
const (
	UseExternalPackage Choice = iota
	UseVendoredSource
	UseVendoredBuilt
)

func (c Choice) String() string {
	switch c {
	case UseVendoredSource:
		return "vendored-source"
	case UseVendoredBuilt:
		return "vendored-built"
	default:
		return "external-package"
	}
}

// IsVendored reports whether the choice points into the project tree.
func (c Choice) IsVendored() bool {
	return c == UseVendoredSource || c == UseVendoredBuilt
}

// Layout locates the vendored framework trees.
type Layout struct {
	Root               string
	SourcePath         string
	BuiltPath          string
	TransitionGroupDir string
	// UseSource selects the source tree over the pre-built one.
	UseSource bool
}

// DefaultLayout returns the conventional layout under root.
func DefaultLayout(root string) Layout {
	return Layout{
		Root:               root,
		SourcePath:         DefaultSourcePath,
		BuiltPath:          DefaultBuiltPath,
		TransitionGroupDir: DefaultTransitionGroupDir,
	}
}

// VendoredPath is the absolute path of the vendored tree selected by UseSource.
// It is also the path probed when no override is set.
func (l Layout) VendoredPath() string {
	rel := l.BuiltPath
	if l.UseSource {
		rel = l.SourcePath
	}
	return l.abs(rel)
}

func (l Layout) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.Root, p)
}

// Resolver maps an override and a filesystem probe to a Choice.
type Resolver struct {
	UseSource bool
	// Exists reports whether a path exists. Defaults to an os.Stat probe.
	Exists func(path string) bool
}

// Resolve picks the framework source. An explicit override always wins and
// does not re-check that the vendored tree exists.
func (r Resolver) Resolve(override buildctx.Override, probePath string) Choice {
	vendored := UseVendoredBuilt
	if r.UseSource {
		vendored = UseVendoredSource
	}

	if value, forced := override.Value(); forced {
		if value {
			return vendored
		}
		return UseExternalPackage
	}

	exists := r.Exists
	if exists == nil {
		exists = pathExists
	}
	if exists(probePath) {
		return vendored
	}
	return UseExternalPackage
}

// ResolveLayout resolves against the layout's own probe path.
func ResolveLayout(override buildctx.Override, layout Layout) Choice {
	return Resolver{UseSource: layout.UseSource}.Resolve(override, layout.VendoredPath())
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// AliasTable maps import specifiers to filesystem paths.
type AliasTable map[string]string

// specifier -> sub-path inside the vendored tree
var frameworkSpecifiers = []struct {
	specifier string
	subPath   string
}{
	{"rxcore", "web/core"},
	{"solid-js/jsx-runtime", "jsx"},
	{"solid-js/web", "web"},
	{"solid-js/store", "store"},
	{"solid-js", ""},
}

// FrameworkSpecifiers lists the specifiers aliased for a vendored framework.
func FrameworkSpecifiers() []string {
	out := make([]string, len(frameworkSpecifiers))
	for i, s := range frameworkSpecifiers {
		out[i] = s.specifier
	}
	return out
}

// UnconditionalAliases returns the aliases present for every choice.
func UnconditionalAliases(layout Layout) AliasTable {
	dir := layout.TransitionGroupDir
	if dir == "" {
		dir = DefaultTransitionGroupDir
	}
	return AliasTable{
		"solid-transition-group": layout.abs(dir),
	}
}

// BuildAliasTable returns the alias table for choice. For an external package
// only the unconditional aliases are returned.
func BuildAliasTable(choice Choice, layout Layout) AliasTable {
	table := UnconditionalAliases(layout)
	if !choice.IsVendored() {
		return table
	}

	base := layout.abs(layout.BuiltPath)
	if choice == UseVendoredSource {
		base = layout.abs(layout.SourcePath)
	}
	for _, s := range frameworkSpecifiers {
		table[s.specifier] = filepath.Join(base, s.subPath)
	}
	return table
}

// Validate checks that either every framework specifier is aliased or none is.
func (t AliasTable) Validate() error {
	var present []string
	for _, s := range frameworkSpecifiers {
		if _, ok := t[s.specifier]; ok {
			present = append(present, s.specifier)
		}
	}
	if len(present) != 0 && len(present) != len(frameworkSpecifiers) {
		return fmt.Errorf("%w: %d of %d specifiers aliased (%v)",
			ErrPartialAliasTable, len(present), len(frameworkSpecifiers), present)
	}
	return nil
}

// Keys returns the table's specifiers in sorted order.
func (t AliasTable) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
