package config

import (
	"fmt"
	"path/filepath"
)

var validOutputFormats = map[string]bool{
	"auto": true, "text": true, "markdown": true, "json": true, "yaml": true,
}

// Validate rejects missing or contradictory settings. Paths are expected to
// be resolved already.
func (c *Config) Validate() error {
	if len(c.EntryPoints) == 0 {
		return fmt.Errorf("entry_points is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("out_dir is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Publish.Concurrency < 0 {
		return fmt.Errorf("publish.concurrency must not be negative")
	}
	if !validOutputFormats[c.OutputFormat] {
		return fmt.Errorf("unknown output format %q (want auto|text|markdown|json|yaml)", c.OutputFormat)
	}

	// The output directory is emptied before each build; it must not be
	// the project or anything the build reads from.
	out := filepath.Clean(c.OutDir)
	if c.ProjectRoot != "" && out == filepath.Clean(c.ProjectRoot) {
		return fmt.Errorf("out_dir must not be the project root: %s", c.OutDir)
	}
	if c.PublicDir != "" && out == filepath.Clean(c.PublicDir) {
		return fmt.Errorf("out_dir must differ from public_dir: %s", c.OutDir)
	}
	return nil
}
