package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/cli/config"
	"github.com/leapstack-labs/leapbuild/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new leapbuild project",
		Long: `Initialize a new web client project with the default layout.

This creates:
  - leapbuild.yaml configuration file
  - index.html template
  - .env.local.example local configuration template
  - src/ with an entry point and the language file
  - public/ with a web manifest`,
		Example: `  # Initialize in current directory
  leapbuild init

  # Initialize in a new directory
  leapbuild init my-app

  # Force overwrite existing files
  leapbuild init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	if err := copyTemplate("minimal", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles("minimal")
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("leapbuild project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Put favicon.ico under public/assets/img/")
	r.Println("  2. Run 'leapbuild doctor' to check the setup")
	r.Println("  3. Run 'leapbuild dev' to start the dev server")
	r.Println("  4. Run 'leapbuild build' for a production bundle")

	return nil
}
