package plugins

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"

	"github.com/evanw/esbuild/pkg/api"
)

// CommandRunner runs an external command in dir and returns its combined output.
type CommandRunner func(ctx context.Context, dir string, argv []string) ([]byte, error)

// checkerRunner is swapped in tests.
var checkerRunner CommandRunner = execCommand

func execCommand(ctx context.Context, dir string, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // G204: argv comes from project config
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// newChecker runs the type checker and linter in the background whenever a
// build starts. Diagnostics are logged; they never fail the build. A check
// still running when the next build starts is not restarted.
func newChecker(env Env) Plugin {
	cfg := env.Config.Checker
	logger := env.Logger.With("plugin", NameChecker)
	run := checkerRunner

	var commands [][]string
	for _, argv := range [][]string{cfg.TypeScriptCommand, cfg.LintCommand} {
		if len(argv) > 0 {
			commands = append(commands, argv)
		}
	}

	return Plugin{
		Name: NameChecker,
		Setup: func(build api.PluginBuild) {
			ctx, cancel := context.WithCancel(context.Background())
			var running atomic.Bool

			build.OnStart(func() (api.OnStartResult, error) {
				if !running.CompareAndSwap(false, true) {
					return api.OnStartResult{}, nil
				}
				go func() {
					defer running.Store(false)
					for _, argv := range commands {
						runCheck(ctx, run, env.Build.Root, argv, logger)
					}
				}()
				return api.OnStartResult{}, nil
			})
			build.OnDispose(cancel)
		},
	}
}

func runCheck(ctx context.Context, run CommandRunner, dir string, argv []string, logger *slog.Logger) {
	out, err := run(ctx, dir, argv)
	if ctx.Err() != nil {
		return
	}
	name := argv[0]
	if err != nil {
		logger.Warn("check reported problems", "command", name, "error", err, "output", strings.TrimSpace(string(out)))
		return
	}
	logger.Info("check passed", "command", name)
}
