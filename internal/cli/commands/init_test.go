package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbuild/internal/cli/testutil"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name: "init empty directory",
			wantFiles: []string{
				"leapbuild.yaml",
				"index.html",
				".env.local.example",
				".gitignore",
				"src/index.ts",
				"src/lang.ts",
				"public/site.webmanifest",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapbuild.yaml"), []byte("existing"), 0600)
			},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapbuild.yaml"), []byte("existing"), 0600)
			},
			args:      []string{"--force"},
			wantFiles: []string{"leapbuild.yaml", "src/index.ts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			_, err := execute(t, NewInitCommand(), tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				assert.FileExists(t, filepath.Join(tmpDir, filepath.FromSlash(f)))
			}
			content, err := os.ReadFile(filepath.Join(tmpDir, "leapbuild.yaml"))
			require.NoError(t, err)
			assert.NotEqual(t, "existing", string(content))
		})
	}
}

func TestInitCommand_KeepsExistingFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "index.ts"), []byte("// mine"), 0600))

	_, err := execute(t, NewInitCommand(), dir)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "src", "index.ts"))
	require.NoError(t, err)
	assert.Equal(t, "// mine", string(content))
	assert.FileExists(t, filepath.Join(dir, "leapbuild.yaml"))
}

func TestInitCommand_ProjectBuilds(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	_, err := execute(t, NewInitCommand(), dir)
	require.NoError(t, err)

	testutil.LoadProject(t, dir, "--output", "json")
	out, err := execute(t, NewBuildCommand())
	require.NoError(t, err, out)

	html, err := os.ReadFile(filepath.Join(dir, "dist", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>My App</title>")
	assert.FileExists(t, filepath.Join(dir, "dist", "site.webmanifest"))
}

func TestRenameSpecialFiles(t *testing.T) {
	assert.Equal(t, ".gitignore", renameSpecialFiles("gitignore"))
	assert.Equal(t, ".env.local.example", renameSpecialFiles("env.local.example"))
	assert.Equal(t, "src/index.ts", renameSpecialFiles("src/index.ts"))
	assert.Equal(t, "sub/.gitignore", renameSpecialFiles("sub/gitignore"))
}
