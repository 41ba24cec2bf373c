package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// Fixture contents written by SetupWebProject.
const (
	EnvTemplate = "BACKEND_URL=http://localhost:54321\nBACKEND_ANON_KEY=dev\n"
	IndexHTML   = "<!doctype html>\n<html>\n<head><title>{{title}}</title>\n<meta name=\"description\" content=\"{{description}}\">\n</head>\n<body><script type=\"module\" src=\"./index.js\"></script></body>\n</html>\n"
	EntryTS     = "const greeting: string = 'hello';\nconsole.log(greeting);\n"
)

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

// SetupPublicDir creates a public directory with nested assets, one manifest
// and one worker payload. The remaining named files are left absent.
func SetupPublicDir(t testing.TB, root string) string {
	t.Helper()
	public := filepath.Join(root, "public")

	WriteFile(t, public, "assets/img/favicon.ico", "ICO")
	WriteFile(t, public, "assets/img/logo.svg", "<svg/>")
	WriteFile(t, public, "assets/fonts/roboto.woff2", "WOFF2")
	WriteFile(t, public, "assets/audio/deep/nested/ping.mp3", "MP3")
	WriteFile(t, public, "site.webmanifest", `{"name":"web"}`)
	WriteFile(t, public, "rlottie-wasm.wasm", "\x00asm\x01\x00\x00\x00")
	// not whitelisted, must never be published
	WriteFile(t, public, "robots.txt", "User-agent: *")

	return public
}

// SetupWebProject creates a temporary web project: template env file,
// index.html, an entry point and a public directory.
func SetupWebProject(t testing.TB) string {
	t.Helper()
	root := t.TempDir()

	WriteFile(t, root, ".env.local.example", EnvTemplate)
	WriteFile(t, root, "index.html", IndexHTML)
	WriteFile(t, root, "src/index.ts", EntryTS)
	SetupPublicDir(t, root)

	return root
}

// ReadTree returns every regular file under dir keyed by slash-separated
// relative path.
func ReadTree(t testing.TB, dir string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path) //nolint:gosec // G304: test fixture path
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read tree %s: %v", dir, err)
	}
	return tree
}
