package devserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/leapstack-labs/leapbuild/internal/plugins"
	"github.com/leapstack-labs/leapbuild/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDirs(t *testing.T) (outDir, publicDir string) {
	t.Helper()
	root := t.TempDir()
	outDir = filepath.Join(root, "dist")
	publicDir = testutil.SetupPublicDir(t, root)
	testutil.WriteFile(t, outDir, "index.js", "console.log('built')")
	testutil.WriteFile(t, outDir, "index.html", "<html><body><p>app</p></body></html>")
	// shadows the public copy
	testutil.WriteFile(t, outDir, "site.webmanifest", `{"name":"built"}`)
	return outDir, publicDir
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandler_ServesOutDirThenPublicDir(t *testing.T) {
	outDir, publicDir := setupDirs(t)
	h := New(Config{OutDir: outDir, PublicDir: publicDir, Logger: testutil.NewTestLogger(t)}).Handler()

	tests := []struct {
		target string
		code   int
		body   string
	}{
		{target: "/index.js", code: http.StatusOK, body: "console.log('built')"},
		{target: "/site.webmanifest", code: http.StatusOK, body: `{"name":"built"}`},
		{target: "/assets/img/favicon.ico", code: http.StatusOK, body: "ICO"},
		{target: "/assets/audio/deep/nested/ping.mp3", code: http.StatusOK, body: "MP3"},
		{target: "/robots.txt", code: http.StatusOK, body: "User-agent: *"},
		{target: "/", code: http.StatusOK, body: "<p>app</p>"},
		{target: "/chats/42", code: http.StatusOK, body: "<p>app</p>"},
		{target: "/missing.js", code: http.StatusNotFound},
		{target: "/../../etc/hosts.conf", code: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestHandler_InjectsReloadScript(t *testing.T) {
	outDir, publicDir := setupDirs(t)
	h := New(Config{OutDir: outDir, PublicDir: publicDir, Reloader: NewReloader()}).Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, ReloadPath)
	assert.Less(t, strings.Index(body, ReloadPath), strings.Index(body, "</body>"))
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = get(t, h, "/index.js")
	assert.NotContains(t, rec.Body.String(), ReloadPath)
}

func TestReloader_Broadcast(t *testing.T) {
	r := NewReloader()
	ch1 := r.Subscribe()
	ch2 := r.Subscribe()
	assert.Equal(t, 2, r.Listeners())

	r.Broadcast()
	r.Broadcast() // pending ping is not duplicated

	for _, ch := range []chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			t.Fatal("listener did not receive broadcast")
		}
		select {
		case <-ch:
			t.Fatal("listener received a duplicate ping")
		default:
		}
	}

	r.Unsubscribe(ch1)
	r.Unsubscribe(ch2)
	assert.Zero(t, r.Listeners())
}

func TestReloader_PluginBroadcastsOnSuccessOnly(t *testing.T) {
	r := NewReloader()
	ch := r.Subscribe()
	defer r.Unsubscribe(ch)

	var onEnd func(*api.BuildResult) (api.OnEndResult, error)
	r.Plugin().Setup(api.PluginBuild{
		InitialOptions: &api.BuildOptions{},
		OnEnd: func(cb func(*api.BuildResult) (api.OnEndResult, error)) {
			onEnd = cb
		},
	})
	require.NotNil(t, onEnd)

	_, err := onEnd(&api.BuildResult{Errors: []api.Message{{Text: "boom"}}})
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("failed build must not reload")
	default:
	}

	_, err = onEnd(&api.BuildResult{})
	require.NoError(t, err)
	select {
	case <-ch:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("successful build did not reload")
	}
}

func TestReloadEvents(t *testing.T) {
	outDir, publicDir := setupDirs(t)
	reloader := NewReloader()
	srv := httptest.NewServer(New(Config{OutDir: outDir, PublicDir: publicDir, Reloader: reloader}).Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+ReloadPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return reloader.Listeners() == 1 }, time.Second, 10*time.Millisecond)
	reloader.Broadcast()

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event:") {
			break
		}
	}
	assert.Equal(t, "event: reload\n", line)
}

func TestServe_GracefulShutdown(t *testing.T) {
	outDir, publicDir := setupDirs(t)
	s := New(Config{Host: "127.0.0.1", OutDir: outDir, PublicDir: publicDir, Logger: testutil.NewTestLogger(t)})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := s.URL(ln.Addr())
	assert.True(t, strings.HasPrefix(url, "http://127.0.0.1:"))

	resp, err := http.Get(url + "/index.js") //nolint:noctx // test request
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "console.log('built')", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_TLS(t *testing.T) {
	outDir, publicDir := setupDirs(t)
	certFile, keyFile, _, err := plugins.EnsureCertificate(t.TempDir(), "localhost", time.Now())
	require.NoError(t, err)

	s := New(Config{
		Host:      "127.0.0.1",
		OutDir:    outDir,
		PublicDir: publicDir,
		TLS:       plugins.ServerOptions{CertFile: certFile, KeyFile: keyFile},
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := s.URL(ln.Addr())
	require.True(t, strings.HasPrefix(url, "https://"))

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // self-signed test certificate
	}}
	resp, err := client.Get(url + "/index.js") //nolint:noctx // test request
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}

func TestURL(t *testing.T) {
	s := New(Config{Port: 8080})
	assert.Equal(t, "http://localhost:8080", s.URL(nil))
	assert.Equal(t, ":8080", s.Addr())
}
