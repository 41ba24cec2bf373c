// Package devserver serves a development build over HTTP.
//
// Files are looked up in the output directory first and then in the public
// directory, since development builds do not publish static assets. Paths
// without an extension fall back to index.html so client-side routes load.
package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapbuild/internal/plugins"
)

// Config holds configuration for the development server.
type Config struct {
	Host      string
	Port      int
	OutDir    string
	PublicDir string
	// TLS carries certificate paths contributed by plugins.
	TLS      plugins.ServerOptions
	Reloader *Reloader
	Logger   *slog.Logger
}

// Server is the development HTTP server.
type Server struct {
	cfg    Config
	roots  []fs.FS
	logger *slog.Logger
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var roots []fs.FS
	for _, dir := range []string{cfg.OutDir, cfg.PublicDir} {
		if dir != "" {
			roots = append(roots, os.DirFS(dir))
		}
	}
	return &Server{cfg: cfg, roots: roots, logger: logger}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
			NoColor: true,
		}),
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if s.cfg.Reloader != nil {
		r.Get(ReloadPath, s.cfg.Reloader.handleEvents)
	}
	r.Get("/*", s.handleFile)
	r.Head("/*", s.handleFile)
	return r
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}

	fsys, name, ok := s.lookup(name)
	if !ok && path.Ext(name) == "" {
		fsys, name, ok = s.lookup("index.html")
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	if path.Ext(name) == ".html" && s.cfg.Reloader != nil {
		s.serveHTML(w, r, fsys, name)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFileFS(w, r, fsys, name)
}

// lookup finds the first root holding a regular file called name.
func (s *Server) lookup(name string) (fs.FS, string, bool) {
	for _, fsys := range s.roots {
		info, err := fs.Stat(fsys, name)
		if err == nil && info.Mode().IsRegular() {
			return fsys, name, true
		}
	}
	return nil, "", false
}

func (s *Server) serveHTML(w http.ResponseWriter, r *http.Request, fsys fs.FS, name string) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if i := bytes.LastIndex(data, []byte("</body>")); i >= 0 {
		data = append(data[:i:i], append([]byte(reloadScript), data[i:]...)...)
	} else {
		data = append(data, reloadScript...)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// URL returns the browser URL for a listener address.
func (s *Server) URL(addr net.Addr) string {
	scheme := "http"
	if s.cfg.TLS.TLS() {
		scheme = "https"
	}
	host := s.cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	port := strconv.Itoa(s.cfg.Port)
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = strconv.Itoa(tcp.Port)
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, port))
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting dev server", "url", s.URL(ln.Addr()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		var err error
		if s.cfg.TLS.TLS() {
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down dev server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
