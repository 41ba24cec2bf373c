package devserver

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

// ReloadPath is the server-sent events endpoint browsers subscribe to.
const ReloadPath = "/__leapbuild/reload"

// reloadScript is appended to served HTML pages.
var reloadScript = fmt.Sprintf(`<script type="module">new EventSource(%q).addEventListener("reload", () => location.reload());</script>`, ReloadPath)

// Reloader broadcasts rebuild signals to connected browsers. Listeners
// receive an empty struct per rebuild and should reload.
type Reloader struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
}

// NewReloader creates a Reloader with no listeners.
func NewReloader() *Reloader {
	return &Reloader{listeners: make(map[chan struct{}]struct{})}
}

// Subscribe returns a channel that receives a ping per rebuild.
// The caller must call Unsubscribe when done.
func (r *Reloader) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.listeners[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (r *Reloader) Unsubscribe(ch chan struct{}) {
	r.mu.Lock()
	delete(r.listeners, ch)
	r.mu.Unlock()
	close(ch)
}

// Broadcast pings every listener. A listener with a pending ping is skipped.
func (r *Reloader) Broadcast() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ch := range r.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Listeners returns the number of connected listeners.
func (r *Reloader) Listeners() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Plugin returns an esbuild plugin that broadcasts after every successful
// rebuild.
func (r *Reloader) Plugin() api.Plugin {
	return api.Plugin{
		Name: "live-reload",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) == 0 {
					r.Broadcast()
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}

func (r *Reloader) handleEvents(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ch := r.Subscribe()
	defer r.Unsubscribe(ch)

	for {
		select {
		case <-req.Context().Done():
			return
		case <-ch:
			if _, err := fmt.Fprint(w, "event: reload\ndata: {}\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
