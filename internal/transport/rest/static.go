package rest

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/frahmantamala/hse-inspection/internal/transport"
)

// StaticHandler serves the frontend bundle. Unknown paths fall back to
// index.html so client-side routes such as /admin load the app shell.
type StaticHandler struct {
	*transport.BaseHandler
	dir string
}

func NewStaticHandler(base *transport.BaseHandler, dir string) *StaticHandler {
	return &StaticHandler{BaseHandler: base, dir: dir}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.dir == "" || strings.HasPrefix(r.URL.Path, "/api/") {
		h.NotFound(w, r)
		return
	}

	name := filepath.Join(h.dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}

	index := filepath.Join(h.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		h.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
