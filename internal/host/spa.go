package host

import (
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/IlyaErmolovich/gc-frontend/internal/apperrors"
	"github.com/IlyaErmolovich/gc-frontend/internal/logger"
)

// dirIndexFile is the name http.FileServer looks for in a directory
const dirIndexFile = "index.html"

// spaHandler serves the files of the build directory and answers every other path with the entry document,
// so client-side routes survive a reload
type spaHandler struct {
	fsys      fs.FS
	indexFile string
	files     http.Handler
}

func newSPAHandler(fsys fs.FS, indexFile string) *spaHandler {
	return &spaHandler{
		fsys:      fsys,
		indexFile: indexFile,
		files:     http.FileServerFS(fsys),
	}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")

	// the file server redirects requests for index.html to the directory, so the entry document is always served here
	if name != "" && name != h.indexFile {
		info, err := fs.Stat(h.fsys, name)
		if err == nil && (info.Mode().IsRegular() || info.IsDir() && h.hasDirIndex(name)) {
			h.files.ServeHTTP(w, r)
			return
		}
	}

	h.serveIndex(w, r, name)
}

// hasDirIndex reports whether dir has its own index document, which the file server serves for dir/
func (h *spaHandler) hasDirIndex(dir string) bool {
	info, err := fs.Stat(h.fsys, path.Join(dir, dirIndexFile))
	return err == nil && info.Mode().IsRegular()
}

func (h *spaHandler) serveIndex(w http.ResponseWriter, r *http.Request, requested string) {
	info, err := fs.Stat(h.fsys, h.indexFile)
	if err == nil && !info.Mode().IsRegular() {
		err = errors.New("not a regular file")
	}
	var data []byte
	if err == nil {
		data, err = fs.ReadFile(h.fsys, h.indexFile)
	}
	if err != nil {
		logger.ContextMiddlewareLogger(r.Context()).Error("entry document unavailable",
			slog.String("component", "spaHandler.serveIndex"),
			slog.String("file", h.indexFile),
			slog.String("error", err.Error()),
		)
		RespondWithError(w, r, http.StatusInternalServerError, apperrors.ErrCodeEntryDocument, "Entry document not available")
		return
	}

	if requested != "" && requested != h.indexFile {
		logger.ContextWithLogAttrs(r.Context(), slog.Bool("entry_document_fallback", true))
	}

	// the entry document names the hashed assets of the current deployment, so it is revalidated on every load.
	// Paths under /api/ keep their no-store policy.
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Cache-Control", cacheRevalidate)
	}
	http.ServeContent(w, r, h.indexFile, info.ModTime(), bytes.NewReader(data))
}
