package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/hypermind/internal/hyperservice"
	"github.com/starford/hypermind/internal/parser"
	"github.com/starford/hypermind/internal/storage"
)

// ExportHandler saves CSV exports to storage and serves them back.
type ExportHandler struct {
	svc   *hyperservice.Service
	store storage.Provider
	now   func() time.Time
}

// NewExportHandler creates a handler writing into store.
func NewExportHandler(svc *hyperservice.Service, store storage.Provider) *ExportHandler {
	return &ExportHandler{svc: svc, store: store, now: time.Now}
}

// safeName validates that the filename is a plain .csv name (no path
// separators, no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if filepath.Ext(cleaned) != ".csv" {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// Save handles POST /api/exports: writes the current hypergraph as CSV.
func (h *ExportHandler) Save(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	edges, err := h.svc.All(r.Context(), id)
	if err != nil {
		fail(w, "export", err)
		return
	}
	if len(edges) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("nothing to export"))
		return
	}
	data, err := h.svc.Export(r.Context(), id)
	if err != nil {
		fail(w, "export", err)
		return
	}
	name := parser.ExportName(edges, h.now())
	if err := h.store.Write(name, data); err != nil {
		fail(w, "export write", err)
		return
	}
	writeOK(w, http.StatusCreated, exportInfo{
		Filename: name,
		Size:     int64(len(data)),
		URL:      "/api/exports/" + name,
	})
}

// List handles GET /api/exports.
func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	metas, err := h.store.List("", ".csv")
	if err != nil {
		fail(w, "list exports", err)
		return
	}
	out := make([]exportInfo, 0, len(metas))
	for _, m := range metas {
		out = append(out, exportInfo{
			Filename:  m.Path,
			Size:      m.Size,
			URL:       "/api/exports/" + m.Path,
			UpdatedAt: m.UpdatedAt,
		})
	}
	writeOK(w, http.StatusOK, out)
}

// ServeFile handles GET /api/exports/{filename}.
func (h *ExportHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name, err := safeName(chi.URLParam(r, "filename"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	abs, err := h.store.Path(name)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, abs)
}
