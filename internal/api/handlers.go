package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/hyperservice"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc *hyperservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *hyperservice.Service) *Handler {
	return &Handler{svc: svc}
}

// fail maps service errors onto the JSON envelope.
func fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, hyperservice.ErrMissingInput):
		writeJSON(w, http.StatusBadRequest, errorBody("missing input"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid input"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrBusy):
		writeJSON(w, http.StatusTooManyRequests, errorBody("busy"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// requireID writes 400 and returns false when no hypergraph id was sent.
func requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := hypergraphID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("hypergraph id is required"))
		return "", false
	}
	return id, true
}

// Create handles POST /api/hypergraph/create.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Create(r.Context())
	if err != nil {
		fail(w, "create hypergraph", err)
		return
	}
	writeOK(w, http.StatusOK, models.IDResponse{ID: id})
}

// IsValid handles POST /api/hypergraph/isValid.
func (h *Handler) IsValid(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.IsValid(r.Context(), hypergraphID(r))
	if err != nil {
		fail(w, "validate hypergraph", err)
		return
	}
	writeOK(w, http.StatusOK, ok)
}

// GraphData handles POST /api/hypergraph/graphData.
func (h *Handler) GraphData(w http.ResponseWriter, r *http.Request) {
	var req models.GraphDataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	data, err := h.svc.GraphData(r.Context(), hypergraphID(r), req.Filters, req.Options)
	if err != nil {
		fail(w, "graph data", err)
		return
	}
	writeOK(w, http.StatusOK, data)
}

// All handles POST /api/hyperedges/all.
func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	edges, err := h.svc.All(r.Context(), hypergraphID(r))
	if err != nil {
		fail(w, "list hyperedges", err)
		return
	}
	writeOK(w, http.StatusOK, edges)
}

// Add handles POST /api/hyperedges/add.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var req models.AddRequest
	if !decodeBody(w, r, &req) {
		return
	}
	edgeID, err := h.svc.Add(r.Context(), id, req.Path, req.Symbol)
	if err != nil {
		fail(w, "add hyperedge", err)
		return
	}
	writeOK(w, http.StatusOK, models.IDResponse{ID: edgeID})
}

// Remove handles POST /api/hyperedges/remove.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var req models.RemoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Remove(r.Context(), id, req.Path); err != nil {
		fail(w, "remove hyperedge", err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// Export handles POST /api/hyperedges/export. The CSV is returned as the
// envelope's data string.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.Export(r.Context(), hypergraphID(r))
	if err != nil {
		fail(w, "export hyperedges", err)
		return
	}
	writeOK(w, http.StatusOK, string(data))
}

// Generate handles POST /api/hyperedges/generate as an event stream.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var req models.GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("missing input"))
		return
	}
	stream := newLazyStream(w)
	err := h.svc.Generate(r.Context(), id, req.Input, req.LLM, stream.send)
	stream.finish("generate", err)
}

// Wormhole handles POST /api/hyperedges/wormhole as an event stream.
func (h *Handler) Wormhole(w http.ResponseWriter, r *http.Request) {
	id, ok := requireID(w, r)
	if !ok {
		return
	}
	var req models.WormholeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	stream := newLazyStream(w)
	err := h.svc.Wormhole(r.Context(), id, req, stream.send)
	stream.finish("wormhole", err)
}

// lazyStream commits the streaming response on the first event, so errors
// raised before any event can still be answered with the JSON envelope.
type lazyStream struct {
	w  http.ResponseWriter
	sw *sse.Writer
}

func newLazyStream(w http.ResponseWriter) *lazyStream {
	return &lazyStream{w: w}
}

func (s *lazyStream) send(ev models.Event) error {
	if s.sw == nil {
		sw, err := sse.NewWriter(s.w)
		if err != nil {
			return err
		}
		s.sw = sw
	}
	return s.sw.Send(ev)
}

func (s *lazyStream) finish(op string, err error) {
	if err == nil {
		return
	}
	if s.sw == nil {
		fail(s.w, op, err)
		return
	}
	// The stream is already committed; the client sees the connection end.
	slog.Warn(op+" stream aborted", slog.String("error", err.Error()))
}
