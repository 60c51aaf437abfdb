package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/starford/hypermind/internal/hyperservice"
	"github.com/starford/hypermind/internal/settings"
	"github.com/starford/hypermind/internal/storage"
)

// RouterConfig carries the optional pieces of the API.
type RouterConfig struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Exports, if non-nil, enables the saved-export endpoints.
	Exports storage.Provider
	// StreamLimiter throttles generate and wormhole requests.
	StreamLimiter *rate.Limiter
	// Settings, if non-nil, enables reading and saving the model selection.
	Settings *settings.Store
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *hyperservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))
	r.Use(HypergraphMiddleware)

	r.Post("/hypergraph/create", h.Create)
	r.Post("/hypergraph/isValid", h.IsValid)
	r.Post("/hypergraph/graphData", h.GraphData)

	r.Post("/hyperedges/all", h.All)
	r.Post("/hyperedges/add", h.Add)
	r.Post("/hyperedges/remove", h.Remove)
	r.Post("/hyperedges/export", h.Export)

	// Streaming endpoints.
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg.StreamLimiter))
		r.Post("/hyperedges/generate", h.Generate)
		r.Post("/hyperedges/wormhole", h.Wormhole)
	})

	if cfg.Exports != nil {
		eh := NewExportHandler(svc, cfg.Exports)
		r.Get("/exports", eh.List)
		r.Post("/exports", eh.Save)
		r.Get("/exports/{filename}", eh.ServeFile)
	}

	if cfg.Settings != nil {
		sh := NewSettingsHandler(cfg.Settings)
		r.Post("/settings/get", sh.Get)
		r.Post("/settings/update", sh.Update)
	}

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
