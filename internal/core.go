package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/hypermind/internal/generate"
	"github.com/starford/hypermind/internal/hypergraph"
	"github.com/starford/hypermind/internal/hyperservice"
	"github.com/starford/hypermind/internal/metrics"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/settings"
	"github.com/starford/hypermind/internal/sse"
	"github.com/starford/hypermind/internal/storage"
)

const scrapeTimeout = 20 * time.Second

// core is the set of components shared by every entry point.
type core struct {
	cfg      *Config
	logger   *slog.Logger
	db       *hypergraph.DB
	broker   *sse.Broker
	metrics  *metrics.Collector
	settings *settings.Store
	exports  storage.Provider
	svc      *hyperservice.Service
}

// newLogger installs a JSON logger writing to w as the default logger.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// newGenerator routes "offline" to the heuristic and every other service to
// the OpenAI-compatible backend behind a circuit breaker. Without a base URL
// everything stays offline.
func newGenerator(cfg LLMConfig, logger *slog.Logger) generate.Generator {
	mux := generate.NewMux(generate.Heuristic{})
	if cfg.BaseURL == "" {
		return mux
	}
	remote := generate.NewBreaker(generate.NewOpenAI(generate.OpenAIConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}), cfg.Breaker.Generator("llm"), logger)
	mux = generate.NewMux(remote)
	mux.Handle(generate.ServiceOffline, generate.Heuristic{})
	return mux
}

// newCore opens the store and builds the service. The caller must call close.
func newCore(cfg *Config, logger *slog.Logger) (*core, error) {
	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := hypergraph.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init hypergraph store: %w", err)
	}

	exports, err := storage.NewFS(cfg.Exports.Path)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init exports storage: %w", err)
	}
	settingsFiles, err := storage.NewFS(filepath.Dir(cfg.Settings.Path))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init settings storage: %w", err)
	}

	defaults := settings.Settings{LLM: models.LLM{Service: cfg.LLM.Service, Model: cfg.LLM.Model}}
	st := settings.NewStore(settingsFiles, filepath.Base(cfg.Settings.Path), defaults, logger)
	if _, err := st.Load(); err != nil {
		logger.Warn("settings file ignored", slog.String("error", err.Error()))
	}

	c := &core{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		broker:   sse.NewBroker(2 * time.Second),
		metrics:  metrics.NewCollector("hypermind"),
		settings: st,
		exports:  exports,
	}
	c.svc = hyperservice.NewService(db, newGenerator(cfg.LLM, logger),
		hyperservice.WithScraper(generate.NewScraper(scrapeTimeout)),
		hyperservice.WithPublisher(c.broker),
		hyperservice.WithMetrics(c.metrics),
		hyperservice.WithLogger(logger),
		hyperservice.WithDefaultLLM(st.LLM),
	)
	return c, nil
}

// watchSettings reloads the settings file until ctx is done.
func (c *core) watchSettings(ctx context.Context) error {
	return c.settings.Watch(ctx, settings.DefaultDebounce)
}

func (c *core) close() {
	c.broker.Close()
	if err := c.db.Close(); err != nil {
		c.logger.Error("close hypergraph store", slog.String("error", err.Error()))
	}
}
