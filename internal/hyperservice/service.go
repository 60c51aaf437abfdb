// Package hyperservice coordinates the hypergraph store, the generation
// backend and change notifications behind one transport-neutral API.
package hyperservice

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/generate"
	"github.com/starford/hypermind/internal/hypergraph"
	"github.com/starford/hypermind/internal/metrics"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/parser"
	"github.com/starford/hypermind/internal/sse"
)

// Notices sent in-band on generation streams.
const (
	MsgScraping       = "Scraping URL..."
	MsgScraped        = "Scraped URL!"
	MsgScrapeFailed   = "Couldn't scrape URL"
	MsgGenerating     = "Generating..."
	MsgGenerated      = "Generated knowledge graph"
	MsgGenerateFailed = "Error while generating"
)

// ErrMissingInput is returned by Wormhole when neither the source selection
// nor the fallback text yields any input.
var ErrMissingInput = fmt.Errorf("missing input: %w", apperr.ErrInvalidInput)

var edgeIDPrefixRe = regexp.MustCompile(`^\d+:`)

// Scraper fetches a page and returns its readable text.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) (string, error)
}

// Publisher receives change notifications.
type Publisher interface {
	PublishChange(kind, hypergraphID string)
}

// SendFunc delivers one stream event to the caller. An error means the
// receiver is gone and the stream is aborted.
type SendFunc = func(models.Event) error

// Service is the hypergraph application service.
type Service struct {
	store      hypergraph.Store
	gen        generate.Generator
	scraper    Scraper
	publisher  Publisher
	metrics    *metrics.Collector
	logger     *slog.Logger
	defaultLLM func() models.LLM
}

// Option configures a Service.
type Option func(*Service)

// WithScraper enables URL inputs.
func WithScraper(s Scraper) Option {
	return func(svc *Service) { svc.scraper = s }
}

// WithPublisher sets the change publisher.
func WithPublisher(p Publisher) Option {
	return func(svc *Service) { svc.publisher = p }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(svc *Service) { svc.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// WithDefaultLLM supplies the selector used when a request names no service.
func WithDefaultLLM(f func() models.LLM) Option {
	return func(svc *Service) { svc.defaultLLM = f }
}

// NewService creates a new hypergraph service.
func NewService(store hypergraph.Store, gen generate.Generator, opts ...Option) *Service {
	s := &Service{store: store, gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new, empty hypergraph and returns its id.
func (s *Service) Create(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.store.Create(ctx, id); err != nil {
		return "", err
	}
	s.metrics.HypergraphCreated()
	s.logger.Debug("hyperservice: created hypergraph", slog.String("id", id))
	return id, nil
}

// IsValid reports whether id names an existing hypergraph.
func (s *Service) IsValid(ctx context.Context, id string) (bool, error) {
	return s.store.Exists(ctx, id)
}

// GraphData resolves the filtered subgraph of the hypergraph.
func (s *Service) GraphData(ctx context.Context, id string, filters models.Filters, opts models.GraphOptions) (models.GraphData, error) {
	edges, err := s.store.Hyperedges(ctx, id)
	if err != nil {
		return models.GraphData{}, err
	}
	return hypergraph.Resolve(edges, filters, opts), nil
}

// All returns every hyperedge of the hypergraph.
func (s *Service) All(ctx context.Context, id string) ([]models.Hyperedge, error) {
	return s.store.Hyperedges(ctx, id)
}

// Add extends the hyperedge at path with symbol and returns the id of the
// resulting hyperedge.
func (s *Service) Add(ctx context.Context, id string, path []string, symbol string) (string, error) {
	if strings.TrimSpace(symbol) == "" {
		return "", fmt.Errorf("hyperservice: add: %w", apperr.ErrInvalidInput)
	}
	edgeID, err := s.store.Add(ctx, id, path, symbol)
	if err != nil {
		return "", err
	}
	s.metrics.AddedHyperedges(1)
	s.publish(sse.ChangeAdd, id)
	return edgeID, nil
}

// Remove deletes the hyperedge with exactly the given path.
func (s *Service) Remove(ctx context.Context, id string, path []string) error {
	if err := s.store.Remove(ctx, id, path); err != nil {
		return err
	}
	s.metrics.RemovedHyperedge()
	s.publish(sse.ChangeRemove, id)
	return nil
}

// Export renders every hyperedge as one CSV record.
func (s *Service) Export(ctx context.Context, id string) ([]byte, error) {
	edges, err := s.store.Hyperedges(ctx, id)
	if err != nil {
		return nil, err
	}
	return parser.EncodeCSV(edges)
}

// Import adds the hyperedges of a CSV export to the hypergraph, creating it
// if needed, and returns how many were new.
func (s *Service) Import(ctx context.Context, id string, data []byte) (int, error) {
	paths, err := parser.DecodeCSV(data)
	if err != nil {
		return 0, fmt.Errorf("hyperservice: import: %w: %w", apperr.ErrInvalidInput, err)
	}
	if err := s.store.Create(ctx, id); err != nil {
		return 0, err
	}
	n, err := s.store.AddHyperedges(ctx, id, paths)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.AddedHyperedges(n)
		s.publish(sse.ChangeAdd, id)
	}
	s.logger.Info("hyperservice: imported", slog.String("hypergraph", id), slog.Int("added", n))
	return n, nil
}

// Generate streams hyperedges generated from input into the hypergraph.
// Producer failures are reported in-band; the returned error is non-nil
// only when the input is rejected or the receiver goes away.
func (s *Service) Generate(ctx context.Context, id, input string, llm models.LLM, send SendFunc) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("hyperservice: generate: %w", apperr.ErrInvalidInput)
	}
	return s.stream(ctx, metrics.KindGenerate, id, input, llm, send)
}

// Wormhole regenerates from hyperedges selected in req.From into the
// hypergraph id. Ids may carry a numeric "N:" prefix. req.Input is used when
// the selection is empty.
func (s *Service) Wormhole(ctx context.Context, id string, req models.WormholeRequest, send SendFunc) error {
	input, err := s.selectSource(ctx, req.From, req.HyperedgeIDs)
	if err != nil {
		return err
	}
	if input == "" {
		input = strings.TrimSpace(req.Input)
	}
	if input == "" {
		return fmt.Errorf("hyperservice: wormhole: %w", ErrMissingInput)
	}
	return s.stream(ctx, metrics.KindWormhole, id, input, req.LLM, send)
}

func (s *Service) selectSource(ctx context.Context, from string, ids []string) (string, error) {
	if from == "" || len(ids) == 0 {
		return "", nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		wanted[edgeIDPrefixRe.ReplaceAllString(raw, "")] = struct{}{}
	}
	edges, err := s.store.Hyperedges(ctx, from)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, e := range edges {
		if _, ok := wanted[e.ID]; ok {
			lines = append(lines, e.Text())
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) stream(ctx context.Context, kind, id, input string, llm models.LLM, send SendFunc) error {
	if llm.Service == "" && s.defaultLLM != nil {
		llm = s.defaultLLM()
	}
	if err := s.store.Create(ctx, id); err != nil {
		return err
	}

	done := s.metrics.StreamStarted(kind)
	var failure error
	err := s.produce(ctx, id, input, llm, send, &failure)
	if err == nil {
		err = send(models.StopEvent())
	}
	if failure == nil {
		failure = err
	}
	done(failure)
	return err
}

// produce runs the generation between the start and stop events. Producer
// failures are reported in-band and stored in failure; the returned error
// is fatal to the stream.
func (s *Service) produce(ctx context.Context, id, input string, llm models.LLM, send SendFunc, failure *error) error {
	if err := send(models.StartEvent()); err != nil {
		return err
	}

	if generate.IsURL(input) && s.scraper != nil {
		if err := send(models.SuccessEvent(MsgScraping)); err != nil {
			return err
		}
		text, err := s.scraper.Scrape(ctx, input)
		if err != nil {
			s.logger.Warn("hyperservice: scrape failed",
				slog.String("url", input),
				slog.String("error", err.Error()))
			*failure = err
			return send(models.ErrorEvent(MsgScrapeFailed))
		}
		if err := send(models.SuccessEvent(MsgScraped)); err != nil {
			return err
		}
		input = text
	}

	if err := send(models.SuccessEvent(MsgGenerating)); err != nil {
		return err
	}

	var sendErr error
	genErr := s.gen.Generate(ctx, input, llm, func(symbols []string) error {
		n, err := s.store.AddHyperedges(ctx, id, [][]string{symbols})
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		s.metrics.AddedHyperedges(n)
		s.publish(sse.ChangeGenerate, id)
		if err := send(models.ResultEvent(symbols)); err != nil {
			sendErr = err
			return err
		}
		return nil
	})
	if sendErr != nil {
		return sendErr
	}
	if genErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("hyperservice: generation failed",
			slog.String("hypergraph", id),
			slog.String("service", llm.Service),
			slog.String("error", genErr.Error()))
		*failure = genErr
		return send(models.ErrorEvent(MsgGenerateFailed))
	}
	return send(models.SuccessEvent(MsgGenerated))
}

func (s *Service) publish(kind, id string) {
	if s.publisher != nil {
		s.publisher.PublishChange(kind, id)
	}
}
