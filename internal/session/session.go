// Package session is the interactive controller of one hypergraph view. It
// owns the query state (filters, interwingle, depth), funnels every change
// through a single refresh path, consumes generation streams and keeps the
// session mode consistent.
//
// All methods are safe for concurrent use. Store round trips happen outside
// the session lock; state is committed only after they succeed.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/bridge"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/render"
)

// Config holds the session's tunables.
type Config struct {
	// HideLabelsThreshold hides labels once the rendered node count reaches it.
	HideLabelsThreshold int
	// RefreshDebounce is the staleness window of MaybeRefresh.
	RefreshDebounce time.Duration
	// ZoomSettle delays the fit-to-bounds call after a refresh.
	ZoomSettle  time.Duration
	FitDuration time.Duration
	FitPadding  float64
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		HideLabelsThreshold: 1000,
		RefreshDebounce:     time.Second,
		ZoomSettle:          250 * time.Millisecond,
		FitDuration:         300 * time.Millisecond,
		FitPadding:          100,
	}
}

// query is the intent the refresh path resolves.
type query struct {
	filters     models.Filters
	interwingle int
	depth       int
}

func (q query) clone() query {
	q.filters = q.filters.Clone()
	return q
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	HypergraphID  string
	Mode          Mode
	Filters       models.Filters
	Interwingle   int
	Depth         int
	MaxDepth      int
	Draft         []string
	Input         string
	InputMode     InputMode
	Graph         models.GraphData
	Edited        bool
	HideLabels    bool
	LastRefreshed time.Time
	LLM           models.LLM
}

// Session is one interactive hypergraph view.
type Session struct {
	bridge   bridge.Bridge
	host     render.Host
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time

	mu            sync.Mutex
	query         query
	rendered      query
	maxDepth      int
	graph         models.GraphData
	edges         []models.Hyperedge
	draft         []string
	input         string
	inputMode     InputMode
	edited        bool
	hideLabels    bool
	lastRefreshed time.Time
	mode          Mode
	llm           models.LLM

	refreshSeq    uint64
	cancelRefresh context.CancelFunc
	fitTimer      *time.Timer
	closed        bool

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier sets where user notices go.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithConfig overrides the default tunables.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithClock sets the time source used for staleness checks and export names.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLLM sets the initial model selector.
func WithLLM(llm models.LLM) Option {
	return func(s *Session) { s.llm = llm }
}

// WithMode sets the initial mode. Invalid modes are ignored.
func WithMode(m Mode) Option {
	return func(s *Session) {
		if m.validate() == nil {
			s.mode = m
		}
	}
}

// New creates a session over b that draws on host. The session starts with
// empty filters, interwingle 0 and depth 0.
func New(b bridge.Bridge, host render.Host, opts ...Option) *Session {
	s := &Session{
		bridge:    b,
		host:      host,
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
		now:       time.Now,
		mode:      DefaultMode(),
		inputMode: ModeGenerate,
		observers: map[int]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	return s
}

// Open makes sure a hypergraph exists and loads it.
func (s *Session) Open(ctx context.Context) error {
	if err := s.EnsureHypergraph(ctx); err != nil {
		s.notifier.Error(NoticeLoadFailed)
		return err
	}
	s.mu.Lock()
	m := s.mode
	s.mu.Unlock()
	s.host.SetControlMode(m.Control)
	s.host.SetGraphType(m.Graph)
	if err := s.Refresh(ctx, true); err != nil {
		s.notifier.Error(NoticeLoadFailed)
		return err
	}
	return nil
}

// Close stops pending timers and cancels an in-flight refresh.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.fitTimer != nil {
		s.fitTimer.Stop()
		s.fitTimer = nil
	}
	if s.cancelRefresh != nil {
		s.cancelRefresh()
		s.cancelRefresh = nil
	}
}

// EnsureHypergraph keeps the current hypergraph if the store knows it and
// creates a new one otherwise.
func (s *Session) EnsureHypergraph(ctx context.Context) error {
	if s.bridge.CurrentID() != "" {
		ok, err := s.bridge.IsValid(ctx)
		if err != nil {
			return fmt.Errorf("session: validate hypergraph: %w", err)
		}
		if ok {
			return nil
		}
	}
	_, err := s.createHypergraph(ctx)
	return err
}

// NewHypergraph switches the session to a brand-new hypergraph and returns
// the id of the one it replaced. Filters, depth and draft are reset; an
// in-flight refresh of the old hypergraph is abandoned.
func (s *Session) NewHypergraph(ctx context.Context) (from string, err error) {
	from = s.bridge.CurrentID()
	if _, err := s.createHypergraph(ctx); err != nil {
		return from, err
	}

	s.mu.Lock()
	s.refreshSeq++
	if s.cancelRefresh != nil {
		s.cancelRefresh()
		s.cancelRefresh = nil
	}
	s.query.filters = nil
	s.query.depth = 0
	s.rendered = s.query.clone()
	s.maxDepth = 0
	s.edges = nil
	s.draft = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return from, nil
}

func (s *Session) createHypergraph(ctx context.Context) (string, error) {
	id, err := s.bridge.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("session: create hypergraph: %w", err)
	}
	ok, err := s.bridge.IsValid(ctx)
	if err != nil {
		return "", fmt.Errorf("session: validate hypergraph: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("session: create hypergraph %s: %w", id, apperr.ErrNoHypergraph)
	}
	s.logger.Info("session: new hypergraph", slog.String("id", id))
	return id, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Graph returns the last rendered graph.
func (s *Session) Graph() models.GraphData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// LLM returns the model selector used for generation.
func (s *Session) LLM() models.LLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.llm
}

// SetLLM changes the model selector.
func (s *Session) SetLLM(llm models.LLM) {
	s.mu.Lock()
	s.llm = llm
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		HypergraphID:  s.bridge.CurrentID(),
		Mode:          s.mode,
		Filters:       s.query.filters.Clone(),
		Interwingle:   s.query.interwingle,
		Depth:         s.query.depth,
		MaxDepth:      s.maxDepth,
		Draft:         append([]string(nil), s.draft...),
		Input:         s.input,
		InputMode:     s.inputMode,
		Graph:         s.graph,
		Edited:        s.edited,
		HideLabels:    s.hideLabels,
		LastRefreshed: s.lastRefreshed,
		LLM:           s.llm,
	}
}

// Subscribe registers fn to receive a snapshot after every committed change.
// fn runs on the goroutine that made the change and must not block.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Session) publish(snap Snapshot) {
	s.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// setMode applies fn to a copy of the mode and commits it if it is valid.
func (s *Session) setMode(fn func(m *Mode) error) error {
	s.mu.Lock()
	next := s.mode
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := next.validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	changed := next != s.mode
	s.mode = next
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.publish(snap)
	}
	return nil
}
