package testutil

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/bridge"
	"github.com/starford/hypermind/internal/checksum"
	"github.com/starford/hypermind/internal/hypergraph"
	"github.com/starford/hypermind/internal/models"
)

// GraphDataFunc overrides FakeBridge.GraphData.
type GraphDataFunc func(ctx context.Context, filters models.Filters, opts models.GraphOptions) (models.GraphData, error)

// StreamFunc overrides the stream endpoints of FakeBridge.
type StreamFunc func(ctx context.Context, input string, req models.WormholeRequest) (bridge.Stream, error)

// FakeBridge is an in-memory bridge.Bridge. Graph data is resolved from the
// stored hyperedges with the real resolver unless overridden.
type FakeBridge struct {
	mu       sync.Mutex
	current  string
	graphs   map[string][]models.Hyperedge
	created  int
	graphFn  GraphDataFunc
	streamFn StreamFunc

	graphCalls    []models.GraphDataRequest
	generateCalls []string
	wormholeCalls []models.WormholeRequest
}

var _ bridge.Bridge = (*FakeBridge)(nil)

// NewFakeBridge returns an empty bridge with no current hypergraph.
func NewFakeBridge() *FakeBridge {
	return &FakeBridge{graphs: map[string][]models.Hyperedge{}}
}

// OnGraphData replaces the graph data resolver.
func (b *FakeBridge) OnGraphData(fn GraphDataFunc) {
	b.mu.Lock()
	b.graphFn = fn
	b.mu.Unlock()
}

// OnStream replaces the generate and wormhole producers. The default
// producer emits start and stop.
func (b *FakeBridge) OnStream(fn StreamFunc) {
	b.mu.Lock()
	b.streamFn = fn
	b.mu.Unlock()
}

// Seed stores hyperedges in hypergraph id and makes it current.
func (b *FakeBridge) Seed(id string, paths ...[]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	edges := b.graphs[id]
	for _, p := range paths {
		edges = append(edges, models.NewHyperedge(p...))
	}
	b.graphs[id] = edges
	b.current = id
}

// GraphDataCalls returns the queries seen so far.
func (b *FakeBridge) GraphDataCalls() []models.GraphDataRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.GraphDataRequest(nil), b.graphCalls...)
}

// GenerateCalls returns the inputs of every Generate call.
func (b *FakeBridge) GenerateCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.generateCalls...)
}

// WormholeCalls returns every Wormhole request.
func (b *FakeBridge) WormholeCalls() []models.WormholeRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.WormholeRequest(nil), b.wormholeCalls...)
}

// Created returns how many hypergraphs were created.
func (b *FakeBridge) Created() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created
}

// Edges returns the hyperedges of hypergraph id.
func (b *FakeBridge) Edges(id string) []models.Hyperedge {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Hyperedge(nil), b.graphs[id]...)
}

func (b *FakeBridge) Create(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created++
	id := "graph-" + strconv.Itoa(b.created)
	b.graphs[id] = []models.Hyperedge{}
	b.current = id
	return id, nil
}

func (b *FakeBridge) IsValid(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.graphs[b.current]
	return ok, nil
}

func (b *FakeBridge) CurrentID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (b *FakeBridge) Use(id string) {
	b.mu.Lock()
	b.current = id
	b.mu.Unlock()
}

func (b *FakeBridge) GraphData(ctx context.Context, filters models.Filters, opts models.GraphOptions) (models.GraphData, error) {
	b.mu.Lock()
	b.graphCalls = append(b.graphCalls, models.GraphDataRequest{Filters: filters.Clone(), Options: opts})
	fn := b.graphFn
	edges := append([]models.Hyperedge(nil), b.graphs[b.current]...)
	b.mu.Unlock()

	if fn != nil {
		return fn(ctx, filters, opts)
	}
	if err := ctx.Err(); err != nil {
		return models.GraphData{}, err
	}
	return hypergraph.Resolve(edges, filters, opts), nil
}

func (b *FakeBridge) All(ctx context.Context) ([]models.Hyperedge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Hyperedge{}, b.graphs[b.current]...), nil
}

func (b *FakeBridge) Add(_ context.Context, path []string, symbol string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	edges, ok := b.graphs[b.current]
	if !ok {
		return "", fmt.Errorf("fake bridge: add: %w", apperr.ErrNotFound)
	}
	next := append(append([]string(nil), path...), symbol)
	id := checksum.HyperedgeID(next)
	for i, e := range edges {
		if e.ID == id {
			return id, nil
		}
		if len(path) > 0 && e.Equal(path) {
			edges[i] = models.NewHyperedge(next...)
			return id, nil
		}
	}
	b.graphs[b.current] = append(edges, models.NewHyperedge(next...))
	return id, nil
}

func (b *FakeBridge) Remove(_ context.Context, path []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	edges := b.graphs[b.current]
	for i, e := range edges {
		if e.Equal(path) {
			b.graphs[b.current] = append(edges[:i:i], edges[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("fake bridge: remove: %w", apperr.ErrNotFound)
}

func (b *FakeBridge) Export(context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []byte
	for _, e := range b.graphs[b.current] {
		out = append(out, e.Text()...)
		out = append(out, '\n')
	}
	return out, nil
}

func (b *FakeBridge) Generate(ctx context.Context, input string, _ models.LLM) (bridge.Stream, error) {
	b.mu.Lock()
	b.generateCalls = append(b.generateCalls, input)
	fn := b.streamFn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, input, models.WormholeRequest{})
	}
	return NewStream(models.StartEvent(), models.StopEvent()), nil
}

func (b *FakeBridge) Wormhole(ctx context.Context, req models.WormholeRequest) (bridge.Stream, error) {
	b.mu.Lock()
	b.wormholeCalls = append(b.wormholeCalls, req)
	fn := b.streamFn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, req.Input, req)
	}
	return NewStream(models.StartEvent(), models.StopEvent()), nil
}

// Stream replays a fixed list of events. Before each event it waits on Gate
// when Gate is non-nil.
type Stream struct {
	events []models.Event
	err    error
	Gate   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewStream returns a stream that yields events then io.EOF.
func NewStream(events ...models.Event) *Stream {
	return &Stream{events: events}
}

// FailAfter makes the stream return err instead of io.EOF at the end.
func (s *Stream) FailAfter(err error) *Stream {
	s.err = err
	return s
}

func (s *Stream) Recv() (models.Event, error) {
	if s.Gate != nil {
		<-s.Gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.Event{}, io.ErrClosedPipe
	}
	if len(s.events) == 0 {
		if s.err != nil {
			return models.Event{}, s.err
		}
		return models.Event{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
