package bridge

import (
	"context"
	"io"
	"sync"

	"github.com/starford/hypermind/internal/models"
)

// Service is the in-process hypergraph service a Local bridge calls. Every
// operation takes the hypergraph id explicitly.
type Service interface {
	Create(ctx context.Context) (string, error)
	IsValid(ctx context.Context, id string) (bool, error)
	GraphData(ctx context.Context, id string, filters models.Filters, opts models.GraphOptions) (models.GraphData, error)
	All(ctx context.Context, id string) ([]models.Hyperedge, error)
	Add(ctx context.Context, id string, path []string, symbol string) (string, error)
	Remove(ctx context.Context, id string, path []string) error
	Export(ctx context.Context, id string) ([]byte, error)
	Generate(ctx context.Context, id, input string, llm models.LLM, send func(models.Event) error) error
	Wormhole(ctx context.Context, id string, req models.WormholeRequest, send func(models.Event) error) error
}

// Local calls the service in-process.
type Local struct {
	svc Service

	mu      sync.RWMutex
	current string
}

var _ Bridge = (*Local)(nil)

// NewLocal creates a Local bridge, optionally bound to an existing id.
func NewLocal(svc Service, current string) *Local {
	return &Local{svc: svc, current: current}
}

func (l *Local) CurrentID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

func (l *Local) Use(id string) {
	l.mu.Lock()
	l.current = id
	l.mu.Unlock()
}

func (l *Local) Create(ctx context.Context) (string, error) {
	id, err := l.svc.Create(ctx)
	if err != nil {
		return "", err
	}
	l.Use(id)
	return id, nil
}

func (l *Local) IsValid(ctx context.Context) (bool, error) {
	return l.svc.IsValid(ctx, l.CurrentID())
}

func (l *Local) GraphData(ctx context.Context, filters models.Filters, opts models.GraphOptions) (models.GraphData, error) {
	return l.svc.GraphData(ctx, l.CurrentID(), filters, opts)
}

func (l *Local) All(ctx context.Context) ([]models.Hyperedge, error) {
	return l.svc.All(ctx, l.CurrentID())
}

func (l *Local) Add(ctx context.Context, path []string, symbol string) (string, error) {
	return l.svc.Add(ctx, l.CurrentID(), path, symbol)
}

func (l *Local) Remove(ctx context.Context, path []string) error {
	return l.svc.Remove(ctx, l.CurrentID(), path)
}

func (l *Local) Export(ctx context.Context) ([]byte, error) {
	return l.svc.Export(ctx, l.CurrentID())
}

func (l *Local) Generate(ctx context.Context, input string, llm models.LLM) (Stream, error) {
	id := l.CurrentID()
	return openChanStream(ctx, func(ctx context.Context, send func(models.Event) error) error {
		return l.svc.Generate(ctx, id, input, llm, send)
	})
}

func (l *Local) Wormhole(ctx context.Context, req models.WormholeRequest) (Stream, error) {
	id := l.CurrentID()
	return openChanStream(ctx, func(ctx context.Context, send func(models.Event) error) error {
		return l.svc.Wormhole(ctx, id, req, send)
	})
}

// chanStream runs a producer in its own goroutine and hands its events to
// Recv through an unbuffered channel, so production is paced by the
// consumer.
type chanStream struct {
	events  chan models.Event
	done    chan struct{}
	cancel  context.CancelFunc
	err     error
	once    sync.Once
	pending *models.Event
}

// openChanStream starts produce and waits for its first event. A producer
// that fails before emitting anything is reported as an error here, the
// way the HTTP adapter answers such failures before the stream starts.
func openChanStream(ctx context.Context, produce func(context.Context, func(models.Event) error) error) (Stream, error) {
	s := startChanStream(ctx, produce)
	ev, ok := <-s.events
	if !ok {
		<-s.done
		if s.err != nil {
			s.cancel()
			return nil, s.err
		}
		return s, nil
	}
	s.pending = &ev
	return s, nil
}

func startChanStream(ctx context.Context, produce func(context.Context, func(models.Event) error) error) *chanStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &chanStream{
		events: make(chan models.Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(s.done)
		defer close(s.events)
		s.err = produce(ctx, func(ev models.Event) error {
			select {
			case s.events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return s
}

func (s *chanStream) Recv() (models.Event, error) {
	if s.pending != nil {
		ev := *s.pending
		s.pending = nil
		return ev, nil
	}
	ev, ok := <-s.events
	if ok {
		return ev, nil
	}
	<-s.done
	if s.err != nil {
		return models.Event{}, s.err
	}
	return models.Event{}, io.EOF
}

func (s *chanStream) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}
