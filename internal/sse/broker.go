// Package sse implements Server-Sent Events framing: a broker broadcasting
// hypergraph changes, and a writer/decoder pair for per-request event streams.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/hypermind/internal/models"
)

// Change kinds published by the hypergraph service.
const (
	ChangeAdd      = "hyperedges.add"
	ChangeRemove   = "hyperedges.remove"
	ChangeGenerate = "hyperedges.generate"
	GraphUpdated   = "graph.updated"
)

const (
	subscriberBuffer  = 64
	defaultKeepAlive  = 15 * time.Second
	defaultGraphDelay = 2 * time.Second
)

// Change is the payload of every broadcast frame.
type Change struct {
	Seq        uint64    `json:"seq"`
	Kind       string    `json:"kind"`
	Hypergraph string    `json:"hypergraph"`
	At         time.Time `json:"at"`
}

// Subscription receives framed changes for one hypergraph, or for all of
// them when Hypergraph is empty. C is closed when the subscription ends.
type Subscription struct {
	Hypergraph string
	C          <-chan []byte

	ch chan []byte
}

func (s *Subscription) wants(id string) bool {
	return s.Hypergraph == "" || s.Hypergraph == id
}

// Broker fans hypergraph changes out to subscribers.
//
// A single goroutine owns the subscriber set, the sequence counter and the
// per-hypergraph graph.updated throttle. Public methods talk to it over
// channels.
type Broker struct {
	graphMin  time.Duration
	keepAlive time.Duration
	now       func() time.Time

	subscribeCh   chan *Subscription
	unsubscribeCh chan *Subscription
	changeCh      chan Change
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits at most one graph.updated per
// hypergraph every graphThrottle.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = defaultGraphDelay
	}
	b := &Broker{
		graphMin:      graphThrottle,
		keepAlive:     defaultKeepAlive,
		now:           time.Now,
		subscribeCh:   make(chan *Subscription),
		unsubscribeCh: make(chan *Subscription),
		changeCh:      make(chan Change, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

// frame renders c as an SSE message. The sequence number doubles as the
// event id.
func frame(c Change) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", c.Seq, c.Kind, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	subs := make(map[*Subscription]struct{})
	lastGraph := make(map[string]time.Time)
	var seq uint64

	deliver := func(c Change) {
		seq++
		c.Seq = seq
		msg, err := frame(c)
		if err != nil {
			return
		}
		for s := range subs {
			if !s.wants(c.Hypergraph) {
				continue
			}
			select {
			case s.ch <- msg:
			default:
				// Slow subscriber; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for s := range subs {
				close(s.ch)
			}
			return

		case s := <-b.subscribeCh:
			subs[s] = struct{}{}

		case s := <-b.unsubscribeCh:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.ch)
			}

		case c := <-b.changeCh:
			deliver(c)
			if c.At.Sub(lastGraph[c.Hypergraph]) >= b.graphMin {
				lastGraph[c.Hypergraph] = c.At
				deliver(Change{Kind: GraphUpdated, Hypergraph: c.Hypergraph, At: c.At})
			}

		case resp := <-b.countReqCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscription. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a subscriber for hypergraphID ("" for all).
func (b *Broker) Subscribe(hypergraphID string) *Subscription {
	ch := make(chan []byte, subscriberBuffer)
	s := &Subscription{Hypergraph: hypergraphID, C: ch, ch: ch}
	if b.closed.Load() {
		close(ch)
		return s
	}
	select {
	case b.subscribeCh <- s:
	case <-b.stopped:
		close(ch)
	}
	return s
}

// Unsubscribe removes s and closes its channel.
func (b *Broker) Unsubscribe(s *Subscription) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- s:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// PublishChange broadcasts a hypergraph change and, at most once per
// throttle window for that hypergraph, a graph.updated event. Unknown kinds
// are dropped.
func (b *Broker) PublishChange(kind, hypergraphID string) {
	switch kind {
	case ChangeAdd, ChangeRemove, ChangeGenerate:
	default:
		return
	}
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- Change{Kind: kind, Hypergraph: hypergraphID, At: b.now()}:
	case <-b.stopped:
	}
}

// ServeHTTP streams changes (GET /api/events). The hypergraph is taken from
// the "hypergraph" query parameter or the hypergraph header; without either
// every change is sent. Idle connections get a comment line every
// keep-alive interval.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	id := r.URL.Query().Get("hypergraph")
	if id == "" {
		id = r.Header.Get(models.HeaderHypergraphID)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe(id)
	defer b.Unsubscribe(sub)

	ping := time.NewTicker(b.keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
