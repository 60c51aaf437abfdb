package sse

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/hypermind/internal/models"
)

func recv(t *testing.T, s *Subscription) string {
	t.Helper()
	select {
	case msg, ok := <-s.C:
		if !ok {
			t.Fatal("subscription closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return ""
}

func decodeChange(t *testing.T, msg string) Change {
	t.Helper()
	var c Change
	if err := NewDecoder(strings.NewReader(msg)).Decode(&c); err != nil {
		t.Fatalf("decode %q: %v", msg, err)
	}
	return c
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	s := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(s)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
	if _, ok := <-s.C; ok {
		t.Fatal("expected channel closed after unsub")
	}
}

func TestPublishChange_FrameCarriesSequence(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	s := b.Subscribe("")
	defer b.Unsubscribe(s)

	b.PublishChange(ChangeAdd, "g1")

	msg := recv(t, s)
	if !strings.HasPrefix(msg, "id: 1\nevent: hyperedges.add\n") {
		t.Errorf("frame = %q", msg)
	}
	c := decodeChange(t, msg)
	if c.Seq != 1 || c.Kind != ChangeAdd || c.Hypergraph != "g1" {
		t.Errorf("change = %+v", c)
	}

	c = decodeChange(t, recv(t, s))
	if c.Seq != 2 || c.Kind != GraphUpdated || c.Hypergraph != "g1" {
		t.Errorf("graph update = %+v", c)
	}
}

func TestPublishChange_GraphThrottlePerHypergraph(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	s := b.Subscribe("")
	defer b.Unsubscribe(s)

	b.PublishChange(ChangeAdd, "g1")
	b.PublishChange(ChangeGenerate, "g1")
	b.PublishChange(ChangeRemove, "g2")

	var kinds []string
	for i := 0; i < 5; i++ {
		c := decodeChange(t, recv(t, s))
		kinds = append(kinds, c.Kind+"/"+c.Hypergraph)
	}
	want := []string{
		"hyperedges.add/g1", "graph.updated/g1",
		"hyperedges.generate/g1",
		"hyperedges.remove/g2", "graph.updated/g2",
	}
	if strings.Join(kinds, " ") != strings.Join(want, " ") {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}

func TestSubscriptionFiltersByHypergraph(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	only := b.Subscribe("g2")
	defer b.Unsubscribe(only)

	b.PublishChange(ChangeAdd, "g1")
	b.PublishChange(ChangeRemove, "g2")

	c := decodeChange(t, recv(t, only))
	if c.Kind != ChangeRemove || c.Hypergraph != "g2" {
		t.Errorf("first change for g2 = %+v", c)
	}
}

func TestPublishChange_UnknownKindDropped(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	s := b.Subscribe("")
	defer b.Unsubscribe(s)

	b.PublishChange("hyperedges.rename", "g1")
	b.PublishChange(ChangeRemove, "g1")

	if c := decodeChange(t, recv(t, s)); c.Kind != ChangeRemove || c.Seq != 1 {
		t.Errorf("first change = %+v, want hyperedges.remove seq 1", c)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	s := b.Subscribe("")
	defer b.Unsubscribe(s)

	// More than the subscriber buffer; must not block the loop.
	for i := 0; i < subscriberBuffer+10; i++ {
		b.PublishChange(ChangeAdd, "g1")
	}
	if b.ClientCount() != 1 {
		t.Fatal("broker loop stalled")
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	s := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()
	b.Close()

	select {
	case _, ok := <-s.C:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	b.PublishChange(ChangeAdd, "g2")
	if _, ok := <-b.Subscribe("").C; ok {
		t.Fatal("subscribe after close should return a closed channel")
	}
}

// flushBuffer is a ResponseWriter whose body can be read while the handler
// is still running.
type flushBuffer struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
}

func (f *flushBuffer) Header() http.Header { return f.header }
func (f *flushBuffer) WriteHeader(int)     {}
func (f *flushBuffer) Flush()              {}

func (f *flushBuffer) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Write(p)
}

func (f *flushBuffer) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour)
	b.keepAlive = 10 * time.Millisecond
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events?hypergraph=g2", nil).WithContext(ctx)
	w := &flushBuffer{header: http.Header{}}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	waitFor(t, func() bool { return b.ClientCount() == 1 })
	b.PublishChange(ChangeAdd, "g1")
	b.PublishChange(ChangeRemove, "g2")
	waitFor(t, func() bool {
		s := w.String()
		return strings.Contains(s, "event: hyperedges.remove") && strings.Contains(s, ": ping")
	})

	cancel()
	<-done

	body := w.String()
	if strings.Contains(body, `"hypergraph":"g1"`) {
		t.Errorf("handler leaked another hypergraph's change: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	waitFor(t, func() bool { return b.ClientCount() == 0 })
}

func TestSSEHandler_HeaderSelectsHypergraph(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	srv := httptest.NewServer(b)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set(models.HeaderHypergraphID, "g9")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	waitFor(t, func() bool { return b.ClientCount() == 1 })
	b.PublishChange(ChangeAdd, "g1")
	b.PublishChange(ChangeAdd, "g9")

	var c Change
	if err := NewDecoder(resp.Body).Decode(&c); err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if c.Hypergraph != "g9" {
		t.Errorf("first change = %+v, want g9", c)
	}
}
