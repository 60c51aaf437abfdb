package sse

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type testEvent struct {
	Event   string `json:"event"`
	Message string `json:"message,omitempty"`
}

func TestWriterDecoder_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		sw, err := NewWriter(w)
		if err != nil {
			t.Errorf("NewWriter: %v", err)
			return
		}
		for _, f := range []testEvent{{Event: "start"}, {Event: "success", Message: "line1\nline2"}, {Event: "stop"}} {
			if err := sw.Send(f); err != nil {
				t.Errorf("Send: %v", err)
			}
		}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	dec := NewDecoder(resp.Body)
	var got []testEvent
	for {
		var f testEvent
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		got = append(got, f)
	}
	if len(got) != 3 || got[0].Event != "start" || got[2].Event != "stop" {
		t.Fatalf("frames = %+v", got)
	}
	if got[1].Message != "line1\nline2" {
		t.Errorf("message = %q", got[1].Message)
	}
}

func TestDecoder_JoinsDataLinesAndSkipsEventFields(t *testing.T) {
	raw := ": keepalive\n\nevent: ignored\ndata: {\"event\":\ndata: \"multi\"}\n\ndata: {\"event\":\"last\"}"
	dec := NewDecoder(strings.NewReader(raw))

	var f testEvent
	if err := dec.Decode(&f); err != nil {
		t.Fatal(err)
	}
	if f.Event != "multi" {
		t.Errorf("event = %q, want multi", f.Event)
	}
	if err := dec.Decode(&f); err != nil {
		t.Fatal(err)
	}
	if f.Event != "last" {
		t.Errorf("event = %q, want last", f.Event)
	}
	if err := dec.Decode(&f); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestDecoder_MalformedFrame(t *testing.T) {
	dec := NewDecoder(strings.NewReader("data: {not json}\n\n"))
	var f testEvent
	if err := dec.Decode(&f); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want decode error", err)
	}
}

func TestNewWriter_RequiresFlusher(t *testing.T) {
	if _, err := NewWriter(nonFlusher{}); !errors.Is(err, ErrStreamingUnsupported) {
		t.Errorf("err = %v", err)
	}
}

type nonFlusher struct{}

func (nonFlusher) Header() http.Header         { return http.Header{} }
func (nonFlusher) Write(b []byte) (int, error) { return len(b), nil }
func (nonFlusher) WriteHeader(int)             {}
