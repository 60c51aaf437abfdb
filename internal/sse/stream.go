package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("sse: streaming unsupported")

// Writer frames one JSON object per message and flushes after each, so the
// client observes events as they are produced.
type Writer struct {
	w http.ResponseWriter
	f http.Flusher
}

// NewWriter sets the streaming headers and writes the status line.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &Writer{w: w, f: f}, nil
}

// Send writes v as a single data frame.
func (s *Writer) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// Decoder reads data frames written by Writer (or any SSE producer).
// Multi-line data fields are joined with newlines; event names, ids and
// comments are ignored.
type Decoder struct {
	sc *bufio.Scanner
}

// NewDecoder reads frames from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Decoder{sc: sc}
}

// Decode unmarshals the next frame into v. It returns io.EOF once the
// stream ends cleanly.
func (d *Decoder) Decode(v any) error {
	var data []string
	for d.sc.Scan() {
		line := d.sc.Text()
		if line == "" {
			if len(data) == 0 {
				continue
			}
			break
		}
		if strings.HasPrefix(line, "data:") {
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if len(data) == 0 {
		if err := d.sc.Err(); err != nil {
			return fmt.Errorf("sse: read: %w", err)
		}
		return io.EOF
	}
	if err := json.Unmarshal([]byte(strings.Join(data, "\n")), v); err != nil {
		return fmt.Errorf("sse: decode frame: %w", err)
	}
	return nil
}
