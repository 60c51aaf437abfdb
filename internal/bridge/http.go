package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/sse"
)

// Envelope is the JSON body of every non-streaming response.
type Envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// HTTP talks to a running server.
type HTTP struct {
	baseURL string
	token   string
	client  *http.Client

	mu      sync.RWMutex
	current string
}

var _ Bridge = (*HTTP)(nil)

// NewHTTP creates an HTTP bridge for the server at baseURL. The client has
// no overall timeout because generation streams are long-lived; requests
// are bounded by their context.
func NewHTTP(baseURL, token, current string) *HTTP {
	return &HTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client: &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: time.Minute,
		}},
		current: current,
	}
}

func (h *HTTP) CurrentID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *HTTP) Use(id string) {
	h.mu.Lock()
	h.current = id
	h.mu.Unlock()
}

func (h *HTTP) Create(ctx context.Context) (string, error) {
	var out models.IDResponse
	if err := h.call(ctx, "/hypergraph/create", nil, &out); err != nil {
		return "", err
	}
	h.Use(out.ID)
	return out.ID, nil
}

func (h *HTTP) IsValid(ctx context.Context) (bool, error) {
	var ok bool
	err := h.call(ctx, "/hypergraph/isValid", nil, &ok)
	return ok, err
}

func (h *HTTP) GraphData(ctx context.Context, filters models.Filters, opts models.GraphOptions) (models.GraphData, error) {
	var out models.GraphData
	err := h.call(ctx, "/hypergraph/graphData", models.GraphDataRequest{Filters: filters, Options: opts}, &out)
	return out, err
}

func (h *HTTP) All(ctx context.Context) ([]models.Hyperedge, error) {
	var out []models.Hyperedge
	err := h.call(ctx, "/hyperedges/all", nil, &out)
	return out, err
}

func (h *HTTP) Add(ctx context.Context, path []string, symbol string) (string, error) {
	var out models.IDResponse
	err := h.call(ctx, "/hyperedges/add", models.AddRequest{Path: path, Symbol: symbol}, &out)
	return out.ID, err
}

func (h *HTTP) Remove(ctx context.Context, path []string) error {
	return h.call(ctx, "/hyperedges/remove", models.RemoveRequest{Path: path}, nil)
}

func (h *HTTP) Export(ctx context.Context) ([]byte, error) {
	var out string
	if err := h.call(ctx, "/hyperedges/export", nil, &out); err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (h *HTTP) Generate(ctx context.Context, input string, llm models.LLM) (Stream, error) {
	return h.stream(ctx, "/hyperedges/generate", models.GenerateRequest{Input: input, LLM: llm})
}

func (h *HTTP) Wormhole(ctx context.Context, req models.WormholeRequest) (Stream, error) {
	return h.stream(ctx, "/hyperedges/wormhole", req)
}

// Settings returns the server's model selection.
func (h *HTTP) Settings(ctx context.Context) (models.LLM, error) {
	var out models.LLM
	err := h.call(ctx, "/settings/get", nil, &out)
	return out, err
}

// SaveSettings persists llm as the server's model selection.
func (h *HTTP) SaveSettings(ctx context.Context, llm models.LLM) (models.LLM, error) {
	var out models.LLM
	err := h.call(ctx, "/settings/update", llm, &out)
	return out, err
}

func (h *HTTP) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("bridge: %s: marshal: %w", path, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/api"+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("bridge: %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := h.CurrentID(); id != "" {
		req.Header.Set(models.HeaderHypergraphID, id)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	return req, nil
}

func (h *HTTP) call(ctx context.Context, path string, body, out any) error {
	req, err := h.newRequest(ctx, path, body)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge: %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<20)).Decode(&env); err != nil {
		return fmt.Errorf("bridge: %s: decode response (HTTP %d): %w", path, resp.StatusCode, err)
	}
	if !env.OK {
		return responseError(path, resp.StatusCode, env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("bridge: %s: decode data: %w", path, err)
		}
	}
	return nil
}

func (h *HTTP) stream(ctx context.Context, path string, body any) (Stream, error) {
	req, err := h.newRequest(ctx, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge: %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		defer resp.Body.Close()
		var env Envelope
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env)
		return nil, responseError(path, resp.StatusCode, env.Error)
	}
	return &httpStream{body: resp.Body, dec: sse.NewDecoder(resp.Body)}, nil
}

func responseError(path string, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	var sentinel error
	switch status {
	case http.StatusBadRequest:
		sentinel = apperr.ErrInvalidInput
	case http.StatusNotFound:
		sentinel = apperr.ErrNotFound
	case http.StatusConflict:
		sentinel = apperr.ErrAlreadyExists
	case http.StatusTooManyRequests:
		sentinel = apperr.ErrBusy
	default:
		return fmt.Errorf("bridge: %s: HTTP %d: %s", path, status, msg)
	}
	return fmt.Errorf("bridge: %s: %s: %w", path, msg, sentinel)
}

type httpStream struct {
	body io.ReadCloser
	dec  *sse.Decoder
}

func (s *httpStream) Recv() (models.Event, error) {
	var ev models.Event
	if err := s.dec.Decode(&ev); err != nil {
		if errors.Is(err, io.EOF) {
			return models.Event{}, io.EOF
		}
		return models.Event{}, fmt.Errorf("bridge: stream: %w", err)
	}
	return ev, nil
}

func (s *httpStream) Close() error {
	return s.body.Close()
}
