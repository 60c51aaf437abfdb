package bridge_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/hypermind/internal/api"
	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/bridge"
	"github.com/starford/hypermind/internal/generate"
	"github.com/starford/hypermind/internal/hyperservice"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/testutil"
)

func newService(t *testing.T) *hyperservice.Service {
	t.Helper()
	gen := generate.Func(func(_ context.Context, input string, _ models.LLM, emit generate.EmitFunc) error {
		return emit([]string{input, "leads to", "ideas"})
	})
	return hyperservice.NewService(testutil.TestDB(t), gen, hyperservice.WithLogger(testutil.Logger()))
}

// adapters returns a fresh bridge of every kind, each over its own store.
func adapters(t *testing.T) map[string]bridge.Bridge {
	t.Helper()

	local := bridge.NewLocal(newService(t), "")

	r := chi.NewRouter()
	r.Mount("/api", api.NewRouter(newService(t), api.RouterConfig{AuthEnabled: true, Token: "tok"}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	remote := bridge.NewHTTP(srv.URL, "tok", "")

	return map[string]bridge.Bridge{"local": local, "http": remote}
}

func drain(t *testing.T, s bridge.Stream) []models.Event {
	t.Helper()
	defer s.Close()
	var out []models.Event
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestBridgeContract(t *testing.T) {
	for name, b := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := b.Create(ctx)
			require.NoError(t, err)
			assert.Equal(t, id, b.CurrentID())
			ok, err := b.IsValid(ctx)
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = b.Add(ctx, nil, "cat")
			require.NoError(t, err)
			edgeID, err := b.Add(ctx, []string{"cat"}, "meows")
			require.NoError(t, err)
			assert.NotEmpty(t, edgeID)

			edges, err := b.All(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, edges)
			assert.Equal(t, []string{"cat", "meows"}, edges[len(edges)-1].Symbols)

			data, err := b.GraphData(ctx, models.Filters{{"cat"}}, models.GraphOptions{Interwingle: models.MaxInterwingle})
			require.NoError(t, err)
			assert.Len(t, data.Nodes, 2)

			csv, err := b.Export(ctx)
			require.NoError(t, err)
			assert.Contains(t, string(csv), "cat,meows")

			require.NoError(t, b.Remove(ctx, []string{"cat", "meows"}))
			err = b.Remove(ctx, []string{"cat", "meows"})
			assert.True(t, errors.Is(err, apperr.ErrNotFound), "err = %v", err)
		})
	}
}

func TestBridgeGenerateStream(t *testing.T) {
	for name, b := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := b.Create(ctx)
			require.NoError(t, err)

			stream, err := b.Generate(ctx, "memex", models.LLM{Service: "offline"})
			require.NoError(t, err)
			events := drain(t, stream)

			require.NotEmpty(t, events)
			assert.Equal(t, models.EventGenerateStart, events[0].Event)
			assert.Equal(t, models.EventGenerateStop, events[len(events)-1].Event)

			var results [][]string
			for _, ev := range events {
				if ev.Event == models.EventGenerateResult {
					results = append(results, ev.Hyperedge)
				}
			}
			assert.Equal(t, [][]string{{"memex", "leads to", "ideas"}}, results)
		})
	}
}

func TestBridgeWormholeFromSelection(t *testing.T) {
	for name, b := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			from, err := b.Create(ctx)
			require.NoError(t, err)
			edgeID, err := b.Add(ctx, []string{"hyper"}, "text")
			require.NoError(t, err)

			_, err = b.Create(ctx)
			require.NoError(t, err)
			stream, err := b.Wormhole(ctx, models.WormholeRequest{
				HyperedgeIDs: []string{"0:" + edgeID},
				From:         from,
			})
			require.NoError(t, err)
			drain(t, stream)

			edges, err := b.All(ctx)
			require.NoError(t, err)
			require.Len(t, edges, 1)
			assert.Equal(t, []string{"hyper text", "leads to", "ideas"}, edges[0].Symbols)
		})
	}
}

func TestBridgeRejectsMissingInputBeforeStreaming(t *testing.T) {
	for name, b := range adapters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := b.Create(ctx)
			require.NoError(t, err)

			stream, err := b.Generate(ctx, "   ", models.LLM{Service: "offline"})
			assert.Nil(t, stream)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)

			stream, err = b.Wormhole(ctx, models.WormholeRequest{})
			assert.Nil(t, stream)
			assert.ErrorIs(t, err, apperr.ErrInvalidInput)

			edges, err := b.All(ctx)
			require.NoError(t, err)
			assert.Empty(t, edges)
		})
	}
}
