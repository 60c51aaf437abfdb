// Package bridge defines the transport-neutral hypergraph API a session
// talks to, with an in-process adapter and an HTTP/SSE adapter.
package bridge

import (
	"context"

	"github.com/starford/hypermind/internal/models"
)

// Bridge is the logical operation set a session needs. Every operation
// except Create acts on the current hypergraph.
type Bridge interface {
	// Create starts a new hypergraph and makes it current.
	Create(ctx context.Context) (string, error)
	// IsValid reports whether the current hypergraph exists.
	IsValid(ctx context.Context) (bool, error)
	// CurrentID returns the current hypergraph id, empty if none.
	CurrentID() string
	// Use switches to an existing hypergraph.
	Use(id string)

	GraphData(ctx context.Context, filters models.Filters, opts models.GraphOptions) (models.GraphData, error)
	All(ctx context.Context) ([]models.Hyperedge, error)
	Add(ctx context.Context, path []string, symbol string) (string, error)
	Remove(ctx context.Context, path []string) error
	Export(ctx context.Context) ([]byte, error)

	Generate(ctx context.Context, input string, llm models.LLM) (Stream, error)
	Wormhole(ctx context.Context, req models.WormholeRequest) (Stream, error)
}

// Stream is an ordered sequence of generation events. Recv returns io.EOF
// after the last event; any other error means the stream broke.
type Stream interface {
	Recv() (models.Event, error)
	Close() error
}
