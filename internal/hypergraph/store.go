package hypergraph

import (
	"context"

	"github.com/starford/hypermind/internal/models"
)

// Store defines the persistence operations on hypergraphs.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	Create(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	Hyperedges(ctx context.Context, id string) ([]models.Hyperedge, error)
	Add(ctx context.Context, id string, path []string, symbol string) (string, error)
	AddHyperedges(ctx context.Context, id string, paths [][]string) (int, error)
	Remove(ctx context.Context, id string, path []string) error
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
