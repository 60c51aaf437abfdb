// Package models defines the domain types for Hypermind.
package models

import (
	"strings"

	"github.com/starford/hypermind/internal/checksum"
)

// Interwingle levels control how aggressively hyperedges sharing symbols are
// fused when a subgraph is resolved.
const (
	InterwingleIsolated   = 0
	InterwingleConfluence = 1
	InterwingleFusion     = 2
	InterwingleBridge     = 3

	MaxInterwingle = InterwingleBridge
)

// Hyperedge is an ordered, non-empty path of symbols.
type Hyperedge struct {
	ID      string   `json:"id"`
	Symbols []string `json:"symbols"`
}

// NewHyperedge builds a hyperedge with its content-derived id.
func NewHyperedge(symbols ...string) Hyperedge {
	s := append([]string(nil), symbols...)
	return Hyperedge{ID: checksum.HyperedgeID(s), Symbols: s}
}

// Text joins the symbols with single spaces.
func (h Hyperedge) Text() string {
	return strings.Join(h.Symbols, " ")
}

// Equal reports whether the hyperedge has exactly the given path.
func (h Hyperedge) Equal(path []string) bool {
	if len(h.Symbols) != len(path) {
		return false
	}
	for i := range path {
		if h.Symbols[i] != path[i] {
			return false
		}
	}
	return true
}

// Filters is an ordered set of filter groups: symbols within a group are
// AND-ed, groups are OR-ed.
type Filters [][]string

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for i, g := range f {
		out[i] = append([]string(nil), g...)
	}
	return out
}

// GraphOptions are the non-filter query parameters for graphData.
type GraphOptions struct {
	Interwingle int `json:"interwingle"`
	Depth       int `json:"depth"`
}

// NodeMeta carries bookkeeping the renderer and collision checker need.
type NodeMeta struct {
	HyperedgeIDs []string `json:"hyperedgeIDs"`
}

// Node is a rendered concept node.
type Node struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Meta NodeMeta `json:"_meta"`
}

// Link connects two consecutive nodes of a hyperedge.
type Link struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	HyperedgeID string `json:"hyperedgeID"`
}

// GraphData is the subgraph returned by the store for one query.
type GraphData struct {
	Nodes    []Node `json:"nodes"`
	Links    []Link `json:"links"`
	MaxDepth int    `json:"maxDepth"`
}

// LLM selects the generation backend.
type LLM struct {
	Service string `json:"service" yaml:"service"`
	Model   string `json:"model" yaml:"model"`
}

// WormholeRequest asks the server to regenerate from a set of source edges.
// From names the hypergraph the edges are selected from; Input is the
// client-side text used only when the server-side selection is empty.
type WormholeRequest struct {
	HyperedgeIDs []string `json:"hyperedges"`
	From         string   `json:"from"`
	Input        string   `json:"input,omitempty"`
	LLM          LLM      `json:"llm"`
}
