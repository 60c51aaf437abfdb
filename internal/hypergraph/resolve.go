package hypergraph

import (
	"strconv"
	"strings"

	"github.com/starford/hypermind/internal/models"
)

// Resolve builds the renderable subgraph for edges under the given filters,
// interwingle level and depth.
//
// A hyperedge matches the filters when any group has all of its symbols on
// the edge. Depth widens the match ring by ring: each ring adds edges that
// share a symbol with the edges already selected. MaxDepth is the number of
// rings available before the selection stops growing; it is zero without
// filters because everything is already selected.
func Resolve(edges []models.Hyperedge, filters models.Filters, opts models.GraphOptions) models.GraphData {
	selected, maxDepth := selectEdges(edges, filters, opts.Depth)

	b := newGraphBuilder(clampInterwingle(opts.Interwingle))
	for _, e := range selected {
		b.addEdge(e)
	}
	return models.GraphData{Nodes: b.nodes, Links: b.links, MaxDepth: maxDepth}
}

func clampInterwingle(level int) int {
	if level < models.InterwingleIsolated {
		return models.InterwingleIsolated
	}
	if level > models.MaxInterwingle {
		return models.MaxInterwingle
	}
	return level
}

func selectEdges(edges []models.Hyperedge, filters models.Filters, depth int) ([]models.Hyperedge, int) {
	if len(filters) == 0 {
		return edges, 0
	}

	in := make([]bool, len(edges))
	symbols := make(map[string]struct{})
	take := func(i int) {
		in[i] = true
		for _, s := range edges[i].Symbols {
			symbols[s] = struct{}{}
		}
	}

	for i, e := range edges {
		if matchesFilters(e, filters) {
			take(i)
		}
	}

	// Compute every ring so MaxDepth is known, but only keep the first depth rings.
	var rings [][]int
	for {
		var ring []int
		for i, e := range edges {
			if in[i] {
				continue
			}
			for _, s := range e.Symbols {
				if _, ok := symbols[s]; ok {
					ring = append(ring, i)
					break
				}
			}
		}
		if len(ring) == 0 {
			break
		}
		for _, i := range ring {
			take(i)
		}
		rings = append(rings, ring)
	}

	if depth < 0 {
		depth = 0
	}
	keep := make([]bool, len(edges))
	for i, e := range edges {
		keep[i] = matchesFilters(e, filters)
	}
	for d := 0; d < depth && d < len(rings); d++ {
		for _, i := range rings[d] {
			keep[i] = true
		}
	}

	out := make([]models.Hyperedge, 0, len(edges))
	for i, e := range edges {
		if keep[i] {
			out = append(out, e)
		}
	}
	return out, len(rings)
}

func matchesFilters(e models.Hyperedge, filters models.Filters) bool {
	for _, group := range filters {
		if len(group) == 0 {
			continue
		}
		all := true
		for _, want := range group {
			if !containsSymbol(e.Symbols, want) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func containsSymbol(symbols []string, s string) bool {
	for _, x := range symbols {
		if x == s {
			return true
		}
	}
	return false
}

type graphBuilder struct {
	interwingle int
	index       map[string]int
	nodes       []models.Node
	links       []models.Link
}

func newGraphBuilder(interwingle int) *graphBuilder {
	return &graphBuilder{
		interwingle: interwingle,
		index:       make(map[string]int),
		nodes:       []models.Node{},
		links:       []models.Link{},
	}
}

// nodeID decides which occurrences of a symbol collapse into one node.
//   - isolated: every edge owns its nodes
//   - confluence: edges sharing a prefix share those nodes
//   - fusion: as confluence, and edge endpoints fuse with equal endpoints elsewhere
//   - bridge: one node per symbol
func (b *graphBuilder) nodeID(e models.Hyperedge, i int) string {
	last := len(e.Symbols) - 1
	switch b.interwingle {
	case models.InterwingleIsolated:
		return e.ID + ":" + strconv.Itoa(i)
	case models.InterwingleConfluence:
		return "p:" + strings.Join(e.Symbols[:i+1], "\x1f")
	case models.InterwingleFusion:
		if i == 0 || i == last {
			return "s:" + e.Symbols[i]
		}
		return "p:" + strings.Join(e.Symbols[:i+1], "\x1f")
	default:
		return "s:" + e.Symbols[i]
	}
}

func (b *graphBuilder) addEdge(e models.Hyperedge) {
	prev := ""
	for i, sym := range e.Symbols {
		id := b.nodeID(e, i)
		b.touch(id, sym, e.ID)
		if i > 0 {
			b.links = append(b.links, models.Link{
				ID:          e.ID + ":" + strconv.Itoa(i),
				Source:      prev,
				Target:      id,
				HyperedgeID: e.ID,
			})
		}
		prev = id
	}
}

func (b *graphBuilder) touch(id, name, edgeID string) {
	if idx, ok := b.index[id]; ok {
		meta := &b.nodes[idx].Meta
		if !containsSymbol(meta.HyperedgeIDs, edgeID) {
			meta.HyperedgeIDs = append(meta.HyperedgeIDs, edgeID)
		}
		return
	}
	b.index[id] = len(b.nodes)
	b.nodes = append(b.nodes, models.Node{
		ID:   id,
		Name: name,
		Meta: models.NodeMeta{HyperedgeIDs: []string{edgeID}},
	})
}
