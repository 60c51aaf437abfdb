package models

// HeaderHypergraphID carries the current hypergraph id on every API request.
const HeaderHypergraphID = "X-Hypergraph-ID"

// GraphDataRequest is the body of POST /api/hypergraph/graphData.
type GraphDataRequest struct {
	Filters Filters      `json:"filters"`
	Options GraphOptions `json:"options"`
}

// AddRequest is the body of POST /api/hyperedges/add.
type AddRequest struct {
	Path   []string `json:"path"`
	Symbol string   `json:"symbol"`
}

// RemoveRequest is the body of POST /api/hyperedges/remove.
type RemoveRequest struct {
	Path []string `json:"path"`
}

// GenerateRequest is the body of POST /api/hyperedges/generate.
type GenerateRequest struct {
	Input string `json:"input"`
	LLM   LLM    `json:"llm"`
}

// IDResponse carries a created id.
type IDResponse struct {
	ID string `json:"id"`
}
