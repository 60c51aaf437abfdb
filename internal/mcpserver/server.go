// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Hypermind tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/hyperservice"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/parser"
)

const formatURI = "hypermind://hyperedge-format"

// Server wraps the MCP server with Hypermind tools.
type Server struct {
	mcp *server.MCPServer
	svc *hyperservice.Service
}

// New creates a new MCP server with all Hypermind tools registered.
func New(svc *hyperservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Hypermind",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_hypergraph",
		mcp.WithDescription("Create a new, empty hypergraph and return its id."),
	), s.createHypergraph)

	s.mcp.AddTool(mcp.NewTool("list_hyperedges",
		mcp.WithDescription("List every hyperedge of a hypergraph in insertion order."),
		mcp.WithString("hypergraph_id", mcp.Required(), mcp.Description("Hypergraph id")),
	), s.listHyperedges)

	s.mcp.AddTool(mcp.NewTool("add_hyperedge",
		mcp.WithDescription("Add a hyperedge. Read the format first via the "+
			"get_hyperedge_format tool or the "+formatURI+" resource."),
		mcp.WithString("hypergraph_id", mcp.Required(), mcp.Description("Hypergraph id")),
		mcp.WithString("hyperedge", mcp.Required(), mcp.Description("Symbols, e.g. \"A -> B -> C\"")),
	), s.addHyperedge)

	s.mcp.AddTool(mcp.NewTool("remove_hyperedge",
		mcp.WithDescription("Remove the hyperedge with exactly the given symbols."),
		mcp.WithString("hypergraph_id", mcp.Required(), mcp.Description("Hypergraph id")),
		mcp.WithString("hyperedge", mcp.Required(), mcp.Description("Symbols, e.g. \"A -> B -> C\"")),
	), s.removeHyperedge)

	s.mcp.AddTool(mcp.NewTool("graph_data",
		mcp.WithDescription("Resolve the filtered subgraph as nodes, links and the maximum depth."),
		mcp.WithString("hypergraph_id", mcp.Required(), mcp.Description("Hypergraph id")),
		mcp.WithString("filters", mcp.Description("Groups separated by ';', symbols by ','")),
		mcp.WithNumber("interwingle", mcp.Description("0 isolated, 1 confluence, 2 fusion, 3 bridge")),
		mcp.WithNumber("depth", mcp.Description("Rings of neighbouring hyperedges to include")),
	), s.graphData)

	s.mcp.AddTool(mcp.NewTool("generate",
		mcp.WithDescription("Generate hyperedges from text or a URL into a hypergraph."),
		mcp.WithString("hypergraph_id", mcp.Required(), mcp.Description("Hypergraph id, created if missing")),
		mcp.WithString("input", mcp.Required(), mcp.Description("Text or http(s) URL")),
		mcp.WithString("service", mcp.Description("LLM service, default from settings")),
		mcp.WithString("model", mcp.Description("LLM model")),
	), s.generate)

	s.mcp.AddTool(mcp.NewTool("export_csv",
		mcp.WithDescription("Export every hyperedge as CSV, one record per hyperedge."),
		mcp.WithString("hypergraph_id", mcp.Required(), mcp.Description("Hypergraph id")),
	), s.exportCSV)

	s.mcp.AddTool(mcp.NewTool("import_csv",
		mcp.WithDescription("Add the hyperedges of a CSV export to a hypergraph."),
		mcp.WithString("hypergraph_id", mcp.Required(), mcp.Description("Hypergraph id, created if missing")),
		mcp.WithString("csv", mcp.Required(), mcp.Description("CSV content")),
	), s.importCSV)

	s.mcp.AddTool(mcp.NewTool("get_hyperedge_format",
		mcp.WithDescription("Returns how hyperedges, filters and options are written."),
	), s.getHyperedgeFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Hyperedge Format",
			mcp.WithResourceDescription("How hyperedges, filters and options are written."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, hyperservice.ErrMissingInput):
		return mcp.NewToolResultError("missing input")
	case errors.Is(err, apperr.ErrInvalidInput):
		return mcp.NewToolResultError("invalid input")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) requireGraph(ctx context.Context, req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	id, err := req.RequireString("hypergraph_id")
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	ok, err := s.svc.IsValid(ctx, id)
	if err != nil {
		return "", toolError(err)
	}
	if !ok {
		return "", mcp.NewToolResultError(fmt.Sprintf("hypergraph not found: %s", id))
	}
	return id, nil
}

func requireHyperedge(req mcp.CallToolRequest) ([]string, *mcp.CallToolResult) {
	raw, err := req.RequireString("hyperedge")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	path := parser.ParseLine(raw)
	if path == nil {
		return nil, mcp.NewToolResultError("a hyperedge needs at least two symbols")
	}
	return path, nil
}

// parseFilters reads "a, b; c" as [[a b] [c]], dropping empty groups.
func parseFilters(s string) models.Filters {
	var out models.Filters
	for _, group := range strings.Split(s, ";") {
		var g []string
		for _, sym := range strings.Split(group, ",") {
			if sym = strings.TrimSpace(sym); sym != "" {
				g = append(g, sym)
			}
		}
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func (s *Server) createHypergraph(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.svc.Create(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) listHyperedges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := s.requireGraph(ctx, req)
	if res != nil {
		return res, nil
	}
	edges, err := s.svc.All(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	if len(edges) == 0 {
		return mcp.NewToolResultText("no hyperedges"), nil
	}
	lines := make([]string, len(edges))
	for i, e := range edges {
		lines[i] = strings.Join(e.Symbols, " -> ")
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) addHyperedge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := s.requireGraph(ctx, req)
	if res != nil {
		return res, nil
	}
	path, res := requireHyperedge(req)
	if res != nil {
		return res, nil
	}
	last := len(path) - 1
	edgeID, err := s.svc.Add(ctx, id, path[:last], path[last])
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added: %s", edgeID)), nil
}

func (s *Server) removeHyperedge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := s.requireGraph(ctx, req)
	if res != nil {
		return res, nil
	}
	path, res := requireHyperedge(req)
	if res != nil {
		return res, nil
	}
	if err := s.svc.Remove(ctx, id, path); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("removed"), nil
}

func (s *Server) graphData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := s.requireGraph(ctx, req)
	if res != nil {
		return res, nil
	}
	opts := models.GraphOptions{
		Interwingle: req.GetInt("interwingle", models.InterwingleIsolated),
		Depth:       req.GetInt("depth", 0),
	}
	data, err := s.svc.GraphData(ctx, id, parseFilters(req.GetString("filters", "")), opts)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(data), nil
}

// generateSummary is what the generate tool reports.
type generateSummary struct {
	Hyperedges [][]string `json:"hyperedges"`
	Notices    []string   `json:"notices,omitempty"`
	Errors     []string   `json:"errors,omitempty"`
}

func (s *Server) generate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("hypergraph_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	input, err := req.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	llm := models.LLM{
		Service: req.GetString("service", ""),
		Model:   req.GetString("model", ""),
	}

	sum := generateSummary{Hyperedges: [][]string{}}
	err = s.svc.Generate(ctx, id, input, llm, func(ev models.Event) error {
		switch ev.Event {
		case models.EventGenerateResult:
			sum.Hyperedges = append(sum.Hyperedges, ev.Hyperedge)
		case models.EventSuccess:
			sum.Notices = append(sum.Notices, ev.Message)
		case models.EventError:
			sum.Errors = append(sum.Errors, ev.Message)
		}
		return nil
	})
	if err != nil {
		return toolError(err), nil
	}
	res := jsonResult(sum)
	res.IsError = len(sum.Errors) > 0
	return res, nil
}

func (s *Server) exportCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := s.requireGraph(ctx, req)
	if res != nil {
		return res, nil
	}
	data, err := s.svc.Export(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) importCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("hypergraph_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := req.RequireString("csv")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.Import(ctx, id, []byte(data))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("imported: %d", n)), nil
}

func (s *Server) getHyperedgeFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(HyperedgeFormat), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     HyperedgeFormat,
		},
	}, nil
}
