// Package generate produces hyperedges from free-form text using a language
// model backend or an offline heuristic.
package generate

import (
	"context"
	"strings"

	"github.com/starford/hypermind/internal/models"
)

// ServiceOffline selects the built-in heuristic generator.
const ServiceOffline = "offline"

// EmitFunc receives one generated hyperedge. Returning an error stops
// generation.
type EmitFunc func(symbols []string) error

// Generator turns input text into hyperedges, emitting them as they are
// produced.
type Generator interface {
	Generate(ctx context.Context, input string, llm models.LLM, emit EmitFunc) error
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, input string, llm models.LLM, emit EmitFunc) error

// Generate calls f.
func (f Func) Generate(ctx context.Context, input string, llm models.LLM, emit EmitFunc) error {
	return f(ctx, input, llm, emit)
}

// Mux dispatches on the LLM service name.
type Mux struct {
	fallback Generator
	services map[string]Generator
}

// NewMux returns a Mux that uses fallback for unknown services.
func NewMux(fallback Generator) *Mux {
	return &Mux{fallback: fallback, services: make(map[string]Generator)}
}

// Handle registers g for the named service.
func (m *Mux) Handle(service string, g Generator) {
	m.services[strings.ToLower(service)] = g
}

// Generate implements Generator.
func (m *Mux) Generate(ctx context.Context, input string, llm models.LLM, emit EmitFunc) error {
	if g, ok := m.services[strings.ToLower(llm.Service)]; ok {
		return g.Generate(ctx, input, llm, emit)
	}
	return m.fallback.Generate(ctx, input, llm, emit)
}

// IsURL reports whether the input should be scraped before generating.
func IsURL(input string) bool {
	s := strings.TrimSpace(input)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
