// Package parser turns generated text and CSV exports into hyperedge paths.
package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/hypermind/internal/models"
)

var listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// arrowSeparators are tried in order; the first one present on a line wins.
var arrowSeparators = []string{"->", "→", "=>", ">"}

// Parse extracts hyperedges from generated text. A YAML list of lists is
// accepted as a whole; otherwise each line is one hyperedge written as an
// arrow chain ("a -> b -> c") or a comma separated record. Lines yielding
// fewer than two symbols are dropped.
func Parse(text string) [][]string {
	if edges, ok := parseYAML(text); ok {
		return edges
	}
	var out [][]string
	for _, line := range strings.Split(text, "\n") {
		if edge := ParseLine(line); edge != nil {
			out = append(out, edge)
		}
	}
	return out
}

// ParseLine parses a single line, returning nil when it holds no hyperedge.
func ParseLine(line string) []string {
	line = strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
		return nil
	}

	var parts []string
	for _, sep := range arrowSeparators {
		if strings.Contains(line, sep) {
			parts = strings.Split(line, sep)
			break
		}
	}
	if parts == nil {
		r := csv.NewReader(strings.NewReader(line))
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		rec, err := r.Read()
		if err != nil {
			return nil
		}
		parts = rec
	}

	symbols := cleanSymbols(parts)
	if len(symbols) < 2 {
		return nil
	}
	return symbols
}

func parseYAML(text string) ([][]string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "- [") {
		return nil, false
	}
	var raw [][]string
	if err := yaml.Unmarshal([]byte(trimmed), &raw); err != nil {
		return nil, false
	}
	var out [][]string
	for _, r := range raw {
		if s := cleanSymbols(r); len(s) >= 2 {
			out = append(out, s)
		}
	}
	return out, len(out) > 0
}

func cleanSymbols(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`+"`")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Accumulator collects streamed text and yields hyperedges line by line as
// complete lines arrive.
type Accumulator struct {
	buf strings.Builder
}

// Write appends a chunk and returns hyperedges from newly completed lines.
func (a *Accumulator) Write(chunk string) [][]string {
	a.buf.WriteString(chunk)
	s := a.buf.String()
	idx := strings.LastIndex(s, "\n")
	if idx < 0 {
		return nil
	}
	complete, rest := s[:idx], s[idx+1:]
	a.buf.Reset()
	a.buf.WriteString(rest)

	var out [][]string
	for _, line := range strings.Split(complete, "\n") {
		if edge := ParseLine(line); edge != nil {
			out = append(out, edge)
		}
	}
	return out
}

// Flush parses whatever is left in the buffer.
func (a *Accumulator) Flush() [][]string {
	rest := a.buf.String()
	a.buf.Reset()
	if edge := ParseLine(rest); edge != nil {
		return [][]string{edge}
	}
	return nil
}

// EncodeCSV writes one record per hyperedge.
func EncodeCSV(edges []models.Hyperedge) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, e := range edges {
		if err := w.Write(e.Symbols); err != nil {
			return nil, fmt.Errorf("parser: encode csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("parser: encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCSV reads hyperedge paths written by EncodeCSV.
func DecodeCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parser: decode csv: %w", err)
	}
	out := make([][]string, 0, len(recs))
	for _, rec := range recs {
		if s := cleanSymbols(rec); len(s) > 0 {
			out = append(out, s)
		}
	}
	return out, nil
}
