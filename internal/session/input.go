package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/parser"
)

// InputMode selects what submitting the input box does.
type InputMode int

const (
	ModeAdd InputMode = iota
	ModeGenerate
	ModeSearch
)

func (m InputMode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeSearch:
		return "search"
	default:
		return "generate"
	}
}

// ParseInputMode maps "add", "generate" and "search" to their mode.
func ParseInputMode(s string) (InputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add":
		return ModeAdd, nil
	case "generate", "":
		return ModeGenerate, nil
	case "search":
		return ModeSearch, nil
	default:
		return 0, fmt.Errorf("session: input mode %q: %w", s, apperr.ErrInvalidInput)
	}
}

// SetInputMode changes the mode used by the input box.
func (s *Session) SetInputMode(m InputMode) {
	s.mu.Lock()
	s.inputMode = m
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// SetInput records the current content of the input box.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// Submit handles the input box. In add mode a blank input clears the draft
// and anything else extends the draft by input and saves it. Generate and
// search reject blank input with a notice before any request is made.
// modifier appends a search term to the last filter group.
func (s *Session) Submit(ctx context.Context, mode InputMode, input string, modifier bool) error {
	input = strings.TrimSpace(input)
	switch mode {
	case ModeAdd:
		if input == "" {
			s.ClearDraft()
			return nil
		}
		return s.addToDraft(ctx, input)
	case ModeGenerate:
		return s.Generate(ctx, input)
	case ModeSearch:
		if input == "" {
			s.notifier.Error(NoticeEmptySearch)
			return fmt.Errorf("session: search: %w", apperr.ErrInvalidInput)
		}
		if err := s.EnsureHypergraph(ctx); err != nil {
			s.notifier.Error(NoticeLoadFailed)
			return err
		}
		s.mu.Lock()
		s.draft = nil
		s.input = ""
		s.mu.Unlock()
		return s.ApplyFilterTerm(ctx, input, modifier)
	default:
		return fmt.Errorf("session: submit: mode %d: %w", int(mode), apperr.ErrInvalidInput)
	}
}

func (s *Session) addToDraft(ctx context.Context, symbol string) error {
	if err := s.EnsureHypergraph(ctx); err != nil {
		s.notifier.Error(NoticeLoadFailed)
		return err
	}
	draft := s.Draft()
	if _, err := s.bridge.Add(ctx, draft, symbol); err != nil {
		s.notifier.Error(NoticeSaveFailed)
		return fmt.Errorf("session: add: %w", err)
	}
	s.mu.Lock()
	s.draft = append(draft, symbol)
	s.input = ""
	s.edited = true
	s.mu.Unlock()
	return s.Refresh(ctx, true)
}

// Draft returns the pending hyperedge.
func (s *Session) Draft() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.draft...)
}

// RemoveLastFromDraft drops the last symbol of the pending hyperedge.
func (s *Session) RemoveLastFromDraft() {
	s.editDraft(func(d []string) []string {
		if len(d) == 0 {
			return d
		}
		return d[:len(d)-1]
	})
}

// RemoveDraftIndex drops the symbol at index i of the pending hyperedge.
func (s *Session) RemoveDraftIndex(i int) error {
	var err error
	s.editDraft(func(d []string) []string {
		if i < 0 || i >= len(d) {
			err = fmt.Errorf("session: draft index %d: %w", i, apperr.ErrInvalidInput)
			return d
		}
		return append(d[:i:i], d[i+1:]...)
	})
	return err
}

// ClearDraft empties the pending hyperedge.
func (s *Session) ClearDraft() {
	s.editDraft(func([]string) []string { return nil })
}

func (s *Session) editDraft(fn func([]string) []string) {
	s.mu.Lock()
	s.draft = fn(s.draft)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// RemoveHyperedge deletes the hyperedge with exactly path and refreshes.
func (s *Session) RemoveHyperedge(ctx context.Context, path []string) error {
	if err := s.bridge.Remove(ctx, path); err != nil {
		return fmt.Errorf("session: remove: %w", err)
	}
	return s.Refresh(ctx, true)
}

// ClickNode filters on the clicked node's label.
func (s *Session) ClickNode(ctx context.Context, node models.Node, modifier bool) error {
	return s.ApplyFilterTerm(ctx, node.Name, modifier)
}

// UniqueSymbols returns every symbol of the hypergraph once, in first-seen
// order.
func (s *Session) UniqueSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, e := range s.edges {
		for _, sym := range e.Symbols {
			if _, ok := seen[sym]; ok {
				continue
			}
			seen[sym] = struct{}{}
			out = append(out, sym)
		}
	}
	return out
}

// Hyperedges returns the hyperedges seen by the last refresh.
func (s *Session) Hyperedges() []models.Hyperedge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Hyperedge(nil), s.edges...)
}

// Tutorial fills an empty hypergraph with the introductory hyperedges and
// shows them fully interwingled.
func (s *Session) Tutorial(ctx context.Context) error {
	if err := s.EnsureHypergraph(ctx); err != nil {
		return err
	}
	edges, err := s.bridge.All(ctx)
	if err != nil {
		return fmt.Errorf("session: tutorial: %w", err)
	}
	if len(edges) > 0 {
		return nil
	}
	for _, path := range tutorial {
		last := len(path) - 1
		if _, err := s.bridge.Add(ctx, path[:last], path[last]); err != nil {
			return fmt.Errorf("session: tutorial: %w", err)
		}
	}
	s.mu.Lock()
	s.edited = true
	s.mu.Unlock()
	return s.refresh(ctx, true, func(q *query) error {
		q.interwingle = models.MaxInterwingle
		q.depth = 0
		return nil
	})
}

// AutoGenerate runs prompt once a freshly loaded, untouched, empty session
// is in generate mode. Prompts that are hypergraph ids are ignored. It
// reports whether a generation ran.
func (s *Session) AutoGenerate(ctx context.Context, prompt string) (bool, error) {
	prompt = strings.TrimSpace(prompt)
	s.mu.Lock()
	ready := !s.lastRefreshed.IsZero() &&
		len(s.edges) == 0 &&
		s.input == "" &&
		!s.edited &&
		s.inputMode == ModeGenerate
	s.mu.Unlock()

	if !ready || prompt == "" {
		return false, nil
	}
	if _, err := uuid.Parse(prompt); err == nil {
		return false, nil
	}
	s.logger.Info("session: auto generate", slog.String("prompt", prompt))
	return true, s.Generate(ctx, prompt)
}

// Export returns a file name and the CSV of every hyperedge.
func (s *Session) Export(ctx context.Context) (string, []byte, error) {
	edges, err := s.bridge.All(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("session: export: %w", err)
	}
	if len(edges) == 0 {
		s.notifier.Error(NoticeNothingToExport)
		return "", nil, fmt.Errorf("session: export: %w", apperr.ErrPrecondition)
	}
	data, err := s.bridge.Export(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("session: export: %w", err)
	}
	return parser.ExportName(edges, s.now()), data, nil
}
