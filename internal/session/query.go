package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/models"
)

// ApplyFilterTerm adds text to the filters: as a new trailing group, or
// appended to the last group when appendToLast is set. Appending with no
// groups starts the first one.
func (s *Session) ApplyFilterTerm(ctx context.Context, text string, appendToLast bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("session: filter: empty term: %w", apperr.ErrInvalidInput)
	}
	return s.refresh(ctx, true, func(q *query) error {
		if appendToLast && len(q.filters) > 0 {
			last := len(q.filters) - 1
			q.filters[last] = append(q.filters[last], text)
			return nil
		}
		q.filters = append(q.filters, []string{text})
		return nil
	})
}

// RemoveFilterSymbol removes symbol from filter group. A group left empty
// is removed.
func (s *Session) RemoveFilterSymbol(ctx context.Context, group int, symbol string) error {
	return s.refresh(ctx, true, func(q *query) error {
		if group < 0 || group >= len(q.filters) {
			return fmt.Errorf("session: filter group %d: %w", group, apperr.ErrNotFound)
		}
		g := q.filters[group]
		idx := -1
		for i, sym := range g {
			if sym == symbol {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("session: filter symbol %q: %w", symbol, apperr.ErrNotFound)
		}
		g = append(g[:idx:idx], g[idx+1:]...)
		if len(g) == 0 {
			q.filters = append(q.filters[:group:group], q.filters[group+1:]...)
		} else {
			q.filters[group] = g
		}
		if len(q.filters) == 0 {
			q.filters = nil
		}
		return nil
	})
}

// ClearFilters drops every filter group.
func (s *Session) ClearFilters(ctx context.Context) error {
	return s.refresh(ctx, true, func(q *query) error {
		q.filters = nil
		return nil
	})
}

// ToggleInterwingle advances the interwingle level cyclically.
func (s *Session) ToggleInterwingle(ctx context.Context) error {
	return s.refresh(ctx, true, func(q *query) error {
		q.interwingle = (q.interwingle + 1) % (models.MaxInterwingle + 1)
		return nil
	})
}

// SetInterwingle sets the interwingle level, clamped to the valid range.
func (s *Session) SetInterwingle(ctx context.Context, level int) error {
	return s.refresh(ctx, true, func(q *query) error {
		q.interwingle = min(max(level, models.InterwingleIsolated), models.MaxInterwingle)
		return nil
	})
}

// IncrementDepth raises depth by one, saturating at the last known maximum.
func (s *Session) IncrementDepth(ctx context.Context) error {
	s.mu.Lock()
	depth := s.query.depth + 1
	s.mu.Unlock()
	return s.SetDepth(ctx, depth)
}

// SetDepth sets depth, clamped to [0, max depth].
func (s *Session) SetDepth(ctx context.Context, depth int) error {
	return s.refresh(ctx, true, func(q *query) error {
		q.depth = min(max(depth, 0), s.maxDepth)
		return nil
	})
}

// Refresh re-resolves the whole subgraph for the current query. When zoom is
// set the host is asked to fit the graph once the layout had time to settle.
//
// A newer refresh supersedes an older one: the older one's round trip is
// cancelled and it returns nil without rendering; its query change stays
// for the next refresh. A failed refresh leaves the previous render in place
// and the query as it was before the call.
func (s *Session) Refresh(ctx context.Context, zoom bool) error {
	return s.refresh(ctx, zoom, nil)
}

// MaybeRefresh refreshes only if the last refresh is older than the
// debounce window.
func (s *Session) MaybeRefresh(ctx context.Context) error {
	s.mu.Lock()
	stale := s.now().Sub(s.lastRefreshed) > s.cfg.RefreshDebounce
	s.mu.Unlock()
	if !stale {
		return nil
	}
	return s.Refresh(ctx, true)
}

func (s *Session) refresh(ctx context.Context, zoom bool, mutate func(q *query) error) error {
	s.mu.Lock()
	prev := s.query.clone()
	if mutate != nil {
		next := s.query.clone()
		if err := mutate(&next); err != nil {
			s.mu.Unlock()
			return err
		}
		s.query = next
	}
	s.refreshSeq++
	seq := s.refreshSeq
	if s.cancelRefresh != nil {
		s.cancelRefresh()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelRefresh = cancel
	q := s.query.clone()
	s.mu.Unlock()
	defer cancel()

	data, err := s.bridge.GraphData(ctx, q.filters, models.GraphOptions{Interwingle: q.interwingle, Depth: q.depth})
	var edges []models.Hyperedge
	if err == nil {
		edges, err = s.bridge.All(ctx)
	}

	s.mu.Lock()
	if seq != s.refreshSeq {
		s.mu.Unlock()
		s.logger.Debug("session: refresh superseded", slog.Uint64("seq", seq))
		return nil
	}
	s.cancelRefresh = nil
	if err != nil {
		// Undo this call's mutation only; superseded calls keep theirs.
		s.query = prev
		s.mu.Unlock()
		s.logger.Warn("session: refresh failed", slog.String("error", err.Error()))
		return fmt.Errorf("session: refresh: %w", err)
	}

	if q.depth > data.MaxDepth {
		q.depth = data.MaxDepth
	}
	if s.query.depth > data.MaxDepth {
		s.query.depth = data.MaxDepth
	}
	s.rendered = q
	s.maxDepth = data.MaxDepth
	s.graph = data
	s.edges = edges
	if len(edges) > 0 {
		s.edited = true
	}
	s.hideLabels = len(data.Nodes) >= s.cfg.HideLabelsThreshold
	s.lastRefreshed = s.now()

	s.host.SetGraphData(data)
	s.host.SetShowLabels(!s.hideLabels)
	if zoom {
		s.scheduleFitLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("session: refreshed",
		slog.Int("nodes", len(data.Nodes)),
		slog.Int("links", len(data.Links)),
		slog.Int("max_depth", data.MaxDepth))
	s.publish(snap)
	return nil
}

func (s *Session) scheduleFitLocked() {
	if s.closed {
		return
	}
	if s.fitTimer != nil {
		s.fitTimer.Stop()
	}
	d, pad := s.cfg.FitDuration, s.cfg.FitPadding
	s.fitTimer = time.AfterFunc(s.cfg.ZoomSettle, func() {
		s.host.ZoomToFit(d, pad)
	})
}
