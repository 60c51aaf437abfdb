package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/bridge"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/render"
)

// Generate streams hyperedges generated from input into the current
// hypergraph. Only one generation runs per session; a second call while one
// is in flight fails with apperr.ErrBusy.
func (s *Session) Generate(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		s.notifier.Error(NoticeEmptyPhrase)
		return fmt.Errorf("session: generate: %w", apperr.ErrInvalidInput)
	}
	if err := s.claimGeneration(); err != nil {
		s.notifier.Error(NoticeBusy)
		return err
	}

	if err := s.EnsureHypergraph(ctx); err != nil {
		s.releaseGeneration()
		s.notifier.Error(NoticeLoadFailed)
		return err
	}
	s.mu.Lock()
	s.draft = nil
	s.input = ""
	llm := s.llm
	s.mu.Unlock()

	s.logger.Info("session: generate",
		slog.String("hypergraph", s.bridge.CurrentID()),
		slog.String("service", llm.Service))
	stream, err := s.bridge.Generate(ctx, input, llm)
	if err != nil {
		s.releaseGeneration()
		s.notifier.Error(NoticeLoadFailed)
		return fmt.Errorf("session: generate: %w", err)
	}
	return s.Consume(ctx, stream)
}

// Consume reads a generation stream to the end and closes it. start marks
// the session generating and edited, each result refreshes if the render is
// stale, notices are surfaced, and stop ends the generation with a forced
// refresh. A stream that breaks off is finished the same way and its error
// returned.
func (s *Session) Consume(ctx context.Context, stream bridge.Stream) error {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			s.logger.Warn("session: stream ended without stop")
			return s.finishGeneration(ctx)
		}
		if err != nil {
			if ferr := s.finishGeneration(ctx); ferr != nil {
				s.logger.Warn("session: refresh after broken stream", slog.String("error", ferr.Error()))
			}
			return fmt.Errorf("session: stream: %w", err)
		}

		switch ev.Event {
		case models.EventGenerateStart:
			s.markGenerating()
		case models.EventGenerateResult:
			if err := s.MaybeRefresh(ctx); err != nil {
				s.logger.Warn("session: refresh during generation", slog.String("error", err.Error()))
			}
		case models.EventSuccess:
			s.notifier.Success(ev.Message)
		case models.EventError:
			s.notifier.Error(ev.Message)
		case models.EventGenerateStop:
			return s.finishGeneration(ctx)
		default:
			s.logger.Debug("session: ignoring stream event", slog.String("event", ev.Event))
		}
	}
}

func (s *Session) claimGeneration() error {
	return s.setMode(func(m *Mode) error {
		if m.Activity != Idle {
			return fmt.Errorf("session: %s in progress: %w", m.Activity, apperr.ErrBusy)
		}
		m.Activity = Generating
		return nil
	})
}

func (s *Session) releaseGeneration() {
	_ = s.setMode(func(m *Mode) error {
		if m.Activity == Generating {
			m.Activity = Idle
		}
		return nil
	})
}

func (s *Session) markGenerating() {
	s.mu.Lock()
	s.edited = true
	s.mu.Unlock()
	_ = s.setMode(func(m *Mode) error {
		if m.Activity == Idle {
			m.Activity = Generating
		}
		return nil
	})
}

func (s *Session) finishGeneration(ctx context.Context) error {
	s.releaseGeneration()
	return s.Refresh(ctx, true)
}

// SetWormhole turns wormhole mode on or off. Turning it on arms it and
// switches the camera to fly control; turning it off leaves the control
// mode as it is.
func (s *Session) SetWormhole(enabled bool) error {
	err := s.setMode(func(m *Mode) error {
		if !enabled {
			m.Wormhole = WormholeDisabled
			return nil
		}
		if m.Wormhole == WormholeDisabled {
			m.Wormhole = WormholeArmed
		}
		m.Control = render.ControlFly
		return nil
	})
	if err == nil && enabled {
		s.host.SetControlMode(render.ControlFly)
	}
	return err
}

// BeginWormhole moves an armed, idle session to Transitioning and claims the
// generation slot. It reports false when the session is in any other state.
func (s *Session) BeginWormhole() bool {
	return s.setMode(func(m *Mode) error {
		if m.Wormhole != WormholeArmed || m.Activity != Idle {
			return apperr.ErrBusy
		}
		m.Wormhole = WormholeTransitioning
		m.Activity = Generating
		return nil
	}) == nil
}

// EndWormhole re-arms the wormhole after a cycle unless it was turned off
// meanwhile.
func (s *Session) EndWormhole() {
	_ = s.setMode(func(m *Mode) error {
		if m.Wormhole != WormholeDisabled {
			m.Wormhole = WormholeArmed
		}
		return nil
	})
}

// GenerateWormhole runs the body of a wormhole cycle claimed with
// BeginWormhole: it switches to a new hypergraph, marks the cycle active and
// regenerates from the given hyperedges of the previous hypergraph. The
// generation slot is released whatever happens.
func (s *Session) GenerateWormhole(ctx context.Context, hyperedgeIDs []string) error {
	input := s.HyperedgeText(hyperedgeIDs)

	from, err := s.NewHypergraph(ctx)
	if err != nil {
		return s.abortWormhole(ctx, err)
	}
	if err := s.setMode(func(m *Mode) error {
		if m.Wormhole != WormholeTransitioning {
			return fmt.Errorf("session: wormhole is %s: %w", m.Wormhole, apperr.ErrPrecondition)
		}
		m.Wormhole = WormholeActive
		return nil
	}); err != nil {
		return s.abortWormhole(ctx, err)
	}

	s.logger.Info("session: wormhole",
		slog.String("from", from),
		slog.String("to", s.bridge.CurrentID()),
		slog.Int("hyperedges", len(hyperedgeIDs)))
	stream, err := s.bridge.Wormhole(ctx, models.WormholeRequest{
		HyperedgeIDs: hyperedgeIDs,
		From:         from,
		Input:        input,
		LLM:          s.LLM(),
	})
	if err != nil {
		return s.abortWormhole(ctx, fmt.Errorf("session: wormhole: %w", err))
	}
	return s.Consume(ctx, stream)
}

func (s *Session) abortWormhole(ctx context.Context, err error) error {
	if ferr := s.finishGeneration(ctx); ferr != nil {
		s.logger.Warn("session: refresh after wormhole failure", slog.String("error", ferr.Error()))
	}
	return err
}

// HyperedgeText joins the symbols of each known hyperedge in ids with spaces
// and the hyperedges with newlines, in the order of ids.
func (s *Session) HyperedgeText(ids []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[string]models.Hyperedge, len(s.edges))
	for _, e := range s.edges {
		byID[e.ID] = e
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			lines = append(lines, e.Text())
		}
	}
	return strings.Join(lines, "\n")
}
