package session

import (
	"fmt"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/render"
)

// Activity is what the session is busy with. Generating and Animating are
// mutually exclusive.
type Activity int

const (
	Idle Activity = iota
	Generating
	Animating
)

func (a Activity) String() string {
	switch a {
	case Generating:
		return "generating"
	case Animating:
		return "animating"
	default:
		return "idle"
	}
}

// WormholePhase is the state of the wormhole cycle.
type WormholePhase int

const (
	WormholeDisabled      WormholePhase = -1
	WormholeArmed         WormholePhase = 0
	WormholeTransitioning WormholePhase = 1
	WormholeActive        WormholePhase = 2
)

func (p WormholePhase) String() string {
	switch p {
	case WormholeDisabled:
		return "disabled"
	case WormholeArmed:
		return "armed"
	case WormholeTransitioning:
		return "transitioning"
	case WormholeActive:
		return "active"
	default:
		return fmt.Sprintf("WormholePhase(%d)", int(p))
	}
}

// Mode is the session's mode. Every change goes through validate.
type Mode struct {
	Activity Activity
	Wormhole WormholePhase
	Control  render.ControlMode
	Graph    render.GraphType
}

// DefaultMode is idle, wormhole off, orbit control, 3D.
func DefaultMode() Mode {
	return Mode{Activity: Idle, Wormhole: WormholeDisabled, Control: render.ControlOrbit, Graph: render.Graph3D}
}

func (m Mode) validate() error {
	if m.Wormhole < WormholeDisabled || m.Wormhole > WormholeActive {
		return fmt.Errorf("session: mode: unknown wormhole phase %d: %w", int(m.Wormhole), apperr.ErrInvalidInput)
	}
	if m.Wormhole != WormholeDisabled && m.Control != render.ControlFly {
		return fmt.Errorf("session: mode: wormhole needs fly control: %w", apperr.ErrPrecondition)
	}
	return nil
}

func (m Mode) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", m.Activity, m.Wormhole, m.Control, m.Graph)
}
