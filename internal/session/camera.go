package session

import (
	"fmt"
	"time"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/render"
)

// ResetPosition is where ResetCamera puts the camera.
var ResetPosition = render.Vec3{X: -500, Y: 0, Z: 100}

const cameraMove = 100 * time.Millisecond

// Zoom moves the camera along z by amount. Negative amounts move in.
func (s *Session) Zoom(amount float64) {
	pos := s.host.CameraPosition()
	pos.Z += amount
	s.host.SetCameraPosition(pos, nil, 0)
}

// Rotate orbits the camera about the y axis by deg degrees.
func (s *Session) Rotate(deg float64) {
	s.host.SetCameraPosition(s.host.CameraPosition().RotateY(deg), nil, cameraMove)
}

// PanX shifts the 2D view horizontally, ten times as far with modifier.
func (s *Session) PanX(amount float64, modifier bool) {
	if modifier {
		amount *= 10
	}
	c := s.host.Center()
	s.host.CenterAt(c.X+amount, c.Y, cameraMove)
}

// PanY shifts the 2D view vertically, ten times as far with modifier.
func (s *Session) PanY(amount float64, modifier bool) {
	if modifier {
		amount *= 10
	}
	c := s.host.Center()
	s.host.CenterAt(c.X, c.Y+amount, cameraMove)
}

// Nudge handles the arrow keys: left/right rotate in 3D and pan in 2D,
// up/down pan in 2D only. dx and dy are -1, 0 or 1.
func (s *Session) Nudge(dx, dy int, modifier bool) {
	graph := s.Mode().Graph
	if dx != 0 {
		if graph == render.Graph3D {
			s.Rotate(float64(dx))
		} else {
			s.PanX(float64(dx), modifier)
		}
	}
	if dy != 0 && graph == render.Graph2D {
		s.PanY(float64(dy), modifier)
	}
}

// ResetCamera puts the camera back at ResetPosition.
func (s *Session) ResetCamera() {
	s.host.SetCameraPosition(ResetPosition, nil, 0)
}

// ToggleLabels flips label visibility until the next refresh recomputes it.
func (s *Session) ToggleLabels() {
	s.mu.Lock()
	s.hideLabels = !s.hideLabels
	s.host.SetShowLabels(!s.hideLabels)
	s.host.Refresh()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// ToggleAnimation starts or stops the host's orbit loop. It fails with
// apperr.ErrBusy while a generation runs.
func (s *Session) ToggleAnimation() error {
	if s.Mode().Activity == Animating {
		s.host.StopAnimation()
		s.EndAnimation()
		return nil
	}
	if err := s.BeginAnimation(); err != nil {
		return err
	}
	s.host.StartAnimation(nil)
	return nil
}

// BeginAnimation marks an idle session as animating.
func (s *Session) BeginAnimation() error {
	return s.setMode(func(m *Mode) error {
		if m.Activity != Idle {
			return fmt.Errorf("session: %s in progress: %w", m.Activity, apperr.ErrBusy)
		}
		m.Activity = Animating
		return nil
	})
}

// EndAnimation returns an animating session to idle.
func (s *Session) EndAnimation() {
	_ = s.setMode(func(m *Mode) error {
		if m.Activity == Animating {
			m.Activity = Idle
		}
		return nil
	})
}

// SetControlMode switches camera control. Orbit control is refused while
// wormhole mode is on.
func (s *Session) SetControlMode(c render.ControlMode) error {
	if err := s.setMode(func(m *Mode) error {
		m.Control = c
		return nil
	}); err != nil {
		return err
	}
	s.host.SetControlMode(c)
	return nil
}

// ToggleCamera switches between orbit and fly control.
func (s *Session) ToggleCamera() error {
	next := render.ControlFly
	if s.Mode().Control == render.ControlFly {
		next = render.ControlOrbit
	}
	return s.SetControlMode(next)
}

// ToggleGraphType switches between the 3D and 2D renderer.
func (s *Session) ToggleGraphType() {
	var next render.GraphType
	_ = s.setMode(func(m *Mode) error {
		if m.Graph == render.Graph3D {
			m.Graph = render.Graph2D
		} else {
			m.Graph = render.Graph3D
		}
		next = m.Graph
		return nil
	})
	s.host.SetGraphType(next)
}
