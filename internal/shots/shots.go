// Package shots runs scripted camera moves while a recorder captures them.
package shots

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/render"
	"github.com/starford/hypermind/internal/session"
)

// Shot names a scripted camera move.
type Shot string

const (
	// Orbit records one revolution of the host's built-in rotation.
	Orbit Shot = "orbit"
	// Flyby offsets the camera and flies it through the graph to the far side.
	Flyby Shot = "flyby"
	// Zoom flies the camera to the graph's plane and back.
	Zoom Shot = "zoom"
)

// ParseShot maps a shot name to its Shot.
func ParseShot(name string) (Shot, error) {
	switch s := Shot(name); s {
	case Orbit, Flyby, Zoom:
		return s, nil
	default:
		return "", fmt.Errorf("shots: unknown shot %q: %w", name, apperr.ErrInvalidInput)
	}
}

const (
	// DefaultTick is the stepping interval of manual shots.
	DefaultTick = 10 * time.Millisecond

	flybyOffset = 150
	restoreTime = 500 * time.Millisecond
)

// Recorder captures what the host draws between Start and Stop.
type Recorder interface {
	Start(name string) error
	Stop() error
}

type requirement struct {
	control render.ControlMode
	notice  string
}

var requirements = map[Shot]requirement{
	Orbit: {control: render.ControlOrbit, notice: "Orbit recording needs 3D and orbit mode"},
	Flyby: {control: render.ControlOrbit, notice: "Flyby recording needs 3D and orbit mode"},
	Zoom:  {control: render.ControlFly, notice: "Zoom recording needs 3D and fly mode"},
}

// Director runs one shot at a time.
type Director struct {
	session  *session.Session
	host     render.Host
	rec      Recorder
	notifier session.Notifier
	logger   *slog.Logger
	tick     time.Duration

	mu     sync.Mutex
	active Shot
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Director.
type Option func(*Director)

// WithTick sets the stepping interval of manual shots.
func WithTick(d time.Duration) Option {
	return func(dir *Director) {
		if d > 0 {
			dir.tick = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(dir *Director) { dir.logger = l }
}

// WithNotifier sets where rejected shots are reported.
func WithNotifier(n session.Notifier) Option {
	return func(dir *Director) { dir.notifier = n }
}

// NewDirector creates a director that moves host's camera for s and records
// with rec.
func NewDirector(s *session.Session, host render.Host, rec Recorder, opts ...Option) *Director {
	d := &Director{
		session: s,
		host:    host,
		rec:     rec,
		logger:  slog.Default(),
		tick:    DefaultTick,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = session.LogNotifier{Logger: d.logger}
	}
	return d
}

// Start checks the shot's preconditions and runs it in the background. A
// shot whose preconditions fail is rejected with a notice and
// apperr.ErrPrecondition and changes nothing. The shot ends on its own or
// when ctx is done or Stop is called.
func (d *Director) Start(ctx context.Context, shot Shot) error {
	req, ok := requirements[shot]
	if !ok {
		return fmt.Errorf("shots: unknown shot %q: %w", shot, apperr.ErrInvalidInput)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	m := d.session.Mode()
	if d.active != "" || m.Graph != render.Graph3D || m.Control != req.control {
		d.logger.Info("shots: rejected",
			slog.String("shot", string(shot)),
			slog.String("active", string(d.active)),
			slog.String("mode", m.String()))
		d.notifier.Error(req.notice)
		return fmt.Errorf("shots: %s: %w", shot, apperr.ErrPrecondition)
	}
	if err := d.session.BeginAnimation(); err != nil {
		d.notifier.Error(session.NoticeBusy)
		return fmt.Errorf("shots: %s: %w", shot, err)
	}
	if err := d.rec.Start(string(shot)); err != nil {
		d.session.EndAnimation()
		return fmt.Errorf("shots: %s: start recorder: %w", shot, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.active, d.cancel, d.done = shot, cancel, done
	d.logger.Info("shots: started", slog.String("shot", string(shot)))

	go func() {
		defer close(done)
		defer cancel()
		start := time.Now()
		switch shot {
		case Orbit:
			d.orbit(ctx)
		case Flyby:
			d.flyby(ctx)
		case Zoom:
			d.zoom(ctx)
		}
		d.finish(shot, time.Since(start))
	}()
	return nil
}

// Active returns the running shot, or "" when none runs.
func (d *Director) Active() Shot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Stop ends the running shot early and waits for it to wind down.
func (d *Director) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the running shot, if any, has finished.
func (d *Director) Wait() {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (d *Director) orbit(ctx context.Context) {
	finished := make(chan struct{})
	var once sync.Once
	d.host.StartAnimation(func() { once.Do(func() { close(finished) }) })
	select {
	case <-finished:
	case <-ctx.Done():
	}
	d.host.StopAnimation()
}

func (d *Director) flyby(ctx context.Context) {
	pos := d.host.CameraPosition()
	initialZ := pos.Z
	d.host.SetCameraPosition(render.Vec3{X: pos.X + flybyOffset, Y: pos.Y + flybyOffset, Z: pos.Z}, nil, 0)
	d.step(ctx, func(p render.Vec3) bool { return p.Z < -initialZ })
}

func (d *Director) zoom(ctx context.Context) {
	initial := d.host.CameraPosition()
	d.step(ctx, func(p render.Vec3) bool { return p.Z < 0 })
	d.host.SetCameraPosition(initial, nil, restoreTime)
}

// step zooms in by one unit per tick until done reports true for the camera
// position or ctx ends.
func (d *Director) step(ctx context.Context, done func(render.Vec3) bool) {
	t := time.NewTicker(d.tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if done(d.host.CameraPosition()) {
				return
			}
			d.session.Zoom(-1)
		}
	}
}

func (d *Director) finish(shot Shot, took time.Duration) {
	if err := d.rec.Stop(); err != nil {
		d.logger.Error("shots: stop recorder", slog.String("shot", string(shot)), slog.String("error", err.Error()))
	}
	d.session.EndAnimation()

	d.mu.Lock()
	d.active = ""
	d.cancel = nil
	d.mu.Unlock()
	d.logger.Info("shots: finished", slog.String("shot", string(shot)), slog.Duration("took", took))
}
