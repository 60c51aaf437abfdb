// Package wormhole turns a camera flythrough into regeneration: when the
// camera comes close enough to a rendered node, the hyperedges behind that
// node seed a brand-new hypergraph.
package wormhole

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/render"
	"github.com/starford/hypermind/internal/session"
)

// DefaultThreshold is the collision distance in world units.
const DefaultThreshold = 40.0

// Hit is a node the camera collided with.
type Hit struct {
	Node     models.Node
	Distance float64
}

// Controller checks for collisions on every tick and runs one wormhole cycle
// per collision.
type Controller struct {
	session   *session.Session
	host      render.Host
	notifier  session.Notifier
	logger    *slog.Logger
	threshold float64

	wg sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithThreshold sets the collision distance.
func WithThreshold(d float64) Option {
	return func(c *Controller) {
		if d > 0 {
			c.threshold = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithNotifier sets where cycle failures are reported.
func WithNotifier(n session.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// New creates a controller for s reading positions from host.
func New(s *session.Session, host render.Host, opts ...Option) *Controller {
	c := &Controller{
		session:   s,
		host:      host,
		logger:    slog.Default(),
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = session.LogNotifier{Logger: c.logger}
	}
	return c
}

// Enable arms the wormhole and switches the camera to fly control.
func (c *Controller) Enable() error {
	return c.session.SetWormhole(true)
}

// Disable turns the wormhole off from any phase. A running cycle finishes
// but is not re-armed.
func (c *Controller) Disable() error {
	return c.session.SetWormhole(false)
}

// Toggle flips the wormhole on or off and reports whether it is now on.
func (c *Controller) Toggle() (bool, error) {
	if c.session.Mode().Wormhole == session.WormholeDisabled {
		return true, c.Enable()
	}
	return false, c.Disable()
}

// Collide returns the nearest rendered node closer to the camera than the
// threshold that belongs to at least one hyperedge. Equal distances go to
// the smaller node id.
func (c *Controller) Collide() (Hit, bool) {
	camera := c.host.CameraPosition()
	positions := c.host.NodePositions()
	nodes := c.session.Graph().Nodes

	var hits []Hit
	for _, n := range nodes {
		if len(n.Meta.HyperedgeIDs) == 0 {
			continue
		}
		pos, ok := positions[n.ID]
		if !ok {
			continue
		}
		if d := camera.Distance(pos); d < c.threshold {
			hits = append(hits, Hit{Node: n, Distance: d})
		}
	}
	if len(hits) == 0 {
		return Hit{}, false
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Node.ID < hits[j].Node.ID
	})
	return hits[0], true
}

// Tick runs one collision check. If the wormhole is armed, the session idle
// and the camera collides with a node, the cycle is claimed synchronously
// and run in the background. Tick reports whether a cycle started.
func (c *Controller) Tick(ctx context.Context) bool {
	m := c.session.Mode()
	if m.Wormhole != session.WormholeArmed || m.Activity != session.Idle {
		return false
	}
	hit, ok := c.Collide()
	if !ok {
		return false
	}
	if !c.session.BeginWormhole() {
		return false
	}

	ids := append([]string(nil), hit.Node.Meta.HyperedgeIDs...)
	c.logger.Info("wormhole: collision",
		slog.String("node", hit.Node.ID),
		slog.Float64("distance", hit.Distance),
		slog.Int("hyperedges", len(ids)))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.cycle(ctx, ids)
	}()
	return true
}

func (c *Controller) cycle(ctx context.Context, ids []string) {
	defer c.session.EndWormhole()

	c.session.ResetCamera()
	if err := c.session.GenerateWormhole(ctx, ids); err != nil {
		c.logger.Error("wormhole: cycle failed", slog.String("error", err.Error()))
		c.notifier.Error(session.NoticeWormholeFailed)
	}
}

// Run ticks every interval until ctx is done, then waits for a running cycle.
func (c *Controller) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	defer c.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Tick(ctx)
		}
	}
}

// Wait blocks until the running cycle, if any, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}
