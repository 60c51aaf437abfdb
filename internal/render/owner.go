package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/starford/hypermind/internal/models"
)

// ErrClosed is returned when a command is sent to a closed Owner.
var ErrClosed = errors.New("render: owner closed")

// Owner serializes every write to a Host through a single goroutine.
// Reads pass straight through to the host. Owner itself implements Host so
// callers do not need to know whether writes are queued.
type Owner struct {
	host Host
	cmds chan func(Host)
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

var _ Host = (*Owner)(nil)

// NewOwner starts the command loop for host with a queue of the given size.
func NewOwner(host Host, queue int) *Owner {
	if queue < 1 {
		queue = 1
	}
	o := &Owner{
		host: host,
		cmds: make(chan func(Host), queue),
		done: make(chan struct{}),
	}
	o.wg.Add(1)
	go o.run()
	return o
}

func (o *Owner) run() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case fn := <-o.cmds:
			fn(o.host)
		}
	}
}

// Close stops the command loop. Queued commands that have not started are
// dropped.
func (o *Owner) Close() {
	o.once.Do(func() { close(o.done) })
	o.wg.Wait()
}

// Do queues fn. It blocks while the queue is full.
func (o *Owner) Do(fn func(Host)) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.cmds <- fn:
		return nil
	case <-o.done:
		return ErrClosed
	}
}

// Sync waits until every command queued before it has been applied.
func (o *Owner) Sync(ctx context.Context) error {
	applied := make(chan struct{})
	if err := o.Do(func(Host) { close(applied) }); err != nil {
		return err
	}
	select {
	case <-applied:
		return nil
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Owner) CameraPosition() Vec3           { return o.host.CameraPosition() }
func (o *Owner) Center() Vec3                   { return o.host.Center() }
func (o *Owner) NodePositions() map[string]Vec3 { return o.host.NodePositions() }

func (o *Owner) SetCameraPosition(pos Vec3, lookAt *Vec3, d time.Duration) {
	_ = o.Do(func(h Host) { h.SetCameraPosition(pos, lookAt, d) })
}

func (o *Owner) CenterAt(x, y float64, d time.Duration) {
	_ = o.Do(func(h Host) { h.CenterAt(x, y, d) })
}

func (o *Owner) ZoomToFit(d time.Duration, padding float64) {
	_ = o.Do(func(h Host) { h.ZoomToFit(d, padding) })
}

func (o *Owner) SetControlMode(m ControlMode) {
	_ = o.Do(func(h Host) { h.SetControlMode(m) })
}

func (o *Owner) SetGraphType(t GraphType) {
	_ = o.Do(func(h Host) { h.SetGraphType(t) })
}

func (o *Owner) SetGraphData(data models.GraphData) {
	_ = o.Do(func(h Host) { h.SetGraphData(data) })
}

func (o *Owner) SetShowLabels(show bool) {
	_ = o.Do(func(h Host) { h.SetShowLabels(show) })
}

func (o *Owner) Refresh() {
	_ = o.Do(func(h Host) { h.Refresh() })
}

func (o *Owner) StartAnimation(onDone func()) {
	_ = o.Do(func(h Host) { h.StartAnimation(onDone) })
}

func (o *Owner) StopAnimation() {
	_ = o.Do(func(h Host) { h.StopAnimation() })
}
