package testutil

import (
	"sync"
	"time"

	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/render"
)

// FakeHost is a render.Host that applies writes synchronously and counts
// them. Node positions are set by the test.
type FakeHost struct {
	mu        sync.Mutex
	camera    render.Vec3
	center    render.Vec3
	nodes     map[string]render.Vec3
	control   render.ControlMode
	graphType render.GraphType
	data      models.GraphData
	labels    bool
	animating bool
	onDone    func()

	fits       int
	refreshes  int
	cameraSets []render.Vec3
}

var _ render.Host = (*FakeHost)(nil)

// NewFakeHost returns a host with the camera at cam.
func NewFakeHost(cam render.Vec3) *FakeHost {
	return &FakeHost{camera: cam, nodes: map[string]render.Vec3{}, labels: true}
}

// PlaceNode sets the world position of node id.
func (h *FakeHost) PlaceNode(id string, pos render.Vec3) {
	h.mu.Lock()
	h.nodes[id] = pos
	h.mu.Unlock()
}

// FinishAnimation fires the pending animation callback, as the host does
// after one revolution.
func (h *FakeHost) FinishAnimation() {
	h.mu.Lock()
	fn := h.onDone
	h.onDone = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *FakeHost) Fits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fits
}

func (h *FakeHost) Refreshes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshes
}

func (h *FakeHost) Control() render.ControlMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.control
}

func (h *FakeHost) Data() models.GraphData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.data
}

func (h *FakeHost) Labels() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.labels
}

func (h *FakeHost) Animating() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.animating
}

// CameraSets returns every position passed to SetCameraPosition.
func (h *FakeHost) CameraSets() []render.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]render.Vec3(nil), h.cameraSets...)
}

func (h *FakeHost) CameraPosition() render.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.camera
}

func (h *FakeHost) Center() render.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.center
}

func (h *FakeHost) NodePositions() map[string]render.Vec3 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]render.Vec3, len(h.nodes))
	for k, v := range h.nodes {
		out[k] = v
	}
	return out
}

func (h *FakeHost) SetCameraPosition(pos render.Vec3, _ *render.Vec3, _ time.Duration) {
	h.mu.Lock()
	h.camera = pos
	h.cameraSets = append(h.cameraSets, pos)
	h.mu.Unlock()
}

func (h *FakeHost) CenterAt(x, y float64, _ time.Duration) {
	h.mu.Lock()
	h.center = render.Vec3{X: x, Y: y}
	h.mu.Unlock()
}

func (h *FakeHost) ZoomToFit(time.Duration, float64) {
	h.mu.Lock()
	h.fits++
	h.mu.Unlock()
}

func (h *FakeHost) SetControlMode(m render.ControlMode) {
	h.mu.Lock()
	h.control = m
	h.mu.Unlock()
}

func (h *FakeHost) SetGraphType(t render.GraphType) {
	h.mu.Lock()
	h.graphType = t
	h.mu.Unlock()
}

func (h *FakeHost) SetGraphData(data models.GraphData) {
	h.mu.Lock()
	h.data = data
	h.mu.Unlock()
}

func (h *FakeHost) SetShowLabels(show bool) {
	h.mu.Lock()
	h.labels = show
	h.mu.Unlock()
}

func (h *FakeHost) Refresh() {
	h.mu.Lock()
	h.refreshes++
	h.mu.Unlock()
}

func (h *FakeHost) StartAnimation(onDone func()) {
	h.mu.Lock()
	h.animating = true
	h.onDone = onDone
	h.mu.Unlock()
}

func (h *FakeHost) StopAnimation() {
	h.mu.Lock()
	h.animating = false
	h.onDone = nil
	h.mu.Unlock()
}

// Notices records transient notices.
type Notices struct {
	mu        sync.Mutex
	Successes []string
	Errors    []string
}

func (n *Notices) Success(msg string) {
	n.mu.Lock()
	n.Successes = append(n.Successes, msg)
	n.mu.Unlock()
}

func (n *Notices) Error(msg string) {
	n.mu.Lock()
	n.Errors = append(n.Errors, msg)
	n.mu.Unlock()
}

// Snapshot returns copies of the recorded notices.
func (n *Notices) Snapshot() (successes, errs []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Successes...), append([]string(nil), n.Errors...)
}
