package render

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/starford/hypermind/internal/models"
)

// DefaultCamera is where a fresh scene puts the camera.
var DefaultCamera = Vec3{Z: 1000}

// Headless is an in-memory Host for command-line sessions. It lays nodes
// out on a spiral and applies camera moves instantly.
type Headless struct {
	mu         sync.RWMutex
	camera     Vec3
	center     Vec3
	nodes      map[string]Vec3
	control    ControlMode
	graphType  GraphType
	showLabels bool
	data       models.GraphData
	refreshes  int

	revolution time.Duration
	anim       *time.Timer
}

// NewHeadless creates a host whose orbit animation takes revolution to
// complete.
func NewHeadless(revolution time.Duration) *Headless {
	return &Headless{
		camera:     DefaultCamera,
		nodes:      map[string]Vec3{},
		showLabels: true,
		revolution: revolution,
	}
}

func (h *Headless) CameraPosition() Vec3 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.camera
}

func (h *Headless) Center() Vec3 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.center
}

func (h *Headless) NodePositions() map[string]Vec3 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Vec3, len(h.nodes))
	for k, v := range h.nodes {
		out[k] = v
	}
	return out
}

// GraphData returns the last data handed to the host.
func (h *Headless) GraphData() models.GraphData {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.data
}

// ShowLabels reports whether labels are drawn.
func (h *Headless) ShowLabels() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.showLabels
}

// Control returns the active control mode.
func (h *Headless) Control() ControlMode {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.control
}

func (h *Headless) SetCameraPosition(pos Vec3, _ *Vec3, _ time.Duration) {
	h.mu.Lock()
	h.camera = pos
	h.mu.Unlock()
}

func (h *Headless) CenterAt(x, y float64, _ time.Duration) {
	h.mu.Lock()
	h.center = Vec3{X: x, Y: y}
	h.mu.Unlock()
}

// ZoomToFit backs the camera off far enough to see every node.
func (h *Headless) ZoomToFit(_ time.Duration, padding float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var r float64
	for _, p := range h.nodes {
		r = math.Max(r, p.Distance(Vec3{}))
	}
	h.camera = Vec3{Z: 2*r + padding}
}

func (h *Headless) SetControlMode(m ControlMode) {
	h.mu.Lock()
	h.control = m
	h.mu.Unlock()
}

func (h *Headless) SetGraphType(t GraphType) {
	h.mu.Lock()
	h.graphType = t
	h.mu.Unlock()
}

// SetGraphData stores data and assigns spiral positions in node id order,
// keeping positions of nodes that were already placed.
func (h *Headless) SetGraphData(data models.GraphData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = data

	ids := make([]string, 0, len(data.Nodes))
	for _, n := range data.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)

	next := make(map[string]Vec3, len(ids))
	for i, id := range ids {
		if p, ok := h.nodes[id]; ok {
			next[id] = p
			continue
		}
		a := float64(i) * 2.39996 // golden angle
		r := 30 * math.Sqrt(float64(i+1))
		next[id] = Vec3{X: r * math.Cos(a), Y: float64(i%7-3) * 10, Z: r * math.Sin(a)}
	}
	h.nodes = next
}

func (h *Headless) SetShowLabels(show bool) {
	h.mu.Lock()
	h.showLabels = show
	h.mu.Unlock()
}

func (h *Headless) Refresh() {
	h.mu.Lock()
	h.refreshes++
	h.mu.Unlock()
}

func (h *Headless) StartAnimation(onDone func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.anim != nil {
		h.anim.Stop()
		h.anim = nil
	}
	if onDone == nil {
		return
	}
	h.anim = time.AfterFunc(h.revolution, func() {
		h.mu.Lock()
		h.anim = nil
		h.mu.Unlock()
		onDone()
	})
}

func (h *Headless) StopAnimation() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.anim != nil {
		h.anim.Stop()
		h.anim = nil
	}
}
