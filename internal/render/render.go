// Package render defines the contract of the scene host that draws the
// force-directed graph and owns the camera and node coordinates.
package render

import (
	"math"
	"time"

	"github.com/starford/hypermind/internal/models"
)

// Vec3 is a world-space position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the Euclidean distance between v and o.
func (v Vec3) Distance(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// RotateY rotates v about the y axis by deg degrees, keeping its distance
// to the axis.
func (v Vec3) RotateY(deg float64) Vec3 {
	r := math.Hypot(v.X, v.Z)
	a := math.Atan2(v.X, v.Z) + deg*math.Pi/180
	return Vec3{X: r * math.Sin(a), Y: v.Y, Z: r * math.Cos(a)}
}

// ControlMode is the camera control scheme.
type ControlMode int

const (
	ControlOrbit ControlMode = iota
	ControlFly
)

func (m ControlMode) String() string {
	if m == ControlFly {
		return "fly"
	}
	return "orbit"
}

// GraphType selects the 3D or 2D renderer.
type GraphType int

const (
	Graph3D GraphType = iota
	Graph2D
)

func (g GraphType) String() string {
	if g == Graph2D {
		return "2d"
	}
	return "3d"
}

// Host is a rendering host. Reads may be called from any goroutine; writes
// are expected to be funneled through an Owner.
type Host interface {
	CameraPosition() Vec3
	// Center returns the 2D view center.
	Center() Vec3
	NodePositions() map[string]Vec3

	// SetCameraPosition moves the camera over d. A nil lookAt keeps the
	// current target.
	SetCameraPosition(pos Vec3, lookAt *Vec3, d time.Duration)
	CenterAt(x, y float64, d time.Duration)
	ZoomToFit(d time.Duration, padding float64)
	SetControlMode(m ControlMode)
	SetGraphType(t GraphType)
	SetGraphData(data models.GraphData)
	SetShowLabels(show bool)
	Refresh()
	// StartAnimation starts the built-in orbit loop. onDone, if non-nil, is
	// called once after one full revolution.
	StartAnimation(onDone func())
	StopAnimation()
}
