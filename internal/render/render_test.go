package render

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/starford/hypermind/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestVec3Distance(t *testing.T) {
	assert.InDelta(t, 5.0, Vec3{X: 3, Y: 4}.Distance(Vec3{}), 1e-9)
	assert.InDelta(t, 35.0, Vec3{Z: 35}.Distance(Vec3{}), 1e-9)
}

func TestVec3RotateY(t *testing.T) {
	got := Vec3{Z: 100, Y: 7}.RotateY(90)
	assert.InDelta(t, 100, got.X, 1e-9)
	assert.InDelta(t, 0, got.Z, 1e-9)
	assert.Equal(t, 7.0, got.Y)

	back := got.RotateY(-90)
	assert.InDelta(t, 100, back.Z, 1e-9)
	assert.InDelta(t, 100, math.Hypot(back.X, back.Z), 1e-9)
}

func TestOwnerAppliesWritesInOrder(t *testing.T) {
	h := NewHeadless(time.Second)
	o := NewOwner(h, 4)
	defer o.Close()

	for i := 1; i <= 50; i++ {
		o.SetCameraPosition(Vec3{Z: float64(i)}, nil, 0)
	}
	require.NoError(t, o.Sync(context.Background()))
	assert.Equal(t, Vec3{Z: 50}, o.CameraPosition())
}

func TestOwnerConcurrentWriters(t *testing.T) {
	h := NewHeadless(time.Second)
	o := NewOwner(h, 1)
	defer o.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				o.Refresh()
				_ = o.CameraPosition()
			}
		}()
	}
	wg.Wait()
	require.NoError(t, o.Sync(context.Background()))

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Equal(t, 800, h.refreshes)
}

func TestOwnerClosed(t *testing.T) {
	o := NewOwner(NewHeadless(time.Second), 1)
	o.Close()
	o.Close()
	assert.ErrorIs(t, o.Do(func(Host) {}), ErrClosed)
	assert.ErrorIs(t, o.Sync(context.Background()), ErrClosed)
}

func TestHeadlessLayoutIsStable(t *testing.T) {
	h := NewHeadless(time.Second)
	h.SetGraphData(models.GraphData{Nodes: []models.Node{{ID: "a"}, {ID: "b"}}})
	first := h.NodePositions()
	require.Len(t, first, 2)

	h.SetGraphData(models.GraphData{Nodes: []models.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}})
	second := h.NodePositions()
	assert.Equal(t, first["a"], second["a"])
	assert.Equal(t, first["b"], second["b"])
	assert.Len(t, second, 3)

	h.ZoomToFit(0, 100)
	assert.Greater(t, h.CameraPosition().Z, 100.0)
}

func TestHeadlessAnimationDone(t *testing.T) {
	h := NewHeadless(5 * time.Millisecond)
	done := make(chan struct{})
	h.StartAnimation(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("animation did not finish")
	}

	var called atomic.Bool
	h2 := NewHeadless(time.Hour)
	h2.StartAnimation(func() { called.Store(true) })
	h2.StopAnimation()
	assert.False(t, called.Load())
}
