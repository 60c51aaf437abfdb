package shots

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/starford/hypermind/internal/render"
	"github.com/starford/hypermind/internal/storage"
)

// ErrRecording is returned by Start while a recording is in progress.
var ErrRecording = errors.New("shots: already recording")

// ErrNotRecording is returned by Stop when nothing is being recorded.
var ErrNotRecording = errors.New("shots: not recording")

// LogRecorder only logs when recordings start and stop.
type LogRecorder struct {
	Logger *slog.Logger

	mu      sync.Mutex
	name    string
	started time.Time
}

func (r *LogRecorder) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.name != "" {
		return ErrRecording
	}
	r.name, r.started = name, time.Now()
	r.logger().Info("recorder: start", slog.String("shot", name))
	return nil
}

func (r *LogRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.name == "" {
		return ErrNotRecording
	}
	r.logger().Info("recorder: stop", slog.String("shot", r.name), slog.Duration("took", time.Since(r.started)))
	r.name = ""
	return nil
}

func (r *LogRecorder) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Frame is one sample of a camera track.
type Frame struct {
	At     time.Duration `json:"at"`
	Camera render.Vec3   `json:"camera"`
}

// Track is a recorded camera path.
type Track struct {
	Shot    string    `json:"shot"`
	Started time.Time `json:"started"`
	Frames  []Frame   `json:"frames"`
}

// TrackRecorder samples the camera position while recording and saves the
// track as JSON when stopped.
type TrackRecorder struct {
	host     render.Host
	store    storage.Provider
	dir      string
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	track   *Track
	stop    chan struct{}
	stopped chan struct{}
	last    string
}

// NewTrackRecorder samples host every interval and writes tracks into dir of
// store.
func NewTrackRecorder(host render.Host, store storage.Provider, dir string, interval time.Duration) *TrackRecorder {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &TrackRecorder{host: host, store: store, dir: dir, interval: interval, now: time.Now}
}

func (r *TrackRecorder) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.track != nil {
		return ErrRecording
	}
	started := r.now()
	r.track = &Track{
		Shot:    name,
		Started: started,
		Frames:  []Frame{{Camera: r.host.CameraPosition()}},
	}
	r.stop = make(chan struct{})
	r.stopped = make(chan struct{})
	go r.sample(r.track, started, r.stop, r.stopped)
	return nil
}

func (r *TrackRecorder) sample(track *Track, started time.Time, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			f := Frame{At: r.now().Sub(started), Camera: r.host.CameraPosition()}
			r.mu.Lock()
			track.Frames = append(track.Frames, f)
			r.mu.Unlock()
		}
	}
}

// Stop ends sampling and writes the track. The file name is returned by
// Last.
func (r *TrackRecorder) Stop() error {
	r.mu.Lock()
	if r.track == nil {
		r.mu.Unlock()
		return ErrNotRecording
	}
	stop, stopped := r.stop, r.stopped
	r.mu.Unlock()

	close(stop)
	<-stopped

	r.mu.Lock()
	track := r.track
	track.Frames = append(track.Frames, Frame{At: r.now().Sub(track.Started), Camera: r.host.CameraPosition()})
	r.track = nil
	r.mu.Unlock()

	data, err := json.MarshalIndent(track, "", "  ")
	if err != nil {
		return fmt.Errorf("shots: encode track: %w", err)
	}
	name := path.Join(r.dir, fmt.Sprintf("%s-%d.json", track.Shot, track.Started.UnixMilli()))
	if err := r.store.Write(name, data); err != nil {
		return fmt.Errorf("shots: write track: %w", err)
	}

	r.mu.Lock()
	r.last = name
	r.mu.Unlock()
	return nil
}

// Last returns the path of the last written track.
func (r *TrackRecorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
