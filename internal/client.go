package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/bridge"
	"github.com/starford/hypermind/internal/mcpserver"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/render"
	"github.com/starford/hypermind/internal/session"
	"github.com/starford/hypermind/internal/settings"
	"github.com/starford/hypermind/internal/shots"
	"github.com/starford/hypermind/internal/storage"
	"github.com/starford/hypermind/internal/wormhole"
)

const (
	// headlessRevolution is how long one orbit takes on the headless host.
	headlessRevolution = 5 * time.Second
	hostQueue          = 64
	flyStep            = 10.0
	maxFlySteps        = 500
)

// printNotifier writes notices to the command output.
type printNotifier struct {
	out io.Writer
}

func (n printNotifier) Success(msg string) { fmt.Fprintf(n.out, "ok: %s\n", msg) }
func (n printNotifier) Error(msg string)   { fmt.Fprintf(n.out, "error: %s\n", msg) }

// client is a headless session wired to either the in-process service or a
// remote server.
type client struct {
	app      *application
	logger   *slog.Logger
	core     *core
	host     *render.Owner
	session  *session.Session
	files    storage.Provider
	notifier session.Notifier

	stopWatch context.CancelFunc
	watchDone chan struct{}
}

func sessionConfig(cfg SessionConfig) session.Config {
	sc := session.DefaultConfig()
	sc.HideLabelsThreshold = cfg.HideLabelsThreshold
	sc.RefreshDebounce = cfg.RefreshDebounce
	sc.ZoomSettle = cfg.ZoomSettle
	return sc
}

func openClient(ctx context.Context, opts []Option) (*client, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	cfg := app.config
	logger := newLogger(cfg, os.Stderr)

	c := &client{app: app, logger: logger, notifier: printNotifier{out: app.out}}

	var b bridge.Bridge
	var llm models.LLM
	if app.server != "" {
		b = bridge.NewHTTP(app.server, cfg.Auth.Token, app.hypergraph)
		if c.files, err = storage.NewFS(cfg.Exports.Path); err != nil {
			return nil, fmt.Errorf("init exports storage: %w", err)
		}
	} else {
		if c.core, err = newCore(cfg, logger); err != nil {
			return nil, err
		}
		b = bridge.NewLocal(c.core.svc, app.hypergraph)
		c.files = c.core.exports
		llm = c.core.settings.LLM()
	}

	c.host = render.NewOwner(render.NewHeadless(headlessRevolution), hostQueue)
	c.session = session.New(b, c.host,
		session.WithLogger(logger),
		session.WithNotifier(c.notifier),
		session.WithConfig(sessionConfig(cfg.Session)),
		session.WithLLM(llm),
	)
	if c.core != nil {
		c.followSettings()
	}
	if err := c.session.Open(ctx); err != nil {
		c.close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	return c, nil
}

// followSettings pushes every settings change into the session and watches
// the settings file until the client closes.
func (c *client) followSettings() {
	c.core.settings.OnChange(func(st settings.Settings) {
		c.session.SetLLM(st.LLM)
	})
	ctx, cancel := context.WithCancel(context.Background())
	c.stopWatch = cancel
	c.watchDone = make(chan struct{})
	go func() {
		defer close(c.watchDone)
		if err := c.core.watchSettings(ctx); err != nil {
			c.logger.Warn("settings watcher stopped", slog.String("error", err.Error()))
		}
	}()
}

func (c *client) close() {
	if c.stopWatch != nil {
		c.stopWatch()
		<-c.watchDone
	}
	c.session.Close()
	c.host.Close()
	if c.core != nil {
		c.core.close()
	}
}

// summary prints the hypergraph id and the size of the rendered graph.
func (c *client) summary() {
	snap := c.session.Snapshot()
	fmt.Fprintf(c.app.out, "hypergraph: %s\nhyperedges: %d\nnodes: %d\nlinks: %d\n",
		snap.HypergraphID, len(c.session.Hyperedges()), len(snap.Graph.Nodes), len(snap.Graph.Links))
}

// RunGenerate generates hyperedges from input into the selected hypergraph
// and prints the result.
func RunGenerate(ctx context.Context, input string, opts ...Option) error {
	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	// A fresh, empty hypergraph takes the input as its opening prompt;
	// otherwise it goes through the input box like any other submission.
	c.session.SetInputMode(session.ModeGenerate)
	ran, err := c.session.AutoGenerate(ctx, input)
	if err == nil && !ran {
		err = c.session.Submit(ctx, session.ModeGenerate, input, false)
	}
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if err := c.host.Sync(ctx); err != nil {
		return err
	}
	c.summary()
	return nil
}

// RunAdd saves symbols as one hyperedge, each symbol extending the draft
// built from the previous ones.
func RunAdd(ctx context.Context, symbols []string, opts ...Option) error {
	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	c.session.SetInputMode(session.ModeAdd)
	for _, sym := range symbols {
		if err := c.session.Submit(ctx, session.ModeAdd, sym, false); err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}
	fmt.Fprintf(c.app.out, "added: %s\n", strings.Join(c.session.Draft(), " -> "))
	c.summary()
	return nil
}

// GraphQuery describes the view RunGraph resolves. Filters are applied in
// order: a leading "+" appends the term to the last group and a leading "-"
// removes it from the group holding it. Interwingle and Depth are applied
// when not negative, then Deeper raises depth one step at a time.
type GraphQuery struct {
	Filters      []string
	Interwingle  int
	Depth        int
	Deeper       int
	Tutorial     bool
	ToggleLabels bool
	Symbols      bool
}

// RunGraph resolves a filtered view of the selected hypergraph and prints
// it.
func RunGraph(ctx context.Context, q GraphQuery, opts ...Option) error {
	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	if q.Tutorial {
		if err := c.session.Tutorial(ctx); err != nil {
			return fmt.Errorf("graph: %w", err)
		}
	}
	c.session.SetInputMode(session.ModeSearch)
	for _, f := range q.Filters {
		if err := c.applyFilter(ctx, f); err != nil {
			return fmt.Errorf("graph: %w", err)
		}
	}
	if q.Interwingle >= 0 {
		if err := c.session.SetInterwingle(ctx, q.Interwingle); err != nil {
			return fmt.Errorf("graph: %w", err)
		}
	}
	if q.Depth >= 0 {
		if err := c.session.SetDepth(ctx, q.Depth); err != nil {
			return fmt.Errorf("graph: %w", err)
		}
	}
	for i := 0; i < q.Deeper; i++ {
		if err := c.session.IncrementDepth(ctx); err != nil {
			return fmt.Errorf("graph: %w", err)
		}
	}
	if q.ToggleLabels {
		c.session.ToggleLabels()
	}
	if err := c.host.Sync(ctx); err != nil {
		return err
	}

	snap := c.session.Snapshot()
	groups := make([]string, 0, len(snap.Filters))
	for _, g := range snap.Filters {
		groups = append(groups, "["+strings.Join(g, ", ")+"]")
	}
	labels := "shown"
	if snap.HideLabels {
		labels = "hidden"
	}
	fmt.Fprintf(c.app.out, "filters: %s\ninterwingle: %d\ndepth: %d/%d\nlabels: %s\n",
		strings.Join(groups, " "), snap.Interwingle, snap.Depth, snap.MaxDepth, labels)
	c.summary()
	names := make(map[string]string, len(snap.Graph.Nodes))
	for _, n := range snap.Graph.Nodes {
		names[n.ID] = n.Name
	}
	for _, l := range snap.Graph.Links {
		fmt.Fprintf(c.app.out, "%s -> %s\n", names[l.Source], names[l.Target])
	}
	if q.Symbols {
		fmt.Fprintf(c.app.out, "symbols: %s\n", strings.Join(c.session.UniqueSymbols(), ", "))
	}
	return nil
}

func (c *client) applyFilter(ctx context.Context, term string) error {
	switch {
	case strings.HasPrefix(term, "+"):
		return c.session.Submit(ctx, session.ModeSearch, term[1:], true)
	case strings.HasPrefix(term, "-"):
		sym := strings.TrimSpace(term[1:])
		for i, g := range c.session.Snapshot().Filters {
			if slices.Contains(g, sym) {
				return c.session.RemoveFilterSymbol(ctx, i, sym)
			}
		}
		return fmt.Errorf("filter %q: %w", sym, apperr.ErrNotFound)
	default:
		return c.session.Submit(ctx, session.ModeSearch, term, false)
	}
}

// RunSettings prints the model selection, or saves llm first when it names
// a service. With a server the server's settings are used.
func RunSettings(ctx context.Context, llm models.LLM, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)

	var current models.LLM
	switch {
	case app.server != "":
		remote := bridge.NewHTTP(app.server, app.config.Auth.Token, "")
		if llm.Service != "" {
			current, err = remote.SaveSettings(ctx, llm)
		} else {
			current, err = remote.Settings(ctx)
		}
		if err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	default:
		c, err := newCore(app.config, logger)
		if err != nil {
			return err
		}
		defer c.close()
		if llm.Service != "" {
			if err := c.settings.Save(settings.Settings{LLM: llm}); err != nil {
				return err
			}
		}
		current = c.settings.LLM()
	}
	fmt.Fprintf(app.out, "service: %s\nmodel: %s\n", current.Service, current.Model)
	return nil
}

// RunExport writes a CSV export of the selected hypergraph and prints its
// path.
func RunExport(ctx context.Context, opts ...Option) error {
	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	name, data, err := c.session.Export(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := c.files.Write(name, data); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	p, err := c.files.Path(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.app.out, p)
	return nil
}

// RunShot plays a scripted camera shot over the selected hypergraph and
// records the camera track next to the exports.
func RunShot(ctx context.Context, name string, opts ...Option) error {
	shot, err := shots.ParseShot(name)
	if err != nil {
		return err
	}
	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	control := render.ControlOrbit
	if shot == shots.Zoom {
		control = render.ControlFly
	}
	if err := c.session.SetControlMode(control); err != nil {
		return err
	}

	tick := c.app.config.Session.ShotTick
	rec := shots.NewTrackRecorder(c.host, c.files, "tracks", tick)
	d := shots.NewDirector(c.session, c.host, rec,
		shots.WithTick(tick),
		shots.WithLogger(c.logger),
		shots.WithNotifier(c.notifier),
	)
	if err := d.Start(ctx, shot); err != nil {
		return err
	}
	d.Wait()

	p, err := c.files.Path(rec.Last())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.app.out, p)
	return nil
}

// RunWormhole arms the wormhole, flies the camera at the nearest node until
// it passes through and prints the hypergraph generated on the other side.
func RunWormhole(ctx context.Context, opts ...Option) error {
	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.close()

	if len(c.session.Graph().Nodes) == 0 {
		return errors.New("wormhole: hypergraph is empty")
	}
	if err := c.session.SetControlMode(render.ControlFly); err != nil {
		return err
	}
	ctrl := wormhole.New(c.session, c.host,
		wormhole.WithThreshold(c.app.config.Session.CollisionThreshold),
		wormhole.WithLogger(c.logger),
		wormhole.WithNotifier(c.notifier),
	)
	if err := ctrl.Enable(); err != nil {
		return err
	}
	defer func() { _ = ctrl.Disable() }()

	from := c.session.Snapshot().HypergraphID
	if !c.fly(ctx, ctrl) {
		return errors.New("wormhole: no collision")
	}
	ctrl.Wait()
	if err := c.host.Sync(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.app.out, "from: %s\n", from)
	c.summary()
	return nil
}

// fly moves the camera towards the nearest node, ticking the controller
// after every step.
func (c *client) fly(ctx context.Context, ctrl *wormhole.Controller) bool {
	if err := c.host.Sync(ctx); err != nil {
		return false
	}
	target, ok := nearestNode(c.host.CameraPosition(), c.host.NodePositions())
	if !ok {
		return false
	}
	for i := 0; i < maxFlySteps; i++ {
		if ctx.Err() != nil {
			return false
		}
		pos := c.host.CameraPosition()
		d := pos.Distance(target)
		if d > flyStep {
			f := flyStep / d
			pos = render.Vec3{
				X: pos.X + (target.X-pos.X)*f,
				Y: pos.Y + (target.Y-pos.Y)*f,
				Z: pos.Z + (target.Z-pos.Z)*f,
			}
		} else {
			pos = target
		}
		c.host.SetCameraPosition(pos, nil, 0)
		if err := c.host.Sync(ctx); err != nil {
			return false
		}
		if ctrl.Tick(ctx) {
			return true
		}
	}
	return false
}

func nearestNode(from render.Vec3, nodes map[string]render.Vec3) (render.Vec3, bool) {
	var best render.Vec3
	bestD := -1.0
	for _, p := range nodes {
		if d := from.Distance(p); bestD < 0 || d < bestD {
			best, bestD = p, d
		}
	}
	return best, bestD >= 0
}

// RunMCP serves the hypergraph tools over stdio. Logs go to stderr so they
// do not corrupt the protocol stream.
func RunMCP(ctx context.Context, version string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)
	c, err := newCore(app.config, logger)
	if err != nil {
		return err
	}
	defer c.close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := c.watchSettings(watchCtx); err != nil {
			logger.Warn("settings watcher stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, version).ServeStdio()
}
