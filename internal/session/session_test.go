package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/bridge"
	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/render"
	"github.com/starford/hypermind/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	s       *Session
	bridge  *testutil.FakeBridge
	host    *testutil.FakeHost
	notices *testutil.Notices
	clock   *clock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		bridge:  testutil.NewFakeBridge(),
		host:    testutil.NewFakeHost(render.Vec3{Z: 1000}),
		notices: &testutil.Notices{},
		clock:   newClock(),
	}
	cfg := DefaultConfig()
	cfg.ZoomSettle = time.Millisecond
	base := []Option{
		WithNotifier(f.notices),
		WithLogger(testutil.Logger()),
		WithClock(f.clock.Now),
		WithConfig(cfg),
	}
	f.s = New(f.bridge, f.host, append(base, opts...)...)
	t.Cleanup(f.s.Close)
	return f
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	require.NoError(t, f.s.Open(context.Background()))
}

func TestNewSessionDefaults(t *testing.T) {
	f := newFixture(t)
	snap := f.s.Snapshot()
	assert.Empty(t, snap.Filters)
	assert.Equal(t, 0, snap.Interwingle)
	assert.Equal(t, 0, snap.Depth)
	assert.Empty(t, snap.Draft)
	assert.False(t, snap.Edited)
	assert.Equal(t, DefaultMode(), snap.Mode)
	assert.Equal(t, ModeGenerate, snap.InputMode)
}

func TestOpenCreatesHypergraph(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	assert.Equal(t, 1, f.bridge.Created())
	assert.Equal(t, "graph-1", f.s.Snapshot().HypergraphID)

	f2 := newFixture(t)
	f2.bridge.Seed("existing", []string{"a", "b"})
	f2.open(t)
	assert.Equal(t, 0, f2.bridge.Created(), "valid hypergraph is kept")
	assert.True(t, f2.s.Snapshot().Edited)
}

func TestApplyFilterTermGroups(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()

	terms := []string{"a", "b", "c", "d", "e", "f"}
	for i, term := range terms {
		require.NoError(t, f.s.ApplyFilterTerm(ctx, term, i%2 == 1))
	}
	got := f.s.Snapshot().Filters
	assert.Equal(t, models.Filters{{"a", "b"}, {"c", "d"}, {"e", "f"}}, got)
	for _, g := range got {
		assert.NotEmpty(t, g)
	}
}

func TestApplyFilterTermAppendWithoutGroups(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	require.NoError(t, f.s.ApplyFilterTerm(context.Background(), "solo", true))
	assert.Equal(t, models.Filters{{"solo"}}, f.s.Snapshot().Filters)

	err := f.s.ApplyFilterTerm(context.Background(), "  ", false)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRemoveFilterSymbolDropsEmptyGroup(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()
	require.NoError(t, f.s.ApplyFilterTerm(ctx, "cat", false))
	require.NoError(t, f.s.ApplyFilterTerm(ctx, "dog", false))
	require.NoError(t, f.s.ApplyFilterTerm(ctx, "bird", true))

	require.NoError(t, f.s.RemoveFilterSymbol(ctx, 0, "cat"))
	assert.Equal(t, models.Filters{{"dog", "bird"}}, f.s.Snapshot().Filters)

	require.NoError(t, f.s.RemoveFilterSymbol(ctx, 0, "dog"))
	assert.Equal(t, models.Filters{{"bird"}}, f.s.Snapshot().Filters)

	require.ErrorIs(t, f.s.RemoveFilterSymbol(ctx, 3, "x"), apperr.ErrNotFound)
	require.NoError(t, f.s.RemoveFilterSymbol(ctx, 0, "bird"))
	assert.Empty(t, f.s.Snapshot().Filters)
}

func TestToggleInterwingleCycles(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()

	var seen []int
	for range 6 {
		require.NoError(t, f.s.ToggleInterwingle(ctx))
		seen = append(seen, f.s.Snapshot().Interwingle)
	}
	assert.Equal(t, []int{1, 2, 3, 0, 1, 2}, seen)

	require.NoError(t, f.s.SetInterwingle(ctx, 9))
	assert.Equal(t, 3, f.s.Snapshot().Interwingle)
	require.NoError(t, f.s.SetInterwingle(ctx, -4))
	assert.Equal(t, 0, f.s.Snapshot().Interwingle)

	last := f.bridge.GraphDataCalls()
	assert.Equal(t, 0, last[len(last)-1].Options.Interwingle)
}

func TestIncrementDepthSaturates(t *testing.T) {
	f := newFixture(t)
	f.bridge.OnGraphData(func(context.Context, models.Filters, models.GraphOptions) (models.GraphData, error) {
		return models.GraphData{MaxDepth: 2}, nil
	})
	f.open(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, f.s.IncrementDepth(ctx))
		d := f.s.Snapshot().Depth
		assert.GreaterOrEqual(t, d, 0)
		assert.LessOrEqual(t, d, 2)
	}
	assert.Equal(t, 2, f.s.Snapshot().Depth)

	require.NoError(t, f.s.SetDepth(ctx, -3))
	assert.Equal(t, 0, f.s.Snapshot().Depth)
}

func TestDepthClampsDownToNewMaximum(t *testing.T) {
	f := newFixture(t)
	var maxDepth atomic.Int32
	maxDepth.Store(3)
	f.bridge.OnGraphData(func(context.Context, models.Filters, models.GraphOptions) (models.GraphData, error) {
		return models.GraphData{MaxDepth: int(maxDepth.Load())}, nil
	})
	f.open(t)
	ctx := context.Background()
	require.NoError(t, f.s.SetDepth(ctx, 3))
	assert.Equal(t, 3, f.s.Snapshot().Depth)

	maxDepth.Store(1)
	require.NoError(t, f.s.Refresh(ctx, false))
	snap := f.s.Snapshot()
	assert.Equal(t, 1, snap.Depth)
	assert.Equal(t, 1, snap.MaxDepth)

	maxDepth.Store(5)
	require.NoError(t, f.s.Refresh(ctx, false))
	assert.Equal(t, 1, f.s.Snapshot().Depth, "depth is never raised by a larger maximum")
}

func TestFilterScenario(t *testing.T) {
	f := newFixture(t)
	f.bridge.OnGraphData(func(context.Context, models.Filters, models.GraphOptions) (models.GraphData, error) {
		return models.GraphData{Nodes: []models.Node{{ID: "cat"}, {ID: "dog"}, {ID: "bird"}}, MaxDepth: 2}, nil
	})
	f.open(t)
	ctx := context.Background()
	require.NoError(t, f.s.ApplyFilterTerm(ctx, "cat", false))
	require.NoError(t, f.s.ApplyFilterTerm(ctx, "dog", false))
	require.NoError(t, f.s.ApplyFilterTerm(ctx, "bird", true))

	calls := f.bridge.GraphDataCalls()
	last := calls[len(calls)-1]
	assert.Equal(t, models.Filters{{"cat"}, {"dog", "bird"}}, last.Filters)
	assert.Equal(t, models.GraphOptions{Interwingle: 0, Depth: 0}, last.Options)

	snap := f.s.Snapshot()
	assert.Equal(t, 0, snap.Depth)
	assert.Equal(t, 2, snap.MaxDepth)
	assert.False(t, snap.HideLabels)
	assert.True(t, f.host.Labels())
}

func TestHideLabelsThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HideLabelsThreshold = 3
	f := newFixture(t, WithConfig(cfg))
	f.bridge.Seed("g", []string{"a", "b", "c"})
	f.open(t)

	assert.True(t, f.s.Snapshot().HideLabels)
	assert.False(t, f.host.Labels())

	f.s.ToggleLabels()
	assert.False(t, f.s.Snapshot().HideLabels)
	assert.True(t, f.host.Labels())
	assert.Equal(t, 1, f.host.Refreshes())
}

func TestRefreshFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	var fail atomic.Bool
	f.bridge.Seed("g", []string{"cat", "dog"})
	f.bridge.OnGraphData(func(context.Context, models.Filters, models.GraphOptions) (models.GraphData, error) {
		if fail.Load() {
			return models.GraphData{}, errors.New("store down")
		}
		return models.GraphData{Nodes: []models.Node{{ID: "cat"}}, MaxDepth: 2}, nil
	})
	f.open(t)
	ctx := context.Background()
	require.NoError(t, f.s.ApplyFilterTerm(ctx, "cat", false))
	require.NoError(t, f.s.SetDepth(ctx, 1))
	before := f.s.Snapshot()

	fail.Store(true)
	require.Error(t, f.s.ApplyFilterTerm(ctx, "dog", false))
	require.Error(t, f.s.SetDepth(ctx, 2))
	require.Error(t, f.s.Refresh(ctx, true))

	after := f.s.Snapshot()
	assert.Equal(t, before.Filters, after.Filters)
	assert.Equal(t, before.Depth, after.Depth)
	assert.Equal(t, before.Graph, after.Graph)
	assert.Equal(t, before.LastRefreshed, after.LastRefreshed)

	fail.Store(false)
	require.NoError(t, f.s.Refresh(ctx, false))
	assert.Equal(t, models.Filters{{"cat"}}, f.s.Snapshot().Filters)
}

func TestNewerRefreshSupersedesOlder(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	var calls atomic.Int32
	started := make(chan struct{})
	f.bridge.OnGraphData(func(ctx context.Context, filters models.Filters, _ models.GraphOptions) (models.GraphData, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return models.GraphData{}, ctx.Err()
		}
		return models.GraphData{Nodes: []models.Node{{ID: "fresh"}}}, nil
	})

	ctx := context.Background()
	errc := make(chan error, 1)
	go func() { errc <- f.s.Refresh(ctx, false) }()
	<-started

	require.NoError(t, f.s.ApplyFilterTerm(ctx, "x", false))
	require.NoError(t, <-errc, "superseded refresh reports no error")

	snap := f.s.Snapshot()
	assert.Equal(t, models.Filters{{"x"}}, snap.Filters)
	require.Len(t, snap.Graph.Nodes, 1)
	assert.Equal(t, "fresh", snap.Graph.Nodes[0].ID)
}

func TestFailedRefreshKeepsSupersededMutation(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	var calls atomic.Int32
	started := make(chan struct{})
	f.bridge.OnGraphData(func(ctx context.Context, _ models.Filters, _ models.GraphOptions) (models.GraphData, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return models.GraphData{}, ctx.Err()
		}
		return models.GraphData{}, errors.New("store down")
	})

	ctx := context.Background()
	errc := make(chan error, 1)
	go func() { errc <- f.s.ApplyFilterTerm(ctx, "a", false) }()
	<-started

	require.Error(t, f.s.ApplyFilterTerm(ctx, "b", false))
	require.NoError(t, <-errc)
	assert.Equal(t, models.Filters{{"a"}}, f.s.Snapshot().Filters)
}

func TestRefreshCallerCancel(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	started := make(chan struct{})
	f.bridge.OnGraphData(func(ctx context.Context, _ models.Filters, _ models.GraphOptions) (models.GraphData, error) {
		close(started)
		<-ctx.Done()
		return models.GraphData{}, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	err := f.s.Refresh(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMaybeRefreshDebounce(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()
	n := len(f.bridge.GraphDataCalls())

	require.NoError(t, f.s.MaybeRefresh(ctx))
	assert.Len(t, f.bridge.GraphDataCalls(), n, "fresh render is not refetched")

	f.clock.Advance(1001 * time.Millisecond)
	require.NoError(t, f.s.MaybeRefresh(ctx))
	assert.Len(t, f.bridge.GraphDataCalls(), n+1)
}

func TestRefreshZoomsAfterSettle(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	assert.Eventually(t, func() bool { return f.host.Fits() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, f.s.Refresh(context.Background(), false))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, f.host.Fits())
}

func TestConsumeStreamTransitions(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	before := len(f.bridge.GraphDataCalls())

	var mu sync.Mutex
	var toGenerating int
	prev := Idle
	unsub := f.s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Mode.Activity == Generating && prev != Generating {
			toGenerating++
		}
		prev = snap.Mode.Activity
	})
	defer unsub()

	stream := testutil.NewStream(
		models.StartEvent(),
		models.ResultEvent([]string{"a", "b"}),
		models.ResultEvent([]string{"b", "c"}),
		models.StopEvent(),
	)
	require.NoError(t, f.s.Consume(context.Background(), stream))

	mu.Lock()
	assert.Equal(t, 1, toGenerating)
	mu.Unlock()
	assert.Equal(t, before+1, len(f.bridge.GraphDataCalls()), "one forced refresh after stop")
	snap := f.s.Snapshot()
	assert.Equal(t, Idle, snap.Mode.Activity)
	assert.True(t, snap.Edited)
	assert.True(t, stream.Closed())
}

func TestConsumeNotices(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	stream := testutil.NewStream(
		models.StartEvent(),
		models.SuccessEvent("Scraping URL..."),
		models.ErrorEvent("Couldn't scrape URL"),
		models.Event{Event: "something.else"},
		models.StopEvent(),
	)
	require.NoError(t, f.s.Consume(context.Background(), stream))
	successes, errs := f.notices.Snapshot()
	assert.Equal(t, []string{"Scraping URL..."}, successes)
	assert.Equal(t, []string{"Couldn't scrape URL"}, errs)
}

func TestConsumeBrokenStream(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	boom := errors.New("connection reset")
	stream := testutil.NewStream(models.StartEvent()).FailAfter(boom)

	err := f.s.Consume(context.Background(), stream)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Idle, f.s.Mode().Activity)
}

func TestConsumeResultRefreshesWhenStale(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	before := len(f.bridge.GraphDataCalls())
	f.clock.Advance(2 * time.Second)

	stream := testutil.NewStream(models.StartEvent(), models.ResultEvent([]string{"a", "b"}), models.StopEvent())
	require.NoError(t, f.s.Consume(context.Background(), stream))
	assert.Equal(t, before+2, len(f.bridge.GraphDataCalls()))
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.s.Submit(ctx, ModeGenerate, "   ", false), apperr.ErrInvalidInput)
	require.ErrorIs(t, f.s.Submit(ctx, ModeSearch, "", false), apperr.ErrInvalidInput)

	_, errs := f.notices.Snapshot()
	assert.Equal(t, []string{NoticeEmptyPhrase, NoticeEmptySearch}, errs)
	assert.Empty(t, f.bridge.GenerateCalls())
	assert.Equal(t, 0, f.bridge.Created(), "no request before validation")
}

func TestSubmitAddBuildsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.s.Submit(ctx, ModeAdd, "a", false))
	require.NoError(t, f.s.Submit(ctx, ModeAdd, "b", false))
	assert.Equal(t, []string{"a", "b"}, f.s.Draft())

	edges := f.bridge.Edges(f.bridge.CurrentID())
	require.Len(t, edges, 1)
	assert.Equal(t, []string{"a", "b"}, edges[0].Symbols)
	assert.True(t, f.s.Snapshot().Edited)

	require.NoError(t, f.s.Submit(ctx, ModeAdd, "", false))
	assert.Empty(t, f.s.Draft())
}

func TestDraftEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, sym := range []string{"a", "b", "c", "d"} {
		require.NoError(t, f.s.Submit(ctx, ModeAdd, sym, false))
	}
	f.s.RemoveLastFromDraft()
	assert.Equal(t, []string{"a", "b", "c"}, f.s.Draft())
	require.NoError(t, f.s.RemoveDraftIndex(1))
	assert.Equal(t, []string{"a", "c"}, f.s.Draft())
	require.ErrorIs(t, f.s.RemoveDraftIndex(5), apperr.ErrInvalidInput)
	f.s.ClearDraft()
	f.s.RemoveLastFromDraft()
	assert.Empty(t, f.s.Draft())
}

func TestSubmitSearchClearsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.s.Submit(ctx, ModeAdd, "a", false))
	require.NoError(t, f.s.Submit(ctx, ModeSearch, "a", false))
	require.NoError(t, f.s.Submit(ctx, ModeSearch, "b", true))
	assert.Empty(t, f.s.Draft())
	assert.Equal(t, models.Filters{{"a", "b"}}, f.s.Snapshot().Filters)
}

func TestRemoveHyperedge(t *testing.T) {
	f := newFixture(t)
	f.bridge.Seed("g", []string{"a", "b"}, []string{"c", "d"})
	f.open(t)
	ctx := context.Background()
	require.NoError(t, f.s.RemoveHyperedge(ctx, []string{"a", "b"}))
	assert.Len(t, f.s.Hyperedges(), 1)
	require.ErrorIs(t, f.s.RemoveHyperedge(ctx, []string{"a", "b"}), apperr.ErrNotFound)
}

func TestClickNodeFilters(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()
	require.NoError(t, f.s.ClickNode(ctx, models.Node{ID: "s:cat", Name: "cat"}, false))
	require.NoError(t, f.s.ClickNode(ctx, models.Node{ID: "s:dog", Name: "dog"}, true))
	assert.Equal(t, models.Filters{{"cat", "dog"}}, f.s.Snapshot().Filters)
}

func TestGenerateRunsStream(t *testing.T) {
	f := newFixture(t, WithLLM(models.LLM{Service: "offline"}))
	f.bridge.OnStream(func(_ context.Context, input string, _ models.WormholeRequest) (bridge.Stream, error) {
		return testutil.NewStream(models.StartEvent(), models.SuccessEvent("Generated knowledge graph"), models.StopEvent()), nil
	})
	ctx := context.Background()

	require.NoError(t, f.s.Submit(ctx, ModeGenerate, " cats and dogs ", false))
	assert.Equal(t, []string{"cats and dogs"}, f.bridge.GenerateCalls())
	assert.Equal(t, 1, f.bridge.Created(), "hypergraph created on demand")
	assert.Equal(t, Idle, f.s.Mode().Activity)
	successes, _ := f.notices.Snapshot()
	assert.Equal(t, []string{"Generated knowledge graph"}, successes)
}

func TestGenerateBusy(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.bridge.OnStream(func(context.Context, string, models.WormholeRequest) (bridge.Stream, error) {
		s := testutil.NewStream(models.StartEvent(), models.StopEvent())
		s.Gate = gate
		return s, nil
	})
	f.open(t)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- f.s.Generate(ctx, "first") }()
	require.Eventually(t, func() bool { return f.s.Mode().Activity == Generating }, time.Second, time.Millisecond)

	require.ErrorIs(t, f.s.Generate(ctx, "second"), apperr.ErrBusy)
	require.ErrorIs(t, f.s.ToggleAnimation(), apperr.ErrBusy)
	_, errs := f.notices.Snapshot()
	assert.Contains(t, errs, NoticeBusy)

	close(gate)
	require.NoError(t, <-errc)
	assert.Equal(t, Idle, f.s.Mode().Activity)
	require.NoError(t, f.s.Generate(ctx, "third"))
}

func TestTutorial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.s.Tutorial(ctx))

	edges := f.bridge.Edges(f.bridge.CurrentID())
	assert.Len(t, edges, len(tutorial))
	assert.Equal(t, []string{"Hypermind", "mind mapping", "3D visualization"}, edges[0].Symbols)

	snap := f.s.Snapshot()
	assert.Equal(t, 3, snap.Interwingle)
	assert.Equal(t, 0, snap.Depth)
	assert.True(t, snap.Edited)

	require.NoError(t, f.s.Tutorial(ctx))
	assert.Len(t, f.bridge.Edges(f.bridge.CurrentID()), len(tutorial), "tutorial only fills empty hypergraphs")
}

func TestAutoGenerate(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	ran, err := f.s.AutoGenerate(ctx, "quantum physics")
	require.NoError(t, err)
	assert.False(t, ran, "not loaded yet")

	f.open(t)
	ran, err = f.s.AutoGenerate(ctx, "7b2f3e4a-1c2d-4e5f-8a9b-0c1d2e3f4a5b")
	require.NoError(t, err)
	assert.False(t, ran, "hypergraph ids are not prompts")

	ran, err = f.s.AutoGenerate(ctx, "  ")
	require.NoError(t, err)
	assert.False(t, ran)

	f.s.SetInputMode(ModeSearch)
	ran, _ = f.s.AutoGenerate(ctx, "quantum physics")
	assert.False(t, ran)
	f.s.SetInputMode(ModeGenerate)

	ran, err = f.s.AutoGenerate(ctx, "quantum physics")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []string{"quantum physics"}, f.bridge.GenerateCalls())

	ran, _ = f.s.AutoGenerate(ctx, "quantum physics")
	assert.False(t, ran, "edited sessions do not auto generate")
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()

	_, _, err := f.s.Export(ctx)
	require.ErrorIs(t, err, apperr.ErrPrecondition)

	require.NoError(t, f.s.Submit(ctx, ModeAdd, "Red", false))
	require.NoError(t, f.s.Submit(ctx, ModeAdd, "Fox", false))
	name, data, err := f.s.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hypermind-red-fox-1714564800000.csv", name)
	assert.Equal(t, "Red Fox\n", string(data))
}

func TestUniqueSymbols(t *testing.T) {
	f := newFixture(t)
	f.bridge.Seed("g", []string{"a", "b", "c"}, []string{"c", "d", "a"})
	f.open(t)
	assert.Equal(t, []string{"a", "b", "c", "d"}, f.s.UniqueSymbols())
}

func TestNewHypergraphResetsQuery(t *testing.T) {
	f := newFixture(t)
	f.bridge.Seed("old", []string{"a", "b"})
	f.open(t)
	ctx := context.Background()
	require.NoError(t, f.s.ApplyFilterTerm(ctx, "a", false))
	require.NoError(t, f.s.SetInterwingle(ctx, 2))

	from, err := f.s.NewHypergraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old", from)
	snap := f.s.Snapshot()
	assert.Equal(t, "graph-1", snap.HypergraphID)
	assert.Empty(t, snap.Filters)
	assert.Equal(t, 2, snap.Interwingle)
}

func TestWormholeModeInvariants(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	require.NoError(t, f.s.SetWormhole(true))
	m := f.s.Mode()
	assert.Equal(t, WormholeArmed, m.Wormhole)
	assert.Equal(t, render.ControlFly, m.Control)
	assert.Equal(t, render.ControlFly, f.host.Control())

	require.ErrorIs(t, f.s.SetControlMode(render.ControlOrbit), apperr.ErrPrecondition)
	require.ErrorIs(t, f.s.ToggleCamera(), apperr.ErrPrecondition)

	assert.True(t, f.s.BeginWormhole())
	assert.False(t, f.s.BeginWormhole(), "second trigger ignored while transitioning")
	assert.Equal(t, WormholeTransitioning, f.s.Mode().Wormhole)
	assert.Equal(t, Generating, f.s.Mode().Activity)

	require.NoError(t, f.s.SetWormhole(false))
	assert.Equal(t, WormholeDisabled, f.s.Mode().Wormhole)
	assert.Equal(t, render.ControlFly, f.s.Mode().Control, "turning off keeps fly control")

	f.s.EndWormhole()
	assert.Equal(t, WormholeDisabled, f.s.Mode().Wormhole)

	require.NoError(t, f.s.SetControlMode(render.ControlOrbit))
}

func TestBeginWormholeNeedsIdle(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	require.NoError(t, f.s.SetWormhole(true))
	require.NoError(t, f.s.BeginAnimation())
	assert.False(t, f.s.BeginWormhole())
	f.s.EndAnimation()
	assert.True(t, f.s.BeginWormhole())
}

func TestGenerateWormhole(t *testing.T) {
	f := newFixture(t)
	f.bridge.Seed("old", []string{"A", "B", "C"}, []string{"X", "Y"})
	f.open(t)
	require.NoError(t, f.s.SetWormhole(true))
	require.True(t, f.s.BeginWormhole())

	ids := []string{models.NewHyperedge("A", "B", "C").ID}
	require.NoError(t, f.s.GenerateWormhole(context.Background(), ids))

	calls := f.bridge.WormholeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "A B C", calls[0].Input)
	assert.Equal(t, "old", calls[0].From)
	assert.Equal(t, ids, calls[0].HyperedgeIDs)
	assert.Equal(t, "graph-1", f.bridge.CurrentID())

	m := f.s.Mode()
	assert.Equal(t, WormholeActive, m.Wormhole)
	assert.Equal(t, Idle, m.Activity)
	f.s.EndWormhole()
	assert.Equal(t, WormholeArmed, f.s.Mode().Wormhole)
}

func TestGenerateWormholeDisabledMidway(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	require.NoError(t, f.s.SetWormhole(true))
	require.True(t, f.s.BeginWormhole())
	require.NoError(t, f.s.SetWormhole(false))

	err := f.s.GenerateWormhole(context.Background(), nil)
	require.ErrorIs(t, err, apperr.ErrPrecondition)
	assert.Empty(t, f.bridge.WormholeCalls())
	assert.Equal(t, Idle, f.s.Mode().Activity)
}

func TestCameraHelpers(t *testing.T) {
	f := newFixture(t)

	f.s.Zoom(-50)
	assert.Equal(t, render.Vec3{Z: 950}, f.host.CameraPosition())

	f.s.Rotate(90)
	pos := f.host.CameraPosition()
	assert.InDelta(t, 950, pos.X, 1e-9)
	assert.InDelta(t, 0, pos.Z, 1e-9)

	f.s.PanX(1, true)
	f.s.PanY(-2, false)
	assert.Equal(t, render.Vec3{X: 10, Y: -2}, f.host.Center())

	f.s.ResetCamera()
	assert.Equal(t, ResetPosition, f.host.CameraPosition())

	f.s.ToggleGraphType()
	assert.Equal(t, render.Graph2D, f.s.Mode().Graph)
	f.s.Nudge(1, 1, false)
	assert.Equal(t, render.Vec3{X: 11, Y: -1}, f.host.Center())
	assert.Equal(t, ResetPosition, f.host.CameraPosition(), "2D arrows pan instead of rotating")
}

func TestToggleAnimation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.ToggleAnimation())
	assert.Equal(t, Animating, f.s.Mode().Activity)
	assert.True(t, f.host.Animating())

	require.ErrorIs(t, f.s.Generate(context.Background(), "x"), apperr.ErrBusy)

	require.NoError(t, f.s.ToggleAnimation())
	assert.Equal(t, Idle, f.s.Mode().Activity)
	assert.False(t, f.host.Animating())
}

func TestParseInputMode(t *testing.T) {
	for in, want := range map[string]InputMode{"add": ModeAdd, "Search": ModeSearch, "": ModeGenerate, "generate": ModeGenerate} {
		got, err := ParseInputMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, strings.ToLower(got.String()), got.String())
	}
	_, err := ParseInputMode("delete")
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestModeValidate(t *testing.T) {
	m := DefaultMode()
	require.NoError(t, m.validate())
	m.Wormhole = WormholeArmed
	require.ErrorIs(t, m.validate(), apperr.ErrPrecondition)
	m.Control = render.ControlFly
	require.NoError(t, m.validate())
	m.Wormhole = 7
	require.ErrorIs(t, m.validate(), apperr.ErrInvalidInput)
	assert.Equal(t, "idle/armed/fly/3d", Mode{Wormhole: WormholeArmed, Control: render.ControlFly}.String())
}
