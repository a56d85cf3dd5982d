package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/openwris/hydromap/internal/logger"
)

type fakeFeatures struct {
	mu    sync.Mutex
	fn    func(kind LayerKind, coord orb.Point) (FeatureProperties, bool, error)
	calls int
}

func (f *fakeFeatures) FeatureInfo(ctx context.Context, kind LayerKind, coord orb.Point, resolution float64) (FeatureProperties, bool, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	return fn(kind, coord)
}

type fakeSeries struct {
	mu        sync.Mutex
	reservoir []ReservoirPoint
	gw        []GroundwaterPoint
	resCalls  []string
	gwCalls   []string
}

func (f *fakeSeries) ReservoirSeries(ctx context.Context, uniqueID string) []ReservoirPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resCalls = append(f.resCalls, uniqueID)
	return f.reservoir
}

func (f *fakeSeries) GroundwaterSeries(ctx context.Context, uniqueID string) []GroundwaterPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gwCalls = append(f.gwCalls, uniqueID)
	return f.gw
}

func newTestController(features *fakeFeatures, series *fakeSeries) *MapController {
	return NewMapController(features, series, NewEventBus(), logger.Get(logger.ErrorLevel))
}

func hit(props FeatureProperties) func(LayerKind, orb.Point) (FeatureProperties, bool, error) {
	return func(LayerKind, orb.Point) (FeatureProperties, bool, error) {
		return props, true, nil
	}
}

func TestVisibilityIndependentOfActiveLayer(t *testing.T) {
	c := newTestController(&fakeFeatures{fn: hit(nil)}, &fakeSeries{})

	if c.Active() != LayerReservoir {
		t.Fatalf("active=%s, want reservoir initially", c.Active())
	}

	if err := c.SetVisibility(LayerGroundwater, true); err != nil {
		t.Fatal(err)
	}
	if !c.Visibility(LayerGroundwater) {
		t.Error("groundwater should be visible")
	}
	if c.Active() != LayerReservoir {
		t.Errorf("active=%s, want reservoir: toggling visibility must not steal the active layer", c.Active())
	}
	if !c.Visibility(LayerReservoir) {
		t.Error("reservoir visibility changed by a groundwater toggle")
	}
}

func TestSetActiveForcesVisibility(t *testing.T) {
	c := newTestController(&fakeFeatures{fn: hit(nil)}, &fakeSeries{})

	if c.Visibility(LayerGroundwater) {
		t.Fatal("groundwater starts hidden")
	}
	if err := c.SetActive(LayerGroundwater); err != nil {
		t.Fatal(err)
	}
	if !c.Visibility(LayerGroundwater) {
		t.Error("selecting a layer for info must also show it")
	}
}

func TestSetVisibilityUnknownLayer(t *testing.T) {
	c := newTestController(&fakeFeatures{fn: hit(nil)}, &fakeSeries{})
	if err := c.SetVisibility(LayerKind("rainfall"), true); err == nil {
		t.Fatal("expected error for unknown layer")
	}
}

func TestSelectReplacesPriorSelection(t *testing.T) {
	series := &fakeSeries{reservoir: []ReservoirPoint{
		{Date: day("2021-01-01"), LevelM: 5},
		{Date: day("2021-01-10"), LevelM: 9},
	}}
	features := &fakeFeatures{fn: hit(FeatureProperties{"unique_id": "RES-1", "station_name": "Alpha", "old_only": "x"})}
	c := newTestController(features, series)

	sel, err := c.Select(context.Background(), orb.Point{77, 20}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if sel == nil {
		t.Fatal("expected a selection")
	}
	if got := sel.Properties.Display("station_name"); got != "Alpha" {
		t.Errorf("station=%q", got)
	}
	if len(series.resCalls) != 1 || series.resCalls[0] != "RES-1" {
		t.Fatalf("series calls = %v", series.resCalls)
	}
	if !sel.Range.From.Equal(day("2021-01-01")) || !sel.Range.To.Equal(day("2021-01-10")) {
		t.Errorf("seeded range = %+v", sel.Range)
	}
	if c.Panel() != PanelReservoir {
		t.Errorf("panel=%s, want open-reservoir", c.Panel())
	}

	// Second selection must replace everything; no field persists.
	features.fn = hit(FeatureProperties{"unique_id": "RES-2", "station_name": "Beta"})
	sel2, err := c.Select(context.Background(), orb.Point{78, 21}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, leftover := sel2.Properties["old_only"]; leftover {
		t.Error("property from the previous selection leaked into the new one")
	}
	if sel2.Rev == sel.Rev {
		t.Error("selection revision did not change")
	}
}

func TestSelectErrorKeepsPriorState(t *testing.T) {
	series := &fakeSeries{reservoir: []ReservoirPoint{{Date: day("2021-01-01"), LevelM: 5}}}
	features := &fakeFeatures{fn: hit(FeatureProperties{"unique_id": "RES-1"})}
	c := newTestController(features, series)

	if _, err := c.Select(context.Background(), orb.Point{77, 20}, 10); err != nil {
		t.Fatal(err)
	}
	prior := c.Selection()

	features.fn = func(LayerKind, orb.Point) (FeatureProperties, bool, error) {
		return nil, false, errors.New("boom")
	}
	if _, err := c.Select(context.Background(), orb.Point{78, 21}, 10); err == nil {
		t.Fatal("expected error")
	}
	if c.Selection() != prior {
		t.Error("failed click replaced the prior selection")
	}
	if len(series.resCalls) != 1 {
		t.Errorf("series fetch ran after a failed feature resolve: %v", series.resCalls)
	}
}

func TestSelectMissIsNoop(t *testing.T) {
	series := &fakeSeries{}
	features := &fakeFeatures{fn: func(LayerKind, orb.Point) (FeatureProperties, bool, error) {
		return nil, false, nil
	}}
	c := newTestController(features, series)

	sel, err := c.Select(context.Background(), orb.Point{77, 20}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if sel != nil {
		t.Fatal("miss produced a selection")
	}
	if c.Panel() != PanelClosed {
		t.Errorf("panel=%s, want closed", c.Panel())
	}
}

func TestSelectGroundwaterUsesGroundwaterFetcher(t *testing.T) {
	series := &fakeSeries{gw: []GroundwaterPoint{{Date: day("2021-06-01"), DepthM: 3}}}
	features := &fakeFeatures{fn: hit(FeatureProperties{"unique_id": "GW-7"})}
	c := newTestController(features, series)
	if err := c.SetActive(LayerGroundwater); err != nil {
		t.Fatal(err)
	}

	sel, err := c.Select(context.Background(), orb.Point{77, 20}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(series.gwCalls) != 1 || series.gwCalls[0] != "GW-7" {
		t.Fatalf("gw calls = %v", series.gwCalls)
	}
	if len(series.resCalls) != 0 {
		t.Fatalf("reservoir fetcher called for a groundwater site")
	}
	if sel.SeriesLen() != 1 {
		t.Errorf("series len = %d", sel.SeriesLen())
	}
}

func TestHoverShowsAndHidesPopup(t *testing.T) {
	features := &fakeFeatures{fn: hit(FeatureProperties{"station_name": "Alpha"})}
	c := newTestController(features, &fakeSeries{})

	popup, applied := c.Hover(context.Background(), orb.Point{77, 20}, 10)
	if !applied || !popup.Visible {
		t.Fatalf("popup = %+v applied=%v", popup, applied)
	}

	features.fn = func(LayerKind, orb.Point) (FeatureProperties, bool, error) {
		return nil, false, errors.New("offline")
	}
	popup, applied = c.Hover(context.Background(), orb.Point{78, 21}, 10)
	if !applied {
		t.Fatal("latest hover must apply")
	}
	if popup.Visible {
		t.Error("a failed hover must degrade to no popup")
	}
}

func TestStaleHoverResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	coordA := orb.Point{70, 20}
	coordB := orb.Point{80, 25}

	features := &fakeFeatures{}
	features.fn = func(_ LayerKind, coord orb.Point) (FeatureProperties, bool, error) {
		if coord == coordA {
			<-release // A's response arrives after B's
			return FeatureProperties{"station_name": "A"}, true, nil
		}
		return FeatureProperties{"station_name": "B"}, true, nil
	}
	c := newTestController(features, &fakeSeries{})

	done := make(chan Popup, 1)
	applied := make(chan bool, 1)
	go func() {
		p, ok := c.Hover(context.Background(), coordA, 10)
		done <- p
		applied <- ok
	}()

	// Wait until A's request is in flight.
	for {
		features.mu.Lock()
		started := features.calls >= 1
		features.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}

	popupB, okB := c.Hover(context.Background(), coordB, 10)
	if !okB || popupB.Properties.Display("station_name") != "B" {
		t.Fatalf("B hover = %+v applied=%v", popupB, okB)
	}

	close(release)
	<-done
	if aApplied := <-applied; aApplied {
		t.Fatal("stale response for A was applied")
	}

	final := c.PopupState()
	if final.Properties.Display("station_name") != "B" {
		t.Fatalf("final popup shows %q, want B", final.Properties.Display("station_name"))
	}
}

func TestClosePanelDiscardsSelection(t *testing.T) {
	features := &fakeFeatures{fn: hit(FeatureProperties{"unique_id": "RES-1"})}
	c := newTestController(features, &fakeSeries{reservoir: []ReservoirPoint{{Date: day("2021-01-01")}}})

	if _, err := c.Select(context.Background(), orb.Point{77, 20}, 10); err != nil {
		t.Fatal(err)
	}
	c.ClosePanel()
	if c.Panel() != PanelClosed {
		t.Errorf("panel=%s, want closed", c.Panel())
	}
	if c.Selection() != nil {
		t.Error("selection survived a panel close")
	}
}

func TestChartModeResetsOnNewSelection(t *testing.T) {
	features := &fakeFeatures{fn: hit(FeatureProperties{"unique_id": "RES-1"})}
	c := newTestController(features, &fakeSeries{})

	c.SetChartMode("storage")
	if c.ChartMode() != "storage" {
		t.Fatalf("mode=%q", c.ChartMode())
	}
	if _, err := c.Select(context.Background(), orb.Point{77, 20}, 10); err != nil {
		t.Fatal(err)
	}
	if c.ChartMode() != DefaultChartMode {
		t.Errorf("mode=%q, want %q after a new selection", c.ChartMode(), DefaultChartMode)
	}
}

func TestSetRangeUpdatesSelection(t *testing.T) {
	features := &fakeFeatures{fn: hit(FeatureProperties{"unique_id": "RES-1"})}
	c := newTestController(features, &fakeSeries{reservoir: []ReservoirPoint{{Date: day("2021-01-01")}}})

	if _, err := c.Select(context.Background(), orb.Point{77, 20}, 10); err != nil {
		t.Fatal(err)
	}
	r := DateRange{From: day("2021-02-01"), To: day("2021-03-01")}
	c.SetRange(r)
	if got := c.Selection().Range; got != r {
		t.Errorf("range=%+v, want %+v", got, r)
	}
}
